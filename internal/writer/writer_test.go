package writer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"splunk-log-downloader/internal/models"
)

func page(fields []string, values ...map[string]string) models.ResultPage {
	p := models.ResultPage{}
	for _, v := range values {
		p.Rows = append(p.Rows, models.Row{Fields: fields, Values: v})
	}
	return p
}

func TestCSVPreservesFieldOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w, err := Create(path, models.ModeCSV, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	fields := []string{"_time", "host", "count"}
	err = w.Consume(page(fields,
		map[string]string{"_time": "t1", "host": "web-1", "count": "3"},
		map[string]string{"_time": "t2", "host": "web-2"},
	))
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %v", records)
	}
	if strings.Join(records[0], ",") != "_time,host,count" {
		t.Fatalf("header = %v", records[0])
	}
	if strings.Join(records[1], ",") != "t1,web-1,3" {
		t.Fatalf("row 1 = %v", records[1])
	}
	// Missing field renders empty, not shifted.
	if strings.Join(records[2], ",") != "t2,web-2," {
		t.Fatalf("row 2 = %v", records[2])
	}
	if w.Rows() != 2 {
		t.Fatalf("rows = %d", w.Rows())
	}
}

func TestJSONProducesValidArrayAcrossPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	w, err := Create(path, models.ModeJSON, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	fields := []string{"host"}
	for _, v := range []string{"a", "b", "c"} {
		if err := w.Consume(page(fields, map[string]string{"host": v})); err != nil {
			t.Fatalf("consume: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var rows []map[string]string
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, data)
	}
	if len(rows) != 3 || rows[2]["host"] != "c" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestJSONEmptyRunClosesToEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	w, err := Create(path, models.ModeJSON, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var rows []map[string]string
	if err := json.Unmarshal(data, &rows); err != nil || len(rows) != 0 {
		t.Fatalf("expected empty array, got %q (%v)", data, err)
	}
}

func TestRawLinesWrittenVerbatim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	w, err := Create(path, models.ModeRawLog, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	err = w.Consume(models.ResultPage{Lines: []string{"first event", "second event"}})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "first event\nsecond event\n" {
		t.Fatalf("content = %q", data)
	}
}

func TestCompressedOutputAddsSuffixAndRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w, err := Create(path, models.ModeCSV, true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if w.Path() != path+".gz" {
		t.Fatalf("path = %q", w.Path())
	}
	err = w.Consume(page([]string{"host"}, map[string]string{"host": "web-1"}))
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(w.Path())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("not gzip: %v", err)
	}
	defer gz.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, gz); err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if got := buf.String(); got != "host\nweb-1\n" {
		t.Fatalf("content = %q", got)
	}
}

func TestContentTypeSelection(t *testing.T) {
	cases := []struct {
		path string
		mode string
		want string
	}{
		{"out.csv", models.ModeCSV, "text/csv"},
		{"out.json", models.ModeJSON, "application/json"},
		{"out.log", models.ModeRawLog, "text/plain"},
		{"out.csv.gz", models.ModeCSV, "application/gzip"},
	}
	for _, tc := range cases {
		if got := contentType(tc.path, tc.mode); got != tc.want {
			t.Errorf("contentType(%q, %q) = %q, want %q", tc.path, tc.mode, got, tc.want)
		}
	}
}
