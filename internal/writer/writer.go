// Package writer renders result pages to a local file in the configured
// output mode, optionally gzip-compressed, and can ship the finished file
// to S3.
package writer

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"splunk-log-downloader/internal/models"
)

// Writer streams result pages into an output file. It implements the
// orchestrator's sink contract: pages arrive in order and are appended as
// they come, so a failed run leaves a recognizable partial file rather than
// a silently truncated complete-looking one.
type Writer struct {
	mode string

	file *os.File
	gz   *gzip.Writer
	out  io.Writer

	csvw     *csv.Writer
	header   []string
	jsonOpen bool
	rows     int
}

// Create opens path for writing in the given output mode. With compress set
// the payload is gzip-compressed and a .gz suffix is added unless the path
// already carries one.
func Create(path, mode string, compress bool) (*Writer, error) {
	if compress && !strings.HasSuffix(path, ".gz") {
		path += ".gz"
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}

	w := &Writer{mode: mode, file: f, out: f}
	if compress {
		gz, err := gzip.NewWriterLevel(f, gzip.BestSpeed)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("init gzip: %w", err)
		}
		w.gz = gz
		w.out = gz
	}
	if mode == models.ModeCSV {
		w.csvw = csv.NewWriter(w.out)
	}
	return w, nil
}

// Path returns the path the writer actually opened, including any added
// .gz suffix.
func (w *Writer) Path() string { return w.file.Name() }

// Rows returns the number of rows or lines written so far.
func (w *Writer) Rows() int { return w.rows }

// Consume appends one page in the output mode chosen at creation.
func (w *Writer) Consume(page models.ResultPage) error {
	switch w.mode {
	case models.ModeCSV:
		return w.writeCSV(page)
	case models.ModeJSON:
		return w.writeJSON(page)
	default:
		return w.writeLines(page)
	}
}

// writeCSV emits a header from the first page's field order, then one record
// per row. Fields missing from a row are left empty.
func (w *Writer) writeCSV(page models.ResultPage) error {
	for _, row := range page.Rows {
		if w.header == nil {
			if len(row.Fields) == 0 {
				return fmt.Errorf("row without field metadata at offset %d", page.Offset)
			}
			w.header = row.Fields
			if err := w.csvw.Write(w.header); err != nil {
				return fmt.Errorf("write csv header: %w", err)
			}
		}
		record := make([]string, len(w.header))
		for i, name := range w.header {
			record[i] = row.Values[name]
		}
		if err := w.csvw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
		w.rows++
	}
	w.csvw.Flush()
	return w.csvw.Error()
}

// writeJSON emits one array over the whole run, one element per row.
func (w *Writer) writeJSON(page models.ResultPage) error {
	for _, row := range page.Rows {
		prefix := ",\n  "
		if !w.jsonOpen {
			prefix = "[\n  "
			w.jsonOpen = true
		}
		data, err := json.Marshal(row.Values)
		if err != nil {
			return fmt.Errorf("encode json row: %w", err)
		}
		if _, err := io.WriteString(w.out, prefix); err != nil {
			return err
		}
		if _, err := w.out.Write(data); err != nil {
			return err
		}
		w.rows++
	}
	return nil
}

func (w *Writer) writeLines(page models.ResultPage) error {
	for _, line := range page.Lines {
		if _, err := io.WriteString(w.out, line+"\n"); err != nil {
			return err
		}
		w.rows++
	}
	return nil
}

// Close finalizes the output. A json file with no rows still closes to a
// valid empty array.
func (w *Writer) Close() error {
	if w.mode == models.ModeJSON {
		tail := "[]\n"
		if w.jsonOpen {
			tail = "\n]\n"
		}
		if _, err := io.WriteString(w.out, tail); err != nil {
			w.file.Close()
			return err
		}
	}
	if w.gz != nil {
		if err := w.gz.Close(); err != nil {
			w.file.Close()
			return fmt.Errorf("finalize gzip: %w", err)
		}
	}
	return w.file.Close()
}
