package splunk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"splunk-log-downloader/internal/models"
)

// Wire shape of the results endpoint in JSON mode. The fields array is the
// only representation that preserves the service's column order.
type resultsResponse struct {
	Preview    bool `json:"preview"`
	InitOffset int  `json:"init_offset"`
	Fields     []struct {
		Name string `json:"name"`
	} `json:"fields"`
	Results []map[string]any `json:"results"`
}

// ResultsPage fetches one bounded page of tabular results from a completed
// job, starting at offset.
func (c *Client) ResultsPage(ctx context.Context, sid string, offset, count int) (models.ResultPage, error) {
	query := url.Values{
		"output_mode": {"json"},
		"offset":      {strconv.Itoa(offset)},
		"count":       {strconv.Itoa(count)},
	}
	resp, err := c.call(ctx, http.MethodGet, "/services/search/jobs/"+url.PathEscape(sid)+"/results", query, nil)
	if err != nil {
		return models.ResultPage{}, err
	}
	body, err := readBody(resp, true)
	if err != nil {
		return models.ResultPage{}, err
	}

	var rr resultsResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &rr); err != nil {
			return models.ResultPage{}, fmt.Errorf("parse results response: %w", err)
		}
	}

	fields := make([]string, 0, len(rr.Fields))
	for _, f := range rr.Fields {
		fields = append(fields, f.Name)
	}
	page := models.ResultPage{Offset: offset}
	for _, raw := range rr.Results {
		values := make(map[string]string, len(raw))
		for k, v := range raw {
			values[k] = stringify(v)
		}
		page.Rows = append(page.Rows, models.Row{Fields: fields, Values: values})
	}
	page.More = len(page.Rows) == count
	return page, nil
}

// RawResultsPage fetches one page of the job's stored result set in its raw
// representation: opaque event lines.
func (c *Client) RawResultsPage(ctx context.Context, sid string, offset, count int) (models.ResultPage, error) {
	query := url.Values{
		"output_mode": {"raw"},
		"offset":      {strconv.Itoa(offset)},
		"count":       {strconv.Itoa(count)},
	}
	resp, err := c.call(ctx, http.MethodGet, "/services/search/jobs/"+url.PathEscape(sid)+"/results", query, nil)
	if err != nil {
		return models.ResultPage{}, err
	}
	body, err := readBody(resp, true)
	if err != nil {
		return models.ResultPage{}, err
	}

	page := models.ResultPage{Offset: offset, Lines: splitLines(body)}
	page.More = len(page.Lines) == count
	return page, nil
}

// ExportBySID streams the completed job's unprocessed event text through the
// export endpoint.
func (c *Client) ExportBySID(ctx context.Context, sid string) ([]string, error) {
	form := url.Values{"sid": {sid}, "output_mode": {"raw"}}
	resp, err := c.call(ctx, http.MethodPost, "/services/search/jobs/export", nil, form)
	if err != nil {
		return nil, err
	}
	body, err := readBody(resp, true)
	if err != nil {
		return nil, err
	}
	return splitLines(body), nil
}

// ExportByQuery resubmits the original, unmodified query text directly to the
// export endpoint, bypassing the stored job entirely.
func (c *Client) ExportByQuery(ctx context.Context, cfg models.SearchConfig) ([]string, error) {
	form := url.Values{
		"search":      {cfg.Query},
		"output_mode": {"raw"},
		"exec_mode":   {"oneshot"},
	}
	if cfg.Earliest != "" {
		form.Set("earliest_time", cfg.Earliest)
	}
	if cfg.Latest != "" {
		form.Set("latest_time", cfg.Latest)
	}
	resp, err := c.call(ctx, http.MethodPost, "/services/search/jobs/export", nil, form)
	if err != nil {
		return nil, err
	}
	body, err := readBody(resp, false)
	if err != nil {
		return nil, err
	}
	return splitLines(body), nil
}

func splitLines(body []byte) []string {
	text := strings.Trim(string(body), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		// Multi-value fields arrive as arrays; keep them as compact JSON.
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
