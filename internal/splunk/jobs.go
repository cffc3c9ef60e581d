package splunk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"splunk-log-downloader/internal/models"
)

// JobInfo is the subset of the job status entry the orchestrator consumes.
type JobInfo struct {
	SID           string
	DispatchState string
	DoneProgress  float64
	ResultCount   int
	IsDone        bool
	IsFailed      bool
}

// Status maps the service's dispatch state onto the job lifecycle states.
func (j JobInfo) Status() string {
	if j.IsFailed {
		return models.StatusFailed
	}
	switch strings.ToUpper(j.DispatchState) {
	case "QUEUED", "PARSING", "INITIALIZED":
		return models.StatusPending
	case "RUNNING", "FINALIZING":
		return models.StatusRunning
	case "DONE":
		return models.StatusDone
	case "FAILED":
		return models.StatusFailed
	default:
		// Unknown states are treated as still in flight; the poll budget
		// bounds how long that can last.
		return models.StatusRunning
	}
}

type createJobResponse struct {
	SID string `json:"sid"`
}

// CreateJob posts the search definition and returns the service-assigned SID.
func (c *Client) CreateJob(ctx context.Context, cfg models.SearchConfig) (string, error) {
	form := url.Values{
		"search":      {cfg.Query},
		"output_mode": {"json"},
		"app":         {cfg.App},
	}
	if cfg.Earliest != "" {
		form.Set("earliest_time", cfg.Earliest)
	}
	if cfg.Latest != "" {
		form.Set("latest_time", cfg.Latest)
	}

	resp, err := c.call(ctx, http.MethodPost, "/services/search/jobs", nil, form)
	if err != nil {
		return "", err
	}
	body, err := readBody(resp, false)
	if err != nil {
		return "", err
	}

	var cr createJobResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", fmt.Errorf("parse job creation response: %w", err)
	}
	if cr.SID == "" {
		return "", fmt.Errorf("job creation response carried no sid")
	}
	return cr.SID, nil
}

// Wire shapes for the job status entry.
type jobStatusResponse struct {
	Entry []struct {
		Content struct {
			SID           string  `json:"sid"`
			DispatchState string  `json:"dispatchState"`
			DoneProgress  float64 `json:"doneProgress"`
			ResultCount   int     `json:"resultCount"`
			IsDone        bool    `json:"isDone"`
			IsFailed      bool    `json:"isFailed"`
		} `json:"content"`
	} `json:"entry"`
}

// GetJob fetches the current status entry for a job. Returns ErrJobNotFound
// when the service has evicted the id.
func (c *Client) GetJob(ctx context.Context, sid string) (JobInfo, error) {
	query := url.Values{"output_mode": {"json"}}
	resp, err := c.call(ctx, http.MethodGet, "/services/search/jobs/"+url.PathEscape(sid), query, nil)
	if err != nil {
		return JobInfo{}, err
	}
	body, err := readBody(resp, true)
	if err != nil {
		return JobInfo{}, err
	}

	var sr jobStatusResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return JobInfo{}, fmt.Errorf("parse job status response: %w", err)
	}
	if len(sr.Entry) == 0 {
		return JobInfo{}, fmt.Errorf("job status response carried no entry")
	}
	content := sr.Entry[0].Content
	return JobInfo{
		SID:           sid,
		DispatchState: content.DispatchState,
		DoneProgress:  content.DoneProgress,
		ResultCount:   content.ResultCount,
		IsDone:        content.IsDone,
		IsFailed:      content.IsFailed,
	}, nil
}
