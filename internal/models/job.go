package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// JobStatus values for a remote search job. Transitions only move forward;
// failed and expired are terminal and never revisited.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
	StatusExpired = "expired"
)

// Terminal reports whether a status cannot progress further.
func Terminal(status string) bool {
	return status == StatusDone || status == StatusFailed || status == StatusExpired
}

// Output modes accepted in SearchConfig.OutputMode.
const (
	ModeCSV    = "csv"
	ModeJSON   = "json"
	ModeRawLog = "raw-log"
)

// SearchConfig holds the immutable search inputs of one export run.
type SearchConfig struct {
	Query      string `json:"search_query"`
	Earliest   string `json:"earliest"`
	Latest     string `json:"latest"`
	App        string `json:"job_app"`
	OutputMode string `json:"output_mode"`
	PageSize   int    `json:"page_size"`
	Debug      bool   `json:"debug"`
}

// Fingerprint digests the fields that determine whether a cached job still
// answers the same question: query, time range, app. Output mode and page
// size shape retrieval, not job semantics, and are excluded.
func (c SearchConfig) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s", c.Query, c.Earliest, c.Latest, c.App)
	return hex.EncodeToString(h.Sum(nil))
}

// JobHandle identifies a search job created on the remote service.
type JobHandle struct {
	SID         string    `json:"sid"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}

// Matches reports whether the handle was created for the given config.
func (h JobHandle) Matches(cfg SearchConfig) bool {
	return h.SID != "" && h.Fingerprint == cfg.Fingerprint()
}
