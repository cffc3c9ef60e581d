package orchestrator

import (
	"fmt"
	"time"

	"splunk-log-downloader/internal/models"
)

// AuthError is fatal for the run; credentials are deterministic, so the
// login is never retried.
type AuthError struct {
	Cause error
}

func (e *AuthError) Error() string { return fmt.Sprintf("authentication failed: %v", e.Cause) }
func (e *AuthError) Unwrap() error { return e.Cause }

// SubmissionError covers malformed-query rejection and permission denial.
// Fatal, no retry.
type SubmissionError struct {
	Cause error
}

func (e *SubmissionError) Error() string { return fmt.Sprintf("job submission failed: %v", e.Cause) }
func (e *SubmissionError) Unwrap() error { return e.Cause }

// PollTimeoutError means the polling budget was exhausted. The job may still
// complete server-side; the cached handle allows a later resume.
type PollTimeoutError struct {
	SID    string
	Budget time.Duration
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("job %s did not finish within the %s polling budget", e.SID, e.Budget)
}

// JobFailedError is surfaced when a freshly submitted job reaches the failed
// state.
type JobFailedError struct {
	SID string
}

func (e *JobFailedError) Error() string { return fmt.Sprintf("job %s failed on the service", e.SID) }

// JobExpiredError is surfaced when a freshly submitted job is evicted before
// it can be read back.
type JobExpiredError struct {
	SID string
}

func (e *JobExpiredError) Error() string { return fmt.Sprintf("job %s expired on the service", e.SID) }

// AllExtractionMethodsFailedError reports that every raw extraction strategy
// returned an empty payload, with a hint distinguishing a transforming-command
// usage error from a legitimately empty search.
type AllExtractionMethodsFailedError struct {
	Attempts           []models.ExtractionAttempt
	TransformSuspected bool
	Command            string
}

func (e *AllExtractionMethodsFailedError) Error() string {
	if e.TransformSuspected {
		return fmt.Sprintf("all %d raw extraction methods returned no data; the query pipes into %q, "+
			"a transforming command incompatible with raw retrieval: switch output_mode to csv or json",
			len(e.Attempts), e.Command)
	}
	return fmt.Sprintf("all %d raw extraction methods returned no data; the search appears to match no events", len(e.Attempts))
}

// PaginationError aborts a partially fetched result set. Rows counts what was
// already gathered; partial results are never passed off as complete.
type PaginationError struct {
	Offset int
	Rows   int
	Cause  error
}

func (e *PaginationError) Error() string {
	return fmt.Sprintf("pagination failed at offset %d after %d rows: %v", e.Offset, e.Rows, e.Cause)
}
func (e *PaginationError) Unwrap() error { return e.Cause }

// CancelledError is a clean abort, not a failure. The remote job is left
// intact and may be resumed through the job cache.
type CancelledError struct {
	Stage string
}

func (e *CancelledError) Error() string { return fmt.Sprintf("run cancelled during %s", e.Stage) }
