package orchestrator

import (
	"context"

	"splunk-log-downloader/internal/models"
	"splunk-log-downloader/internal/ratelimit"
	"splunk-log-downloader/internal/telemetry"
)

// fetchPage retrieves one bounded page starting at offset.
type fetchPage func(ctx context.Context, offset, count int) (models.ResultPage, error)

// emitPage consumes one page in order.
type emitPage func(page models.ResultPage) error

// fetchAll walks a result set from offset 0 in strictly increasing,
// non-overlapping pageSize steps, emitting each non-empty page in the
// service's native order. When total is known (>= 0) the loop stops once the
// offset reaches it; a short page always stops the loop, since the set is
// exhausted (or capped server-side, which the engine cannot detect).
//
// A fetch error on the first page is returned as-is so callers can classify
// it; an error on any later page aborts with PaginationError carrying the
// partial row count.
func fetchAll(ctx context.Context, total, pageSize int, pacer *ratelimit.Pacer, fetch fetchPage, emit emitPage) (int, error) {
	rows := 0
	for offset := 0; total < 0 || offset < total; offset += pageSize {
		if ctx.Err() != nil {
			return rows, &CancelledError{Stage: "pagination"}
		}
		if err := pacer.Wait(ctx); err != nil {
			return rows, &CancelledError{Stage: "pagination"}
		}

		page, err := fetch(ctx, offset, pageSize)
		if err != nil {
			if offset == 0 {
				return 0, err
			}
			return rows, &PaginationError{Offset: offset, Rows: rows, Cause: err}
		}
		telemetry.PagesFetched.Inc()

		n := page.Count()
		if n > 0 {
			rows += n
			telemetry.RowsFetched.Add(float64(n))
			if err := emit(page); err != nil {
				return rows, &PaginationError{Offset: offset, Rows: rows, Cause: err}
			}
		}
		if n < pageSize {
			break
		}
	}
	return rows, nil
}
