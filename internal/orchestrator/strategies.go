package orchestrator

import (
	"context"
	"errors"
	"strings"

	"splunk-log-downloader/internal/models"
	"splunk-log-downloader/internal/telemetry"
)

// Strategy names, in chain order.
const (
	strategyExportBySID   = "export-by-sid"
	strategyResultsRaw    = "results-raw"
	strategyExportByQuery = "export-by-query"
)

// rawStrategy attempts one extraction method. A non-empty payload wins; an
// empty payload or call error is classified and the chain moves on.
type rawStrategy struct {
	name string
	run  func(ctx context.Context) (int, error)
}

// runRawChain tries the strategies in order and stops at the first that
// yields data. Every attempt is recorded for diagnostics. An error from a
// later pagination page is fatal and surfaced immediately; anything else is
// a classified attempt failure.
func (o *Orchestrator) runRawChain(ctx context.Context, strategies []rawStrategy) ([]models.ExtractionAttempt, int, error) {
	attempts := make([]models.ExtractionAttempt, 0, len(strategies))
	for _, s := range strategies {
		if ctx.Err() != nil {
			return attempts, 0, &CancelledError{Stage: "extraction"}
		}
		rows, err := s.run(ctx)
		switch {
		case err != nil:
			var cancelled *CancelledError
			var pageErr *PaginationError
			if errors.As(err, &cancelled) || errors.As(err, &pageErr) {
				return attempts, rows, err
			}
			attempts = append(attempts, models.ExtractionAttempt{Strategy: s.name, Reason: err.Error()})
			telemetry.ExtractionAttempts.WithLabelValues(s.name, "error").Inc()
			o.log.Warn("extraction method failed", "strategy", s.name, "error", err)
		case rows == 0:
			attempts = append(attempts, models.ExtractionAttempt{Strategy: s.name, Reason: "empty payload"})
			telemetry.ExtractionAttempts.WithLabelValues(s.name, "empty").Inc()
			o.log.Info("extraction method returned no data", "strategy", s.name)
		default:
			attempts = append(attempts, models.ExtractionAttempt{Strategy: s.name, NonEmpty: true})
			telemetry.ExtractionAttempts.WithLabelValues(s.name, "ok").Inc()
			o.log.Info("extraction method succeeded", "strategy", s.name, "rows", rows)
			return attempts, rows, nil
		}
	}

	command, suspected := transformingCommand(o.cfg.Search.Query)
	return attempts, 0, &AllExtractionMethodsFailedError{
		Attempts:           attempts,
		TransformSuspected: suspected,
		Command:            command,
	}
}

// transformingCommands are query stages that reshape events such that the
// original raw text is no longer recoverable.
var transformingCommands = map[string]struct{}{
	"stats":       {},
	"chart":       {},
	"timechart":   {},
	"top":         {},
	"rare":        {},
	"table":       {},
	"contingency": {},
	"join":        {},
	"dedup":       {},
	"transaction": {},
	"tstats":      {},
}

// transformingCommand reports whether any pipe stage of the query starts with
// a known transforming command. This is a best-effort keyword match and is
// advisory only: it shapes diagnostics, never control flow on its own. A
// query with no pipe is never classified.
func transformingCommand(query string) (string, bool) {
	segments := strings.Split(query, "|")
	for _, segment := range segments[1:] {
		fields := strings.Fields(segment)
		if len(fields) == 0 {
			continue
		}
		name := strings.ToLower(fields[0])
		if _, ok := transformingCommands[name]; ok {
			return name, true
		}
	}
	return "", false
}
