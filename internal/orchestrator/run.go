// Package orchestrator drives one export run: submit (or reuse) a search
// job, poll it to a terminal state, extract results through the configured
// output mode, and paginate them into the result sink.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"splunk-log-downloader/internal/cache"
	"splunk-log-downloader/internal/config"
	"splunk-log-downloader/internal/models"
	"splunk-log-downloader/internal/ratelimit"
	"splunk-log-downloader/internal/telemetry"
)

// Sink consumes the orchestrator's output stream, one page at a time, in
// the service's native order.
type Sink interface {
	Consume(page models.ResultPage) error
}

// Summary describes a completed run.
type Summary struct {
	RunID    string
	SID      string
	Reused   bool
	Rows     int
	Attempts []models.ExtractionAttempt
	Duration time.Duration
}

// Orchestrator owns the auth session and job handle for the duration of one
// run. It is not safe for concurrent use; each run is a single logical
// thread of control.
type Orchestrator struct {
	cfg   *config.Config
	svc   Service
	cache cache.Store
	pacer *ratelimit.Pacer
	clock Clock
	log   *slog.Logger
}

func New(cfg *config.Config, svc Service, store cache.Store, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		cfg:   cfg,
		svc:   svc,
		cache: store,
		pacer: ratelimit.NewPacer(cfg.PagesPerSecond),
		clock: realClock{},
		log:   log,
	}
}

// Run executes one export. forceNew bypasses the job cache unconditionally.
func (o *Orchestrator) Run(ctx context.Context, forceNew bool, sink Sink) (*Summary, error) {
	runID := uuid.NewString()
	log := o.log.With("run_id", runID)
	started := o.clock.Now()

	if strings.Contains(strings.ToLower(o.cfg.Search.Query), "sort") {
		log.Warn("query contains 'sort'; the service caps retrievable results for unbounded sorts")
	}
	if o.cfg.Search.OutputMode == models.ModeRawLog {
		if cmd, ok := transformingCommand(o.cfg.Search.Query); ok {
			log.Warn("query pipes into a transforming command; raw-log retrieval will likely return nothing",
				"command", cmd)
		}
	}

	if err := o.svc.Login(ctx); err != nil {
		return nil, &AuthError{Cause: err}
	}
	log.Info("authenticated")

	handle, reused := o.lookupCached(ctx, forceNew, log)
	if !reused {
		var err error
		handle, err = o.submit(ctx, log)
		if err != nil {
			return nil, err
		}
	}

	p := &poller{
		svc:         o.svc,
		clock:       o.clock,
		interval:    o.cfg.PollInterval,
		intervalMax: o.cfg.PollIntervalMax,
		budget:      o.cfg.PollBudget,
		log:         log,
	}

	info, status, err := p.waitUntilTerminal(ctx, handle.SID)
	if err != nil {
		return nil, err
	}
	if status != models.StatusDone {
		if !reused {
			return nil, terminalError(handle.SID, status)
		}
		// The cached job died server-side; fall back to one fresh
		// submission.
		log.Info("cached job unusable, submitting fresh", "sid", handle.SID, "status", status)
		handle, err = o.submit(ctx, log)
		if err != nil {
			return nil, err
		}
		reused = false
		info, status, err = p.waitUntilTerminal(ctx, handle.SID)
		if err != nil {
			return nil, err
		}
		if status != models.StatusDone {
			return nil, terminalError(handle.SID, status)
		}
	}

	summary := &Summary{RunID: runID, SID: handle.SID, Reused: reused}

	switch o.cfg.Search.OutputMode {
	case models.ModeRawLog:
		attempts, rows, err := o.runRawChain(ctx, o.rawStrategies(handle.SID, sink))
		summary.Attempts = attempts
		if err != nil {
			return nil, err
		}
		summary.Rows = rows
	default:
		log.Info("fetching tabular results", "sid", handle.SID, "total", info.ResultCount,
			"page_size", o.cfg.Search.PageSize)
		fetch := func(ctx context.Context, offset, count int) (models.ResultPage, error) {
			return o.svc.ResultsPage(ctx, handle.SID, offset, count)
		}
		rows, err := fetchAll(ctx, info.ResultCount, o.cfg.Search.PageSize, o.pacer, fetch, sink.Consume)
		if err != nil {
			var cancelled *CancelledError
			var pageErr *PaginationError
			if !errors.As(err, &cancelled) && !errors.As(err, &pageErr) {
				err = &PaginationError{Offset: 0, Rows: 0, Cause: err}
			}
			return nil, err
		}
		summary.Rows = rows
	}

	summary.Duration = o.clock.Now().Sub(started)
	log.Info("run finished", "sid", summary.SID, "rows", summary.Rows,
		"reused", summary.Reused, "duration", summary.Duration)
	return summary, nil
}

// lookupCached consults the job cache. Only debug runs reuse jobs, and the
// force-new flag makes the cache read absent unconditionally.
func (o *Orchestrator) lookupCached(ctx context.Context, forceNew bool, log *slog.Logger) (models.JobHandle, bool) {
	if !o.cfg.Search.Debug || forceNew || o.cache == nil {
		return models.JobHandle{}, false
	}
	h, ok := o.cache.Load(ctx)
	if !ok {
		return models.JobHandle{}, false
	}
	if !h.Matches(o.cfg.Search) {
		log.Info("cached job is stale, discarding", "sid", h.SID)
		return models.JobHandle{}, false
	}
	log.Info("reusing cached job", "sid", h.SID, "created_at", h.CreatedAt)
	telemetry.JobsReused.Inc()
	return h, true
}

// submit creates a fresh job and, in debug mode, records it in the cache so
// an interrupted run can be resumed.
func (o *Orchestrator) submit(ctx context.Context, log *slog.Logger) (models.JobHandle, error) {
	if ctx.Err() != nil {
		return models.JobHandle{}, &CancelledError{Stage: "submit"}
	}
	sid, err := o.svc.CreateJob(ctx, o.cfg.Search)
	if err != nil {
		return models.JobHandle{}, &SubmissionError{Cause: err}
	}
	telemetry.JobsSubmitted.Inc()
	h := models.JobHandle{
		SID:         sid,
		Fingerprint: o.cfg.Search.Fingerprint(),
		CreatedAt:   o.clock.Now(),
	}
	log.Info("job created", "sid", sid)
	if o.cfg.Search.Debug && o.cache != nil {
		if err := o.cache.Save(ctx, h); err != nil {
			log.Warn("failed to persist job cache", "error", err)
		}
	}
	return h, nil
}

func (o *Orchestrator) rawStrategies(sid string, sink Sink) []rawStrategy {
	exportToSink := func(lines []string, err error) (int, error) {
		if err != nil {
			return 0, err
		}
		if len(lines) == 0 {
			return 0, nil
		}
		if err := sink.Consume(models.ResultPage{Lines: lines}); err != nil {
			return 0, err
		}
		return len(lines), nil
	}
	return []rawStrategy{
		{strategyExportBySID, func(ctx context.Context) (int, error) {
			lines, err := o.svc.ExportBySID(ctx, sid)
			return exportToSink(lines, err)
		}},
		{strategyResultsRaw, func(ctx context.Context) (int, error) {
			fetch := func(ctx context.Context, offset, count int) (models.ResultPage, error) {
				return o.svc.RawResultsPage(ctx, sid, offset, count)
			}
			return fetchAll(ctx, -1, o.cfg.Search.PageSize, o.pacer, fetch, sink.Consume)
		}},
		{strategyExportByQuery, func(ctx context.Context) (int, error) {
			lines, err := o.svc.ExportByQuery(ctx, o.cfg.Search)
			return exportToSink(lines, err)
		}},
	}
}

func terminalError(sid, status string) error {
	if status == models.StatusExpired {
		return &JobExpiredError{SID: sid}
	}
	return &JobFailedError{SID: sid}
}
