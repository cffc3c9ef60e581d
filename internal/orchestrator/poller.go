package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"splunk-log-downloader/internal/models"
	"splunk-log-downloader/internal/splunk"
	"splunk-log-downloader/internal/telemetry"
)

// Service is the slice of the splunk client the orchestrator drives.
type Service interface {
	Login(ctx context.Context) error
	CreateJob(ctx context.Context, cfg models.SearchConfig) (string, error)
	GetJob(ctx context.Context, sid string) (splunk.JobInfo, error)
	ResultsPage(ctx context.Context, sid string, offset, count int) (models.ResultPage, error)
	RawResultsPage(ctx context.Context, sid string, offset, count int) (models.ResultPage, error)
	ExportBySID(ctx context.Context, sid string) ([]string, error)
	ExportByQuery(ctx context.Context, cfg models.SearchConfig) ([]string, error)
}

// poller drives a submitted job to a terminal state. Transport errors are
// retried with capped exponential backoff; the overall wall-clock budget is
// checked before every sleep.
type poller struct {
	svc         Service
	clock       Clock
	interval    time.Duration
	intervalMax time.Duration
	budget      time.Duration
	log         *slog.Logger
}

// waitUntilTerminal polls until the job reaches done, failed, or expired, and
// returns the last observed job info together with the terminal status.
func (p *poller) waitUntilTerminal(ctx context.Context, sid string) (splunk.JobInfo, string, error) {
	deadline := p.clock.Now().Add(p.budget)
	sleep := p.interval
	retries := 0

	for {
		if ctx.Err() != nil {
			return splunk.JobInfo{}, "", &CancelledError{Stage: "poll"}
		}

		telemetry.PollAttempts.Inc()
		info, err := p.svc.GetJob(ctx, sid)
		switch {
		case errors.Is(err, splunk.ErrJobNotFound):
			// The service evicted the id; no amount of retrying brings
			// it back.
			return splunk.JobInfo{}, models.StatusExpired, nil
		case err != nil:
			if ctx.Err() != nil {
				return splunk.JobInfo{}, "", &CancelledError{Stage: "poll"}
			}
			retries++
			telemetry.PollRetries.Inc()
			wait := backoffWithJitter(p.interval, p.intervalMax, retries)
			p.log.Warn("poll failed, backing off", "sid", sid, "attempt", retries, "wait", wait, "error", err)
			if p.clock.Now().Add(wait).After(deadline) {
				return splunk.JobInfo{}, "", &PollTimeoutError{SID: sid, Budget: p.budget}
			}
			if err := p.clock.Sleep(ctx, wait); err != nil {
				return splunk.JobInfo{}, "", &CancelledError{Stage: "poll"}
			}
			continue
		}
		retries = 0

		status := info.Status()
		switch status {
		case models.StatusDone:
			p.log.Info("job completed", "sid", sid, "result_count", info.ResultCount)
			return info, status, nil
		case models.StatusFailed:
			return info, status, nil
		default:
			p.log.Info("job in flight", "sid", sid, "state", info.DispatchState,
				"progress_pct", math.Round(info.DoneProgress*10000)/100)
			if p.clock.Now().Add(sleep).After(deadline) {
				return splunk.JobInfo{}, "", &PollTimeoutError{SID: sid, Budget: p.budget}
			}
			if err := p.clock.Sleep(ctx, sleep); err != nil {
				return splunk.JobInfo{}, "", &CancelledError{Stage: "poll"}
			}
			sleep = nextInterval(sleep, p.intervalMax)
		}
	}
}

// nextInterval grows the poll interval by half, up to the cap.
func nextInterval(cur, max time.Duration) time.Duration {
	next := cur + cur/2
	if next > max {
		return max
	}
	return next
}

func backoffWithJitter(base, max time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return base
	}
	exp := float64(base) * math.Pow(2, float64(attempt-1))
	wait := time.Duration(exp)
	if wait > max {
		wait = max
	}
	jitter := time.Duration(rand.Int63n(int64(wait / 2)))
	return wait/2 + jitter
}
