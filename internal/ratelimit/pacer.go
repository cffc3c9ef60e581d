// Package ratelimit paces the page fetch loop so a long pagination run does
// not hammer the search service.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Pacer spaces successive page fetches. The first call passes immediately;
// later calls block until the configured rate allows another fetch.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer builds a pacer allowing pagesPerSecond fetches. A rate <= 0
// disables pacing.
func NewPacer(pagesPerSecond float64) *Pacer {
	if pagesPerSecond <= 0 {
		return &Pacer{}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(pagesPerSecond), 1)}
}

// Wait blocks until the next fetch may proceed, or the context is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}
