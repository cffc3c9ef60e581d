package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestPacerFirstFetchImmediate(t *testing.T) {
	p := NewPacer(1)
	start := time.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("first wait blocked for %s", elapsed)
	}
}

func TestPacerSpacesSubsequentFetches(t *testing.T) {
	p := NewPacer(20) // 50ms between pages
	ctx := context.Background()
	_ = p.Wait(ctx)

	start := time.Now()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Fatalf("second wait returned after only %s", elapsed)
	}
}

func TestPacerDisabled(t *testing.T) {
	p := NewPacer(0)
	for i := 0; i < 3; i++ {
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("disabled pacer errored: %v", err)
		}
	}
}

func TestPacerHonorsCancellation(t *testing.T) {
	p := NewPacer(0.001)
	ctx, cancel := context.WithCancel(context.Background())
	_ = p.Wait(ctx)
	cancel()
	if err := p.Wait(ctx); err == nil {
		t.Fatalf("expected cancellation error")
	}
}
