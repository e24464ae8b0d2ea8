package gsc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/voralis/indexwatch/internal/indexer"
)

// Pacer enforces the external service's rate limit with a fixed inter-call
// delay per (property, action) pair. The first call for a key passes
// immediately, so no delay trails the last item of a batch.
type Pacer struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval map[indexer.QuotaKind]time.Duration
}

// NewPacer creates a Pacer with per-action intervals. A non-positive
// interval disables pacing for that action.
func NewPacer(inspectInterval, submitInterval time.Duration) *Pacer {
	return &Pacer{
		limiters: make(map[string]*rate.Limiter),
		interval: map[indexer.QuotaKind]time.Duration{
			indexer.QuotaInspection: inspectInterval,
			indexer.QuotaSubmission: submitInterval,
		},
	}
}

// Wait blocks until the next call for this property and action is allowed.
func (p *Pacer) Wait(ctx context.Context, propertyID string, kind indexer.QuotaKind) error {
	interval := p.interval[kind]
	if interval <= 0 {
		return nil
	}
	key := propertyID + "/" + string(kind)

	p.mu.Lock()
	limiter, ok := p.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
		p.limiters[key] = limiter
	}
	p.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pace wait: %w", err)
	}
	return nil
}
