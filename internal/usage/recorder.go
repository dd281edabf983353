// Package usage records every external API call attempt and summarizes the
// resulting log.
package usage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
	"github.com/JakeFAU/searchconsole-sync/internal/metrics"
)

// Recorder writes usage entries to a store. Write failures are logged and
// dropped so observability never breaks the data path.
type Recorder struct {
	store  gsc.UsageStore
	clock  gsc.Clock
	logger *zap.Logger
}

var _ gsc.UsageRecorder = (*Recorder)(nil)

// NewRecorder creates a Recorder. A nil store makes Record a no-op.
func NewRecorder(store gsc.UsageStore, clock gsc.Clock, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: store, clock: clock, logger: logger}
}

// Record appends one entry. It never returns an error and never panics.
func (r *Recorder) Record(ctx context.Context, service, operation string, success bool, responseCode int) {
	if r == nil || r.store == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			metrics.ObserveUsageRecordFailure()
			r.logger.Error("usage record panicked",
				zap.String("service", service),
				zap.String("operation", operation),
				zap.Any("panic", rec),
			)
		}
	}()
	entry := gsc.UsageEntry{
		Service:      service,
		Operation:    operation,
		Success:      success,
		ResponseCode: responseCode,
		Timestamp:    r.clock.Now(),
	}
	if err := r.store.AppendUsage(context.WithoutCancel(ctx), entry); err != nil {
		metrics.ObserveUsageRecordFailure()
		r.logger.Warn("usage record failed",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Error(err),
		)
	}
}

// Summary computes totals and the success rate for service since the given
// time. An empty service covers all services.
func (r *Recorder) Summary(ctx context.Context, service string, since time.Time) (gsc.UsageSummary, error) {
	summary := gsc.UsageSummary{Service: service, Since: since}
	if r.store == nil {
		return summary, nil
	}
	entries, err := r.store.ListUsage(ctx, service, since)
	if err != nil {
		return summary, fmt.Errorf("list usage: %w", err)
	}
	for _, e := range entries {
		summary.Total++
		if e.Success {
			summary.Successes++
		} else {
			summary.Failures++
		}
	}
	if summary.Total > 0 {
		summary.SuccessRate = float64(summary.Successes) / float64(summary.Total)
	}
	return summary, nil
}

// Restorer is implemented by limiters that can be seeded from the log.
type Restorer interface {
	Restore(service string, windowStart time.Time, calls int)
	WindowLength(service string) time.Duration
}

// SeedLimiter replays the last window of usage for each service into the
// limiter, so a restart does not hand out a fresh budget mid-window.
func (r *Recorder) SeedLimiter(ctx context.Context, limiter Restorer, services ...string) error {
	if r.store == nil {
		return nil
	}
	now := r.clock.Now()
	for _, service := range services {
		length := limiter.WindowLength(service)
		entries, err := r.store.ListUsage(ctx, service, now.Add(-length))
		if err != nil {
			return fmt.Errorf("list usage for %s: %w", service, err)
		}
		if len(entries) == 0 {
			continue
		}
		start := entries[0].Timestamp
		for _, e := range entries[1:] {
			if e.Timestamp.Before(start) {
				start = e.Timestamp
			}
		}
		limiter.Restore(service, start, len(entries))
		r.logger.Info("rate limit window restored",
			zap.String("service", service),
			zap.Time("window_start", start),
			zap.Int("calls", len(entries)),
		)
	}
	return nil
}
