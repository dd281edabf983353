// Package dispatcher fans work out to a fixed pool of workers.
package dispatcher

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/searchconsole-sync/internal/metrics"
)

// Dispatcher runs indexed tasks on a bounded number of goroutines.
type Dispatcher struct {
	workers int
	logger  *zap.Logger
}

// New creates a Dispatcher. Fewer than one worker means one.
func New(workers int, logger *zap.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{workers: workers, logger: logger}
}

// Workers returns the pool size.
func (d *Dispatcher) Workers() int {
	return d.workers
}

// Run calls fn once for every index in [0, n) and blocks until all started
// calls return. Indexes not yet handed out when ctx ends are skipped; the
// number of indexes that ran is returned.
func (d *Dispatcher) Run(ctx context.Context, n int, fn func(ctx context.Context, index int)) int {
	if n <= 0 {
		return 0
	}
	jobs := make(chan int)
	workers := min(d.workers, n)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ran int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			log := d.logger.With(zap.Int("worker", worker))
			for index := range jobs {
				metrics.IncActiveWorkers()
				log.Debug("task started", zap.Int("index", index))
				fn(ctx, index)
				metrics.DecActiveWorkers()
				mu.Lock()
				ran++
				mu.Unlock()
			}
		}(i)
	}

feed:
	for index := 0; index < n; index++ {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- index:
		}
	}
	close(jobs)
	wg.Wait()
	return ran
}
