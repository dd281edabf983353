// Package scheduler runs named tasks on fixed intervals. Each job is a
// suture.Service so the supervisor restarts it if it fails.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"
)

// ErrUnknownJob is returned when a job name was never registered.
var ErrUnknownJob = errors.New("unknown job")

// Task is the work a job performs on each tick.
type Task func(ctx context.Context) error

// Registrar accepts "run this every interval" registrations.
type Registrar interface {
	Register(name string, interval time.Duration, task Task) error
}

// Job is one registered task.
type Job struct {
	name       string
	interval   time.Duration
	task       Task
	runOnStart bool
	running    atomic.Bool
	wg         sync.WaitGroup
	logger     *zap.Logger
}

var _ suture.Service = (*Job)(nil)

// Serve ticks until ctx ends, starting the task on every tick unless the
// previous run is still in flight. It waits for an in-flight run before
// returning.
func (j *Job) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	defer j.wg.Wait()

	if j.runOnStart {
		j.start(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.start(ctx)
		}
	}
}

func (j *Job) start(ctx context.Context) {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		if _, err := j.Trigger(ctx); err != nil {
			j.logger.Error("job run failed", zap.Error(err))
		}
	}()
}

// Trigger runs the task now unless a run is already in flight, in which case
// it returns false without running.
func (j *Job) Trigger(ctx context.Context) (bool, error) {
	if !j.running.CompareAndSwap(false, true) {
		j.logger.Warn("job still running, skipping")
		return false, nil
	}
	defer j.running.Store(false)

	start := time.Now()
	j.logger.Info("job started")
	err := j.task(ctx)
	j.logger.Info("job finished", zap.Duration("elapsed", time.Since(start)), zap.Bool("ok", err == nil))
	if err != nil {
		return true, fmt.Errorf("job %s: %w", j.name, err)
	}
	return true, nil
}

// Running reports whether a run is in flight.
func (j *Job) Running() bool {
	return j.running.Load()
}

// Interval returns the tick interval.
func (j *Job) Interval() time.Duration {
	return j.interval
}

// String implements fmt.Stringer; suture uses it in events.
func (j *Job) String() string {
	return j.name
}

// Ticker is a Registrar backed by time.Ticker.
type Ticker struct {
	mu         sync.Mutex
	jobs       map[string]*Job
	order      []string
	runOnStart bool
	logger     *zap.Logger
}

var _ Registrar = (*Ticker)(nil)

// NewTicker creates a Ticker. With runOnStart every job also fires as soon
// as it is served.
func NewTicker(runOnStart bool, logger *zap.Logger) *Ticker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ticker{jobs: make(map[string]*Job), runOnStart: runOnStart, logger: logger}
}

// Register adds a job. Names must be unique and intervals positive.
func (t *Ticker) Register(name string, interval time.Duration, task Task) error {
	if name == "" || task == nil {
		return fmt.Errorf("job name and task are required")
	}
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.jobs[name]; dup {
		return fmt.Errorf("job %s already registered", name)
	}
	t.jobs[name] = &Job{
		name:       name,
		interval:   interval,
		task:       task,
		runOnStart: t.runOnStart,
		logger:     t.logger.With(zap.String("job", name)),
	}
	t.order = append(t.order, name)
	return nil
}

// Services returns the registered jobs in registration order.
func (t *Ticker) Services() []suture.Service {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]suture.Service, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.jobs[name])
	}
	return out
}

// Job looks up a job by name.
func (t *Ticker) Job(name string) (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[name]
	return j, ok
}

// RunOnce triggers a job synchronously.
func (t *Ticker) RunOnce(ctx context.Context, name string) error {
	j, ok := t.Job(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	_, err := j.Trigger(ctx)
	return err
}
