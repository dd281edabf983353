package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"

	"github.com/JakeFAU/searchconsole-sync/internal/syncer"
)

func TestRegisterValidates(t *testing.T) {
	t.Parallel()

	tk := NewTicker(false, zap.NewNop())
	noop := func(context.Context) error { return nil }
	require.NoError(t, tk.Register("a", time.Second, noop))
	require.Error(t, tk.Register("a", time.Second, noop))
	require.Error(t, tk.Register("b", 0, noop))
	require.Error(t, tk.Register("", time.Second, noop))
	require.Error(t, tk.Register("c", time.Second, nil))
	require.Len(t, tk.Services(), 1)
}

func TestTriggerSkipsWhileRunning(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32
	tk := NewTicker(false, zap.NewNop())
	require.NoError(t, tk.Register("slow", time.Hour, func(context.Context) error {
		runs.Add(1)
		close(started)
		<-release
		return nil
	}))
	job, ok := tk.Job("slow")
	require.True(t, ok)

	done := make(chan bool, 1)
	go func() {
		ran, _ := job.Trigger(context.Background())
		done <- ran
	}()
	<-started
	require.True(t, job.Running())

	ran, err := job.Trigger(context.Background())
	require.NoError(t, err)
	require.False(t, ran)

	close(release)
	require.True(t, <-done)
	require.Equal(t, int32(1), runs.Load())
	require.False(t, job.Running())
}

func TestServeTicksAndStops(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	tk := NewTicker(true, zap.NewNop())
	require.NoError(t, tk.Register("fast", 10*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	job, _ := tk.Job("fast")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- job.Serve(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
}

func TestRunOnce(t *testing.T) {
	t.Parallel()

	tk := NewTicker(false, zap.NewNop())
	boom := errors.New("boom")
	require.NoError(t, tk.Register("failing", time.Hour, func(context.Context) error { return boom }))

	err := tk.RunOnce(context.Background(), "failing")
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, tk.RunOnce(context.Background(), "missing"), ErrUnknownJob)
}

func TestJobsRunUnderSupervisor(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	tk := NewTicker(true, zap.NewNop())
	require.NoError(t, tk.Register("supervised", time.Hour, func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	sup := suture.NewSimple("test")
	for _, svc := range tk.Services() {
		sup.Add(svc)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-errCh
}

type fakeRunner struct {
	lookback atomic.Int32
	syncs    atomic.Int32
	checks   atomic.Int32
}

func (f *fakeRunner) SyncAllProperties(_ context.Context, lookbackDays int) (syncer.BatchResult, error) {
	f.syncs.Add(1)
	f.lookback.Store(int32(lookbackDays))
	return syncer.BatchResult{}, nil
}

func (f *fakeRunner) CheckSitemaps(context.Context) ([]syncer.SitemapReport, error) {
	f.checks.Add(1)
	return nil, nil
}

func TestRegisterJobs(t *testing.T) {
	t.Parallel()

	tk := NewTicker(false, zap.NewNop())
	runner := &fakeRunner{}
	require.NoError(t, RegisterJobs(tk, runner, JobsConfig{}))

	daily, ok := tk.Job(JobDailySync)
	require.True(t, ok)
	require.Equal(t, 24*time.Hour, daily.Interval())
	hourly, ok := tk.Job(JobHourlySitemaps)
	require.True(t, ok)
	require.Equal(t, time.Hour, hourly.Interval())

	require.NoError(t, tk.RunOnce(context.Background(), JobDailySync))
	require.NoError(t, tk.RunOnce(context.Background(), JobHourlySitemaps))
	require.Equal(t, int32(1), runner.syncs.Load())
	require.Equal(t, int32(1), runner.lookback.Load())
	require.Equal(t, int32(1), runner.checks.Load())
}
