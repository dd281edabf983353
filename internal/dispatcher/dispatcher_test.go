package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDispatcherRunsEveryIndexOnce(t *testing.T) {
	t.Parallel()

	d := New(4, zap.NewNop())
	seen := make([]int32, 25)
	ran := d.Run(context.Background(), len(seen), func(_ context.Context, index int) {
		atomic.AddInt32(&seen[index], 1)
	})
	require.Equal(t, len(seen), ran)
	for i, count := range seen {
		require.Equal(t, int32(1), count, "index %d", i)
	}
}

func TestDispatcherBoundsConcurrency(t *testing.T) {
	t.Parallel()

	d := New(2, zap.NewNop())
	var active, peak atomic.Int32
	d.Run(context.Background(), 10, func(context.Context, int) {
		now := active.Add(1)
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
	})
	require.LessOrEqual(t, peak.Load(), int32(2))
}

func TestDispatcherStopsHandingOutAfterCancel(t *testing.T) {
	t.Parallel()

	d := New(1, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var handled []int
	ran := d.Run(ctx, 10, func(_ context.Context, index int) {
		mu.Lock()
		handled = append(handled, index)
		mu.Unlock()
		if index == 1 {
			cancel()
		}
	})
	require.Less(t, ran, 10)
	require.Equal(t, ran, len(handled))
	require.Equal(t, []int{0, 1}, handled[:2])
}

func TestDispatcherZeroWork(t *testing.T) {
	t.Parallel()

	require.Zero(t, New(0, nil).Run(context.Background(), 0, func(context.Context, int) {
		t.Fatal("no task expected")
	}))
	require.Equal(t, 1, New(0, nil).Workers())
}
