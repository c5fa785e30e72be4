package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitCompleted(t *testing.T, d *Dispatcher) {
	t.Helper()
	require.Eventually(t, func() bool { return d.Outstanding() == 0 }, 2*time.Second, time.Millisecond)
}

func newTestDispatcher(t *testing.T, workers int) *Dispatcher {
	t.Helper()
	d := New(workers)
	t.Cleanup(d.Close)
	return d
}

func TestDispatcher_DeliversAllResults(t *testing.T) {
	d := newTestDispatcher(t, 4)

	const n = 50
	got := make(map[int]bool)
	for i := range n {
		Submit(d, context.Background(), func(context.Context) (int, error) {
			return i * i, nil
		}, func(r Result[int]) {
			require.True(t, r.OK())
			got[r.Value] = true
		})
	}

	waitCompleted(t, d)
	assert.Equal(t, n, d.Drain())
	assert.Len(t, got, n)
	assert.Equal(t, 0, d.Drain(), "queue is empty after drain")

	stats := d.Stats()
	assert.Equal(t, uint64(n), stats.Submitted)
	assert.Equal(t, uint64(n), stats.Drained)
	assert.Equal(t, 4, stats.Workers)
}

func TestDispatcher_DrainProcessesOnlySnapshot(t *testing.T) {
	d := newTestDispatcher(t, 2)

	var early, late int
	Submit(d, context.Background(), func(context.Context) (int, error) { return 1, nil },
		func(r Result[int]) { early += r.Value })
	waitCompleted(t, d)

	gate := make(chan struct{})
	Submit(d, context.Background(), func(context.Context) (int, error) {
		<-gate
		return 1, nil
	}, func(r Result[int]) { late += r.Value })

	assert.Equal(t, 1, d.Drain())
	assert.Equal(t, 1, early)
	assert.Equal(t, 0, late, "unfinished task is not delivered")

	close(gate)
	waitCompleted(t, d)
	assert.Equal(t, 1, d.Drain())
	assert.Equal(t, 1, late)
}

func TestDispatcher_CallbackSubmissionsWaitForNextDrain(t *testing.T) {
	d := newTestDispatcher(t, 1)

	var order []string
	Submit(d, context.Background(), func(context.Context) (string, error) { return "first", nil },
		func(r Result[string]) {
			order = append(order, r.Value)
			Submit(d, context.Background(), func(context.Context) (string, error) { return "second", nil },
				func(r Result[string]) { order = append(order, r.Value) })
			// Give the follow-up every chance to finish inside this drain.
			waitCompleted(t, d)
		})

	waitCompleted(t, d)
	assert.Equal(t, 1, d.Drain())
	assert.Equal(t, []string{"first"}, order)

	assert.Equal(t, 1, d.Drain())
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestDispatcher_FIFOWithSingleWorker(t *testing.T) {
	d := newTestDispatcher(t, 1)

	var order []int
	for i := range 10 {
		Submit(d, context.Background(), func(context.Context) (int, error) { return i, nil },
			func(r Result[int]) { order = append(order, r.Value) })
	}

	waitCompleted(t, d)
	d.Drain()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestDispatcher_BoundedConcurrency(t *testing.T) {
	d := newTestDispatcher(t, 2)

	var running, peak atomic.Int32
	for range 20 {
		Submit(d, context.Background(), func(context.Context) (struct{}, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			running.Add(-1)
			return struct{}{}, nil
		}, func(Result[struct{}]) {})
	}

	waitCompleted(t, d)
	d.Drain()
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestDispatcher_Errors(t *testing.T) {
	d := newTestDispatcher(t, 2)
	boom := errors.New("boom")

	var errResult, panicResult Result[int]
	Submit(d, context.Background(), func(context.Context) (int, error) { return 0, boom },
		func(r Result[int]) { errResult = r })
	Submit(d, context.Background(), func(context.Context) (int, error) { panic("kaboom") },
		func(r Result[int]) { panicResult = r })

	waitCompleted(t, d)
	d.Drain()

	assert.ErrorIs(t, errResult.Err, boom)
	assert.False(t, errResult.OK())
	assert.ErrorIs(t, panicResult.Err, ErrTaskPanicked)
	assert.Contains(t, panicResult.Err.Error(), "kaboom")
}

func TestDispatcher_CancelledContextSkipsWork(t *testing.T) {
	d := newTestDispatcher(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	var res Result[int]
	Submit(d, ctx, func(context.Context) (int, error) {
		ran = true
		return 1, nil
	}, func(r Result[int]) { res = r })

	waitCompleted(t, d)
	d.Drain()
	assert.False(t, ran)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestDispatcher_Close(t *testing.T) {
	d := New(1)

	gate := make(chan struct{})
	Submit(d, context.Background(), func(context.Context) (int, error) {
		<-gate
		return 1, nil
	}, func(Result[int]) {})

	var queued Result[int]
	Submit(d, context.Background(), func(context.Context) (int, error) { return 2, nil },
		func(r Result[int]) { queued = r })
	require.Eventually(t, func() bool { return d.Backlog() == 1 }, time.Second, time.Millisecond)

	go func() {
		time.Sleep(5 * time.Millisecond)
		close(gate)
	}()
	d.Close()
	d.Close()

	var late Result[int]
	Submit(d, context.Background(), func(context.Context) (int, error) { return 3, nil },
		func(r Result[int]) { late = r })

	assert.Equal(t, 3, d.Drain())
	assert.ErrorIs(t, queued.Err, ErrClosed)
	assert.ErrorIs(t, late.Err, ErrClosed)
	assert.Equal(t, 0, d.Outstanding())
}
