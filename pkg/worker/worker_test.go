package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerRunsOnStart(t *testing.T) {
	t.Parallel()

	var runs int32
	done := make(chan struct{})

	w := New()
	w.Register("probe", time.Hour, func(_ context.Context) error {
		if atomic.AddInt32(&runs, 1) == 1 {
			close(done)
		}
		return nil
	})
	w.Start()
	defer w.Shutdown()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task never ran")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestWorkerRunsOnInterval(t *testing.T) {
	t.Parallel()

	var runs int32

	w := New()
	w.Register("fast", 10*time.Millisecond, func(_ context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})
	w.Start()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 3
	}, 5*time.Second, 5*time.Millisecond)

	w.Shutdown()
}

func TestWorkerSkipsOverlappingRuns(t *testing.T) {
	t.Parallel()

	var active int32
	var maxActive int32
	release := make(chan struct{})
	var once sync.Once

	w := New()
	w.Register("slow", 10*time.Millisecond, func(ctx context.Context) error {
		n := atomic.AddInt32(&active, 1)
		for {
			old := atomic.LoadInt32(&maxActive)
			if n <= old || atomic.CompareAndSwapInt32(&maxActive, old, n) {
				break
			}
		}
		defer atomic.AddInt32(&active, -1)

		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	w.Start()

	// Give several ticks a chance to fire while the first run is blocked.
	time.Sleep(100 * time.Millisecond)
	once.Do(func() { close(release) })
	w.Shutdown()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

func TestWorkerShutdownAbandonsStuckTasks(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	block := make(chan struct{})
	defer close(block)

	w := New()
	w.grace = 50 * time.Millisecond
	w.Register("stuck", time.Hour, func(_ context.Context) error {
		// Ignores cancellation entirely, like a blocking syscall would.
		close(started)
		<-block
		return nil
	})
	w.Start()

	<-started
	done := make(chan struct{})
	go func() {
		w.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown hung on a task that ignores cancellation")
	}
}

func TestWorkerShutdownCancelsTasks(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	cancelled := make(chan struct{})

	w := New()
	w.Register("blocker", time.Hour, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})
	w.Start()

	<-started
	done := make(chan struct{})
	go func() {
		w.Shutdown()
		close(done)
	}()

	select {
	case <-cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("task context never cancelled")
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown never drained")
	}
}
