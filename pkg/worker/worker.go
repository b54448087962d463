package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robinjoseph08/golib/logger"
)

// TaskFunc is a unit of periodic work. It must honor ctx cancellation.
type TaskFunc func(ctx context.Context) error

type task struct {
	name     string
	interval time.Duration
	fn       TaskFunc

	running bool
	mu      sync.Mutex
}

// shutdownGrace bounds how long Shutdown waits for cancelled tasks to
// return before abandoning them.
const shutdownGrace = 10 * time.Second

// Worker runs named tasks on fixed intervals. Each task also runs once at
// startup. A tick is skipped when the previous run of the same task is still
// going, so slow scans never pile up.
type Worker struct {
	log   logger.Logger
	tasks []*task
	grace time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New() *Worker {
	return &Worker{log: logger.New(), grace: shutdownGrace}
}

// Register adds a named task. Must be called before Start.
func (w *Worker) Register(name string, interval time.Duration, fn TaskFunc) {
	w.tasks = append(w.tasks, &task{name: name, interval: interval, fn: fn})
}

// Start launches one goroutine per task and returns immediately.
func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	for _, t := range w.tasks {
		w.wg.Add(1)
		go w.loop(ctx, t)
	}
}

func (w *Worker) loop(ctx context.Context, t *task) {
	defer w.wg.Done()

	w.run(ctx, t)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.run(ctx, t)
		}
	}
}

func (w *Worker) run(ctx context.Context, t *task) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		w.log.Warn("task still running, skipping tick", logger.Data{"task": t.name})
		return
	}
	t.running = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
	}()

	id, err := uuid.NewRandom()
	if err != nil {
		w.log.Err(err).Error("new uuid error")
		return
	}
	log := w.log.ID(id.String()).Root(logger.Data{"task": t.name})
	taskCtx := log.WithContext(ctx)

	start := time.Now()
	log.Info("task started")
	if err := t.fn(taskCtx); err != nil {
		log.Err(err).Error("task error", logger.Data{"duration": time.Since(start).String()})
		return
	}
	log.Info("task finished", logger.Data{"duration": time.Since(start).String()})
}

// Shutdown cancels all task contexts and waits for in-flight runs to drain.
// A run stuck past the grace period (say, in a syscall on a dead mount) is
// abandoned so process shutdown can't hang on it.
func (w *Worker) Shutdown() {
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(w.grace):
		w.log.Warn("shutdown grace period elapsed, abandoning in-flight tasks")
	}
}
