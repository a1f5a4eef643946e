package engine

import (
	"fmt"
	"log/slog"
	"sync"
)

// eventBuffer keeps the worker from blocking on every progress send.
const eventBuffer = 64

// Event is delivered from the worker goroutine to the orchestrator. Exactly
// one event per operation has Done set, and it is always the last one sent
// before the channel is closed.
type Event[T any] struct {
	Progress *Progress
	Done     bool
	Result   T
	Err      error
}

// Worker runs at most one backup or restore at a time on a dedicated
// goroutine. The worker owns no orchestrator state; everything it produces
// is handed over on the returned channel.
type Worker struct {
	logger *slog.Logger

	mu     sync.Mutex
	active string
}

// NewWorker creates an idle worker.
func NewWorker(logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{logger: logger}
}

// Active returns the name of the running operation, or "" when idle.
func (w *Worker) Active() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

func (w *Worker) acquire(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active != "" {
		return fmt.Errorf("%w: %s", ErrBusy, w.active)
	}
	w.active = name
	return nil
}

func (w *Worker) release() {
	w.mu.Lock()
	w.active = ""
	w.mu.Unlock()
}

// Run starts job on a new goroutine and returns the channel its events are
// delivered on. It fails with ErrBusy if another operation is running.
// There is no cancellation: the job runs to completion or failure.
func Run[T any](w *Worker, name string, job func(ProgressFunc) (T, error)) (<-chan Event[T], error) {
	if err := w.acquire(name); err != nil {
		return nil, err
	}

	events := make(chan Event[T], eventBuffer)
	go func() {
		defer close(events)

		var (
			result T
			err    error
		)
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%s panicked: %v", name, r)
				}
			}()
			result, err = job(func(p Progress) {
				events <- Event[T]{Progress: &p}
			})
		}()

		w.release()
		if err != nil {
			w.logger.Debug("operation failed", "op", name, "error", err)
		}
		events <- Event[T]{Done: true, Result: result, Err: err}
	}()
	return events, nil
}

// Collect drains events, calling onProgress for each progress event, and
// returns the terminal result. onProgress runs on the caller's goroutine.
func Collect[T any](events <-chan Event[T], onProgress func(Progress)) (T, error) {
	var (
		result T
		err    error
	)
	for ev := range events {
		if ev.Done {
			result, err = ev.Result, ev.Err
			continue
		}
		if ev.Progress != nil && onProgress != nil {
			onProgress(*ev.Progress)
		}
	}
	return result, err
}
