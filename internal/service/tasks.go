package service

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// TaskRunner detaches follow-on work (generation trigger, translation,
// image, evaluation, publication) from the request that started it.
// All submitted tasks share one context that is cancelled at shutdown,
// and panics are confined to the task that raised them.
type TaskRunner struct {
	logger *zap.Logger

	mu     sync.Mutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

func NewTaskRunner(logger *zap.Logger) *TaskRunner {
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskRunner{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit runs fn on its own goroutine under the runner's context.
// Returns false if the runner is already shut down.
func (r *TaskRunner) Submit(name string, fn func(ctx context.Context)) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.logger.Warn("Rejected task after shutdown", zap.String("task", name))
		return false
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("Background task panicked",
					zap.String("task", name),
					zap.Any("panic", rec))
			}
		}()
		fn(r.ctx)
	}()
	return true
}

// Shutdown cancels the shared context and waits for in-flight tasks.
func (r *TaskRunner) Shutdown() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()
	r.wg.Wait()
}
