package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestTaskRunnerRunsAndWaits(t *testing.T) {
	runner := NewTaskRunner(zap.NewNop())

	var done atomic.Bool
	ok := runner.Submit("work", func(ctx context.Context) {
		time.Sleep(10 * time.Millisecond)
		done.Store(true)
	})
	if !ok {
		t.Fatal("submit rejected")
	}

	runner.Shutdown()
	if !done.Load() {
		t.Error("shutdown returned before task finished")
	}
}

func TestTaskRunnerRejectsAfterShutdown(t *testing.T) {
	runner := NewTaskRunner(zap.NewNop())
	runner.Shutdown()

	if runner.Submit("late", func(ctx context.Context) {}) {
		t.Error("submit after shutdown must be rejected")
	}
}

func TestTaskRunnerCancelsContextOnShutdown(t *testing.T) {
	runner := NewTaskRunner(zap.NewNop())

	started := make(chan struct{})
	cancelled := make(chan struct{})
	runner.Submit("blocked", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	})

	<-started
	runner.Shutdown()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("task context not cancelled on shutdown")
	}
}

func TestTaskRunnerConfinesPanics(t *testing.T) {
	runner := NewTaskRunner(zap.NewNop())

	runner.Submit("panicky", func(ctx context.Context) {
		panic("boom")
	})

	var ran atomic.Bool
	runner.Submit("survivor", func(ctx context.Context) {
		ran.Store(true)
	})

	runner.Shutdown()
	if !ran.Load() {
		t.Error("panic in one task affected another")
	}
}
