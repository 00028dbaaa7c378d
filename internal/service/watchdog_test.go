package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/clnpth/newsroom/internal/config"
	"github.com/clnpth/newsroom/internal/models"
)

func newTestWatchdog(t *testing.T, env *testEnv) *Watchdog {
	t.Helper()
	cfg := &config.QueueConfig{
		SweepInterval: "60s",
		RetryWindow:   "10m",
		MaxRetries:    3,
	}
	return NewWatchdog(env.db, cfg, env.trigger, env.broadcaster, zap.NewNop())
}

func makeOverdue(t *testing.T, env *testEnv, id uint, retryCount int) {
	t.Helper()
	past := time.Now().Add(-time.Minute)
	err := env.db.Model(&models.Article{}).Where("id = ?", id).Updates(map[string]any{
		"timeout_at":  past,
		"retry_count": retryCount,
	}).Error
	if err != nil {
		t.Fatalf("make overdue: %v", err)
	}
}

func TestSweepRetriesOverdueArticle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, _ := env.lifecycle.Create(ctx, CreateRequest{Text: "stalled draft"})
	makeOverdue(t, env, article.ID, 0)

	// Drain the detached create trigger so the count below is stable.
	env.tasks.Shutdown()

	watchdog := newTestWatchdog(t, env)
	before := env.trigger.count()
	if err := watchdog.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	reloaded, _ := env.lifecycle.Get(article.ID)
	if reloaded.Status != models.StatusGenerating {
		t.Errorf("status = %q, want generating", reloaded.Status)
	}
	if reloaded.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", reloaded.RetryCount)
	}
	if reloaded.TimeoutAt == nil || !reloaded.TimeoutAt.After(time.Now()) {
		t.Error("deadline not pushed forward")
	}
	if reloaded.LastError == "" {
		t.Error("retry must record a descriptive error")
	}
	if env.trigger.count() != before+1 {
		t.Errorf("trigger re-issued %d times, want 1", env.trigger.count()-before)
	}
}

func TestSweepTimesOutExhaustedArticle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, _ := env.lifecycle.Create(ctx, CreateRequest{Text: "stalled draft"})
	makeOverdue(t, env, article.ID, 3)

	env.tasks.Shutdown()

	watchdog := newTestWatchdog(t, env)
	before := env.trigger.count()
	if err := watchdog.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	reloaded, _ := env.lifecycle.Get(article.ID)
	if reloaded.Status != models.StatusTimeout {
		t.Errorf("status = %q, want timeout", reloaded.Status)
	}
	if reloaded.TimeoutAt != nil {
		t.Error("timed-out article must not keep a deadline")
	}
	if env.trigger.count() != before {
		t.Error("exhausted article must not re-trigger")
	}

	// A second sweep must not touch it again.
	if err := watchdog.Sweep(ctx); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	again, _ := env.lifecycle.Get(article.ID)
	if again.Status != models.StatusTimeout {
		t.Errorf("second sweep changed status to %q", again.Status)
	}
}

func TestRetryCountNeverExceedsMaxRetries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, _ := env.lifecycle.Create(ctx, CreateRequest{Text: "stalled draft"})
	watchdog := newTestWatchdog(t, env)

	for i := 0; i < 6; i++ {
		var current models.Article
		env.db.First(&current, article.ID)
		if current.Status != models.StatusGenerating {
			break
		}
		makeOverdue(t, env, article.ID, current.RetryCount)
		if err := watchdog.Sweep(ctx); err != nil {
			t.Fatalf("sweep %d: %v", i, err)
		}
	}

	reloaded, _ := env.lifecycle.Get(article.ID)
	if reloaded.RetryCount > reloaded.MaxRetries {
		t.Errorf("retry count %d exceeds max %d", reloaded.RetryCount, reloaded.MaxRetries)
	}
	if reloaded.Status != models.StatusTimeout {
		t.Errorf("status = %q, want timeout after exhaustion", reloaded.Status)
	}
}

func TestSweepIgnoresHealthyArticles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, _ := env.lifecycle.Create(ctx, CreateRequest{Text: "fresh draft"})
	watchdog := newTestWatchdog(t, env)
	if err := watchdog.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	reloaded, _ := env.lifecycle.Get(article.ID)
	if reloaded.RetryCount != 0 {
		t.Error("healthy article was swept")
	}
}

func TestWatchdogStartStop(t *testing.T) {
	env := newTestEnv(t)
	watchdog := newTestWatchdog(t, env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchdog.Start(ctx)
	done := make(chan struct{})
	go func() {
		watchdog.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not stop")
	}
}
