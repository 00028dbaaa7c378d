package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/clnpth/newsroom/internal/models"
)

func TestEvaluateAppendsDecision(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, _ := env.lifecycle.Create(ctx, CreateRequest{Text: "draft", Category: "tech"})
	seedContent(t, env, article.ID)

	decision, err := env.supervisor.Evaluate(ctx, article.ID)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if decision.Recommendation != models.DecisionApprove || decision.Score != 82 {
		t.Errorf("decision = %+v", decision)
	}
	if len(decision.StyleTags) != 2 {
		t.Errorf("style tags = %v", decision.StyleTags)
	}

	latest, err := env.supervisor.Latest(article.ID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != decision.ID {
		t.Error("latest does not return the appended decision")
	}
}

func TestEvaluateRequiresContent(t *testing.T) {
	env := newTestEnv(t)
	article, _ := env.lifecycle.Create(context.Background(), CreateRequest{Text: "draft"})

	_, err := env.supervisor.Evaluate(context.Background(), article.ID)
	if !errors.Is(err, ErrContentNotReady) {
		t.Fatalf("want ErrContentNotReady, got %v", err)
	}
}

func TestEvaluateFailurePersistsNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, _ := env.lifecycle.Create(ctx, CreateRequest{Text: "draft"})
	seedContent(t, env, article.ID)

	supervisor := NewSupervisor(env.db,
		&fakeScorer{err: fmt.Errorf("model overloaded")},
		env.learning, env.broadcaster, zap.NewNop())

	_, err := supervisor.Evaluate(ctx, article.ID)
	if !errors.Is(err, ErrExternalFailure) {
		t.Fatalf("want ErrExternalFailure, got %v", err)
	}

	var count int64
	env.db.Model(&models.SupervisorDecision{}).Where("article_id = ?", article.ID).Count(&count)
	if count != 0 {
		t.Errorf("failed evaluation persisted %d decisions, want 0", count)
	}
}

func TestDecisionHistoryNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, _ := env.lifecycle.Create(ctx, CreateRequest{Text: "draft"})
	seedContent(t, env, article.ID)

	first, err := env.supervisor.Evaluate(ctx, article.ID)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if _, err := env.supervisor.AppendFromCallback(article.ID,
		models.DecisionRevise, "tone drift", 55, nil); err != nil {
		t.Fatalf("append: %v", err)
	}

	history, err := env.supervisor.History(article.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history len = %d, want 2", len(history))
	}

	latest, _ := env.supervisor.Latest(article.ID)
	if latest.Recommendation != models.DecisionRevise {
		t.Errorf("latest = %q, want the newer revise decision", latest.Recommendation)
	}

	// Earlier automated fields stay untouched.
	var earlier models.SupervisorDecision
	env.db.First(&earlier, first.ID)
	if earlier.Recommendation != models.DecisionApprove || earlier.Score != 82 {
		t.Errorf("earlier decision mutated: %+v", earlier)
	}
}

func TestLatestOnEmptyHistory(t *testing.T) {
	env := newTestEnv(t)
	article, _ := env.lifecycle.Create(context.Background(), CreateRequest{Text: "draft"})

	if _, err := env.supervisor.Latest(article.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
