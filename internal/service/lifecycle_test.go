package service

import (
	"context"
	"errors"
	"testing"

	"github.com/clnpth/newsroom/internal/models"
)

func TestCreateSetsGeneratingWithDeadline(t *testing.T) {
	env := newTestEnv(t)

	article, err := env.lifecycle.Create(context.Background(), CreateRequest{
		Text: "AI in healthcare",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if article.Status != models.StatusGenerating {
		t.Errorf("status = %q, want generating", article.Status)
	}
	if article.Fingerprint == "" {
		t.Error("fingerprint not computed")
	}
	if article.TimeoutAt == nil {
		t.Error("timeout deadline not set")
	}
	if article.Title != "AI in healthcare" {
		t.Errorf("title = %q", article.Title)
	}
	if article.MaxRetries != 3 {
		t.Errorf("max retries = %d, want 3", article.MaxRetries)
	}
}

func TestCreateRejectsActiveDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.lifecycle.Create(ctx, CreateRequest{Text: "AI in healthcare"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = env.lifecycle.Create(ctx, CreateRequest{Text: "AI in healthcare"})
	var dup *DuplicateContentError
	if !errors.As(err, &dup) {
		t.Fatalf("want DuplicateContentError, got %v", err)
	}
	if dup.ExistingID != first.ID {
		t.Errorf("existing id = %d, want %d", dup.ExistingID, first.ID)
	}

	// Whitespace and case changes hash identically.
	_, err = env.lifecycle.Create(ctx, CreateRequest{Text: "  AI   in Healthcare "})
	if !errors.As(err, &dup) {
		t.Fatalf("normalized duplicate not detected: %v", err)
	}
}

func TestCancelledFingerprintIsResubmittable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.lifecycle.Create(ctx, CreateRequest{Text: "AI in healthcare"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.lifecycle.Cancel(ctx, first.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	second, err := env.lifecycle.Create(ctx, CreateRequest{Text: "AI in healthcare"})
	if err != nil {
		t.Fatalf("resubmission after cancel rejected: %v", err)
	}
	if second.ID == first.ID {
		t.Error("expected a new article")
	}
}

func TestCreateBatchSkipsDuplicates(t *testing.T) {
	env := newTestEnv(t)

	created := env.lifecycle.CreateBatch(context.Background(), []CreateRequest{
		{Text: "topic one"},
		{Text: "topic one"},
		{Text: "topic two"},
	})
	if len(created) != 2 {
		t.Fatalf("created %d articles, want 2", len(created))
	}
}

func TestCallbackCreatesContentAndTrustsStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, err := env.lifecycle.Create(ctx, CreateRequest{Text: "AI in healthcare"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := env.lifecycle.HandleCallback(ctx, CallbackPayload{
		ArticleID: article.ID,
		Status:    models.StatusReview,
		Title:     "AI transforms healthcare",
		Lead:      "A short lead.",
		Body:      "<p>Body text.</p>",
		SEOTitle:  "AI in healthcare",
	})
	if err != nil {
		t.Fatalf("callback: %v", err)
	}

	if updated.Status != models.StatusReview {
		t.Errorf("status = %q, want review", updated.Status)
	}
	if updated.Content == nil || updated.Content.Body != "<p>Body text.</p>" {
		t.Fatal("content not created from callback")
	}
	if updated.TimeoutAt != nil {
		t.Error("timeout deadline should clear once status leaves generating")
	}
	if updated.Title != "AI transforms healthcare" {
		t.Errorf("article title not promoted, got %q", updated.Title)
	}
}

func TestCallbackUnknownArticle(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.lifecycle.HandleCallback(context.Background(), CallbackPayload{ArticleID: 9999})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestCallbackUpsertsTranslationsAndDecision(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, _ := env.lifecycle.Create(ctx, CreateRequest{Text: "AI in healthcare"})

	updated, err := env.lifecycle.HandleCallback(ctx, CallbackPayload{
		ArticleID: article.ID,
		Status:    models.StatusReview,
		Body:      "<p>text</p>",
		Translations: map[string]CallbackTranslation{
			"en": {Title: "Title EN", Body: "<p>en</p>", Status: models.TranslationMachine},
		},
		Supervisor: &CallbackSupervisor{
			Recommendation: models.DecisionApprove,
			Score:          88,
			Tags:           []string{"factual"},
		},
	})
	if err != nil {
		t.Fatalf("callback: %v", err)
	}

	if len(updated.Translations) != 1 || updated.Translations[0].Language != "en" {
		t.Fatalf("translation row not upserted: %+v", updated.Translations)
	}
	if updated.Translations[0].Status != models.TranslationMachine {
		t.Errorf("translation status = %q", updated.Translations[0].Status)
	}
	if len(updated.Decisions) != 1 || updated.Decisions[0].Score != 88 {
		t.Fatalf("supervisor decision not appended: %+v", updated.Decisions)
	}
}

func TestLateCallbackOnTerminalArticleAuditsOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, _ := env.lifecycle.Create(ctx, CreateRequest{Text: "AI in healthcare"})
	if _, err := env.lifecycle.Cancel(ctx, article.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	updated, err := env.lifecycle.HandleCallback(ctx, CallbackPayload{
		ArticleID: article.ID,
		Status:    models.StatusReview,
		Body:      "<p>late content</p>",
		Supervisor: &CallbackSupervisor{
			Recommendation: models.DecisionRevise,
			Score:          40,
		},
	})
	if err != nil {
		t.Fatalf("late callback: %v", err)
	}

	if updated.Status != models.StatusCancelled {
		t.Errorf("terminal status changed to %q", updated.Status)
	}
	reloaded, _ := env.lifecycle.Get(article.ID)
	if reloaded.Content != nil {
		t.Error("late callback must not create content on a terminal article")
	}
	if len(reloaded.Decisions) != 1 {
		t.Errorf("supervisor block should be kept for audit, got %d decisions", len(reloaded.Decisions))
	}
}

func TestApprovePublishes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, _ := env.lifecycle.Create(ctx, CreateRequest{Text: "AI in healthcare"})
	if _, err := env.lifecycle.HandleCallback(ctx, CallbackPayload{
		ArticleID: article.ID,
		Status:    models.StatusReview,
		Body:      "<p>body</p>",
	}); err != nil {
		t.Fatalf("callback: %v", err)
	}

	approved, err := env.lifecycle.Approve(ctx, article.ID, "looks good")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != models.StatusPublished {
		t.Errorf("status = %q, want published", approved.Status)
	}
	if approved.TimeoutAt != nil {
		t.Error("published article must not carry a timeout deadline")
	}
}

func TestApproveWithoutDecisionRecordsNoDeviation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, _ := env.lifecycle.Create(ctx, CreateRequest{Text: "AI in healthcare"})
	if _, err := env.lifecycle.Approve(ctx, article.ID, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}

	stats, err := env.learning.Deviations()
	if err != nil {
		t.Fatalf("deviations: %v", err)
	}
	if stats.Decisions != 0 || stats.Deviations != 0 {
		t.Errorf("stats = %+v, want zero decisions", stats)
	}
}

func TestInvalidTransitionsAreRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, _ := env.lifecycle.Create(ctx, CreateRequest{Text: "AI in healthcare"})
	if _, err := env.lifecycle.Approve(ctx, article.ID, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}

	var transition *InvalidTransitionError
	if _, err := env.lifecycle.Approve(ctx, article.ID, ""); !errors.As(err, &transition) {
		t.Errorf("approve published: want InvalidTransitionError, got %v", err)
	}
	if _, err := env.lifecycle.Cancel(ctx, article.ID); !errors.As(err, &transition) {
		t.Errorf("cancel published: want InvalidTransitionError, got %v", err)
	}
	if _, err := env.lifecycle.Retry(ctx, article.ID); !errors.As(err, &transition) {
		t.Errorf("retry published: want InvalidTransitionError, got %v", err)
	}
	if _, err := env.lifecycle.Resume(ctx, article.ID); !errors.As(err, &transition) {
		t.Errorf("resume published: want InvalidTransitionError, got %v", err)
	}
}

func TestRetryResetsBudget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, _ := env.lifecycle.Create(ctx, CreateRequest{Text: "AI in healthcare"})
	env.db.Model(&models.Article{}).Where("id = ?", article.ID).Updates(map[string]any{
		"status":      models.StatusTimeout,
		"retry_count": 3,
		"last_error":  "generation timed out after 3 retries",
		"timeout_at":  nil,
	})

	retried, err := env.lifecycle.Retry(ctx, article.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.Status != models.StatusGenerating {
		t.Errorf("status = %q, want generating", retried.Status)
	}
	if retried.RetryCount != 0 || retried.LastError != "" {
		t.Errorf("retry budget not reset: count=%d err=%q", retried.RetryCount, retried.LastError)
	}
	if retried.TimeoutAt == nil {
		t.Error("retry must set a fresh deadline")
	}
}

func TestPauseAndResume(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, _ := env.lifecycle.Create(ctx, CreateRequest{Text: "AI in healthcare"})

	paused, err := env.lifecycle.Pause(ctx, article.ID)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if paused.Status != models.StatusPaused || paused.TimeoutAt != nil {
		t.Errorf("paused = %q timeout=%v", paused.Status, paused.TimeoutAt)
	}

	resumed, err := env.lifecycle.Resume(ctx, article.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Status != models.StatusGenerating || resumed.TimeoutAt == nil {
		t.Errorf("resumed = %q timeout=%v", resumed.Status, resumed.TimeoutAt)
	}

	// Cancel is allowed from paused.
	if _, err := env.lifecycle.Pause(ctx, article.ID); err != nil {
		t.Fatalf("pause again: %v", err)
	}
	if _, err := env.lifecycle.Cancel(ctx, article.ID); err != nil {
		t.Fatalf("cancel paused: %v", err)
	}
}

func TestListAndStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a1, _ := env.lifecycle.Create(ctx, CreateRequest{Text: "first", Category: "tech"})
	env.lifecycle.Create(ctx, CreateRequest{Text: "second", Category: "health"})
	env.lifecycle.Cancel(ctx, a1.ID)

	all, total, err := env.lifecycle.List(ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(all) != 2 {
		t.Errorf("total = %d len = %d, want 2", total, len(all))
	}

	cancelled, total, err := env.lifecycle.List(ListOptions{Status: models.StatusCancelled})
	if err != nil {
		t.Fatalf("list cancelled: %v", err)
	}
	if total != 1 || cancelled[0].ID != a1.ID {
		t.Errorf("cancelled filter wrong: total=%d", total)
	}

	stats, err := env.lifecycle.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats["total"] != 2 || stats[models.StatusCancelled] != 1 {
		t.Errorf("stats = %v", stats)
	}
}
