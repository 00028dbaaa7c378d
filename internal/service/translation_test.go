package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/clnpth/newsroom/internal/models"
)

func seedContent(t *testing.T, env *testEnv, articleID uint) {
	t.Helper()
	_, err := env.lifecycle.HandleCallback(context.Background(), CallbackPayload{
		ArticleID: articleID,
		Title:     "Original Title",
		Lead:      "Original lead.",
		Body:      "<p>Original body.</p>",
	})
	if err != nil {
		t.Fatalf("seed content: %v", err)
	}
}

func TestTranslationRunRequiresContent(t *testing.T) {
	env := newTestEnv(t)
	article, _ := env.lifecycle.Create(context.Background(), CreateRequest{Text: "draft"})

	err := env.translations.Run(context.Background(), article.ID, []string{"en"})
	if !errors.Is(err, ErrContentNotReady) {
		t.Fatalf("want ErrContentNotReady, got %v", err)
	}
}

func TestTranslationFanOutReachesReview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, _ := env.lifecycle.Create(ctx, CreateRequest{Text: "draft"})
	seedContent(t, env, article.ID)

	if err := env.translations.Run(ctx, article.ID, []string{"en", "fr"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	reloaded, _ := env.lifecycle.Get(article.ID)
	if reloaded.Status != models.StatusReview {
		t.Errorf("status = %q, want review", reloaded.Status)
	}
	if len(reloaded.Translations) != 2 {
		t.Fatalf("got %d translation rows, want 2", len(reloaded.Translations))
	}
	for _, row := range reloaded.Translations {
		if row.Status != models.TranslationReviewed {
			t.Errorf("%s status = %q, want reviewed", row.Language, row.Status)
		}
		if row.Body == "" {
			t.Errorf("%s body empty", row.Language)
		}
	}
}

func TestTranslationRunBroadcastsTranslatingTransition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, _ := env.lifecycle.Create(ctx, CreateRequest{Text: "draft"})
	seedContent(t, env, article.ID)

	sub := env.broadcaster.Subscribe()
	defer env.broadcaster.Unsubscribe(sub)

	if err := env.translations.Run(ctx, article.ID, []string{"en"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	var sawTranslating, sawReview bool
	for done := false; !done; {
		select {
		case event := <-sub.C:
			if event.Name == "article:updated" {
				switch event.Data["status"] {
				case models.StatusTranslating:
					sawTranslating = true
				case models.StatusReview:
					sawReview = true
				}
			}
		default:
			done = true
		}
	}
	if !sawTranslating {
		t.Error("entering the pipeline must broadcast article:updated with status translating")
	}
	if !sawReview {
		t.Error("finishing the pipeline must broadcast article:updated with status review")
	}
}

func TestTranslationFailureIsolation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, _ := env.lifecycle.Create(ctx, CreateRequest{Text: "draft"})
	seedContent(t, env, article.ID)

	// French provider unreachable, English fine.
	translations := NewTranslations(env.db,
		&fakeTranslator{failLangs: map[string]bool{"fr": true}},
		&fakeReviewer{},
		env.broadcaster, "de", zap.NewNop())

	if err := translations.Run(ctx, article.ID, []string{"en", "fr"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	reloaded, _ := env.lifecycle.Get(article.ID)
	if reloaded.Status != models.StatusReview {
		t.Errorf("status = %q, want review despite partial failure", reloaded.Status)
	}

	byLang := map[string]models.Translation{}
	for _, row := range reloaded.Translations {
		byLang[row.Language] = row
	}
	if byLang["en"].Status != models.TranslationReviewed {
		t.Errorf("en status = %q, want reviewed", byLang["en"].Status)
	}
	if byLang["fr"].Status != models.TranslationPending {
		t.Errorf("fr status = %q, want pending (prior state)", byLang["fr"].Status)
	}
	if byLang["fr"].Body != "" {
		t.Error("failed language must keep its prior (empty) body")
	}
}

func TestTranslationReviewFailureKeepsMachineStage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, _ := env.lifecycle.Create(ctx, CreateRequest{Text: "draft"})
	seedContent(t, env, article.ID)

	translations := NewTranslations(env.db,
		&fakeTranslator{},
		&fakeReviewer{err: fmt.Errorf("review provider down")},
		env.broadcaster, "de", zap.NewNop())

	if err := translations.Run(ctx, article.ID, []string{"en"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	row, err := translations.Get(article.ID, "en")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if row.Status != models.TranslationMachine {
		t.Errorf("status = %q, want machine_translated when review fails", row.Status)
	}
}

func TestTranslationDerivesLanguagesFromArticle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, _ := env.lifecycle.Create(ctx, CreateRequest{
		Text:      "draft",
		Languages: map[string]bool{"de": true, "en": true, "es": false},
	})
	seedContent(t, env, article.ID)

	if err := env.translations.Run(ctx, article.ID, nil); err != nil {
		t.Fatalf("run: %v", err)
	}

	rows, _ := env.translations.List(article.ID)
	if len(rows) != 1 || rows[0].Language != "en" {
		t.Fatalf("rows = %+v, want only en (source and disabled excluded)", rows)
	}
}

func TestTranslationEditAndApprove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	article, _ := env.lifecycle.Create(ctx, CreateRequest{Text: "draft"})
	seedContent(t, env, article.ID)
	if err := env.translations.Run(ctx, article.ID, []string{"en"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	edited, err := env.translations.Edit(article.ID, "en", "", "", "corrected body")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.Body != "corrected body" || edited.Status != models.TranslationApproved {
		t.Errorf("edit result %q/%q", edited.Body, edited.Status)
	}

	if _, err := env.translations.Get(article.ID, "xx"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown language: want ErrNotFound, got %v", err)
	}
}
