package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/clnpth/newsroom/internal/models"
	"github.com/clnpth/newsroom/internal/service/translate"
)

// Translations is the concurrent two-stage translation orchestrator:
// structural machine translation first, idiomatic review second, fanned
// out per language with full isolation between languages.
type Translations struct {
	db          *gorm.DB
	logger      *zap.Logger
	translator  Translator
	reviewer    Reviewer
	broadcaster *Broadcaster
	sourceLang  string
}

func NewTranslations(db *gorm.DB, translator Translator, reviewer Reviewer, broadcaster *Broadcaster, sourceLang string, logger *zap.Logger) *Translations {
	if sourceLang == "" {
		sourceLang = "de"
	}
	return &Translations{
		db:          db,
		logger:      logger,
		translator:  translator,
		reviewer:    reviewer,
		broadcaster: broadcaster,
		sourceLang:  sourceLang,
	}
}

// Run translates one article into the given languages, or into the
// article's enabled languages when langs is empty. It moves the article
// translating → review once every language branch has finished,
// regardless of per-language outcomes.
func (t *Translations) Run(ctx context.Context, articleID uint, langs []string) error {
	var article models.Article
	if err := t.db.Preload("Content").First(&article, articleID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load article: %w", err)
	}
	if article.Content == nil || article.Content.Body == "" {
		return ErrContentNotReady
	}
	if models.IsTerminal(article.Status) {
		return &InvalidTransitionError{ArticleID: articleID, Status: article.Status, Action: "translate"}
	}

	if len(langs) == 0 {
		langs = article.Languages.Enabled(t.sourceLang)
	}
	if len(langs) == 0 {
		t.logger.Info("No target languages enabled", zap.Uint("article_id", articleID))
		return t.finish(articleID)
	}

	// Guarded update keeps the state machine single-writer: only a
	// generating or translating article enters the pipeline.
	result := t.db.Model(&models.Article{}).
		Where("id = ? AND status IN ?", articleID,
			[]string{models.StatusGenerating, models.StatusTranslating}).
		Update("status", models.StatusTranslating)
	if result.Error != nil {
		return fmt.Errorf("failed to enter translation: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		t.broadcaster.Broadcast("article:updated", map[string]any{
			"article_id": articleID,
			"status":     models.StatusTranslating,
		})
	}

	doc := translate.Document{
		Title: article.Content.Title,
		Lead:  article.Content.Lead,
		Body:  article.Content.Body,
	}

	var wg sync.WaitGroup
	for _, lang := range langs {
		wg.Add(1)
		go func(lang string) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					t.logger.Error("Translation branch panicked",
						zap.Uint("article_id", articleID),
						zap.String("language", lang),
						zap.Any("panic", rec))
				}
			}()
			t.translateLanguage(ctx, articleID, doc, lang)
		}(lang)
	}
	wg.Wait()

	return t.finish(articleID)
}

// finish moves a still-translating article to review.
func (t *Translations) finish(articleID uint) error {
	result := t.db.Model(&models.Article{}).
		Where("id = ? AND status = ?", articleID, models.StatusTranslating).
		Update("status", models.StatusReview)
	if result.Error != nil {
		return fmt.Errorf("failed to finish translation run: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		t.broadcaster.Broadcast("article:updated", map[string]any{
			"article_id": articleID,
			"status":     models.StatusReview,
		})
	}
	return nil
}

// translateLanguage runs both stages for one language. Failures are
// logged and leave the row at its last good state.
func (t *Translations) translateLanguage(ctx context.Context, articleID uint, doc translate.Document, lang string) {
	row, err := t.upsertRow(articleID, lang)
	if err != nil {
		t.logger.Error("Failed to prepare translation row",
			zap.Uint("article_id", articleID), zap.String("language", lang), zap.Error(err))
		return
	}

	// Stage 1: structural translation. Empty result fields keep the
	// prior values.
	translated, err := t.translator.TranslateDocument(ctx, doc, lang)
	if err != nil {
		t.logger.Warn("Machine translation failed",
			zap.Uint("article_id", articleID), zap.String("language", lang), zap.Error(err))
		return
	}
	if translated.Title != "" {
		row.Title = translated.Title
	}
	if translated.Lead != "" {
		row.Lead = translated.Lead
	}
	if translated.Body != "" {
		row.Body = translated.Body
	}
	row.Status = models.TranslationMachine
	if err := t.saveRow(row); err != nil {
		t.logger.Error("Failed to persist machine translation",
			zap.Uint("article_id", articleID), zap.String("language", lang), zap.Error(err))
		return
	}
	t.broadcastRow(row)

	// Stage 2: idiomatic review of the body. A review failure leaves
	// the machine translation standing.
	if row.Body == "" {
		return
	}
	review, err := t.reviewer.ReviewTranslation(ctx, doc.Body, row.Body, lang)
	if err != nil {
		t.logger.Warn("Translation review failed",
			zap.Uint("article_id", articleID), zap.String("language", lang), zap.Error(err))
		return
	}
	if review.Improved != "" {
		row.Body = review.Improved
	}
	row.Status = models.TranslationReviewed
	if err := t.saveRow(row); err != nil {
		t.logger.Error("Failed to persist reviewed translation",
			zap.Uint("article_id", articleID), zap.String("language", lang), zap.Error(err))
		return
	}
	t.broadcastRow(row)
}

func (t *Translations) upsertRow(articleID uint, lang string) (*models.Translation, error) {
	var row models.Translation
	err := t.db.Where("article_id = ? AND language = ?", articleID, lang).First(&row).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		row = models.Translation{
			ArticleID: articleID,
			Language:  lang,
			Status:    models.TranslationPending,
		}
		if err := t.db.Create(&row).Error; err != nil {
			return nil, err
		}
		return &row, nil
	case err != nil:
		return nil, err
	}
	return &row, nil
}

func (t *Translations) saveRow(row *models.Translation) error {
	return t.db.Model(row).
		Select("title", "lead", "body", "status").
		Updates(row).Error
}

func (t *Translations) broadcastRow(row *models.Translation) {
	t.broadcaster.Broadcast("translation:updated", map[string]any{
		"article_id": row.ArticleID,
		"language":   row.Language,
		"status":     row.Status,
	})
}

// List returns all translation rows of an article.
func (t *Translations) List(articleID uint) ([]models.Translation, error) {
	var rows []models.Translation
	if err := t.db.Where("article_id = ?", articleID).
		Order("language ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load translations: %w", err)
	}
	return rows, nil
}

// Get returns one translation row.
func (t *Translations) Get(articleID uint, lang string) (*models.Translation, error) {
	var row models.Translation
	err := t.db.Where("article_id = ? AND language = ?", articleID, lang).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load translation: %w", err)
	}
	return &row, nil
}

// Edit applies a manual correction. A human edit counts as approval.
func (t *Translations) Edit(articleID uint, lang, title, lead, body string) (*models.Translation, error) {
	row, err := t.Get(articleID, lang)
	if err != nil {
		return nil, err
	}
	if title != "" {
		row.Title = title
	}
	if lead != "" {
		row.Lead = lead
	}
	if body != "" {
		row.Body = body
	}
	row.Status = models.TranslationApproved
	if err := t.saveRow(row); err != nil {
		return nil, fmt.Errorf("failed to save translation edit: %w", err)
	}
	t.broadcastRow(row)
	return row, nil
}

// Approve marks a translation approved without changes.
func (t *Translations) Approve(articleID uint, lang string) (*models.Translation, error) {
	row, err := t.Get(articleID, lang)
	if err != nil {
		return nil, err
	}
	row.Status = models.TranslationApproved
	if err := t.saveRow(row); err != nil {
		return nil, fmt.Errorf("failed to approve translation: %w", err)
	}
	t.broadcastRow(row)
	return row, nil
}
