package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/clnpth/newsroom/internal/models"
	"github.com/clnpth/newsroom/pkg/util"
)

// CallbackPayload is the inbound result contract from the workflow
// engine. Absent fields leave state unchanged.
type CallbackPayload struct {
	ArticleID      uint                           `json:"articleId" binding:"required"`
	Status         string                         `json:"status"`
	Title          string                         `json:"title"`
	Lead           string                         `json:"lead"`
	Body           string                         `json:"body"`
	Sources        []string                       `json:"sources"`
	SEOTitle       string                         `json:"seoTitle"`
	SEODescription string                         `json:"seoDescription"`
	ImagePrompt    string                         `json:"imagePrompt"`
	Error          string                         `json:"error"`
	Translations   map[string]CallbackTranslation `json:"translations"`
	Supervisor     *CallbackSupervisor            `json:"supervisor"`
}

type CallbackTranslation struct {
	Title  string `json:"title"`
	Lead   string `json:"lead"`
	Body   string `json:"body"`
	Status string `json:"status"`
}

type CallbackSupervisor struct {
	Recommendation string   `json:"recommendation"`
	Justification  string   `json:"justification"`
	Score          int      `json:"score"`
	Tags           []string `json:"tags"`
}

// HandleCallback applies one engine callback. The status field is
// trusted as-is. A callback for a terminal article only appends the
// supervisor block for audit and changes nothing else. Follow-on
// pipelines (translation, image) detach after the write commits.
func (l *Lifecycle) HandleCallback(ctx context.Context, payload CallbackPayload) (*models.Article, error) {
	article, err := l.Get(payload.ArticleID)
	if err != nil {
		return nil, err
	}

	if models.IsTerminal(article.Status) {
		if payload.Supervisor != nil {
			if _, err := l.supervisor.AppendFromCallback(article.ID,
				payload.Supervisor.Recommendation,
				payload.Supervisor.Justification,
				payload.Supervisor.Score,
				payload.Supervisor.Tags); err != nil {
				return nil, err
			}
			l.logger.Info("Late callback on terminal article, decision kept for audit",
				zap.Uint("article_id", article.ID),
				zap.String("status", article.Status))
		}
		return article, nil
	}

	contentArrived := false
	err = l.db.Transaction(func(tx *gorm.DB) error {
		if hasContentFields(payload) {
			arrived, err := upsertContent(tx, article, payload)
			if err != nil {
				return err
			}
			contentArrived = arrived
		}

		for lang, tr := range payload.Translations {
			if err := upsertCallbackTranslation(tx, article.ID, lang, tr); err != nil {
				return err
			}
		}

		updates := map[string]any{"updated_at": time.Now()}
		if payload.Status != "" {
			updates["status"] = payload.Status
			if payload.Status != models.StatusGenerating {
				updates["timeout_at"] = nil
			}
		}
		if payload.Error != "" {
			updates["last_error"] = payload.Error
		}
		if err := tx.Model(&models.Article{}).
			Where("id = ?", article.ID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update article from callback: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if payload.Supervisor != nil {
		if _, err := l.supervisor.AppendFromCallback(article.ID,
			payload.Supervisor.Recommendation,
			payload.Supervisor.Justification,
			payload.Supervisor.Score,
			payload.Supervisor.Tags); err != nil {
			l.logger.Error("Failed to store callback supervisor decision",
				zap.Uint("article_id", article.ID), zap.Error(err))
		}
	}

	article, err = l.Get(payload.ArticleID)
	if err != nil {
		return nil, err
	}

	l.broadcaster.Broadcast("article:updated", map[string]any{
		"article_id": article.ID,
		"status":     article.Status,
	})

	l.dispatchFollowOn(article, payload, contentArrived)
	return article, nil
}

// dispatchFollowOn starts the background pipelines a callback warrants.
func (l *Lifecycle) dispatchFollowOn(article *models.Article, payload CallbackPayload, contentArrived bool) {
	id := article.ID

	if article.Status == models.StatusTranslating && contentArrived {
		l.tasks.Submit("translate-article", func(ctx context.Context) {
			if err := l.translations.Run(ctx, id, nil); err != nil {
				l.logger.Error("Translation pipeline failed",
					zap.Uint("article_id", id), zap.Error(err))
			}
		})
	}

	if payload.ImagePrompt != "" {
		prompt := payload.ImagePrompt
		kind := article.ImageKind
		l.tasks.Submit("generate-image", func(ctx context.Context) {
			if err := l.images.Generate(ctx, id, prompt, kind); err != nil {
				l.logger.Warn("Image pipeline failed",
					zap.Uint("article_id", id), zap.Error(err))
			}
		})
	}

	if article.Status == models.StatusReview && payload.Supervisor == nil && contentArrived {
		l.tasks.Submit("evaluate-article", func(ctx context.Context) {
			if _, err := l.supervisor.Evaluate(ctx, id); err != nil {
				l.logger.Warn("Supervisor evaluation failed",
					zap.Uint("article_id", id), zap.Error(err))
			}
		})
	}
}

func hasContentFields(p CallbackPayload) bool {
	return p.Title != "" || p.Lead != "" || p.Body != "" ||
		p.SEOTitle != "" || p.SEODescription != "" ||
		p.ImagePrompt != "" || len(p.Sources) > 0
}

// upsertContent creates or updates the canonical content from the
// callback fields. Returns whether a usable body is now present.
func upsertContent(tx *gorm.DB, article *models.Article, p CallbackPayload) (bool, error) {
	var content models.Content
	err := tx.Where("article_id = ?", article.ID).First(&content).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return false, fmt.Errorf("failed to load content: %w", err)
	}
	isNew := err == gorm.ErrRecordNotFound
	if isNew {
		content = models.Content{ArticleID: article.ID}
	}

	if p.Title != "" {
		content.Title = p.Title
	}
	if content.Title == "" {
		content.Title = article.Title
	}
	if p.Lead != "" {
		content.Lead = p.Lead
	}
	if p.Body != "" {
		content.Body = p.Body
	}
	if len(p.Sources) > 0 {
		content.Sources = models.StringList(p.Sources)
	}
	if p.SEOTitle != "" {
		content.SEOTitle = util.Truncate(p.SEOTitle, 60)
	}
	if p.SEODescription != "" {
		content.SEODescription = util.Truncate(p.SEODescription, 160)
	}
	if p.ImagePrompt != "" {
		content.ImagePrompt = p.ImagePrompt
	}

	if isNew {
		if err := tx.Create(&content).Error; err != nil {
			return false, fmt.Errorf("failed to create content: %w", err)
		}
	} else if err := tx.Save(&content).Error; err != nil {
		return false, fmt.Errorf("failed to update content: %w", err)
	}

	// Promote the article title once real content exists.
	if p.Title != "" && p.Title != article.Title {
		if err := tx.Model(&models.Article{}).
			Where("id = ?", article.ID).
			Update("title", util.Truncate(p.Title, 500)).Error; err != nil {
			return false, fmt.Errorf("failed to update article title: %w", err)
		}
	}

	return content.Body != "", nil
}

func upsertCallbackTranslation(tx *gorm.DB, articleID uint, lang string, tr CallbackTranslation) error {
	var row models.Translation
	err := tx.Where("article_id = ? AND language = ?", articleID, lang).First(&row).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return fmt.Errorf("failed to load translation %s: %w", lang, err)
	}
	if err == gorm.ErrRecordNotFound {
		row = models.Translation{
			ArticleID: articleID,
			Language:  lang,
			Status:    models.TranslationPending,
		}
	}

	if tr.Title != "" {
		row.Title = tr.Title
	}
	if tr.Lead != "" {
		row.Lead = tr.Lead
	}
	if tr.Body != "" {
		row.Body = tr.Body
	}
	if tr.Status != "" {
		row.Status = tr.Status
	}

	if row.ID == 0 {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create translation %s: %w", lang, err)
		}
		return nil
	}
	if err := tx.Save(&row).Error; err != nil {
		return fmt.Errorf("failed to update translation %s: %w", lang, err)
	}
	return nil
}
