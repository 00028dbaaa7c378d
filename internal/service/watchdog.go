package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/clnpth/newsroom/internal/config"
	"github.com/clnpth/newsroom/internal/models"
	"github.com/clnpth/newsroom/internal/service/engine"
)

// Watchdog periodically repairs stalled generation attempts: overdue
// articles with retries left get a fresh deadline and a re-issued
// trigger; exhausted ones become timeout. It never exits the process on
// its own errors.
type Watchdog struct {
	db          *gorm.DB
	logger      *zap.Logger
	trigger     WorkflowTrigger
	broadcaster *Broadcaster

	sweepInterval time.Duration
	retryWindow   time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewWatchdog(db *gorm.DB, cfg *config.QueueConfig, trigger WorkflowTrigger, broadcaster *Broadcaster, logger *zap.Logger) *Watchdog {
	interval, err := time.ParseDuration(cfg.SweepInterval)
	if err != nil || interval <= 0 {
		interval = 60 * time.Second
	}
	window, err := time.ParseDuration(cfg.RetryWindow)
	if err != nil || window <= 0 {
		window = 10 * time.Minute
	}
	return &Watchdog{
		db:            db,
		logger:        logger,
		trigger:       trigger,
		broadcaster:   broadcaster,
		sweepInterval: interval,
		retryWindow:   window,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop or context cancellation.
func (w *Watchdog) Start(ctx context.Context) {
	go func() {
		defer close(w.doneCh)
		ticker := time.NewTicker(w.sweepInterval)
		defer ticker.Stop()

		w.logger.Info("Queue watchdog started",
			zap.Duration("interval", w.sweepInterval),
			zap.Duration("retry_window", w.retryWindow))

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-ticker.C:
				if err := w.Sweep(ctx); err != nil {
					w.logger.Error("Watchdog sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

// Stop signals the loop and waits for it to drain.
func (w *Watchdog) Stop() {
	close(w.stopCh)
	<-w.doneCh
	w.logger.Info("Queue watchdog stopped")
}

type sweepAction struct {
	article  models.Article
	timedOut bool
}

// Sweep processes every overdue generating article once. Per-row
// decisions are isolated; all row updates commit as one batch.
func (w *Watchdog) Sweep(ctx context.Context) error {
	var overdue []models.Article
	if err := w.db.
		Where("status = ? AND timeout_at IS NOT NULL AND timeout_at < ?",
			models.StatusGenerating, time.Now()).
		Find(&overdue).Error; err != nil {
		return fmt.Errorf("failed to query overdue articles: %w", err)
	}
	if len(overdue) == 0 {
		return nil
	}

	actions := make([]sweepAction, 0, len(overdue))
	for _, article := range overdue {
		action, ok := w.planAction(article)
		if ok {
			actions = append(actions, action)
		}
	}

	err := w.db.Transaction(func(tx *gorm.DB) error {
		for i := range actions {
			a := &actions[i]
			var err error
			if a.timedOut {
				err = tx.Model(&models.Article{}).
					Where("id = ?", a.article.ID).
					Updates(map[string]any{
						"status":     models.StatusTimeout,
						"timeout_at": nil,
						"last_error": a.article.LastError,
					}).Error
			} else {
				err = tx.Model(&models.Article{}).
					Where("id = ?", a.article.ID).
					Updates(map[string]any{
						"retry_count": a.article.RetryCount,
						"timeout_at":  a.article.TimeoutAt,
						"last_error":  a.article.LastError,
					}).Error
			}
			if err != nil {
				return fmt.Errorf("failed to update article %d: %w", a.article.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, a := range actions {
		if a.timedOut {
			w.broadcaster.Broadcast("article:timeout", map[string]any{
				"article_id": a.article.ID,
				"status":     models.StatusTimeout,
			})
			w.logger.Warn("Article timed out",
				zap.Uint("article_id", a.article.ID),
				zap.Int("retries", a.article.RetryCount))
			continue
		}

		w.broadcaster.Broadcast("article:retry", map[string]any{
			"article_id":  a.article.ID,
			"retry_count": a.article.RetryCount,
		})
		w.reissue(ctx, a.article)
	}
	return nil
}

// planAction decides retry vs timeout for one article. A panic here
// must not take the sweep down with it.
func (w *Watchdog) planAction(article models.Article) (action sweepAction, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			w.logger.Error("Watchdog row processing panicked",
				zap.Uint("article_id", article.ID),
				zap.Any("panic", rec))
			ok = false
		}
	}()

	if article.RetryCount >= article.MaxRetries {
		article.LastError = fmt.Sprintf("generation timed out after %d retries", article.RetryCount)
		return sweepAction{article: article, timedOut: true}, true
	}

	article.RetryCount++
	deadline := time.Now().Add(w.retryWindow)
	article.TimeoutAt = &deadline
	article.LastError = fmt.Sprintf("generation timed out, retry %d/%d",
		article.RetryCount, article.MaxRetries)
	return sweepAction{article: article}, true
}

// reissue re-fires the generation trigger. The engine deduplicates
// in-flight work, so this is safe to repeat.
func (w *Watchdog) reissue(ctx context.Context, article models.Article) {
	err := w.trigger.TriggerGeneration(ctx, engine.GenerationRequest{
		ArticleID:   article.ID,
		TriggerKind: article.TriggerKind,
		Text:        article.Text,
		Category:    article.Category,
		Languages:   article.Languages,
		URLs:        article.SourceURLs,
		ImageKind:   article.ImageKind,
	})
	if err != nil {
		w.logger.Warn("Trigger re-issue failed, next sweep will retry",
			zap.Uint("article_id", article.ID), zap.Error(err))
	}
}
