package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/clnpth/newsroom/internal/config"
	"github.com/clnpth/newsroom/internal/models"
	"github.com/clnpth/newsroom/internal/service/engine"
	"github.com/clnpth/newsroom/pkg/util"
)

// embedInputLimit caps the text sent to the embedding model.
const embedInputLimit = 2000

// Lifecycle is the authoritative article state machine. Every status
// write in the system goes through it, the watchdog, or the guarded
// translating→review hand-off in Translations.
type Lifecycle struct {
	db          *gorm.DB
	logger      *zap.Logger
	cfg         *config.Config
	broadcaster *Broadcaster
	tasks       *TaskRunner
	engine      WorkflowTrigger
	embedder    Embedder

	translations *Translations
	images       *Images
	supervisor   *Supervisor
	learning     *Learning

	retryWindow time.Duration
}

func NewLifecycle(
	db *gorm.DB,
	cfg *config.Config,
	broadcaster *Broadcaster,
	tasks *TaskRunner,
	trigger WorkflowTrigger,
	embedder Embedder,
	translations *Translations,
	images *Images,
	supervisor *Supervisor,
	learning *Learning,
	logger *zap.Logger,
) *Lifecycle {
	window, err := time.ParseDuration(cfg.Queue.RetryWindow)
	if err != nil || window <= 0 {
		window = 10 * time.Minute
	}
	return &Lifecycle{
		db:           db,
		logger:       logger,
		cfg:          cfg,
		broadcaster:  broadcaster,
		tasks:        tasks,
		engine:       trigger,
		embedder:     embedder,
		translations: translations,
		images:       images,
		supervisor:   supervisor,
		learning:     learning,
		retryWindow:  window,
	}
}

// CreateRequest is one article creation submission.
type CreateRequest struct {
	Text        string          `json:"text" binding:"required"`
	TriggerKind string          `json:"trigger_kind"`
	Category    string          `json:"category"`
	Languages   map[string]bool `json:"languages"`
	URLs        []string        `json:"urls"`
	ImageKind   string          `json:"image_kind"`
}

// Create gates the request through duplicate detection, persists the
// article in generating, and detaches the engine trigger. Trigger
// delivery failure is non-fatal; the watchdog re-issues it.
func (l *Lifecycle) Create(ctx context.Context, req CreateRequest) (*models.Article, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("request text must not be empty")
	}
	if req.TriggerKind == "" {
		req.TriggerKind = models.TriggerPrompt
	}
	if len(req.Languages) == 0 {
		req.Languages = map[string]bool{"de": true, "en": true, "es": true, "fr": true}
	}

	fingerprint := Fingerprint(req.TriggerKind, req.Text, req.URLs)
	existing, err := findActiveDuplicate(l.db, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to check duplicates: %w", err)
	}
	if existing != nil {
		return nil, &DuplicateContentError{ExistingID: existing.ID, Fingerprint: fingerprint}
	}

	deadline := time.Now().Add(l.retryWindow)
	article := models.Article{
		Title:       util.TitleFromText(req.Text),
		TriggerKind: req.TriggerKind,
		Status:      models.StatusGenerating,
		Category:    req.Category,
		Languages:   models.LanguageSet(req.Languages),
		SourceURLs:  models.StringList(req.URLs),
		Text:        req.Text,
		ImageKind:   req.ImageKind,
		Fingerprint: fingerprint,
		MaxRetries:  l.cfg.Queue.MaxRetries,
		TimeoutAt:   &deadline,
	}
	if err := l.db.Create(&article).Error; err != nil {
		return nil, fmt.Errorf("failed to create article: %w", err)
	}

	l.broadcaster.Broadcast("article:created", map[string]any{
		"article_id": article.ID,
		"title":      article.Title,
		"status":     article.Status,
	})
	l.detachTrigger(&article)

	l.logger.Info("Created article",
		zap.Uint("article_id", article.ID),
		zap.String("trigger_kind", article.TriggerKind))
	return &article, nil
}

// CreateBatch submits many requests with best-effort semantics:
// duplicates are skipped silently instead of failing the batch.
func (l *Lifecycle) CreateBatch(ctx context.Context, reqs []CreateRequest) []*models.Article {
	var created []*models.Article
	for _, req := range reqs {
		article, err := l.Create(ctx, req)
		if err != nil {
			var dup *DuplicateContentError
			if errors.As(err, &dup) {
				l.logger.Debug("Skipped duplicate in batch",
					zap.Uint("existing_id", dup.ExistingID))
				continue
			}
			l.logger.Warn("Batch item failed", zap.Error(err))
			continue
		}
		created = append(created, article)
	}
	return created
}

// detachTrigger fires the generation request in the background.
func (l *Lifecycle) detachTrigger(article *models.Article) {
	id := article.ID
	req := engine.GenerationRequest{
		ArticleID:   article.ID,
		TriggerKind: article.TriggerKind,
		Text:        article.Text,
		Category:    article.Category,
		Languages:   article.Languages,
		URLs:        article.SourceURLs,
		ImageKind:   article.ImageKind,
	}
	l.tasks.Submit("trigger-generation", func(ctx context.Context) {
		if err := l.engine.TriggerGeneration(ctx, req); err != nil {
			l.logger.Warn("Generation trigger failed, watchdog will retry",
				zap.Uint("article_id", id), zap.Error(err))
		}
	})
}

// Get loads one article with its content, translations and decision
// history.
func (l *Lifecycle) Get(id uint) (*models.Article, error) {
	var article models.Article
	err := l.db.
		Preload("Content").
		Preload("Translations").
		Preload("Decisions", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		First(&article, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load article: %w", err)
	}
	return &article, nil
}

// ListOptions filters the article list.
type ListOptions struct {
	Status   string
	Category string
	Limit    int
	Offset   int
}

// List returns a filtered page of articles, newest first, plus the
// total matching count.
func (l *Lifecycle) List(opts ListOptions) ([]models.Article, int64, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	query := l.db.Model(&models.Article{})
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}
	if opts.Category != "" {
		query = query.Where("category = ?", opts.Category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count articles: %w", err)
	}

	var articles []models.Article
	if err := query.
		Order("created_at DESC").
		Limit(opts.Limit).
		Offset(opts.Offset).
		Find(&articles).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list articles: %w", err)
	}
	return articles, total, nil
}

// Stats returns per-status article counts.
func (l *Lifecycle) Stats() (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := l.db.Model(&models.Article{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}

	stats := map[string]int64{"total": 0}
	for _, row := range rows {
		stats[row.Status] = row.Count
		stats["total"] += row.Count
	}
	return stats, nil
}

// Approve publishes an article from review (or directly from
// generating) and feeds the decision into the learning engine.
func (l *Lifecycle) Approve(ctx context.Context, id uint, feedback string) (*models.Article, error) {
	article, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	if article.Status != models.StatusReview && article.Status != models.StatusGenerating {
		return nil, &InvalidTransitionError{ArticleID: id, Status: article.Status, Action: "approve"}
	}

	if err := l.setStatus(article, models.StatusPublished, nil); err != nil {
		return nil, err
	}

	if err := l.learning.Apply(article, models.DecisionApprove, feedback); err != nil {
		l.logger.Error("Learning update failed",
			zap.Uint("article_id", id), zap.Error(err))
	}
	l.ensureEmbedding(article)

	l.broadcaster.Broadcast("article:approved", map[string]any{
		"article_id": id,
		"status":     models.StatusPublished,
	})
	return article, nil
}

// Revise sends an article back to generation with the editor's
// feedback and re-issues the engine trigger.
func (l *Lifecycle) Revise(ctx context.Context, id uint, feedback string) (*models.Article, error) {
	article, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	if article.Status != models.StatusReview && article.Status != models.StatusGenerating {
		return nil, &InvalidTransitionError{ArticleID: id, Status: article.Status, Action: "revise"}
	}

	deadline := time.Now().Add(l.retryWindow)
	if err := l.setStatus(article, models.StatusGenerating, &deadline); err != nil {
		return nil, err
	}

	if err := l.learning.Apply(article, models.DecisionRevise, feedback); err != nil {
		l.logger.Error("Learning update failed",
			zap.Uint("article_id", id), zap.Error(err))
	}
	l.detachTrigger(article)

	l.broadcaster.Broadcast("article:revised", map[string]any{
		"article_id": id,
		"status":     models.StatusGenerating,
	})
	return article, nil
}

// Cancel soft-cancels an article. In-flight external work is not
// aborted; its late callback is accepted for audit only.
func (l *Lifecycle) Cancel(ctx context.Context, id uint) (*models.Article, error) {
	article, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	if article.Status != models.StatusGenerating && article.Status != models.StatusPaused {
		return nil, &InvalidTransitionError{ArticleID: id, Status: article.Status, Action: "cancel"}
	}

	if err := l.setStatus(article, models.StatusCancelled, nil); err != nil {
		return nil, err
	}

	l.broadcaster.Broadcast("article:cancelled", map[string]any{
		"article_id": id,
	})
	return article, nil
}

// Retry restarts a failed, timed-out or cancelled article with a fresh
// retry budget.
func (l *Lifecycle) Retry(ctx context.Context, id uint) (*models.Article, error) {
	article, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	switch article.Status {
	case models.StatusFailed, models.StatusTimeout, models.StatusCancelled:
	default:
		return nil, &InvalidTransitionError{ArticleID: id, Status: article.Status, Action: "retry"}
	}

	deadline := time.Now().Add(l.retryWindow)
	article.Status = models.StatusGenerating
	article.RetryCount = 0
	article.LastError = ""
	article.TimeoutAt = &deadline
	if err := l.db.Model(article).
		Select("status", "retry_count", "last_error", "timeout_at").
		Updates(article).Error; err != nil {
		return nil, fmt.Errorf("failed to retry article: %w", err)
	}

	l.detachTrigger(article)
	l.broadcaster.Broadcast("article:retry", map[string]any{
		"article_id": id,
		"status":     models.StatusGenerating,
	})
	return article, nil
}

// Pause suspends a generating article.
func (l *Lifecycle) Pause(ctx context.Context, id uint) (*models.Article, error) {
	article, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	if article.Status != models.StatusGenerating {
		return nil, &InvalidTransitionError{ArticleID: id, Status: article.Status, Action: "pause"}
	}
	if err := l.setStatus(article, models.StatusPaused, nil); err != nil {
		return nil, err
	}
	l.broadcaster.Broadcast("article:updated", map[string]any{
		"article_id": id,
		"status":     models.StatusPaused,
	})
	return article, nil
}

// Resume puts a paused article back into generation with a fresh
// deadline.
func (l *Lifecycle) Resume(ctx context.Context, id uint) (*models.Article, error) {
	article, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	if article.Status != models.StatusPaused {
		return nil, &InvalidTransitionError{ArticleID: id, Status: article.Status, Action: "resume"}
	}
	deadline := time.Now().Add(l.retryWindow)
	if err := l.setStatus(article, models.StatusGenerating, &deadline); err != nil {
		return nil, err
	}
	l.detachTrigger(article)
	l.broadcaster.Broadcast("article:updated", map[string]any{
		"article_id": id,
		"status":     models.StatusGenerating,
	})
	return article, nil
}

// setStatus writes the status and keeps the timeout-deadline invariant:
// the deadline is set iff the article is generating.
func (l *Lifecycle) setStatus(article *models.Article, status string, deadline *time.Time) error {
	if status != models.StatusGenerating {
		deadline = nil
	}
	article.Status = status
	article.TimeoutAt = deadline
	if err := l.db.Model(article).
		Select("status", "timeout_at").
		Updates(map[string]any{"status": status, "timeout_at": deadline}).Error; err != nil {
		return fmt.Errorf("failed to update article status: %w", err)
	}
	return nil
}

// ensureEmbedding requests an embedding of the canonical content in the
// background if one is absent.
func (l *Lifecycle) ensureEmbedding(article *models.Article) {
	if article.Content == nil || article.Content.Body == "" || len(article.Content.Embedding) > 0 {
		return
	}
	id := article.ID
	text := util.Truncate(article.Content.Title+"\n"+article.Content.Lead+"\n"+article.Content.Body, embedInputLimit)

	l.tasks.Submit("embed-content", func(ctx context.Context) {
		vector, err := l.embedder.EmbedText(ctx, text)
		if err != nil {
			l.logger.Warn("Embedding generation failed",
				zap.Uint("article_id", id), zap.Error(err))
			return
		}
		if err := l.db.Model(&models.Content{}).
			Where("article_id = ?", id).
			Update("embedding", models.Vector(vector)).Error; err != nil {
			l.logger.Error("Failed to persist embedding",
				zap.Uint("article_id", id), zap.Error(err))
		}
	})
}

// Related returns published articles ranked by cosine similarity of
// their content embeddings.
func (l *Lifecycle) Related(id uint, limit int) ([]models.Article, error) {
	if limit <= 0 || limit > 20 {
		limit = 5
	}

	article, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	if article.Content == nil || len(article.Content.Embedding) == 0 {
		return nil, ErrContentNotReady
	}

	var candidates []models.Article
	if err := l.db.
		Preload("Content").
		Where("status = ? AND id <> ?", models.StatusPublished, id).
		Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	type scored struct {
		article models.Article
		score   float64
	}
	var ranked []scored
	for _, candidate := range candidates {
		if candidate.Content == nil || len(candidate.Content.Embedding) == 0 {
			continue
		}
		score := cosineSimilarity(article.Content.Embedding, candidate.Content.Embedding)
		if score > 0 {
			ranked = append(ranked, scored{candidate, score})
		}
	}
	for i := 0; i < len(ranked); i++ {
		for j := i + 1; j < len(ranked); j++ {
			if ranked[j].score > ranked[i].score {
				ranked[i], ranked[j] = ranked[j], ranked[i]
			}
		}
	}

	var related []models.Article
	for i := 0; i < len(ranked) && i < limit; i++ {
		related = append(related, ranked[i].article)
	}
	return related, nil
}

func cosineSimilarity(a, b models.Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
