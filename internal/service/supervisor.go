package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/clnpth/newsroom/internal/models"
	"github.com/clnpth/newsroom/internal/service/llm"
)

// evaluationTimeout bounds one scoring call.
const evaluationTimeout = 90 * time.Second

// Supervisor runs the automated quality evaluation and appends
// immutable decision records. On any failure nothing is persisted.
type Supervisor struct {
	db          *gorm.DB
	logger      *zap.Logger
	scorer      Scorer
	learning    *Learning
	broadcaster *Broadcaster
}

func NewSupervisor(db *gorm.DB, scorer Scorer, learning *Learning, broadcaster *Broadcaster, logger *zap.Logger) *Supervisor {
	return &Supervisor{
		db:          db,
		logger:      logger,
		scorer:      scorer,
		learning:    learning,
		broadcaster: broadcaster,
	}
}

// Evaluate scores one article against the current tonality profile and
// appends the decision. Requires canonical content.
func (s *Supervisor) Evaluate(ctx context.Context, articleID uint) (*models.SupervisorDecision, error) {
	var article models.Article
	if err := s.db.Preload("Content").First(&article, articleID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load article: %w", err)
	}
	if article.Content == nil || article.Content.Body == "" {
		return nil, ErrContentNotReady
	}

	profile, err := s.learning.ProfileContext()
	if err != nil {
		s.logger.Warn("Failed to load tonality profile, evaluating without it",
			zap.Uint("article_id", articleID), zap.Error(err))
		profile = ""
	}

	evalCtx, cancel := context.WithTimeout(ctx, evaluationTimeout)
	defer cancel()

	eval, err := s.scorer.EvaluateArticle(evalCtx, llm.EvaluationInput{
		Title:       article.Content.Title,
		Lead:        article.Content.Lead,
		Body:        article.Content.Body,
		Category:    article.Category,
		ToneProfile: profile,
	})
	if err != nil {
		if evalCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: evaluation of article %d", ErrTimeout, articleID)
		}
		return nil, fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}

	decision, err := s.append(articleID, eval)
	if err != nil {
		return nil, err
	}

	s.broadcaster.Broadcast("supervisor:evaluated", map[string]any{
		"article_id":     articleID,
		"recommendation": decision.Recommendation,
		"score":          decision.Score,
	})
	return decision, nil
}

func (s *Supervisor) append(articleID uint, eval *llm.Evaluation) (*models.SupervisorDecision, error) {
	decision := models.SupervisorDecision{
		ArticleID:      articleID,
		Recommendation: eval.Recommendation,
		Justification:  eval.Justification,
		Score:          eval.Score,
		StyleTags:      eval.StyleTags,
	}
	if err := s.db.Create(&decision).Error; err != nil {
		return nil, fmt.Errorf("failed to persist supervisor decision: %w", err)
	}
	return &decision, nil
}

// AppendFromCallback stores a decision the workflow engine computed
// itself and delivered inside the callback payload.
func (s *Supervisor) AppendFromCallback(articleID uint, recommendation, justification string, score int, tags []string) (*models.SupervisorDecision, error) {
	return s.append(articleID, &llm.Evaluation{
		Recommendation: recommendation,
		Justification:  justification,
		Score:          score,
		StyleTags:      tags,
	})
}

// Latest returns the most recent decision for the article.
func (s *Supervisor) Latest(articleID uint) (*models.SupervisorDecision, error) {
	var decision models.SupervisorDecision
	err := s.db.
		Where("article_id = ?", articleID).
		Order("created_at DESC").
		First(&decision).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load supervisor decision: %w", err)
	}
	return &decision, nil
}

// History returns the full decision trail, newest first.
func (s *Supervisor) History(articleID uint) ([]models.SupervisorDecision, error) {
	var decisions []models.SupervisorDecision
	if err := s.db.
		Where("article_id = ?", articleID).
		Order("created_at DESC").
		Find(&decisions).Error; err != nil {
		return nil, fmt.Errorf("failed to load decision history: %w", err)
	}
	return decisions, nil
}
