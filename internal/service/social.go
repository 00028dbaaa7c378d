package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/clnpth/newsroom/internal/models"
)

// Social generates and stores per-platform teasers for an article.
type Social struct {
	db       *gorm.DB
	logger   *zap.Logger
	snippets SnippetGenerator
}

func NewSocial(db *gorm.DB, snippets SnippetGenerator, logger *zap.Logger) *Social {
	return &Social{db: db, logger: logger, snippets: snippets}
}

// Generate replaces the article's stored snippets with fresh ones.
func (s *Social) Generate(ctx context.Context, articleID uint) ([]models.SocialSnippet, error) {
	var content models.Content
	if err := s.db.Where("article_id = ?", articleID).First(&content).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrContentNotReady
		}
		return nil, fmt.Errorf("failed to load content: %w", err)
	}
	if content.Body == "" {
		return nil, ErrContentNotReady
	}

	generated, err := s.snippets.GenerateSnippets(ctx, content.Title, content.Lead, content.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}

	var rows []models.SocialSnippet
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("article_id = ?", articleID).
			Delete(&models.SocialSnippet{}).Error; err != nil {
			return fmt.Errorf("failed to clear old snippets: %w", err)
		}
		for _, snippet := range generated {
			row := models.SocialSnippet{
				ArticleID: articleID,
				Platform:  snippet.Platform,
				Text:      snippet.Text,
				Hashtags:  models.StringList(snippet.Hashtags),
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to store snippet: %w", err)
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Generated social snippets",
		zap.Uint("article_id", articleID),
		zap.Int("platforms", len(rows)))
	return rows, nil
}

// List returns the stored snippets for an article.
func (s *Social) List(articleID uint) ([]models.SocialSnippet, error) {
	var rows []models.SocialSnippet
	if err := s.db.Where("article_id = ?", articleID).
		Order("platform ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load snippets: %w", err)
	}
	return rows, nil
}
