package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/clnpth/newsroom/internal/models"
	"github.com/clnpth/newsroom/internal/service/publisher"
)

// Publish pushes an approved article and its approved translations to
// the CMS. The CMS post ids are recorded so re-publishing updates in
// place instead of duplicating posts.
type Publish struct {
	db          *gorm.DB
	logger      *zap.Logger
	wordpress   *publisher.WordPress
	broadcaster *Broadcaster
	storagePath string
}

func NewPublish(db *gorm.DB, wordpress *publisher.WordPress, broadcaster *Broadcaster, storagePath string, logger *zap.Logger) *Publish {
	return &Publish{
		db:          db,
		logger:      logger,
		wordpress:   wordpress,
		broadcaster: broadcaster,
		storagePath: storagePath,
	}
}

// CheckConnection verifies the CMS credentials.
func (p *Publish) CheckConnection(ctx context.Context) error {
	if !p.wordpress.Configured() {
		return ErrExternalUnavailable
	}
	if err := p.wordpress.CheckConnection(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}
	return nil
}

// Result reports what one publish run produced.
type Result struct {
	ArticleID uint           `json:"article_id"`
	PostID    int            `json:"post_id"`
	Link      string         `json:"link"`
	Languages map[string]int `json:"languages"`
}

// Run publishes one article. Requires a published article with content.
// Per-language failures are logged and skipped; the canonical post
// failing fails the run.
func (p *Publish) Run(ctx context.Context, articleID uint) (*Result, error) {
	if !p.wordpress.Configured() {
		return nil, ErrExternalUnavailable
	}

	var article models.Article
	err := p.db.Preload("Content").Preload("Translations").First(&article, articleID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load article: %w", err)
	}
	if article.Status != models.StatusPublished {
		return nil, &InvalidTransitionError{ArticleID: articleID, Status: article.Status, Action: "publish"}
	}
	if article.Content == nil || article.Content.Body == "" {
		return nil, ErrContentNotReady
	}
	content := article.Content

	mediaID := p.uploadFeaturedImage(ctx, content)

	input := publisher.PostInput{
		Title:         content.Title,
		Content:       content.Body,
		Excerpt:       content.Lead,
		Status:        "publish",
		FeaturedMedia: mediaID,
		SEOTitle:      content.SEOTitle,
		SEODesc:       content.SEODescription,
	}

	var post *publisher.Post
	if content.CMSPostID != nil {
		post, err = p.wordpress.UpdatePost(ctx, *content.CMSPostID, input)
	} else {
		post, err = p.wordpress.PublishPost(ctx, input)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}

	if err := p.db.Model(&models.Content{}).
		Where("article_id = ?", articleID).
		Update("cms_post_id", post.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to record post id: %w", err)
	}

	result := &Result{
		ArticleID: articleID,
		PostID:    post.ID,
		Link:      post.Link,
		Languages: map[string]int{},
	}

	for i := range article.Translations {
		tr := &article.Translations[i]
		if tr.Status != models.TranslationApproved || tr.Body == "" {
			continue
		}
		postID, err := p.publishTranslation(ctx, tr, mediaID)
		if err != nil {
			p.logger.Warn("Translation publish failed",
				zap.Uint("article_id", articleID),
				zap.String("language", tr.Language),
				zap.Error(err))
			continue
		}
		result.Languages[tr.Language] = postID
	}

	p.broadcaster.Broadcast("publish:complete", map[string]any{
		"article_id": articleID,
		"post_id":    post.ID,
		"link":       post.Link,
	})
	p.logger.Info("Published article to CMS",
		zap.Uint("article_id", articleID),
		zap.Int("post_id", post.ID))
	return result, nil
}

func (p *Publish) publishTranslation(ctx context.Context, tr *models.Translation, mediaID int) (int, error) {
	input := publisher.PostInput{
		Title:         tr.Title,
		Content:       tr.Body,
		Excerpt:       tr.Lead,
		Status:        "publish",
		FeaturedMedia: mediaID,
		Language:      tr.Language,
	}

	var post *publisher.Post
	var err error
	if tr.CMSPostID != nil {
		post, err = p.wordpress.UpdatePost(ctx, *tr.CMSPostID, input)
	} else {
		post, err = p.wordpress.PublishPost(ctx, input)
	}
	if err != nil {
		return 0, err
	}

	if err := p.db.Model(tr).Update("cms_post_id", post.ID).Error; err != nil {
		return 0, err
	}
	return post.ID, nil
}

// uploadFeaturedImage uploads the locally stored article image, if any.
// Upload failure is non-fatal; the post just ships without a featured
// image.
func (p *Publish) uploadFeaturedImage(ctx context.Context, content *models.Content) int {
	if content.ImageURL == "" || !strings.HasPrefix(content.ImageURL, "/static/images/") {
		return 0
	}
	filename := filepath.Base(content.ImageURL)
	data, err := os.ReadFile(filepath.Join(p.storagePath, filename))
	if err != nil {
		p.logger.Warn("Failed to read stored image", zap.String("file", filename), zap.Error(err))
		return 0
	}

	altText := ""
	if alt, ok := content.ImageAltTexts["de"].(string); ok {
		altText = alt
	}
	mediaID, err := p.wordpress.UploadMedia(ctx, filename, data, altText)
	if err != nil {
		p.logger.Warn("Featured image upload failed", zap.Error(err))
		return 0
	}
	return mediaID
}
