package service

import (
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/clnpth/newsroom/internal/models"
)

// FeedItem is one article candidate pulled from an RSS source.
type FeedItem struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Summary   string `json:"summary"`
	Published string `json:"published"`
}

// RSS turns feed entries into batched article requests with the rss
// trigger kind. Duplicate entries are skipped by the batch semantics.
type RSS struct {
	logger    *zap.Logger
	parser    *gofeed.Parser
	lifecycle *Lifecycle
}

func NewRSS(lifecycle *Lifecycle, logger *zap.Logger) *RSS {
	return &RSS{
		logger:    logger,
		parser:    gofeed.NewParser(),
		lifecycle: lifecycle,
	}
}

// Fetch parses a feed and returns up to limit entries.
func (r *RSS) Fetch(ctx context.Context, feedURL string, limit int) ([]FeedItem, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse feed %s: %v", ErrExternalFailure, feedURL, err)
	}

	items := make([]FeedItem, 0, limit)
	for _, entry := range feed.Items {
		if len(items) >= limit {
			break
		}
		item := FeedItem{
			Title:   entry.Title,
			Link:    entry.Link,
			Summary: entry.Description,
		}
		if entry.PublishedParsed != nil {
			item.Published = entry.PublishedParsed.Format("2006-01-02 15:04")
		}
		items = append(items, item)
	}
	return items, nil
}

// Ingest creates articles from a feed's entries. Returns the created
// articles; entries matching an active fingerprint are skipped.
func (r *RSS) Ingest(ctx context.Context, feedURL, category string, limit int) ([]*models.Article, error) {
	items, err := r.Fetch(ctx, feedURL, limit)
	if err != nil {
		return nil, err
	}

	reqs := make([]CreateRequest, 0, len(items))
	for _, item := range items {
		text := item.Title
		if item.Summary != "" {
			text += "\n\n" + item.Summary
		}
		reqs = append(reqs, CreateRequest{
			Text:        text,
			TriggerKind: models.TriggerRSS,
			Category:    category,
			URLs:        []string{item.Link},
		})
	}

	created := r.lifecycle.CreateBatch(ctx, reqs)
	r.logger.Info("Ingested RSS feed",
		zap.String("feed", feedURL),
		zap.Int("entries", len(items)),
		zap.Int("created", len(created)))
	return created, nil
}
