package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/clnpth/newsroom/internal/models"
	"github.com/clnpth/newsroom/internal/service/imagegen"
)

// Images drives the ordered image-backend fallback chain. Image
// generation is a side pipeline: its failure never touches the
// article's own status.
type Images struct {
	db          *gorm.DB
	logger      *zap.Logger
	backends    []imagegen.Backend
	storagePath string
	broadcaster *Broadcaster
}

func NewImages(db *gorm.DB, backends []imagegen.Backend, storagePath string, broadcaster *Broadcaster, logger *zap.Logger) *Images {
	return &Images{
		db:          db,
		logger:      logger,
		backends:    backends,
		storagePath: storagePath,
		broadcaster: broadcaster,
	}
}

// Generate renders one image for the article and records it on the
// Content row. Backends are tried in order; each is attempted at most
// once per call.
func (im *Images) Generate(ctx context.Context, articleID uint, prompt, kind string) error {
	if prompt == "" {
		return fmt.Errorf("image prompt must not be empty")
	}
	if !imagegen.ValidKind(kind) {
		kind = imagegen.KindIllustration
	}

	im.broadcaster.Broadcast("image:generating", map[string]any{
		"article_id": articleID,
		"kind":       kind,
	})

	var lastErr error
	for _, backend := range im.backends {
		if !backend.Available(ctx) {
			im.logger.Debug("Image backend unavailable, skipping",
				zap.String("backend", backend.Name()),
				zap.Uint("article_id", articleID))
			continue
		}

		data, err := im.runBackend(ctx, backend, prompt, kind)
		if err != nil {
			lastErr = err
			im.logger.Warn("Image backend failed, trying next",
				zap.String("backend", backend.Name()),
				zap.Uint("article_id", articleID),
				zap.Error(err))
			continue
		}

		url, err := im.store(articleID, data)
		if err != nil {
			lastErr = err
			continue
		}
		if err := im.record(articleID, url); err != nil {
			return err
		}

		im.broadcaster.Broadcast("image:ready", map[string]any{
			"article_id": articleID,
			"image_url":  url,
			"backend":    backend.Name(),
		})
		im.logger.Info("Image generated",
			zap.Uint("article_id", articleID),
			zap.String("backend", backend.Name()))
		return nil
	}

	im.broadcaster.Broadcast("image:failed", map[string]any{
		"article_id": articleID,
	})
	if lastErr != nil {
		return fmt.Errorf("%w: all image backends failed: %v", ErrExternalFailure, lastErr)
	}
	return fmt.Errorf("%w: no image backend available", ErrExternalUnavailable)
}

// runBackend submits to one backend and polls it to completion within
// the backend's own poll budget.
func (im *Images) runBackend(ctx context.Context, backend imagegen.Backend, prompt, kind string) ([]byte, error) {
	job, err := backend.Submit(ctx, prompt, kind)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(backend.PollTimeout())
	ticker := time.NewTicker(backend.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: backend %s job %s", ErrTimeout, backend.Name(), job.ID)
		}

		state, err := backend.Poll(ctx, job)
		switch state {
		case imagegen.StateCompleted:
			return backend.Fetch(ctx, job)
		case imagegen.StateFailed:
			return nil, fmt.Errorf("backend %s job %s failed: %w", backend.Name(), job.ID, err)
		default:
			// Transient poll errors just mean trying again next tick.
			if err != nil {
				im.logger.Debug("Image poll error",
					zap.String("backend", backend.Name()), zap.Error(err))
			}
		}
	}
}

// store writes the image bytes to durable storage and returns the
// public URL path.
func (im *Images) store(articleID uint, data []byte) (string, error) {
	if err := os.MkdirAll(im.storagePath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create image storage: %w", err)
	}
	filename := fmt.Sprintf("article_%d_%s.png", articleID, uuid.NewString()[:8])
	path := filepath.Join(im.storagePath, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	return "/static/images/" + filename, nil
}

func (im *Images) record(articleID uint, url string) error {
	result := im.db.Model(&models.Content{}).
		Where("article_id = ?", articleID).
		Update("image_url", url)
	if result.Error != nil {
		return fmt.Errorf("failed to record image url: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrContentNotReady
	}
	return nil
}

// BackendStatus reports each backend's availability for the dashboard.
func (im *Images) BackendStatus(ctx context.Context) map[string]bool {
	status := make(map[string]bool, len(im.backends))
	for _, backend := range im.backends {
		status[backend.Name()] = backend.Available(ctx)
	}
	return status
}
