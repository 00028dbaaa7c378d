package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) handleImageBackends(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"backends": s.Images.BackendStatus(c.Request.Context()),
	})
}

type generateImageRequest struct {
	Prompt string `json:"prompt"`
	Kind   string `json:"kind"`
}

// handleGenerateImage starts the fallback chain in the background.
// Completion or failure arrives as an image:* event.
func (s *Server) handleGenerateImage(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	var req generateImageRequest
	_ = c.ShouldBindJSON(&req)

	article, err := s.Lifecycle.Get(id)
	if err != nil {
		serviceError(c, err)
		return
	}
	prompt := req.Prompt
	if prompt == "" && article.Content != nil {
		prompt = article.Content.ImagePrompt
	}
	if prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image prompt available"})
		return
	}
	kind := req.Kind
	if kind == "" {
		kind = article.ImageKind
	}

	s.Tasks.Submit("generate-image", func(ctx context.Context) {
		if err := s.Images.Generate(ctx, id, prompt, kind); err != nil {
			s.Logger.Warn("Image pipeline failed",
				zap.Uint("article_id", id), zap.Error(err))
		}
	})
	c.JSON(http.StatusAccepted, gin.H{"message": "image generation started"})
}
