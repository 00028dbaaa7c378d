package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) handleListTranslations(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	rows, err := s.Translations.List(id)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"translations": rows})
}

type runTranslationsRequest struct {
	Languages []string `json:"languages"`
}

// handleRunTranslations kicks the pipeline off in the background and
// returns immediately; progress arrives over the event stream.
func (s *Server) handleRunTranslations(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	var req runTranslationsRequest
	_ = c.ShouldBindJSON(&req)

	// Validate the precondition synchronously so the caller gets a
	// proper error instead of a silent background failure.
	if _, err := s.Lifecycle.Get(id); err != nil {
		serviceError(c, err)
		return
	}

	s.Tasks.Submit("translate-article", func(ctx context.Context) {
		if err := s.Translations.Run(ctx, id, req.Languages); err != nil {
			s.Logger.Error("Translation pipeline failed",
				zap.Uint("article_id", id), zap.Error(err))
		}
	})
	c.JSON(http.StatusAccepted, gin.H{"message": "translation started"})
}

func (s *Server) handleGetTranslation(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	row, err := s.Translations.Get(id, c.Param("lang"))
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

type editTranslationRequest struct {
	Title string `json:"title"`
	Lead  string `json:"lead"`
	Body  string `json:"body"`
}

func (s *Server) handleEditTranslation(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	var req editTranslationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	row, err := s.Translations.Edit(id, c.Param("lang"), req.Title, req.Lead, req.Body)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (s *Server) handleApproveTranslation(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	row, err := s.Translations.Approve(id, c.Param("lang"))
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}
