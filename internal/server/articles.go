package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clnpth/newsroom/internal/service"
)

func (s *Server) handleCreateArticle(c *gin.Context) {
	var req service.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	article, err := s.Lifecycle.Create(c.Request.Context(), req)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, article)
}

func (s *Server) handleListArticles(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	articles, total, err := s.Lifecycle.List(service.ListOptions{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		s.Logger.Error("Failed to list articles", zap.Error(err))
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"articles": articles,
		"total":    total,
	})
}

func (s *Server) handleArticleStats(c *gin.Context) {
	stats, err := s.Lifecycle.Stats()
	if err != nil {
		s.Logger.Error("Failed to load article stats", zap.Error(err))
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleGetArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	article, err := s.Lifecycle.Get(id)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

func (s *Server) handleRelatedArticles(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))

	related, err := s.Lifecycle.Related(id, limit)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"related": related})
}

type decisionRequest struct {
	Feedback string `json:"feedback"`
}

func (s *Server) handleApproveArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	var req decisionRequest
	_ = c.ShouldBindJSON(&req)

	article, err := s.Lifecycle.Approve(c.Request.Context(), id, req.Feedback)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

func (s *Server) handleReviseArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	var req decisionRequest
	_ = c.ShouldBindJSON(&req)

	article, err := s.Lifecycle.Revise(c.Request.Context(), id, req.Feedback)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

func (s *Server) handleCancelArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	article, err := s.Lifecycle.Cancel(c.Request.Context(), id)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

func (s *Server) handleRetryArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	article, err := s.Lifecycle.Retry(c.Request.Context(), id)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

func (s *Server) handlePauseArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	article, err := s.Lifecycle.Pause(c.Request.Context(), id)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

func (s *Server) handleResumeArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	article, err := s.Lifecycle.Resume(c.Request.Context(), id)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}
