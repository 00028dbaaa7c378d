package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) handlePublishStatus(c *gin.Context) {
	if err := s.Publish.CheckConnection(c.Request.Context()); err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "connected"})
}

func (s *Server) handlePublishArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	result, err := s.Publish.Run(c.Request.Context(), id)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleGenerateSnippets(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	snippets, err := s.Social.Generate(c.Request.Context(), id)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snippets": snippets})
}

func (s *Server) handleListSnippets(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	snippets, err := s.Social.List(id)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snippets": snippets})
}

func (s *Server) handlePreviewFeed(c *gin.Context) {
	feedURL := c.Query("url")
	if feedURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	items, err := s.RSS.Fetch(c.Request.Context(), feedURL, limit)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type ingestFeedRequest struct {
	URL      string `json:"url" binding:"required"`
	Category string `json:"category"`
	Limit    int    `json:"limit"`
}

func (s *Server) handleIngestFeed(c *gin.Context) {
	var req ingestFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url required"})
		return
	}

	created, err := s.RSS.Ingest(c.Request.Context(), req.URL, req.Category, req.Limit)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"created": created,
		"count":   len(created),
	})
}
