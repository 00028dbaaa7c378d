package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleEvaluateArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	decision, err := s.Supervisor.Evaluate(c.Request.Context(), id)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

func (s *Server) handleDecisionHistory(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	decisions, err := s.Supervisor.History(id)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": decisions})
}

func (s *Server) handleGetProfile(c *gin.Context) {
	traits, err := s.Learning.Traits()
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"traits": traits})
}

type traitRequest struct {
	Trait  string  `json:"trait" binding:"required"`
	Value  string  `json:"value"`
	Weight float64 `json:"weight"`
}

func (s *Server) handleUpsertTrait(c *gin.Context) {
	var req traitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trait required"})
		return
	}
	if req.Weight == 0 {
		req.Weight = 0.5
	}
	trait, err := s.Learning.UpsertTrait(req.Trait, req.Value, req.Weight)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, trait)
}

func (s *Server) handleDeleteTrait(c *gin.Context) {
	if err := s.Learning.DeleteTrait(c.Param("trait")); err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "trait deleted"})
}

func (s *Server) handleTopicRankings(c *gin.Context) {
	rankings, err := s.Learning.TopicRankings()
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topics": rankings})
}

func (s *Server) handleDeviations(c *gin.Context) {
	stats, err := s.Learning.Deviations()
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleRecentDecisions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	decisions, err := s.Learning.RecentDecisions(limit)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": decisions})
}
