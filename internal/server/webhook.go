package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clnpth/newsroom/internal/service"
)

// handleEngineCallback receives generation results from the workflow
// engine. Authenticated by the shared secret header; the check is
// skipped when no token is configured (non-production setups).
func (s *Server) handleEngineCallback(c *gin.Context) {
	if token := s.Config.Engine.WebhookToken; token != "" {
		provided := c.GetHeader("X-Webhook-Token")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			s.Logger.Warn("Webhook with invalid token rejected",
				zap.String("remote", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook token"})
			return
		}
	}

	var payload service.CallbackPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid callback payload"})
		return
	}

	article, err := s.Lifecycle.HandleCallback(c.Request.Context(), payload)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"article_id": article.ID,
		"status":     article.Status,
	})
}
