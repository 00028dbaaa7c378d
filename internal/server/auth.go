package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Code string `json:"code" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	if !s.Auth.Enabled() {
		c.JSON(http.StatusOK, gin.H{"token": "", "auth": "disabled"})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code required"})
		return
	}

	token, err := s.Auth.Login(req.Code)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid code"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) handleLogout(c *gin.Context) {
	s.Auth.Logout(bearerToken(c))
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// sessionMiddleware guards the editor API. With auth disabled it is a
// pass-through.
func (s *Server) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.Auth.ValidSession(bearerToken(c)) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	return strings.TrimPrefix(header, "Bearer ")
}
