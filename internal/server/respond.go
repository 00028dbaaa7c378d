package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/clnpth/newsroom/internal/service"
)

// articleID parses the :id path parameter.
func articleID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid article id"})
		return 0, false
	}
	return uint(id), true
}

// serviceError maps the service error taxonomy onto HTTP responses.
func serviceError(c *gin.Context, err error) {
	var transition *service.InvalidTransitionError
	var duplicate *service.DuplicateContentError

	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &duplicate):
		c.JSON(http.StatusConflict, gin.H{
			"error":       "duplicate content",
			"existing_id": duplicate.ExistingID,
		})
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, gin.H{
			"error":  transition.Error(),
			"status": transition.Status,
		})
	case errors.Is(err, service.ErrContentNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": "content not ready"})
	case errors.Is(err, service.ErrExternalUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "external service unavailable"})
	case errors.Is(err, service.ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "external service timed out"})
	case errors.Is(err, service.ErrExternalFailure):
		c.JSON(http.StatusBadGateway, gin.H{"error": "external service failure"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
