package server

import (
	"io"

	"github.com/gin-gonic/gin"
)

// handleEvents streams lifecycle events as server-sent events. Each
// subscriber gets its own buffered channel; falling behind drops the
// subscription rather than blocking the broadcaster.
func (s *Server) handleEvents(c *gin.Context) {
	sub := s.Broadcaster.Subscribe()
	defer s.Broadcaster.Unsubscribe(sub)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case event, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent(event.Name, event.Data)
			return true
		}
	})
}
