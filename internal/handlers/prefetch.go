package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"feedflow/internal/prefetch"
)

type PrefetchHandler struct {
	queue *prefetch.Queue
}

func NewPrefetchHandler(queue *prefetch.Queue) *PrefetchHandler {
	return &PrefetchHandler{queue: queue}
}

type visibilityRequest struct {
	SourceID string `json:"source_id"`
	ThreadID string `json:"thread_id" binding:"required"`
}

// Seen reports a thread entering the viewport. The queue debounces, so
// flinging past a screenful of threads costs nothing.
func (h *PrefetchHandler) Seen(c *gin.Context) {
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.SourceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source_id is required"})
		return
	}
	h.queue.Seen(req.SourceID, req.ThreadID)
	c.Status(http.StatusAccepted)
}

// Dismiss reports a thread leaving the viewport before it settled.
func (h *PrefetchHandler) Dismiss(c *gin.Context) {
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.queue.Dismiss(req.ThreadID)
	c.Status(http.StatusAccepted)
}
