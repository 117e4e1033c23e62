package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"feedflow/internal/summary"
)

type DigestHandler struct {
	svc *summary.Service
}

func NewDigestHandler(svc *summary.Service) *DigestHandler {
	return &DigestHandler{svc: svc}
}

func (h *DigestHandler) Daily(c *gin.Context) {
	digest, err := h.svc.DailyDigest(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, digest)
}

func (h *DigestHandler) HomeSummary(c *gin.Context) {
	text, err := h.svc.HomeSummary(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": text})
}
