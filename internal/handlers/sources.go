package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"feedflow/internal/models"
	"feedflow/internal/orchestrator"
	"feedflow/internal/sources"
	"feedflow/internal/utils"
)

// Downvoter is the optional per-source "show me less of this" hook.
type Downvoter interface {
	Downvote(threadID string) error
	UndoDownvote(threadID string) error
}

type SourceHandler struct {
	orch       *orchestrator.Orchestrator
	registry   *sources.Registry
	downvoters map[string]Downvoter
}

func NewSourceHandler(orch *orchestrator.Orchestrator, registry *sources.Registry, downvoters map[string]Downvoter) *SourceHandler {
	return &SourceHandler{orch: orch, registry: registry, downvoters: downvoters}
}

type sourceInfo struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	SupportsPost   bool   `json:"supports_post"`
	SupportsCreate bool   `json:"supports_create"`
	SupportsLogin  bool   `json:"supports_login"`
}

// List describes the registered sources and what each can do.
func (h *SourceHandler) List(c *gin.Context) {
	all := h.registry.All()
	out := make([]sourceInfo, 0, len(all))
	for _, src := range all {
		caps := sources.Capabilities[src.ID()]
		out = append(out, sourceInfo{
			ID:             src.ID(),
			Name:           src.Name(),
			SupportsPost:   caps.SupportsPost,
			SupportsCreate: caps.SupportsCreate,
			SupportsLogin:  caps.Login != sources.LoginNone,
		})
	}
	c.JSON(http.StatusOK, gin.H{"sources": out})
}

func (h *SourceHandler) Communities(c *gin.Context) {
	communities, err := h.orch.Communities(c.Request.Context(), c.Param("source"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"communities": communities})
}

func (h *SourceHandler) Threads(c *gin.Context) {
	page := utils.ParsePage(c.Query("page"))
	atTop := c.DefaultQuery("atTop", "1") == "1"
	result, err := h.orch.ListThreads(c.Request.Context(), c.Param("source"), c.Param("community"), page, atTop)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *SourceHandler) ThreadDetail(c *gin.Context) {
	page := utils.ParsePage(c.Query("page"))
	result, err := h.orch.ThreadDetail(c.Request.Context(), c.Param("source"), c.Param("id"), page, nil)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if src, ok := h.registry.Get(c.Param("source")); ok {
		result.Detail.Thread.Tags = appendCanonical(result.Detail.Thread, src)
	}
	c.JSON(http.StatusOK, result)
}

func appendCanonical(thread models.Thread, src sources.Source) []string {
	url := src.CanonicalURL(thread)
	for _, t := range thread.Tags {
		if t == url {
			return thread.Tags
		}
	}
	return append(thread.Tags, url)
}

type commentRequest struct {
	CommunityID string `json:"community_id"`
	Content     string `json:"content" binding:"required"`
}

func (h *SourceHandler) PostComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.orch.PostComment(c.Request.Context(), c.Param("source"), c.Param("id"), req.CommunityID, req.Content)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "posted"})
}

type createThreadRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
}

func (h *SourceHandler) CreateThread(c *gin.Context) {
	var req createThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.orch.CreateThread(c.Request.Context(), c.Param("source"), c.Param("community"), req.Title, req.Content)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "created"})
}

func (h *SourceHandler) Downvote(c *gin.Context) {
	d, ok := h.downvoters[c.Param("source")]
	if !ok {
		abortWithError(c, &sources.UnsupportedError{SourceID: c.Param("source"), Op: "downvote"})
		return
	}
	if err := d.Downvote(c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "downvoted"})
}

func (h *SourceHandler) UndoDownvote(c *gin.Context) {
	d, ok := h.downvoters[c.Param("source")]
	if !ok {
		abortWithError(c, &sources.UnsupportedError{SourceID: c.Param("source"), Op: "downvote"})
		return
	}
	if err := d.UndoDownvote(c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "restored"})
}
