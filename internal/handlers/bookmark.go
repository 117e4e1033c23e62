package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"feedflow/internal/models"
	"feedflow/internal/store"
)

type BookmarkHandler struct {
	snap *store.Store
}

func NewBookmarkHandler(snap *store.Store) *BookmarkHandler {
	return &BookmarkHandler{snap: snap}
}

func (h *BookmarkHandler) List(c *gin.Context) {
	bookmarks, err := h.snap.Bookmarks()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookmarks": bookmarks})
}

type toggleRequest struct {
	SourceID string        `json:"source_id" binding:"required"`
	Thread   models.Thread `json:"thread" binding:"required"`
}

// Toggle flips the bookmark state for a thread, storing the full snapshot
// so the entry outlives the content cache.
func (h *BookmarkHandler) Toggle(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Thread.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "thread.id is required"})
		return
	}
	bookmarked, err := h.snap.ToggleBookmark(req.SourceID, req.Thread)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookmarked": bookmarked})
}

func (h *BookmarkHandler) ListURLs(c *gin.Context) {
	urls, err := h.snap.URLBookmarks()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"urls": urls})
}

type urlBookmarkRequest struct {
	URL   string `json:"url" binding:"required"`
	Title string `json:"title"`
}

func (h *BookmarkHandler) SaveURL(c *gin.Context) {
	var req urlBookmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.snap.SaveURLBookmark(req.URL, req.Title); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "saved"})
}

func (h *BookmarkHandler) DeleteURL(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	if err := h.snap.DeleteURLBookmark(url); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
