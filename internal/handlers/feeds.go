package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"feedflow/internal/sources/rssfeed"
)

// FeedHandler manages the RSS subscription list.
type FeedHandler struct {
	rss *rssfeed.Adapter
}

func NewFeedHandler(rss *rssfeed.Adapter) *FeedHandler {
	return &FeedHandler{rss: rss}
}

func (h *FeedHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"feeds": h.rss.Feeds()})
}

type feedListRequest struct {
	Feeds []rssfeed.Feed `json:"feeds" binding:"required"`
}

// Replace swaps the whole subscription list at once.
func (h *FeedHandler) Replace(c *gin.Context) {
	var req feedListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, f := range req.Feeds {
		if f.ID == "" || f.URL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "every feed needs an id and a url"})
			return
		}
	}
	if err := h.rss.SaveFeeds(req.Feeds); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"feeds": req.Feeds})
}

// ImportOPML accepts a raw OPML document body and merges its feeds into
// the subscription list.
func (h *FeedHandler) ImportOPML(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	added, err := h.rss.ImportOPML(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added, "feeds": h.rss.Feeds()})
}
