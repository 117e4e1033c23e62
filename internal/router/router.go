package router

import (
	"github.com/gin-gonic/gin"

	"feedflow/internal/handlers"
	"feedflow/internal/middleware"
)

// Handlers bundles the constructed handler set for registration.
type Handlers struct {
	Sources     *handlers.SourceHandler
	Credentials *handlers.CredentialHandler
	Feeds       *handlers.FeedHandler
	Bookmarks   *handlers.BookmarkHandler
	Digest      *handlers.DigestHandler
	Prefetch    *handlers.PrefetchHandler
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	r.Use(middleware.RequestLog())

	api := r.Group("/api")
	{
		api.GET("/sources", h.Sources.List)
		api.GET("/sources/:source/communities", h.Sources.Communities)
		api.GET("/sources/:source/communities/:community/threads", h.Sources.Threads)
		api.POST("/sources/:source/communities/:community/threads", h.Sources.CreateThread)
		api.GET("/sources/:source/threads/:id", h.Sources.ThreadDetail)
		api.POST("/sources/:source/threads/:id/comments", h.Sources.PostComment)
		api.POST("/sources/:source/downvote/:id", h.Sources.Downvote)
		api.DELETE("/sources/:source/downvote/:id", h.Sources.UndoDownvote)

		api.GET("/sources/:source/credentials", h.Credentials.Status)
		api.POST("/sources/:source/credentials", h.Credentials.Save)
		api.DELETE("/sources/:source/credentials", h.Credentials.Clear)

		api.GET("/feeds", h.Feeds.List)
		api.PUT("/feeds", h.Feeds.Replace)
		api.POST("/feeds/opml", h.Feeds.ImportOPML)

		api.GET("/bookmarks", h.Bookmarks.List)
		api.POST("/bookmarks", h.Bookmarks.Toggle)
		api.GET("/bookmarks/urls", h.Bookmarks.ListURLs)
		api.POST("/bookmarks/urls", h.Bookmarks.SaveURL)
		api.DELETE("/bookmarks/urls", h.Bookmarks.DeleteURL)

		api.GET("/digest", h.Digest.Daily)
		api.GET("/summary/home", h.Digest.HomeSummary)

		api.POST("/prefetch/seen", h.Prefetch.Seen)
		api.POST("/prefetch/dismiss", h.Prefetch.Dismiss)
	}
}
