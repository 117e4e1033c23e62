// Package sources defines the uniform contract every backend adapter
// implements and the error taxonomy the orchestrator sees.
package sources

import (
	"context"

	"feedflow/internal/models"
)

// Source is the uniform fetch/post contract. Pages are 1-based; asking
// for a page beyond the end returns an empty list, not an error. List and
// detail reads are idempotent. Adapters own their in-memory auth state
// and are not safe for concurrent mutation of that state; concurrent
// reads of different pages are fine.
type Source interface {
	ID() string
	Name() string

	ListCategories(ctx context.Context) ([]models.Community, error)

	// ListThreads lists one page of a category. contextCommunities lets
	// feed-style sources resolve community metadata the item payload
	// only references.
	ListThreads(ctx context.Context, categoryID string, contextCommunities []models.Community, page int) ([]models.Thread, error)

	// FetchThreadDetail returns the thread body, one page of comments and
	// the total page count when the source reports one (zero otherwise).
	FetchThreadDetail(ctx context.Context, threadID string, page int) (models.ThreadDetail, error)

	PostComment(ctx context.Context, threadID, categoryID, content string) error
	CreateThread(ctx context.Context, categoryID, title, content string) error

	// CanonicalURL resolves the thread's public web address.
	CanonicalURL(thread models.Thread) string
}
