package models

import (
	"time"
)

// User is a source-scoped author identity. No global identity is implied;
// the same username on two sources is two different users.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarRef string `json:"avatar_ref"`
	Role      string `json:"role,omitempty"`
}

// Community is both a navigable category and the denormalized tag
// embedded in Thread.
type Community struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	ActiveToday int    `json:"active_today"`
	OnlineNow   int    `json:"online_now"`
	SourceID    string `json:"source_id,omitempty"`
}

// Thread is the normalized unit of content. Content is plain text with
// inline [IMAGE:url] and [LINK:url|title] markers, never raw HTML.
// IDs are unique only within a source and are often overloaded to carry
// an entity type, e.g. "answer_123".
type Thread struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Author       User      `json:"author"`
	Community    Community `json:"community"`
	PostedAt     time.Time `json:"posted_at"`
	TimeAgo      string    `json:"time_ago"`
	LikeCount    int       `json:"like_count"`
	CommentCount int       `json:"comment_count"`
	IsLiked      bool      `json:"is_liked"`
	Tags         []string  `json:"tags,omitempty"`
}

// Comment nests one level deep; anything deeper is flattened into Replies.
type Comment struct {
	ID        string    `json:"id"`
	Author    User      `json:"author"`
	Content   string    `json:"content"`
	PostedAt  time.Time `json:"posted_at"`
	TimeAgo   string    `json:"time_ago"`
	LikeCount int       `json:"like_count"`
	Replies   []Comment `json:"replies,omitempty"`
}

// ThreadDetail bundles a detail fetch result. TotalPages is zero when the
// source does not report it.
type ThreadDetail struct {
	Thread     Thread    `json:"thread"`
	Comments   []Comment `json:"comments"`
	TotalPages int       `json:"total_pages,omitempty"`
}

// SameListing reports whether two thread lists would render identically,
// comparing the ordered id and title sequence. Used to decide whether a
// background refresh should replace what the caller is already showing.
func SameListing(a, b []Thread) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Title != b[i].Title {
			return false
		}
	}
	return true
}
