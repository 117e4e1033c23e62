// Package discourse adapts a Discourse forum's JSON API.
package discourse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"feedflow/internal/htmlclean"
	"feedflow/internal/httpx"
	"feedflow/internal/models"
	"feedflow/internal/secrets"
	"feedflow/internal/sources"
)

const (
	sourceID     = "discourse"
	avatarSize   = "64"
	postsPerPage = 20
)

type Adapter struct {
	base   string
	host   string
	client *httpx.Client
	creds  *secrets.CredentialStore
}

var _ sources.Source = (*Adapter)(nil)

func New(baseURL string, client *httpx.Client, creds *secrets.CredentialStore) *Adapter {
	host := ""
	if u, err := url.Parse(baseURL); err == nil {
		host = u.Host
	}
	return &Adapter{base: strings.TrimSuffix(baseURL, "/"), host: host, client: client, creds: creds}
}

func (a *Adapter) ID() string   { return sourceID }
func (a *Adapter) Name() string { return "Discourse" }

func (a *Adapter) headers() map[string]string {
	return map[string]string{
		"Accept": "application/json",
		"Cookie": a.creds.CookieHeader(sourceID, a.host),
	}
}

// --- upstream DTOs ---

type categoryDTO struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	DescriptionText string `json:"description_text"`
	TopicsDay       int    `json:"topics_day"`
	TopicsWeek      int    `json:"topics_week"`
}

type categoriesResponse struct {
	CategoryList struct {
		Categories []categoryDTO `json:"categories"`
	} `json:"category_list"`
}

type posterDTO struct {
	UserID      int    `json:"user_id"`
	Description string `json:"description"`
}

type userDTO struct {
	ID               int    `json:"id"`
	Username         string `json:"username"`
	AvatarTemplate   string `json:"avatar_template"`
	Admin            bool   `json:"admin"`
	Moderator        bool   `json:"moderator"`
	PrimaryGroupName string `json:"primary_group_name"`
}

type topicDTO struct {
	ID         int             `json:"id"`
	Title      string          `json:"title"`
	PostsCount int             `json:"posts_count"`
	LikeCount  int             `json:"like_count"`
	CreatedAt  string          `json:"created_at"`
	Tags       json.RawMessage `json:"tags"`
	Posters    []posterDTO     `json:"posters"`
}

type topicListResponse struct {
	Users     []userDTO `json:"users"`
	TopicList struct {
		Topics []topicDTO `json:"topics"`
	} `json:"topic_list"`
}

type postDTO struct {
	ID               int    `json:"id"`
	PostNumber       int    `json:"post_number"`
	Username         string `json:"username"`
	AvatarTemplate   string `json:"avatar_template"`
	Cooked           string `json:"cooked"`
	CreatedAt        string `json:"created_at"`
	Score            float64 `json:"score"`
	Admin            bool   `json:"admin"`
	Moderator        bool   `json:"moderator"`
	PrimaryGroupName string `json:"primary_group_name"`
}

type topicDetailResponse struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	PostsCount int    `json:"posts_count"`
	LikeCount  int    `json:"like_count"`
	PostStream struct {
		Posts []postDTO `json:"posts"`
	} `json:"post_stream"`
}

// decodeTags accepts the two shapes Discourse emits: a plain string array
// or an object array with name fields.
func decodeTags(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var plain []string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}
	var objs []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &objs); err == nil {
		out := make([]string, 0, len(objs))
		for _, o := range objs {
			if o.Name != "" {
				out = append(out, o.Name)
			}
		}
		return out
	}
	return nil
}

func (a *Adapter) avatarURL(template string) string {
	u := strings.ReplaceAll(template, "{size}", avatarSize)
	if strings.HasPrefix(u, "/") {
		return a.base + u
	}
	return u
}

func roleOf(admin, moderator bool, group string) string {
	switch {
	case admin:
		return "admin"
	case moderator:
		return "moderator"
	default:
		return group
	}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (a *Adapter) getJSON(ctx context.Context, path string, out any) error {
	body, status, err := a.client.GetBytes(ctx, a.base+path, a.headers())
	if err != nil {
		return sources.Transport("GET "+path, err)
	}
	if status == 401 || status == 403 {
		return &sources.AuthError{SourceID: sourceID, Reason: fmt.Sprintf("status %d", status)}
	}
	if status != 200 {
		return sources.Transport("GET "+path, fmt.Errorf("status %d", status))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &sources.ParseError{SourceID: sourceID, Reason: "decode " + path, Err: err}
	}
	return nil
}

func (a *Adapter) ListCategories(ctx context.Context) ([]models.Community, error) {
	var resp categoriesResponse
	if err := a.getJSON(ctx, "/categories.json", &resp); err != nil {
		if sources.IsParse(err) {
			log.WithField("source", sourceID).Warnf("categories undecodable: %v", err)
			return nil, nil
		}
		return nil, err
	}
	out := make([]models.Community, 0, len(resp.CategoryList.Categories))
	for _, c := range resp.CategoryList.Categories {
		out = append(out, models.Community{
			ID:          fmt.Sprintf("%d", c.ID),
			Name:        c.Name,
			Description: c.DescriptionText,
			Category:    "Discourse",
			ActiveToday: c.TopicsDay,
			OnlineNow:   c.TopicsWeek,
			SourceID:    sourceID,
		})
	}
	return out, nil
}

func (a *Adapter) ListThreads(ctx context.Context, categoryID string, contextCommunities []models.Community, page int) ([]models.Thread, error) {
	if page < 1 {
		page = 1
	}
	// Upstream pages are zero-based.
	path := fmt.Sprintf("/c/%s.json?page=%d", categoryID, page-1)
	var resp topicListResponse
	if err := a.getJSON(ctx, path, &resp); err != nil {
		if sources.IsParse(err) {
			log.WithField("source", sourceID).Warnf("topic list undecodable: %v", err)
			return nil, nil
		}
		return nil, err
	}

	usersByID := make(map[int]userDTO, len(resp.Users))
	for _, u := range resp.Users {
		usersByID[u.ID] = u
	}
	community := a.resolveCommunity(categoryID, contextCommunities)

	out := make([]models.Thread, 0, len(resp.TopicList.Topics))
	for _, t := range resp.TopicList.Topics {
		op := a.originalPoster(t.Posters, usersByID)
		posted := parseTime(t.CreatedAt)
		out = append(out, models.Thread{
			ID:           fmt.Sprintf("%d", t.ID),
			Title:        t.Title,
			Author:       op,
			Community:    community,
			PostedAt:     posted,
			TimeAgo:      models.TimeAgo(posted, time.Now()),
			LikeCount:    t.LikeCount,
			CommentCount: max(t.PostsCount-1, 0),
			Tags:         decodeTags(t.Tags),
		})
	}
	return out, nil
}

// originalPoster prefers the poster flagged as the topic opener, falling
// back to the first listed.
func (a *Adapter) originalPoster(posters []posterDTO, users map[int]userDTO) models.User {
	var chosen *posterDTO
	for i := range posters {
		if strings.Contains(posters[i].Description, "Original Poster") {
			chosen = &posters[i]
			break
		}
	}
	if chosen == nil && len(posters) > 0 {
		chosen = &posters[0]
	}
	if chosen == nil {
		return models.User{}
	}
	u, ok := users[chosen.UserID]
	if !ok {
		return models.User{ID: fmt.Sprintf("%d", chosen.UserID)}
	}
	return models.User{
		ID:        fmt.Sprintf("%d", u.ID),
		Username:  u.Username,
		AvatarRef: a.avatarURL(u.AvatarTemplate),
		Role:      roleOf(u.Admin, u.Moderator, u.PrimaryGroupName),
	}
}

func (a *Adapter) resolveCommunity(categoryID string, contextCommunities []models.Community) models.Community {
	for _, c := range contextCommunities {
		if c.ID == categoryID {
			return c
		}
	}
	return models.Community{ID: categoryID, Category: "Discourse", SourceID: sourceID}
}

func (a *Adapter) FetchThreadDetail(ctx context.Context, threadID string, page int) (models.ThreadDetail, error) {
	if page < 1 {
		page = 1
	}
	path := fmt.Sprintf("/t/%s.json?page=%d", threadID, page)
	var resp topicDetailResponse
	if err := a.getJSON(ctx, path, &resp); err != nil {
		if sources.IsParse(err) {
			log.WithField("source", sourceID).Warnf("topic detail undecodable: %v", err)
			return models.ThreadDetail{}, nil
		}
		return models.ThreadDetail{}, err
	}

	detail := models.ThreadDetail{
		Thread: models.Thread{
			ID:           threadID,
			Title:        resp.Title,
			LikeCount:    resp.LikeCount,
			CommentCount: max(resp.PostsCount-1, 0),
		},
		TotalPages: (resp.PostsCount + postsPerPage - 1) / postsPerPage,
	}
	for _, p := range resp.PostStream.Posts {
		posted := parseTime(p.CreatedAt)
		author := models.User{
			ID:        fmt.Sprintf("%d", p.ID),
			Username:  p.Username,
			AvatarRef: a.avatarURL(p.AvatarTemplate),
			Role:      roleOf(p.Admin, p.Moderator, p.PrimaryGroupName),
		}
		content := htmlclean.Discourse(p.Cooked)
		if p.PostNumber == 1 {
			detail.Thread.Author = author
			detail.Thread.Content = content
			detail.Thread.PostedAt = posted
			detail.Thread.TimeAgo = models.TimeAgo(posted, time.Now())
			continue
		}
		detail.Comments = append(detail.Comments, models.Comment{
			ID:        fmt.Sprintf("%d", p.ID),
			Author:    author,
			Content:   content,
			PostedAt:  posted,
			TimeAgo:   models.TimeAgo(posted, time.Now()),
			LikeCount: int(p.Score),
		})
	}
	return detail, nil
}

// csrfToken fetches the session CSRF token required on writes.
func (a *Adapter) csrfToken(ctx context.Context) (string, error) {
	var resp struct {
		CSRF string `json:"csrf"`
	}
	if err := a.getJSON(ctx, "/session/csrf.json", &resp); err != nil {
		return "", err
	}
	if resp.CSRF == "" {
		return "", &sources.AuthError{SourceID: sourceID, Reason: "no csrf token"}
	}
	return resp.CSRF, nil
}

func (a *Adapter) post(ctx context.Context, form url.Values) error {
	token, err := a.csrfToken(ctx)
	if err != nil {
		return err
	}
	headers := a.headers()
	headers["X-CSRF-Token"] = token
	headers["X-Requested-With"] = "XMLHttpRequest"
	body, status, err := a.client.PostForm(ctx, a.base+"/posts.json", form.Encode(), headers)
	if err != nil {
		return sources.Transport("POST /posts.json", err)
	}
	if status == 401 || status == 403 {
		return &sources.AuthError{SourceID: sourceID, Reason: fmt.Sprintf("status %d", status)}
	}
	if status != 200 {
		return sources.Transport("POST /posts.json", fmt.Errorf("status %d: %s", status, truncate(string(body), 200)))
	}
	return nil
}

func (a *Adapter) PostComment(ctx context.Context, threadID, categoryID, content string) error {
	form := url.Values{}
	form.Set("topic_id", threadID)
	form.Set("raw", content)
	return a.post(ctx, form)
}

func (a *Adapter) CreateThread(ctx context.Context, categoryID, title, content string) error {
	form := url.Values{}
	form.Set("category", categoryID)
	form.Set("title", title)
	form.Set("raw", content)
	return a.post(ctx, form)
}

func (a *Adapter) CanonicalURL(thread models.Thread) string {
	return a.base + "/t/" + thread.ID
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
