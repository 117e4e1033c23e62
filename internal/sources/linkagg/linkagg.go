// Package linkagg adapts a link-aggregator item-tree API: flat id lists
// hydrated item by item with bounded concurrency.
package linkagg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"feedflow/internal/htmlclean"
	"feedflow/internal/httpx"
	"feedflow/internal/models"
	"feedflow/internal/sources"
)

const (
	sourceID = "linkagg"
	pageSize = 20
	// fanOutLimit bounds concurrent item hydrations.
	fanOutLimit = 8
)

var categories = []struct {
	ID   string
	Name string
}{
	{"topstories", "Top"},
	{"newstories", "New"},
	{"beststories", "Best"},
	{"showstories", "Show"},
	{"askstories", "Ask"},
	{"jobstories", "Jobs"},
}

type Adapter struct {
	base   string
	webURL string
	client *httpx.Client
}

var _ sources.Source = (*Adapter)(nil)

func New(baseURL string, client *httpx.Client) *Adapter {
	return &Adapter{
		base:   strings.TrimSuffix(baseURL, "/"),
		webURL: "https://news.ycombinator.com",
		client: client,
	}
}

func (a *Adapter) ID() string   { return sourceID }
func (a *Adapter) Name() string { return "Hacker News" }

type itemDTO struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Text        string `json:"text"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	Kids        []int  `json:"kids"`
	Deleted     bool   `json:"deleted"`
	Dead        bool   `json:"dead"`
}

func (a *Adapter) getJSON(ctx context.Context, path string, out any) error {
	body, status, err := a.client.GetBytes(ctx, a.base+path, nil)
	if err != nil {
		return sources.Transport("GET "+path, err)
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
	out := make([]models.Community, 0, len(categories))
	for _, c := range categories {
		out = append(out, models.Community{
			ID:       c.ID,
			Name:     c.Name,
			Category: "HN",
			SourceID: sourceID,
		})
	}
	return out, nil
}

// fetchItems hydrates ids in parallel, keeping list order. A failed item
// leaves a hole that is squeezed out, never a failed fan-out.
func (a *Adapter) fetchItems(ctx context.Context, ids []int) []itemDTO {
	slots := make([]*itemDTO, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for i, id := range ids {
		g.Go(func() error {
			var item itemDTO
			if err := a.getJSON(gctx, fmt.Sprintf("/item/%d.json", id), &item); err != nil {
				if sources.IsCancellation(err) {
					return err
				}
				log.WithField("source", sourceID).Debugf("item %d skipped: %v", id, err)
				return nil
			}
			if item.ID != 0 && !item.Deleted && !item.Dead {
				slots[i] = &item
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil
	}
	out := make([]itemDTO, 0, len(slots))
	for _, s := range slots {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

func (a *Adapter) ListThreads(ctx context.Context, categoryID string, contextCommunities []models.Community, page int) ([]models.Thread, error) {
	// The id-list endpoints have no pagination worth the name; everything
	// past the first screen is empty.
	if page > 1 {
		return nil, nil
	}
	var ids []int
	if err := a.getJSON(ctx, "/"+categoryID+".json", &ids); err != nil {
		if sources.IsParse(err) {
			log.WithField("source", sourceID).Warnf("id list undecodable: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if len(ids) > pageSize {
		ids = ids[:pageSize]
	}

	community := a.resolveCommunity(categoryID, contextCommunities)
	now := time.Now()
	items := a.fetchItems(ctx, ids)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]models.Thread, 0, len(items))
	for _, item := range items {
		out = append(out, a.threadFromItem(item, community, now))
	}
	return out, nil
}

func (a *Adapter) threadFromItem(item itemDTO, community models.Community, now time.Time) models.Thread {
	posted := time.Unix(item.Time, 0)
	content := htmlclean.ItemText(item.Text)
	if item.URL != "" {
		marker := "[LINK:" + item.URL + "|" + item.URL + "]"
		if content == "" {
			content = marker
		} else {
			content = marker + "\n\n" + content
		}
	}
	return models.Thread{
		ID:           strconv.Itoa(item.ID),
		Title:        item.Title,
		Content:      content,
		Author:       models.User{ID: item.By, Username: item.By},
		Community:    community,
		PostedAt:     posted,
		TimeAgo:      models.TimeAgo(posted, now),
		LikeCount:    item.Score,
		CommentCount: item.Descendants,
	}
}

func (a *Adapter) resolveCommunity(categoryID string, contextCommunities []models.Community) models.Community {
	for _, c := range contextCommunities {
		if c.ID == categoryID {
			return c
		}
	}
	for _, c := range categories {
		if c.ID == categoryID {
			return models.Community{ID: c.ID, Name: c.Name, Category: "HN", SourceID: sourceID}
		}
	}
	return models.Community{ID: categoryID, Category: "HN", SourceID: sourceID}
}

func (a *Adapter) FetchThreadDetail(ctx context.Context, threadID string, page int) (models.ThreadDetail, error) {
	if page > 1 {
		return models.ThreadDetail{}, nil
	}
	var item itemDTO
	if err := a.getJSON(ctx, "/item/"+threadID+".json", &item); err != nil {
		if sources.IsParse(err) {
			log.WithField("source", sourceID).Warnf("item %s undecodable: %v", threadID, err)
			return models.ThreadDetail{}, nil
		}
		return models.ThreadDetail{}, err
	}
	if item.ID == 0 {
		return models.ThreadDetail{}, nil
	}

	now := time.Now()
	detail := models.ThreadDetail{
		Thread: a.threadFromItem(item, a.resolveCommunity("topstories", nil), now),
	}

	kids := item.Kids
	if len(kids) > pageSize {
		kids = kids[:pageSize]
	}
	for _, kid := range a.fetchItems(ctx, kids) {
		posted := time.Unix(kid.Time, 0)
		detail.Comments = append(detail.Comments, models.Comment{
			ID:       strconv.Itoa(kid.ID),
			Author:   models.User{ID: kid.By, Username: kid.By},
			Content:  htmlclean.ItemText(kid.Text),
			PostedAt: posted,
			TimeAgo:  models.TimeAgo(posted, now),
		})
	}
	if err := ctx.Err(); err != nil {
		return models.ThreadDetail{}, err
	}
	return detail, nil
}

func (a *Adapter) PostComment(ctx context.Context, threadID, categoryID, content string) error {
	return &sources.UnsupportedError{SourceID: sourceID, Op: "post comment"}
}

func (a *Adapter) CreateThread(ctx context.Context, categoryID, title, content string) error {
	return &sources.UnsupportedError{SourceID: sourceID, Op: "create thread"}
}

func (a *Adapter) CanonicalURL(thread models.Thread) string {
	return a.webURL + "/item?id=" + thread.ID
}
