// Package rssfeed adapts a configurable set of RSS and Atom feeds. Each
// feed is one community; item bodies are cached in memory on list fetch
// because feeds carry no separate detail endpoint.
package rssfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"feedflow/internal/htmlclean"
	"feedflow/internal/httpx"
	"feedflow/internal/models"
	"feedflow/internal/secrets"
	"feedflow/internal/sources"
)

const (
	sourceID     = "rss"
	feedsSetting = "rss_feed_list"
	detailTTL    = time.Hour
	detailSize   = 512
)

// Feed is one configured subscription.
type Feed struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

var defaultFeeds = []Feed{
	{ID: "hn-blogs", Title: "HN Blogs", URL: "https://hnblogs.substack.com/feed"},
	{ID: "go-blog", Title: "The Go Blog", URL: "https://go.dev/blog/feed.atom"},
	{ID: "lobsters", Title: "Lobsters", URL: "https://lobste.rs/rss"},
}

type Adapter struct {
	client   *httpx.Client
	settings secrets.SettingStore
	parser   *gofeed.Parser
	details  *detailCache
}

var _ sources.Source = (*Adapter)(nil)

func New(client *httpx.Client, settings secrets.SettingStore) *Adapter {
	return &Adapter{
		client:   client,
		settings: settings,
		parser:   gofeed.NewParser(),
		details:  newDetailCache(detailSize),
	}
}

func (a *Adapter) ID() string   { return sourceID }
func (a *Adapter) Name() string { return "RSS" }

// Feeds returns the configured subscription list, falling back to the
// defaults when nothing is stored or the stored value is undecodable.
func (a *Adapter) Feeds() []Feed {
	raw, ok := a.settings.GetSetting(feedsSetting)
	if !ok || raw == "" {
		return defaultFeeds
	}
	var feeds []Feed
	if err := json.Unmarshal([]byte(raw), &feeds); err != nil {
		log.WithField("source", sourceID).Warnf("stored feed list undecodable: %v", err)
		return defaultFeeds
	}
	if len(feeds) == 0 {
		return defaultFeeds
	}
	return feeds
}

// SaveFeeds replaces the subscription list.
func (a *Adapter) SaveFeeds(feeds []Feed) error {
	raw, err := json.Marshal(feeds)
	if err != nil {
		return err
	}
	return a.settings.SetSetting(feedsSetting, string(raw))
}

func (a *Adapter) ListCategories(ctx context.Context) ([]models.Community, error) {
	feeds := a.Feeds()
	out := make([]models.Community, 0, len(feeds))
	for _, f := range feeds {
		out = append(out, models.Community{
			ID:          f.ID,
			Name:        f.Title,
			Description: f.URL,
			Category:    "RSS",
			SourceID:    sourceID,
		})
	}
	return out, nil
}

func (a *Adapter) feedByID(id string) (Feed, bool) {
	for _, f := range a.Feeds() {
		if f.ID == id {
			return f, true
		}
	}
	return Feed{}, false
}

func (a *Adapter) fetchFeed(ctx context.Context, url string) (*gofeed.Feed, error) {
	body, status, err := a.client.GetBytes(ctx, url, nil)
	if err != nil {
		return nil, sources.Transport("GET "+url, err)
	}
	if status != 200 {
		return nil, sources.Transport("GET "+url, fmt.Errorf("status %d", status))
	}
	feed, err := a.parser.ParseString(string(body))
	if err != nil {
		return nil, &sources.ParseError{SourceID: sourceID, Reason: "parse " + url, Err: err}
	}
	return feed, nil
}

// itemTime picks the best available timestamp for a feed item.
func itemTime(item *gofeed.Item, now time.Time) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	raw := item.Published
	if raw == "" {
		raw = item.Updated
	}
	if raw != "" {
		if t, err := dateparse.ParseAny(raw); err == nil {
			return t
		}
	}
	return now
}

// itemID is the stable identity of an item: GUID, then link, then a
// generated id so nothing collapses onto the empty string.
func itemID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	if item.Link != "" {
		return item.Link
	}
	return uuid.NewString()
}

func itemBody(item *gofeed.Item) string {
	raw := item.Content
	if raw == "" {
		raw = item.Description
	}
	return htmlclean.Generic(raw, nil)
}

func (a *Adapter) threadFromItem(item *gofeed.Item, community models.Community, now time.Time) models.Thread {
	posted := itemTime(item, now)
	author := ""
	if item.Author != nil {
		author = item.Author.Name
	}
	th := models.Thread{
		ID:           itemID(item),
		Title:        strings.TrimSpace(item.Title),
		Content:      itemBody(item),
		Author:       models.User{ID: author, Username: author},
		Community:    community,
		PostedAt:     posted,
		TimeAgo:      models.TimeAgo(posted, now),
		CommentCount: 0,
	}
	if item.Link != "" {
		th.Tags = []string{item.Link}
	}
	return th
}

func (a *Adapter) ListThreads(ctx context.Context, categoryID string, contextCommunities []models.Community, page int) ([]models.Thread, error) {
	if page > 1 {
		return nil, nil
	}
	feed, ok := a.feedByID(categoryID)
	if !ok {
		return nil, nil
	}
	parsed, err := a.fetchFeed(ctx, feed.URL)
	if err != nil {
		if sources.IsParse(err) {
			log.WithField("source", sourceID).Warnf("feed %s unparsable: %v", feed.ID, err)
			return nil, nil
		}
		return nil, err
	}

	community := models.Community{
		ID: feed.ID, Name: feed.Title, Description: feed.URL,
		Category: "RSS", SourceID: sourceID,
	}
	for _, c := range contextCommunities {
		if c.ID == categoryID {
			community = c
		}
	}

	now := time.Now()
	out := make([]models.Thread, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		th := a.threadFromItem(item, community, now)
		a.details.put(th)
		out = append(out, th)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PostedAt.After(out[j].PostedAt) })
	return out, nil
}

// FetchThreadDetail serves from the in-memory item cache. Feeds have no
// per-item endpoint, so a cold cache yields a placeholder rather than an
// error and the caller's snapshot store covers restarts.
func (a *Adapter) FetchThreadDetail(ctx context.Context, threadID string, page int) (models.ThreadDetail, error) {
	if page > 1 {
		return models.ThreadDetail{}, nil
	}
	if th, ok := a.details.get(threadID); ok {
		return models.ThreadDetail{Thread: th, TotalPages: 1}, nil
	}
	now := time.Now()
	return models.ThreadDetail{
		Thread: models.Thread{
			ID:        threadID,
			Title:     "Content Unavailable",
			Content:   "This feed item is no longer cached. Open the original link instead.",
			Community: models.Community{Category: "RSS", SourceID: sourceID},
			PostedAt:  now,
			TimeAgo:   models.TimeAgo(now, now),
		},
		TotalPages: 1,
	}, nil
}

// FetchDailyUpdates gathers every configured feed concurrently and keeps
// items from the last 24 hours. Individual feed failures are logged and
// skipped.
func (a *Adapter) FetchDailyUpdates(ctx context.Context) ([]models.Thread, error) {
	feeds := a.Feeds()
	results := make([][]models.Thread, len(feeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, feed := range feeds {
		g.Go(func() error {
			parsed, err := a.fetchFeed(gctx, feed.URL)
			if err != nil {
				if sources.IsCancellation(err) {
					return err
				}
				log.WithField("source", sourceID).Warnf("feed %s skipped: %v", feed.ID, err)
				return nil
			}
			community := models.Community{
				ID: feed.ID, Name: feed.Title, Category: "RSS", SourceID: sourceID,
			}
			now := time.Now()
			var fresh []models.Thread
			for _, item := range parsed.Items {
				th := a.threadFromItem(item, community, now)
				if !models.WithinLast(th.PostedAt, now, 24*time.Hour) {
					continue
				}
				a.details.put(th)
				fresh = append(fresh, th)
			}
			results[i] = fresh
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []models.Thread
	for _, r := range results {
		out = append(out, r...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PostedAt.After(out[j].PostedAt) })
	return out, nil
}

func (a *Adapter) PostComment(ctx context.Context, threadID, categoryID, content string) error {
	return &sources.UnsupportedError{SourceID: sourceID, Op: "post comment"}
}

func (a *Adapter) CreateThread(ctx context.Context, categoryID, title, content string) error {
	return &sources.UnsupportedError{SourceID: sourceID, Op: "create thread"}
}

func (a *Adapter) CanonicalURL(thread models.Thread) string {
	if len(thread.Tags) > 0 {
		return thread.Tags[0]
	}
	return thread.ID
}
