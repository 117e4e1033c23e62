// Package qa adapts a scraped HTML question-and-answer community with tab
// navigation and a token-gated reply form.
package qa

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"

	"feedflow/internal/htmlclean"
	"feedflow/internal/httpx"
	"feedflow/internal/models"
	"feedflow/internal/secrets"
	"feedflow/internal/sources"
)

const sourceID = "qa"

// tabs is the fixed navigation; the site exposes no category API.
var tabs = []struct {
	ID   string
	Name string
}{
	{"tech", "Tech"},
	{"creative", "Creative"},
	{"play", "Play"},
	{"apple", "Apple"},
	{"jobs", "Jobs"},
	{"deals", "Deals"},
	{"city", "City"},
	{"qna", "Q&A"},
	{"hot", "Hot"},
	{"all", "All"},
	{"r2", "R2"},
	{"xna", "XNA"},
	{"planet", "Planet"},
}

type Adapter struct {
	base   string
	host   string
	client *httpx.Client
	creds  *secrets.CredentialStore
}

var _ sources.Source = (*Adapter)(nil)

func New(baseURL string, client *httpx.Client, creds *secrets.CredentialStore) *Adapter {
	a := &Adapter{base: strings.TrimSuffix(baseURL, "/"), client: client, creds: creds}
	if u, err := url.Parse(baseURL); err == nil {
		a.host = u.Host
	}
	return a
}

func (a *Adapter) ID() string   { return sourceID }
func (a *Adapter) Name() string { return "V2EX" }

func (a *Adapter) headers() map[string]string {
	return map[string]string{
		"Cookie":  a.creds.CookieHeader(sourceID, a.host),
		"Referer": a.base + "/",
	}
}

func (a *Adapter) fetch(ctx context.Context, path string) (string, error) {
	body, status, err := a.client.GetBytes(ctx, a.base+path, a.headers())
	if err != nil {
		return "", sources.Transport("GET "+path, err)
	}
	if status != http.StatusOK {
		return "", sources.Transport("GET "+path, fmt.Errorf("status %d", status))
	}
	return string(body), nil
}

func (a *Adapter) ListCategories(ctx context.Context) ([]models.Community, error) {
	out := make([]models.Community, 0, len(tabs))
	for _, tab := range tabs {
		out = append(out, models.Community{
			ID:       tab.ID,
			Name:     tab.Name,
			Category: "QA",
			SourceID: sourceID,
		})
	}
	return out, nil
}

func (a *Adapter) ListThreads(ctx context.Context, categoryID string, contextCommunities []models.Community, page int) ([]models.Thread, error) {
	// Tab pages are single screens; anything past page 1 is empty.
	if page > 1 {
		return nil, nil
	}
	body, err := a.fetch(ctx, "/?tab="+categoryID)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		log.WithField("source", sourceID).Warnf("tab page unparsable: %v", err)
		return nil, nil
	}

	community := a.resolveCommunity(categoryID, contextCommunities)
	now := time.Now()
	var out []models.Thread
	doc.Find("div.cell.item").Each(func(_ int, cell *goquery.Selection) {
		link := cell.Find("a.topic-link").First()
		href, _ := link.Attr("href")
		id := topicIDFromHref(href)
		title := strings.TrimSpace(link.Text())
		if id == "" || title == "" {
			return
		}
		author := strings.TrimSpace(cell.Find(`a[href^="/member/"]`).First().Text())
		replies := 0
		if n := strings.TrimSpace(cell.Find("a.count_livid").First().Text()); n != "" {
			fmt.Sscanf(n, "%d", &replies)
		}
		posted := models.ParseRelative(strings.TrimSpace(cell.Find("span.ago").First().Text()), now)
		out = append(out, models.Thread{
			ID:           id,
			Title:        title,
			Author:       models.User{ID: author, Username: author},
			Community:    community,
			PostedAt:     posted,
			TimeAgo:      models.TimeAgo(posted, now),
			CommentCount: replies,
		})
	})
	return out, nil
}

func (a *Adapter) resolveCommunity(categoryID string, contextCommunities []models.Community) models.Community {
	for _, c := range contextCommunities {
		if c.ID == categoryID {
			return c
		}
	}
	for _, tab := range tabs {
		if tab.ID == categoryID {
			return models.Community{ID: tab.ID, Name: tab.Name, Category: "QA", SourceID: sourceID}
		}
	}
	return models.Community{ID: categoryID, Category: "QA", SourceID: sourceID}
}

func (a *Adapter) FetchThreadDetail(ctx context.Context, threadID string, page int) (models.ThreadDetail, error) {
	if page > 1 {
		return models.ThreadDetail{}, nil
	}
	body, err := a.fetch(ctx, "/t/"+threadID)
	if err != nil {
		return models.ThreadDetail{}, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		log.WithField("source", sourceID).Warnf("topic page unparsable: %v", err)
		return models.ThreadDetail{}, nil
	}

	now := time.Now()
	detail := models.ThreadDetail{
		Thread: models.Thread{
			ID:        threadID,
			Title:     strings.TrimSpace(doc.Find("h1").First().Text()),
			Community: a.resolveCommunity("", nil),
		},
	}
	if content, err := doc.Find("div.topic_content").First().Html(); err == nil {
		detail.Thread.Content = htmlclean.QA(content)
	}
	author := strings.TrimSpace(doc.Find(`small.gray a[href^="/member/"]`).First().Text())
	if author == "" {
		author = strings.TrimSpace(doc.Find(`div.header a[href^="/member/"]`).First().Text())
	}
	detail.Thread.Author = models.User{ID: author, Username: author}
	posted := models.ParseRelative(strings.TrimSpace(doc.Find("small.gray span.ago").First().Text()), now)
	detail.Thread.PostedAt = posted
	detail.Thread.TimeAgo = models.TimeAgo(posted, now)

	doc.Find(`div[id^="r_"]`).Each(func(_ int, cell *goquery.Selection) {
		id, _ := cell.Attr("id")
		replyAuthor := strings.TrimSpace(cell.Find("strong a.dark").First().Text())
		if replyAuthor == "" {
			replyAuthor = strings.TrimSpace(cell.Find(`a[href^="/member/"]`).First().Text())
		}
		content, err := cell.Find("div.reply_content").First().Html()
		if err != nil || content == "" {
			return
		}
		replyPosted := models.ParseRelative(strings.TrimSpace(cell.Find("span.ago").First().Text()), now)
		detail.Comments = append(detail.Comments, models.Comment{
			ID:       strings.TrimPrefix(id, "r_"),
			Author:   models.User{ID: replyAuthor, Username: replyAuthor},
			Content:  htmlclean.QA(content),
			PostedAt: replyPosted,
			TimeAgo:  models.TimeAgo(replyPosted, now),
		})
	})
	detail.Thread.CommentCount = len(detail.Comments)
	return detail, nil
}

func (a *Adapter) PostComment(ctx context.Context, threadID, categoryID, content string) error {
	// The reply form needs the per-page token; without one we are not
	// signed in and the post would bounce anyway.
	body, err := a.fetch(ctx, "/t/"+threadID)
	if err != nil {
		return err
	}
	once := extractOnce(body)
	if once == "" {
		return &sources.AuthError{SourceID: sourceID, Reason: "no write token on topic page"}
	}

	form := url.Values{}
	form.Set("content", content)
	form.Set("once", once)
	headers := a.headers()
	headers["Referer"] = a.base + "/t/" + threadID
	respBody, status, err := a.client.PostForm(ctx, a.base+"/t/"+threadID, form.Encode(), headers)
	if err != nil {
		return sources.Transport("POST /t/"+threadID, err)
	}
	if status == http.StatusForbidden || status == http.StatusUnauthorized {
		return &sources.AuthError{SourceID: sourceID, Reason: fmt.Sprintf("status %d", status)}
	}
	if status != http.StatusOK && status != http.StatusFound {
		return sources.Transport("POST /t/"+threadID, fmt.Errorf("status %d: %s", status, firstLine(string(respBody))))
	}
	return nil
}

func (a *Adapter) CreateThread(ctx context.Context, categoryID, title, content string) error {
	return &sources.UnsupportedError{SourceID: sourceID, Op: "create thread"}
}

func (a *Adapter) CanonicalURL(thread models.Thread) string {
	return a.base + "/t/" + thread.ID
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}
