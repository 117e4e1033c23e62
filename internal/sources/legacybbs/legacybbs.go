// Package legacybbs adapts a GBK-era Discuz-style bulletin board: cookie
// sessions, scraped CSRF tokens, legacy-charset form posts.
package legacybbs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
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

const sourceID = "legacybbs"

// board is a fixed navigation entry; the upstream has no category API.
type board struct {
	ID   string
	Name string
}

var defaultBoards = []board{
	{"2", "Discovery"},
	{"6", "Trading"},
	{"57", "Digital Life"},
}

// Adapter holds the in-memory session state for one backend instance.
// The session id and form token are scraped opportunistically from every
// response and are never persisted; cookies are.
type Adapter struct {
	base   string
	origin string
	host   string
	client *httpx.Client
	creds  *secrets.CredentialStore

	sid      string
	formhash string
}

var _ sources.Source = (*Adapter)(nil)

func New(baseURL string, client *httpx.Client, creds *secrets.CredentialStore) *Adapter {
	a := &Adapter{base: strings.TrimSuffix(baseURL, "/"), client: client, creds: creds}
	if u, err := url.Parse(baseURL); err == nil {
		a.host = u.Host
		a.origin = u.Scheme + "://" + u.Host
	}
	return a
}

func (a *Adapter) ID() string   { return sourceID }
func (a *Adapter) Name() string { return "4D4Y" }

func (a *Adapter) headers() map[string]string {
	return map[string]string{
		"Cookie":  a.creds.CookieHeader(sourceID, a.host),
		"Referer": a.base + "/index.php",
	}
}

// fetchPage GETs a path, decodes the legacy charset and harvests tokens.
func (a *Adapter) fetchPage(ctx context.Context, path string) (string, error) {
	raw, status, err := a.client.GetBytes(ctx, a.base+"/"+path, a.headers())
	if err != nil {
		return "", sources.Transport("GET "+path, err)
	}
	if status != http.StatusOK {
		return "", sources.Transport("GET "+path, fmt.Errorf("status %d", status))
	}
	body := httpx.DecodeBody(raw, "gb18030")
	a.harvestTokens(body)
	return body, nil
}

func (a *Adapter) harvestTokens(body string) {
	sid, formhash := scanTokens(body)
	if sid != "" {
		a.sid = sid
	}
	if formhash != "" {
		a.formhash = formhash
	}
}

// login performs the form login with stored credentials, captures the new
// session cookies and clears the stale in-memory session id. Returns false
// without error when no credentials are stored.
func (a *Adapter) login(ctx context.Context) (bool, error) {
	username, password, ok := a.creds.Credentials(sourceID)
	if !ok {
		return false, nil
	}
	// Prime the form token from the login page.
	if _, err := a.fetchPage(ctx, "logging.php?action=login"); err != nil {
		return false, err
	}

	form := encodeForm([][2]string{
		{"formhash", a.formhash},
		{"referer", a.base + "/index.php"},
		{"loginfield", "username"},
		{"username", username},
		{"password", password},
		{"loginsubmit", "yes"},
		{"cookietime", "2592000"},
	})
	headers := a.headers()
	headers["Content-Type"] = "application/x-www-form-urlencoded"
	resp, err := a.client.Do(ctx, http.MethodPost,
		a.base+"/logging.php?action=login&loginsubmit=yes&inajax=1",
		headers, strings.NewReader(form))
	if err != nil {
		return false, sources.Transport("login", err)
	}
	defer resp.Body.Close()

	var jar []secrets.Cookie
	for _, c := range resp.Cookies() {
		domain := c.Domain
		if domain == "" {
			domain = a.host
		}
		jar = append(jar, secrets.Cookie{
			Name: c.Name, Value: c.Value, Domain: domain, Path: c.Path, Expires: c.Expires,
		})
	}
	if len(jar) > 0 {
		if err := a.creds.SaveCookies(sourceID, jar, true); err != nil {
			log.WithField("source", sourceID).Warnf("saving session cookies: %v", err)
		}
	}
	a.sid = ""
	log.WithField("source", sourceID).Info("re-login performed")
	return true, nil
}

func (a *Adapter) ListCategories(ctx context.Context) ([]models.Community, error) {
	out := make([]models.Community, 0, len(defaultBoards))
	for _, b := range defaultBoards {
		out = append(out, models.Community{
			ID:       b.ID,
			Name:     b.Name,
			Category: "BBS",
			SourceID: sourceID,
		})
	}
	return out, nil
}

func (a *Adapter) ListThreads(ctx context.Context, categoryID string, contextCommunities []models.Community, page int) ([]models.Thread, error) {
	if page < 1 {
		page = 1
	}
	return a.listThreads(ctx, categoryID, contextCommunities, page, false)
}

func (a *Adapter) listThreads(ctx context.Context, categoryID string, contextCommunities []models.Community, page int, retried bool) ([]models.Thread, error) {
	body, err := a.fetchPage(ctx, fmt.Sprintf("forumdisplay.php?fid=%s&page=%d", categoryID, page))
	if err != nil {
		return nil, err
	}
	rows := parseThreadRows(body, time.Now())

	// An empty first page is the session-expiry signal: one re-login, one
	// retry, then take whatever comes back.
	if len(rows) == 0 && page == 1 && !retried {
		ok, err := a.login(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			return a.listThreads(ctx, categoryID, contextCommunities, page, true)
		}
	}

	community := a.resolveCommunity(categoryID, contextCommunities)
	now := time.Now()
	out := make([]models.Thread, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Thread{
			ID:           r.ID,
			Title:        htmlclean.DecodeEntities(r.Title),
			Author:       models.User{ID: r.AuthorID, Username: r.Author},
			Community:    community,
			PostedAt:     r.Posted,
			TimeAgo:      models.TimeAgo(r.Posted, now),
			CommentCount: r.Replies,
		})
	}
	return out, nil
}

func (a *Adapter) resolveCommunity(categoryID string, contextCommunities []models.Community) models.Community {
	for _, c := range contextCommunities {
		if c.ID == categoryID {
			return c
		}
	}
	for _, b := range defaultBoards {
		if b.ID == categoryID {
			return models.Community{ID: b.ID, Name: b.Name, Category: "BBS", SourceID: sourceID}
		}
	}
	return models.Community{ID: categoryID, Category: "BBS", SourceID: sourceID}
}

func (a *Adapter) FetchThreadDetail(ctx context.Context, threadID string, page int) (models.ThreadDetail, error) {
	if page < 1 {
		page = 1
	}
	body, err := a.fetchPage(ctx, fmt.Sprintf("viewthread.php?tid=%s&page=%d", threadID, page))
	if err != nil {
		return models.ThreadDetail{}, err
	}

	posts := parsePosts(body, time.Now())
	detail := models.ThreadDetail{
		Thread: models.Thread{
			ID:        threadID,
			Title:     parseDetailTitle(body),
			Community: a.resolveCommunity(parseForumID(body), nil),
		},
		TotalPages: parseTotalPages(body),
	}
	if len(posts) == 0 {
		if looksLikeAuthFailure(body) {
			log.WithField("source", sourceID).Warn("thread detail behind login wall")
		}
		return detail, nil
	}

	now := time.Now()
	start := 0
	if page == 1 {
		first := posts[0]
		detail.Thread.Content = htmlclean.LegacyBBS(first.Content)
		detail.Thread.Author = models.User{ID: first.AuthorID, Username: first.Author}
		detail.Thread.PostedAt = first.Posted
		detail.Thread.TimeAgo = models.TimeAgo(first.Posted, now)
		start = 1
	}
	for _, p := range posts[start:] {
		detail.Comments = append(detail.Comments, models.Comment{
			ID:       p.ID,
			Author:   models.User{ID: p.AuthorID, Username: p.Author},
			Content:  htmlclean.LegacyBBS(p.Content),
			PostedAt: p.Posted,
			TimeAgo:  models.TimeAgo(p.Posted, now),
		})
	}
	detail.Thread.CommentCount = len(detail.Comments)
	return detail, nil
}

// primeFormToken makes one harmless GET when no form token is in hand.
func (a *Adapter) primeFormToken(ctx context.Context, threadID string) error {
	if a.formhash != "" {
		return nil
	}
	_, err := a.fetchPage(ctx, fmt.Sprintf("viewthread.php?tid=%s&page=1", threadID))
	if err != nil {
		return err
	}
	if a.formhash == "" {
		return &sources.AuthError{SourceID: sourceID, Reason: "no form token available"}
	}
	return nil
}

func (a *Adapter) submit(ctx context.Context, path, referer string, form [][2]string, retried bool, retry func() error) error {
	headers := a.headers()
	headers["Content-Type"] = "application/x-www-form-urlencoded"
	headers["Accept"] = "text/xml, */*"
	headers["X-Requested-With"] = "XMLHttpRequest"
	headers["Referer"] = referer
	headers["Origin"] = a.origin

	raw, status, err := a.client.PostForm(ctx, a.base+"/"+path, encodeForm(form), headers)
	if err != nil {
		return sources.Transport("POST "+path, err)
	}
	if status != http.StatusOK {
		return sources.Transport("POST "+path, fmt.Errorf("status %d", status))
	}
	body := httpx.DecodeBody(raw, "gb18030")
	a.harvestTokens(body)

	if isPostSuccess(body) {
		return nil
	}
	msg := parseAjaxError(body)
	if msg == "" {
		msg = "submission rejected"
	}
	if looksLikeAuthFailure(body) || looksLikeAuthFailure(msg) {
		if !retried {
			ok, lerr := a.login(ctx)
			if lerr != nil {
				return lerr
			}
			if ok {
				return retry()
			}
		}
		return &sources.AuthError{SourceID: sourceID, Reason: msg}
	}
	return sources.Transport("POST "+path, errors.New(msg))
}

func (a *Adapter) PostComment(ctx context.Context, threadID, categoryID, content string) error {
	return a.postComment(ctx, threadID, categoryID, content, false)
}

func (a *Adapter) postComment(ctx context.Context, threadID, categoryID, content string, retried bool) error {
	if err := a.primeFormToken(ctx, threadID); err != nil {
		return err
	}
	path := fmt.Sprintf("post.php?action=reply&fid=%s&tid=%s&extra=&replysubmit=yes&inajax=1", categoryID, threadID)
	form := [][2]string{
		{"formhash", a.formhash},
		{"subject", ""},
		{"usesig", "1"},
		{"message", content},
	}
	referer := fmt.Sprintf("%s/viewthread.php?tid=%s", a.base, threadID)
	return a.submit(ctx, path, referer, form, retried, func() error {
		return a.postComment(ctx, threadID, categoryID, content, true)
	})
}

func (a *Adapter) CreateThread(ctx context.Context, categoryID, title, content string) error {
	return a.createThread(ctx, categoryID, title, content, false)
}

func (a *Adapter) createThread(ctx context.Context, categoryID, title, content string, retried bool) error {
	if a.formhash == "" {
		if _, err := a.fetchPage(ctx, fmt.Sprintf("forumdisplay.php?fid=%s&page=1", categoryID)); err != nil {
			return err
		}
		if a.formhash == "" {
			return &sources.AuthError{SourceID: sourceID, Reason: "no form token available"}
		}
	}
	path := fmt.Sprintf("post.php?action=newthread&fid=%s&topicsubmit=yes&inajax=1", categoryID)
	form := [][2]string{
		{"formhash", a.formhash},
		{"subject", title},
		{"usesig", "1"},
		{"message", content},
	}
	referer := fmt.Sprintf("%s/post.php?action=newthread&fid=%s", a.base, categoryID)
	return a.submit(ctx, path, referer, form, retried, func() error {
		return a.createThread(ctx, categoryID, title, content, true)
	})
}

func (a *Adapter) CanonicalURL(thread models.Thread) string {
	return fmt.Sprintf("%s/viewthread.php?tid=%s", a.base, thread.ID)
}

// LastActiveThreads lists the most recently active threads on the main
// board, used by the home summary.
func (a *Adapter) LastActiveThreads(ctx context.Context, limit int) ([]models.Thread, error) {
	body, err := a.fetchPage(ctx, "forumdisplay.php?fid=2&orderby=lastpost&page=1")
	if err != nil {
		return nil, err
	}
	rows := parseThreadRows(body, time.Now())
	community := a.resolveCommunity("2", nil)
	now := time.Now()
	out := make([]models.Thread, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Thread{
			ID:           r.ID,
			Title:        htmlclean.DecodeEntities(r.Title),
			Author:       models.User{ID: r.AuthorID, Username: r.Author},
			Community:    community,
			PostedAt:     r.Posted,
			TimeAgo:      models.TimeAgo(r.Posted, now),
			CommentCount: r.Replies,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
