// Package socialfeed adapts a recommendation-feed backend with a hot list,
// cursor pagination, a client-side quality filter and a locally persisted
// downvote blacklist.
package socialfeed

import (
	"bytes"
	"context"
	"encoding/json"
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

const (
	sourceID     = "socialfeed"
	blacklistKey = "socialfeed_downvoted_ids"
)

type Adapter struct {
	base   string
	host   string
	client *httpx.Client
	creds  *secrets.CredentialStore

	// nextCursor is the opaque paging link from the previous recommend
	// response. No cursor means pagination stops; none is synthesized.
	nextCursor string

	// questionCache keeps question metadata seen on the hot list so a
	// question detail can fall back to it when the API turns one away.
	questionCache map[string]models.Thread
}

var _ sources.Source = (*Adapter)(nil)

func New(baseURL string, client *httpx.Client, creds *secrets.CredentialStore) *Adapter {
	a := &Adapter{
		base:          strings.TrimSuffix(baseURL, "/"),
		client:        client,
		creds:         creds,
		questionCache: make(map[string]models.Thread),
	}
	if u, err := url.Parse(baseURL); err == nil {
		a.host = u.Host
	}
	return a
}

func (a *Adapter) ID() string   { return sourceID }
func (a *Adapter) Name() string { return "Zhihu" }

func (a *Adapter) headers() map[string]string {
	return map[string]string{
		"Accept":           "application/json",
		"x-api-version":    "3.1.8",
		"x-requested-with": "fetch",
		"Referer":          a.base + "/",
		"Cookie":           a.creds.CookieHeader(sourceID, a.host),
	}
}

// --- upstream DTOs, recommend shape ---

type feedAuthor struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	AvatarURL     string `json:"avatar_url"`
	FollowerCount int    `json:"follower_count"`
	IsFollowing   bool   `json:"is_following"`
}

type feedQuestion struct {
	ID    json.Number `json:"id"`
	Title string      `json:"title"`
}

type feedTarget struct {
	ID           json.Number   `json:"id"`
	Type         string        `json:"type"`
	Title        string        `json:"title"`
	Excerpt      string        `json:"excerpt"`
	VoteupCount  int           `json:"voteup_count"`
	CommentCount int           `json:"comment_count"`
	CreatedTime  int64         `json:"created_time"`
	Author       feedAuthor    `json:"author"`
	Question     *feedQuestion `json:"question"`
}

type feedItem struct {
	Type   string      `json:"type"`
	Target *feedTarget `json:"target"`
}

type recommendResponse struct {
	Data   []feedItem `json:"data"`
	Paging struct {
		IsEnd bool   `json:"is_end"`
		Next  string `json:"next"`
	} `json:"paging"`
}

// --- hot list shape, deliberately separate from the recommend decoders ---

type hotTextArea struct {
	Text string `json:"text"`
}

type hotTarget struct {
	TitleArea   hotTextArea `json:"title_area"`
	ExcerptArea hotTextArea `json:"excerpt_area"`
	MetricsArea hotTextArea `json:"metrics_area"`
	Link        struct {
		URL string `json:"url"`
	} `json:"link"`
}

type hotChild struct {
	Type   string     `json:"type"`
	Author feedAuthor `json:"author"`
}

type hotItem struct {
	Type     string     `json:"type"`
	CardID   string     `json:"card_id"`
	Target   hotTarget  `json:"target"`
	Children []hotChild `json:"children"`
}

type hotListResponse struct {
	Data []hotItem `json:"data"`
}

func (a *Adapter) ListCategories(ctx context.Context) ([]models.Community, error) {
	return []models.Community{
		{ID: "recommend", Name: "Recommended", Description: "Personalized feed", Category: "Social", SourceID: sourceID},
		{ID: "hot", Name: "Hot List", Description: "Trending questions", Category: "Social", SourceID: sourceID},
	}, nil
}

func (a *Adapter) getJSON(ctx context.Context, fullURL string, out any) error {
	body, status, err := a.client.GetBytes(ctx, fullURL, a.headers())
	if err != nil {
		return sources.Transport("GET "+fullURL, err)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &sources.AuthError{SourceID: sourceID, Reason: fmt.Sprintf("status %d", status)}
	}
	if status != http.StatusOK {
		return sources.Transport("GET "+fullURL, fmt.Errorf("status %d", status))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &sources.ParseError{SourceID: sourceID, Reason: "decode feed", Err: err}
	}
	return nil
}

func (a *Adapter) ListThreads(ctx context.Context, categoryID string, contextCommunities []models.Community, page int) ([]models.Thread, error) {
	if page < 1 {
		page = 1
	}
	if categoryID == "hot" {
		if page > 1 {
			return nil, nil
		}
		return a.listHot(ctx)
	}
	return a.listRecommend(ctx, page)
}

func (a *Adapter) listRecommend(ctx context.Context, page int) ([]models.Thread, error) {
	reqURL := a.base + "/api/v3/feed/topstory/recommend?desktop=true&limit=10"
	if page > 1 {
		if a.nextCursor == "" {
			// No cursor from a previous page: pagination is over.
			return nil, nil
		}
		reqURL = a.nextCursor
	}

	var resp recommendResponse
	if err := a.getJSON(ctx, reqURL, &resp); err != nil {
		if sources.IsParse(err) {
			log.WithField("source", sourceID).Warnf("recommend feed undecodable: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if resp.Paging.IsEnd {
		a.nextCursor = ""
	} else {
		a.nextCursor = resp.Paging.Next
	}

	blacklist := a.downvotedSet()
	now := time.Now()
	var out []models.Thread
	for _, item := range resp.Data {
		t, ok := a.threadFromItem(item, blacklist, now)
		if !ok {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// threadFromItem runs the drop pipeline: ad placements, missing or
// unsupported targets, blacklisted ids, then the quality heuristic.
func (a *Adapter) threadFromItem(item feedItem, blacklist map[string]bool, now time.Time) (models.Thread, bool) {
	if item.Type == "feed_advert" {
		return models.Thread{}, false
	}
	target := item.Target
	if target == nil {
		return models.Thread{}, false
	}
	if !allowedTargets[target.Type] {
		return models.Thread{}, false
	}
	id := fmt.Sprintf("%s_%s", target.Type, target.ID.String())
	if blacklist[id] {
		return models.Thread{}, false
	}
	if !passesQuality(target.Type, target.VoteupCount, target.Author.FollowerCount, target.Author.IsFollowing) {
		return models.Thread{}, false
	}

	title := target.Title
	if target.Type == "answer" && target.Question != nil {
		title = target.Question.Title
	}
	if title == "" {
		title = htmlclean.Generic(target.Excerpt, nil)
	}
	posted := time.Time{}
	if target.CreatedTime > 0 {
		posted = time.Unix(target.CreatedTime, 0)
	}
	return models.Thread{
		ID:      id,
		Title:   title,
		Content: htmlclean.Generic(target.Excerpt, nil),
		Author: models.User{
			ID:        target.Author.ID,
			Username:  target.Author.Name,
			AvatarRef: target.Author.AvatarURL,
		},
		Community:    models.Community{ID: "recommend", Name: "Recommended", Category: "Social", SourceID: sourceID},
		PostedAt:     posted,
		TimeAgo:      models.TimeAgo(posted, now),
		LikeCount:    target.VoteupCount,
		CommentCount: target.CommentCount,
	}, true
}

func (a *Adapter) listHot(ctx context.Context) ([]models.Thread, error) {
	reqURL := a.base + "/api/v3/feed/topstory/hot-lists/total?limit=10&desktop=true"
	var resp hotListResponse
	if err := a.getJSON(ctx, reqURL, &resp); err != nil {
		if sources.IsParse(err) {
			log.WithField("source", sourceID).Warnf("hot list undecodable: %v", err)
			return nil, nil
		}
		return nil, err
	}

	blacklist := a.downvotedSet()
	var out []models.Thread
	for _, item := range resp.Data {
		// card_id "Q_12345" carries the question id.
		qid, found := strings.CutPrefix(item.CardID, "Q_")
		if !found || qid == "" {
			continue
		}
		id := "question_" + qid
		if blacklist[id] {
			continue
		}
		var author models.User
		if len(item.Children) > 0 {
			author = models.User{
				Username:  item.Children[0].Author.Name,
				AvatarRef: item.Children[0].Author.AvatarURL,
			}
		}
		t := models.Thread{
			ID:        id,
			Title:     item.Target.TitleArea.Text,
			Content:   item.Target.ExcerptArea.Text,
			Author:    author,
			Community: models.Community{ID: "hot", Name: "Hot List", Category: "Social", SourceID: sourceID},
			Tags:      nil,
		}
		if heat := item.Target.MetricsArea.Text; heat != "" {
			t.Tags = []string{heat}
		}
		a.questionCache[id] = t
		out = append(out, t)
	}
	return out, nil
}

// splitID breaks an overloaded thread id like "answer_123" apart.
func splitID(threadID string) (kind, id string, ok bool) {
	kind, id, ok = strings.Cut(threadID, "_")
	if !ok || kind == "" || id == "" {
		return "", "", false
	}
	return kind, id, true
}

func (a *Adapter) FetchThreadDetail(ctx context.Context, threadID string, page int) (models.ThreadDetail, error) {
	if page < 1 {
		page = 1
	}
	kind, id, ok := splitID(threadID)
	if !ok {
		return models.ThreadDetail{}, &sources.ParseError{SourceID: sourceID, Reason: "malformed thread id " + threadID}
	}

	switch kind {
	case "answer", "article":
		return a.contentDetail(ctx, kind, id, threadID, page)
	case "question":
		return a.questionDetail(ctx, id, threadID, page)
	default:
		return models.ThreadDetail{}, &sources.UnsupportedError{SourceID: sourceID, Op: "detail for " + kind}
	}
}

type contentDTO struct {
	ID           json.Number   `json:"id"`
	Title        string        `json:"title"`
	Content      string        `json:"content"`
	Excerpt      string        `json:"excerpt"`
	VoteupCount  int           `json:"voteup_count"`
	CommentCount int           `json:"comment_count"`
	CreatedTime  int64         `json:"created_time"`
	Created      int64         `json:"created"`
	Author       feedAuthor    `json:"author"`
	Question     *feedQuestion `json:"question"`
}

func (a *Adapter) contentDetail(ctx context.Context, kind, id, threadID string, page int) (models.ThreadDetail, error) {
	endpoint := map[string]string{"answer": "answers", "article": "articles"}[kind]
	var dto contentDTO
	reqURL := fmt.Sprintf("%s/api/v4/%s/%s?include=content,voteup_count,comment_count", a.base, endpoint, id)
	if err := a.getJSON(ctx, reqURL, &dto); err != nil {
		if sources.IsParse(err) {
			log.WithField("source", sourceID).Warnf("%s detail undecodable: %v", kind, err)
			return models.ThreadDetail{}, nil
		}
		return models.ThreadDetail{}, err
	}

	title := dto.Title
	if kind == "answer" && dto.Question != nil {
		title = dto.Question.Title
	}
	created := dto.CreatedTime
	if created == 0 {
		created = dto.Created
	}
	posted := time.Time{}
	if created > 0 {
		posted = time.Unix(created, 0)
	}
	now := time.Now()
	detail := models.ThreadDetail{
		Thread: models.Thread{
			ID:      threadID,
			Title:   title,
			Content: htmlclean.Generic(dto.Content, nil),
			Author: models.User{
				ID:        dto.Author.ID,
				Username:  dto.Author.Name,
				AvatarRef: dto.Author.AvatarURL,
			},
			Community:    models.Community{ID: "recommend", Name: "Recommended", Category: "Social", SourceID: sourceID},
			PostedAt:     posted,
			TimeAgo:      models.TimeAgo(posted, now),
			LikeCount:    dto.VoteupCount,
			CommentCount: dto.CommentCount,
		},
	}
	comments, err := a.rootComments(ctx, endpoint, id, page)
	if err != nil {
		if sources.IsCancellation(err) {
			return models.ThreadDetail{}, err
		}
		log.WithField("source", sourceID).Warnf("comments for %s: %v", threadID, err)
	}
	detail.Comments = comments
	return detail, nil
}

type questionDTO struct {
	ID          json.Number `json:"id"`
	Title       string      `json:"title"`
	Detail      string      `json:"detail"`
	Created     int64       `json:"created"`
	Author      feedAuthor  `json:"author"`
	AnswerCount int         `json:"answer_count"`
}

func (a *Adapter) questionDetail(ctx context.Context, id, threadID string, page int) (models.ThreadDetail, error) {
	var dto questionDTO
	reqURL := fmt.Sprintf("%s/api/v4/questions/%s?include=detail,answer_count", a.base, id)
	err := a.getJSON(ctx, reqURL, &dto)
	if err != nil && !sources.IsParse(err) {
		return models.ThreadDetail{}, err
	}

	detail := models.ThreadDetail{}
	if err == nil && dto.Title != "" {
		posted := time.Time{}
		if dto.Created > 0 {
			posted = time.Unix(dto.Created, 0)
		}
		detail.Thread = models.Thread{
			ID:      threadID,
			Title:   dto.Title,
			Content: htmlclean.Generic(dto.Detail, nil),
			Author: models.User{
				ID:        dto.Author.ID,
				Username:  dto.Author.Name,
				AvatarRef: dto.Author.AvatarURL,
			},
			Community:    models.Community{ID: "hot", Name: "Hot List", Category: "Social", SourceID: sourceID},
			PostedAt:     posted,
			TimeAgo:      models.TimeAgo(posted, time.Now()),
			CommentCount: dto.AnswerCount,
		}
	} else if cached, ok := a.questionCache[threadID]; ok {
		// The API turned the question away; the hot list snapshot still
		// renders something useful.
		detail.Thread = cached
	} else {
		log.WithField("source", sourceID).Warnf("question %s unavailable", threadID)
		detail.Thread = models.Thread{ID: threadID}
	}

	answers, aerr := a.questionAnswers(ctx, id, page)
	if aerr != nil {
		if sources.IsCancellation(aerr) {
			return models.ThreadDetail{}, aerr
		}
		log.WithField("source", sourceID).Warnf("answers for %s: %v", threadID, aerr)
	}
	detail.Comments = answers
	return detail, nil
}

type commentAuthorDTO struct {
	Member struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	} `json:"member"`
}

type commentDTO struct {
	ID            json.Number      `json:"id"`
	Content       string           `json:"content"`
	VoteCount     int              `json:"vote_count"`
	CreatedTime   int64            `json:"created_time"`
	Author        commentAuthorDTO `json:"author"`
	ChildComments []commentDTO     `json:"child_comments"`
}

type commentsResponse struct {
	Data []commentDTO `json:"data"`
}

func (a *Adapter) rootComments(ctx context.Context, endpoint, id string, page int) ([]models.Comment, error) {
	offset := (page - 1) * 20
	reqURL := fmt.Sprintf("%s/api/v4/%s/%s/root_comments?limit=20&offset=%d&order=normal", a.base, endpoint, id, offset)
	var resp commentsResponse
	if err := a.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]models.Comment, 0, len(resp.Data))
	for _, c := range resp.Data {
		comment := commentFromDTO(c, now)
		// One level of nesting only; grandchildren flatten into Replies.
		for _, child := range c.ChildComments {
			comment.Replies = append(comment.Replies, commentFromDTO(child, now))
		}
		out = append(out, comment)
	}
	return out, nil
}

func commentFromDTO(c commentDTO, now time.Time) models.Comment {
	posted := time.Time{}
	if c.CreatedTime > 0 {
		posted = time.Unix(c.CreatedTime, 0)
	}
	return models.Comment{
		ID:      c.ID.String(),
		Content: htmlclean.Generic(c.Content, nil),
		Author: models.User{
			ID:        c.Author.Member.ID,
			Username:  c.Author.Member.Name,
			AvatarRef: c.Author.Member.AvatarURL,
		},
		PostedAt:  posted,
		TimeAgo:   models.TimeAgo(posted, now),
		LikeCount: c.VoteCount,
	}
}

type answersResponse struct {
	Data []contentDTO `json:"data"`
}

// questionAnswers lists a question's answers as the comment stream.
func (a *Adapter) questionAnswers(ctx context.Context, id string, page int) ([]models.Comment, error) {
	offset := (page - 1) * 10
	reqURL := fmt.Sprintf("%s/api/v4/questions/%s/answers?include=content,voteup_count&limit=10&offset=%d", a.base, id, offset)
	var resp answersResponse
	if err := a.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]models.Comment, 0, len(resp.Data))
	for _, ans := range resp.Data {
		posted := time.Time{}
		if ans.CreatedTime > 0 {
			posted = time.Unix(ans.CreatedTime, 0)
		}
		out = append(out, models.Comment{
			ID:      "answer_" + ans.ID.String(),
			Content: htmlclean.Generic(ans.Content, nil),
			Author: models.User{
				ID:        ans.Author.ID,
				Username:  ans.Author.Name,
				AvatarRef: ans.Author.AvatarURL,
			},
			PostedAt:  posted,
			TimeAgo:   models.TimeAgo(posted, now),
			LikeCount: ans.VoteupCount,
		})
	}
	return out, nil
}

// --- downvote blacklist ---

func (a *Adapter) downvotedSet() map[string]bool {
	raw, _ := a.creds.GetSetting(blacklistKey)
	set := make(map[string]bool)
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = true
		}
	}
	return set
}

func (a *Adapter) saveDownvotedSet(set map[string]bool) error {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return a.creds.SetSetting(blacklistKey, strings.Join(ids, ","))
}

// Downvote adds the thread to the local blacklist synchronously, then
// fires a best-effort not-interested signal upstream. The signal failing
// never unwinds the local blacklist.
func (a *Adapter) Downvote(threadID string) error {
	set := a.downvotedSet()
	set[threadID] = true
	if err := a.saveDownvotedSet(set); err != nil {
		return err
	}

	kind, id, ok := splitID(threadID)
	if !ok {
		return nil
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		payload, _ := json.Marshal(map[string]string{
			"target_type": kind,
			"target_id":   id,
			"reason":      "not_interested",
		})
		headers := a.headers()
		headers["Content-Type"] = "application/json"
		resp, err := a.client.Do(ctx, http.MethodPost,
			a.base+"/api/v3/feed/topstory/uninterest", headers, bytes.NewReader(payload))
		if err != nil {
			log.WithField("source", sourceID).Debugf("uninterest signal: %v", err)
			return
		}
		resp.Body.Close()
	}()
	return nil
}

// UndoDownvote removes the thread from the blacklist.
func (a *Adapter) UndoDownvote(threadID string) error {
	set := a.downvotedSet()
	if !set[threadID] {
		return nil
	}
	delete(set, threadID)
	return a.saveDownvotedSet(set)
}

func (a *Adapter) PostComment(ctx context.Context, threadID, categoryID, content string) error {
	return &sources.UnsupportedError{SourceID: sourceID, Op: "post comment"}
}

func (a *Adapter) CreateThread(ctx context.Context, categoryID, title, content string) error {
	return &sources.UnsupportedError{SourceID: sourceID, Op: "create thread"}
}

func (a *Adapter) CanonicalURL(thread models.Thread) string {
	kind, id, ok := splitID(thread.ID)
	if !ok {
		return a.base
	}
	switch kind {
	case "answer":
		return fmt.Sprintf("%s/answer/%s", a.base, id)
	case "article":
		return fmt.Sprintf("https://zhuanlan.zhihu.com/p/%s", id)
	case "question":
		return fmt.Sprintf("%s/question/%s", a.base, id)
	default:
		return a.base
	}
}
