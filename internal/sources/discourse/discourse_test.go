package discourse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"feedflow/internal/httpx"
	"feedflow/internal/models"
	"feedflow/internal/secrets"
)

type mapSettings map[string]string

func (m mapSettings) GetSetting(key string) (string, bool) { v, ok := m[key]; return v, ok }
func (m mapSettings) SetSetting(key, value string) error   { m[key] = value; return nil }
func (m mapSettings) DeleteSetting(key string) error       { delete(m, key); return nil }

func testAdapter(t *testing.T, handler http.Handler) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	creds := secrets.NewCredentialStore(mapSettings{}, secrets.NewCipher("test"))
	return New(srv.URL, httpx.NewClient(5*time.Second, ""), creds)
}

const categoriesJSON = `{"category_list":{"categories":[
	{"id":4,"name":"Development","description_text":"Dev talk","topics_day":12,"topics_week":80},
	{"id":9,"name":"Off Topic","description_text":"","topics_day":3,"topics_week":20}
]}}`

const topicsJSON = `{
	"users":[
		{"id":1,"username":"alice","avatar_template":"/avatars/{size}/a.png","admin":true},
		{"id":2,"username":"bob","avatar_template":"https://cdn/{size}/b.png","primary_group_name":"regulars"}
	],
	"topic_list":{"topics":[
		{"id":100,"title":"First topic","posts_count":5,"like_count":2,
		 "created_at":"2026-08-31T08:00:00.000Z",
		 "tags":["go","cache"],
		 "posters":[{"user_id":2,"description":"Most recent"},{"user_id":1,"description":"Original Poster, Most Recent Poster"}]},
		{"id":101,"title":"Second topic","posts_count":1,"like_count":0,
		 "created_at":"2026-08-30T08:00:00.000Z",
		 "tags":[{"name":"meta"}],
		 "posters":[{"user_id":2,"description":"Original Poster"}]}
	]}
}`

const detailJSON = `{
	"id":100,"title":"First topic","posts_count":3,"like_count":2,
	"post_stream":{"posts":[
		{"id":500,"post_number":1,"username":"alice","avatar_template":"/avatars/{size}/a.png",
		 "cooked":"<p>Body with <img src=\"https://cdn/uploads/x.png\"></p>","created_at":"2026-08-31T08:00:00.000Z","admin":true},
		{"id":501,"post_number":2,"username":"bob","avatar_template":"/avatars/{size}/b.png",
		 "cooked":"<p>A reply</p>","created_at":"2026-08-31T09:00:00.000Z","score":4.5,"moderator":true}
	]}
}`

func TestListCategories(t *testing.T) {
	a := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/categories.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(categoriesJSON))
	}))
	got, err := a.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d categories, want 2", len(got))
	}
	if got[0].ID != "4" || got[0].Name != "Development" || got[0].ActiveToday != 12 {
		t.Errorf("first category mapped wrong: %+v", got[0])
	}
}

func TestListThreadsMapsPageAndPosters(t *testing.T) {
	var gotPage string
	a := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/c/4.json" {
			http.NotFound(w, r)
			return
		}
		gotPage = r.URL.Query().Get("page")
		w.Write([]byte(topicsJSON))
	}))

	ctxCommunities := []models.Community{{ID: "4", Name: "Development", Category: "Discourse"}}
	got, err := a.ListThreads(context.Background(), "4", ctxCommunities, 3)
	if err != nil {
		t.Fatalf("ListThreads: %v", err)
	}
	if gotPage != "2" {
		t.Errorf("upstream page = %q, want zero-based 2 for page 3", gotPage)
	}
	if len(got) != 2 {
		t.Fatalf("got %d threads, want 2", len(got))
	}

	first := got[0]
	if first.Author.Username != "alice" {
		t.Errorf("original poster = %q, want alice (flagged Original Poster)", first.Author.Username)
	}
	if first.Author.Role != "admin" {
		t.Errorf("role = %q, want admin", first.Author.Role)
	}
	if first.Author.AvatarRef == "" || first.Author.AvatarRef[:4] != "http" {
		t.Errorf("relative avatar not absolutized: %q", first.Author.AvatarRef)
	}
	if first.CommentCount != 4 {
		t.Errorf("comment count = %d, want posts_count-1 = 4", first.CommentCount)
	}
	if len(first.Tags) != 2 || first.Tags[0] != "go" {
		t.Errorf("string tags mapped wrong: %v", first.Tags)
	}
	if first.Community.Name != "Development" {
		t.Errorf("context community not resolved: %+v", first.Community)
	}
	if len(got[1].Tags) != 1 || got[1].Tags[0] != "meta" {
		t.Errorf("object tags mapped wrong: %v", got[1].Tags)
	}
	if got[1].CommentCount != 0 {
		t.Errorf("single-post topic comment count = %d, want 0", got[1].CommentCount)
	}
}

func TestFetchThreadDetailFirstPostIsBody(t *testing.T) {
	a := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/t/100.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(detailJSON))
	}))
	got, err := a.FetchThreadDetail(context.Background(), "100", 1)
	if err != nil {
		t.Fatalf("FetchThreadDetail: %v", err)
	}
	if got.Thread.Content == "" || got.Thread.Author.Username != "alice" {
		t.Errorf("first post not lifted into thread body: %+v", got.Thread)
	}
	if want := "[IMAGE:https://cdn/uploads/x.png]"; !contains(got.Thread.Content, want) {
		t.Errorf("body image not markered: %q", got.Thread.Content)
	}
	if len(got.Comments) != 1 || got.Comments[0].Author.Username != "bob" {
		t.Fatalf("comments = %+v, want single reply by bob", got.Comments)
	}
	if got.Comments[0].Author.Role != "moderator" {
		t.Errorf("reply role = %q, want moderator", got.Comments[0].Author.Role)
	}
	if got.TotalPages != 1 {
		t.Errorf("total pages = %d, want 1 for 3 posts", got.TotalPages)
	}

	// Idempotent reads: same call, same result.
	again, err := a.FetchThreadDetail(context.Background(), "100", 1)
	if err != nil {
		t.Fatalf("second FetchThreadDetail: %v", err)
	}
	if again.Thread.Content != got.Thread.Content || len(again.Comments) != len(got.Comments) {
		t.Error("repeated detail fetch returned different content")
	}
}

func TestParseFailureReturnsEmptyNotError(t *testing.T) {
	a := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	got, err := a.ListThreads(context.Background(), "4", nil, 1)
	if err != nil {
		t.Fatalf("parse failure should not error, got %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("parse failure should yield empty list, got %d", len(got))
	}
}

func TestAuthStatusSurfacesAsAuthError(t *testing.T) {
	a := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	_, err := a.ListThreads(context.Background(), "4", nil, 1)
	if err == nil {
		t.Fatal("expected auth error")
	}
}

func contains(s, sub string) bool {
	return strings.Contains(s, sub)
}
