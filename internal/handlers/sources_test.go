package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"feedflow/internal/models"
	"feedflow/internal/orchestrator"
	"feedflow/internal/sources"
	"feedflow/internal/store"
)

type stubSource struct {
	id string
}

func (s *stubSource) ID() string   { return s.id }
func (s *stubSource) Name() string { return strings.ToUpper(s.id) }

func (s *stubSource) ListCategories(ctx context.Context) ([]models.Community, error) {
	return []models.Community{{ID: "c1", Name: "One", SourceID: s.id}}, nil
}

func (s *stubSource) ListThreads(ctx context.Context, categoryID string, contextCommunities []models.Community, page int) ([]models.Thread, error) {
	if page > 1 {
		return nil, nil
	}
	return []models.Thread{{ID: "t1", Title: "Thread one"}}, nil
}

func (s *stubSource) FetchThreadDetail(ctx context.Context, threadID string, page int) (models.ThreadDetail, error) {
	return models.ThreadDetail{Thread: models.Thread{ID: threadID, Title: "Detail"}}, nil
}

func (s *stubSource) PostComment(ctx context.Context, threadID, categoryID, content string) error {
	return &sources.AuthError{SourceID: s.id, Reason: "not signed in"}
}

func (s *stubSource) CreateThread(ctx context.Context, categoryID, title, content string) error {
	return &sources.UnsupportedError{SourceID: s.id, Op: "create thread"}
}

func (s *stubSource) CanonicalURL(thread models.Thread) string {
	return "https://stub/" + thread.ID
}

var _ sources.Source = (*stubSource)(nil)

func testRouter(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	snap, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { snap.Close() })

	registry := sources.NewRegistry()
	registry.Register(&stubSource{id: "stub"})
	orch := orchestrator.New(registry, snap)

	r := gin.New()
	h := NewSourceHandler(orch, registry, nil)
	api := r.Group("/api")
	api.GET("/sources", h.List)
	api.GET("/sources/:source/communities", h.Communities)
	api.GET("/sources/:source/communities/:community/threads", h.Threads)
	api.GET("/sources/:source/threads/:id", h.ThreadDetail)
	api.POST("/sources/:source/threads/:id/comments", h.PostComment)
	api.POST("/sources/:source/communities/:community/threads", h.CreateThread)
	api.POST("/sources/:source/downvote/:id", h.Downvote)

	b := NewBookmarkHandler(snap)
	api.GET("/bookmarks", b.List)
	api.POST("/bookmarks", b.Toggle)

	return r, snap
}

func do(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSourceListing(t *testing.T) {
	r, _ := testRouter(t)
	w := do(t, r, http.MethodGet, "/api/sources", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Sources []sourceInfo `json:"sources"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].ID != "stub" {
		t.Fatalf("sources = %+v", resp.Sources)
	}
}

func TestThreadsEndpoint(t *testing.T) {
	r, _ := testRouter(t)
	w := do(t, r, http.MethodGet, "/api/sources/stub/communities/c1/threads?page=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp orchestrator.ListResult
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Threads) != 1 || resp.Threads[0].ID != "t1" {
		t.Fatalf("threads = %+v", resp.Threads)
	}
}

func TestErrorMapping(t *testing.T) {
	r, _ := testRouter(t)

	// Auth failures from the adapter surface as 401.
	w := do(t, r, http.MethodPost, "/api/sources/stub/threads/t1/comments", `{"content":"hi"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("comment status = %d, want 401", w.Code)
	}

	// Unsupported operations surface as 405.
	w = do(t, r, http.MethodPost, "/api/sources/stub/communities/c1/threads", `{"title":"t","content":"c"}`)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("create status = %d, want 405", w.Code)
	}

	// No downvoter registered for the source: 405 as well.
	w = do(t, r, http.MethodPost, "/api/sources/stub/downvote/t1", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("downvote status = %d, want 405", w.Code)
	}

	// Unknown source is a plain server error.
	w = do(t, r, http.MethodGet, "/api/sources/nope/communities", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("unknown source status = %d, want 500", w.Code)
	}
}

func TestBookmarkToggleRoundTrip(t *testing.T) {
	r, _ := testRouter(t)
	body := `{"source_id":"stub","thread":{"id":"t1","title":"Thread one"}}`

	w := do(t, r, http.MethodPost, "/api/bookmarks", body)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"bookmarked":true`) {
		t.Fatalf("toggle on = %d %s", w.Code, w.Body.String())
	}
	w = do(t, r, http.MethodGet, "/api/bookmarks", "")
	if !strings.Contains(w.Body.String(), "Thread one") {
		t.Fatalf("list = %s", w.Body.String())
	}
	w = do(t, r, http.MethodPost, "/api/bookmarks", body)
	if !strings.Contains(w.Body.String(), `"bookmarked":false`) {
		t.Fatalf("toggle off = %s", w.Body.String())
	}
}
