package handlers

import (
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"feedflow/internal/httpx"
	"feedflow/internal/sources/rssfeed"
	"feedflow/internal/store"
)

func feedRouter(t *testing.T) (*gin.Engine, *rssfeed.Adapter) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	snap, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { snap.Close() })
	rss := rssfeed.New(httpx.NewClient(time.Second, ""), snap)

	r := gin.New()
	h := NewFeedHandler(rss)
	api := r.Group("/api")
	api.GET("/feeds", h.List)
	api.PUT("/feeds", h.Replace)
	api.POST("/feeds/opml", h.ImportOPML)
	return r, rss
}

func TestFeedListAndReplace(t *testing.T) {
	r, _ := feedRouter(t)

	w := do(t, r, http.MethodGet, "/api/feeds", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "go-blog") {
		t.Fatalf("default list = %d %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodPut, "/api/feeds", `{"feeds":[{"id":"mine","title":"Mine","url":"https://mine.test/rss"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("replace = %d %s", w.Code, w.Body.String())
	}
	w = do(t, r, http.MethodGet, "/api/feeds", "")
	body := w.Body.String()
	if !strings.Contains(body, "mine") || strings.Contains(body, "go-blog") {
		t.Fatalf("replaced list = %s", body)
	}

	w = do(t, r, http.MethodPut, "/api/feeds", `{"feeds":[{"id":"","title":"x","url":""}]}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("incomplete entry = %d, want 400", w.Code)
	}
}

func TestFeedOPMLImport(t *testing.T) {
	r, rss := feedRouter(t)
	opml := `<?xml version="1.0"?><opml version="2.0"><body>
		<outline type="rss" title="Imported" xmlUrl="https://imported.test/rss"/>
	</body></opml>`

	w := do(t, r, http.MethodPost, "/api/feeds/opml", opml)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"added":1`) {
		t.Fatalf("import = %d %s", w.Code, w.Body.String())
	}
	found := false
	for _, f := range rss.Feeds() {
		if f.URL == "https://imported.test/rss" {
			found = true
		}
	}
	if !found {
		t.Fatal("imported feed missing from the list")
	}

	w = do(t, r, http.MethodPost, "/api/feeds/opml", "not opml")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad opml = %d, want 400", w.Code)
	}
}
