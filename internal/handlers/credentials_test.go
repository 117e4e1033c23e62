package handlers

import (
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"feedflow/internal/secrets"
	"feedflow/internal/sources"
	"feedflow/internal/store"
)

func credentialRouter(t *testing.T) (*gin.Engine, *secrets.CredentialStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	snap, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { snap.Close() })
	creds := secrets.NewCredentialStore(snap, secrets.NewCipher("test-secret"))

	registry := sources.NewRegistry()
	registry.Register(&stubSource{id: "legacybbs"})
	registry.Register(&stubSource{id: "rss"})

	r := gin.New()
	h := NewCredentialHandler(creds, registry)
	api := r.Group("/api")
	api.GET("/sources/:source/credentials", h.Status)
	api.POST("/sources/:source/credentials", h.Save)
	api.DELETE("/sources/:source/credentials", h.Clear)
	return r, creds
}

func TestCredentialLifecycle(t *testing.T) {
	r, creds := credentialRouter(t)

	w := do(t, r, http.MethodGet, "/api/sources/legacybbs/credentials", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"configured":false`) {
		t.Fatalf("empty status = %d %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodPost, "/api/sources/legacybbs/credentials", `{"username":"alice","password":"s3cret"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("save = %d %s", w.Code, w.Body.String())
	}
	user, pass, ok := creds.Credentials("legacybbs")
	if !ok || user != "alice" || pass != "s3cret" {
		t.Fatalf("stored login = %q %q %v", user, pass, ok)
	}

	w = do(t, r, http.MethodGet, "/api/sources/legacybbs/credentials", "")
	body := w.Body.String()
	if !strings.Contains(body, `"configured":true`) || !strings.Contains(body, `"username":"alice"`) {
		t.Fatalf("status = %s", body)
	}
	if strings.Contains(body, "s3cret") {
		t.Fatal("status must never echo the password")
	}

	w = do(t, r, http.MethodDelete, "/api/sources/legacybbs/credentials", "")
	if w.Code != http.StatusOK {
		t.Fatalf("clear = %d", w.Code)
	}
	if _, _, ok := creds.Credentials("legacybbs"); ok {
		t.Fatal("credentials survived clear")
	}
}

func TestCredentialValidation(t *testing.T) {
	r, _ := credentialRouter(t)

	// Sources that never log in reject stored credentials.
	w := do(t, r, http.MethodPost, "/api/sources/rss/credentials", `{"username":"a","password":"b"}`)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("loginless source = %d, want 405", w.Code)
	}
	w = do(t, r, http.MethodGet, "/api/sources/nope/credentials", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown source = %d, want 404", w.Code)
	}
	w = do(t, r, http.MethodPost, "/api/sources/legacybbs/credentials", `{"username":"a"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing password = %d, want 400", w.Code)
	}
}
