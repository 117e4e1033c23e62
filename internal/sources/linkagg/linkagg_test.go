package linkagg

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"feedflow/internal/httpx"
	"feedflow/internal/sources"
)

func fakeBackend(t *testing.T, failIDs map[int]bool) *Adapter {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/topstories.json":
			w.Write([]byte(`[1,2,3,4]`))
		case strings.HasPrefix(r.URL.Path, "/item/"):
			var id int
			fmt.Sscanf(r.URL.Path, "/item/%d.json", &id)
			if failIDs[id] {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			switch id {
			case 1:
				w.Write([]byte(`{"id":1,"type":"story","by":"alice","time":1756600000,
					"title":"A story","url":"https://example.com/s","score":120,"descendants":2,"kids":[10,11]}`))
			case 10:
				w.Write([]byte(`{"id":10,"type":"comment","by":"bob","time":1756600100,
					"text":"<p>Nice<p><i>very</i> nice"}`))
			case 11:
				w.Write([]byte(`{"id":11,"type":"comment","deleted":true}`))
			default:
				fmt.Fprintf(w, `{"id":%d,"type":"story","by":"u%d","time":1756600000,"title":"Story %d","score":%d}`,
					id, id, id, id*10)
			}
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL, httpx.NewClient(5*time.Second, ""))
}

func TestListThreadsHydratesInOrder(t *testing.T) {
	a := fakeBackend(t, nil)
	got, err := a.ListThreads(context.Background(), "topstories", nil, 1)
	if err != nil {
		t.Fatalf("ListThreads: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d threads, want 4", len(got))
	}
	for i, want := range []string{"1", "2", "3", "4"} {
		if got[i].ID != want {
			t.Errorf("position %d id = %q, want %q (id-list order)", i, got[i].ID, want)
		}
	}
	if got[0].Title != "A story" || got[0].LikeCount != 120 || got[0].CommentCount != 2 {
		t.Errorf("first thread mapped wrong: %+v", got[0])
	}
	if !strings.Contains(got[0].Content, "[LINK:https://example.com/s|") {
		t.Errorf("story url not carried as link marker: %q", got[0].Content)
	}
}

func TestPartialFailuresAreTolerated(t *testing.T) {
	a := fakeBackend(t, map[int]bool{2: true, 3: true})
	got, err := a.ListThreads(context.Background(), "topstories", nil, 1)
	if err != nil {
		t.Fatalf("partial failure must not fail the fan-out: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d threads, want 2 survivors", len(got))
	}
	if got[0].ID != "1" || got[1].ID != "4" {
		t.Errorf("surviving order wrong: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestPageBeyondFirstIsEmpty(t *testing.T) {
	a := fakeBackend(t, nil)
	got, err := a.ListThreads(context.Background(), "topstories", nil, 2)
	if err != nil {
		t.Fatalf("ListThreads page 2: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("page 2 should be empty, got %d", len(got))
	}
}

func TestFetchThreadDetail(t *testing.T) {
	a := fakeBackend(t, nil)
	got, err := a.FetchThreadDetail(context.Background(), "1", 1)
	if err != nil {
		t.Fatalf("FetchThreadDetail: %v", err)
	}
	if got.Thread.Title != "A story" {
		t.Errorf("thread = %+v", got.Thread)
	}
	// Kid 11 is deleted and must vanish.
	if len(got.Comments) != 1 {
		t.Fatalf("comments = %d, want 1", len(got.Comments))
	}
	c := got.Comments[0]
	if c.Author.Username != "bob" {
		t.Errorf("comment author = %+v", c.Author)
	}
	if !strings.Contains(c.Content, "Nice\n\n_very_ nice") {
		t.Errorf("comment text cleaning wrong: %q", c.Content)
	}
}

func TestCancellationPropagates(t *testing.T) {
	a := fakeBackend(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.ListThreads(ctx, "topstories", nil, 1)
	if !sources.IsCancellation(err) {
		t.Fatalf("err = %v, want cancellation", err)
	}
}

func TestWritesUnsupported(t *testing.T) {
	a := fakeBackend(t, nil)
	if err := a.PostComment(context.Background(), "1", "topstories", "x"); !sources.IsUnsupported(err) {
		t.Errorf("PostComment err = %v", err)
	}
	if err := a.CreateThread(context.Background(), "topstories", "t", "x"); !sources.IsUnsupported(err) {
		t.Errorf("CreateThread err = %v", err)
	}
}
