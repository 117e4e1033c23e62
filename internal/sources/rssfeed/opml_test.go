package rssfeed

import (
	"net/http"
	"testing"
)

const sampleOPML = `<?xml version="1.0" encoding="UTF-8"?>
<opml version="2.0">
  <head><title>Subscriptions</title></head>
  <body>
    <outline type="rss" title="Example" xmlUrl="https://www.example.com/feed.xml" htmlUrl="https://www.example.com"/>
    <outline title="Tech">
      <outline type="rss" text="Nested Blog" xmlUrl="https://blog.test/rss"/>
    </outline>
    <outline title="Empty Folder"/>
  </body>
</opml>`

func TestParseOPMLWalksNestedFolders(t *testing.T) {
	feeds, err := ParseOPML([]byte(sampleOPML))
	if err != nil {
		t.Fatalf("ParseOPML: %v", err)
	}
	if len(feeds) != 2 {
		t.Fatalf("feeds = %+v, want 2 entries", feeds)
	}
	if feeds[0].Title != "Example" || feeds[0].URL != "https://www.example.com/feed.xml" {
		t.Errorf("first feed = %+v", feeds[0])
	}
	if feeds[0].ID != "example-com-feed-xml" {
		t.Errorf("derived id = %q", feeds[0].ID)
	}
	if feeds[1].Title != "Nested Blog" || feeds[1].URL != "https://blog.test/rss" {
		t.Errorf("nested feed = %+v", feeds[1])
	}
}

func TestParseOPMLWithoutFeedsIsError(t *testing.T) {
	if _, err := ParseOPML([]byte(`<opml><body><outline title="folder"/></body></opml>`)); err == nil {
		t.Fatal("folder-only opml must error")
	}
	if _, err := ParseOPML([]byte("not xml at all <")); err == nil {
		t.Fatal("malformed xml must error")
	}
}

func TestImportOPMLDedupesByURL(t *testing.T) {
	a, _, _ := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {})
	existing := []Feed{{ID: "example-com-feed-xml", Title: "Existing", URL: "https://www.example.com/feed.xml"}}
	if err := a.SaveFeeds(existing); err != nil {
		t.Fatal(err)
	}

	added, err := a.ImportOPML([]byte(sampleOPML))
	if err != nil {
		t.Fatalf("ImportOPML: %v", err)
	}
	if added != 1 {
		t.Fatalf("added = %d, want 1", added)
	}
	if feeds := a.Feeds(); len(feeds) != 2 {
		t.Fatalf("feeds after import = %+v", feeds)
	}

	// Importing the same document again changes nothing.
	added, err = a.ImportOPML([]byte(sampleOPML))
	if err != nil || added != 0 {
		t.Fatalf("re-import: added = %d, err = %v", added, err)
	}
}
