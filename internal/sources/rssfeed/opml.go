package rssfeed

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
)

// opmlOutline nests: folder outlines wrap feed entries.
type opmlOutline struct {
	Title    string        `xml:"title,attr"`
	Text     string        `xml:"text,attr"`
	XMLURL   string        `xml:"xmlUrl,attr"`
	Outlines []opmlOutline `xml:"outline"`
}

type opmlDoc struct {
	XMLName xml.Name `xml:"opml"`
	Body    struct {
		Outlines []opmlOutline `xml:"outline"`
	} `xml:"body"`
}

// ParseOPML extracts the feed entries from an OPML export, walking nested
// folder outlines. Outlines without an xmlUrl are treated as folders.
func ParseOPML(data []byte) ([]Feed, error) {
	var doc opmlDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("opml: %w", err)
	}
	var feeds []Feed
	var walk func([]opmlOutline)
	walk = func(outlines []opmlOutline) {
		for _, o := range outlines {
			if o.XMLURL != "" {
				title := o.Title
				if title == "" {
					title = o.Text
				}
				if title == "" {
					title = o.XMLURL
				}
				feeds = append(feeds, Feed{ID: feedID(o.XMLURL), Title: title, URL: o.XMLURL})
			}
			walk(o.Outlines)
		}
	}
	walk(doc.Body.Outlines)
	if len(feeds) == 0 {
		return nil, fmt.Errorf("opml: no feed outlines found")
	}
	return feeds, nil
}

// feedID derives a stable community id from the feed URL so re-imports
// map onto the same id.
func feedID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	id := strings.TrimPrefix(u.Host, "www.") + u.Path
	id = strings.Trim(id, "/")
	id = strings.NewReplacer("/", "-", ".", "-").Replace(id)
	return strings.ToLower(id)
}

// ImportOPML merges an OPML export into the subscription list, deduping
// by feed URL. It returns how many new feeds were added.
func (a *Adapter) ImportOPML(data []byte) (int, error) {
	imported, err := ParseOPML(data)
	if err != nil {
		return 0, err
	}
	existing := a.Feeds()
	seen := make(map[string]bool, len(existing))
	for _, f := range existing {
		seen[f.URL] = true
	}
	added := 0
	for _, f := range imported {
		if seen[f.URL] {
			continue
		}
		seen[f.URL] = true
		existing = append(existing, f)
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, a.SaveFeeds(existing)
}
