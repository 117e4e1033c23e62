package legacybbs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"feedflow/internal/httpx"
	"feedflow/internal/models"
)

// Extraction lives in pure functions over the decoded document string so
// markup drift breaks a unit test, not a network call.

var (
	sidPattern      = regexp.MustCompile(`sid=([a-zA-Z0-9]+)`)
	formhashPattern = regexp.MustCompile(`formhash=([a-zA-Z0-9]+)`)

	threadRowPattern = regexp.MustCompile(`(?s)<tbody[^>]*id="(?:normalthread_|thread_)(\d+)"[^>]*>(.*?)</tbody>`)
	rowTitlePattern  = regexp.MustCompile(`(?s)<a href="viewthread\.php\?tid=\d+[^"]*"[^>]*>(.*?)</a>`)
	rowAuthorPattern = regexp.MustCompile(`<a href="space\.php\?uid=(\d+)[^"]*"[^>]*>([^<]+)</a>`)
	rowRepliesPattern = regexp.MustCompile(`<td class="nums"><strong>(\d+)</strong>`)
	rowDatePattern   = regexp.MustCompile(`<em><a[^>]*>([^<]+)</a></em>`)

	pagesBlockPattern = regexp.MustCompile(`(?s)<div class="pages">(.*?)</div>`)
	pageNumPattern    = regexp.MustCompile(`>(\d+)<`)

	breadcrumbFidPattern = regexp.MustCompile(`forumdisplay\.php\?fid=(\d+)`)
	detailTitlePattern   = regexp.MustCompile(`(?s)<h1>(.*?)</h1>`)

	postBlockPattern  = regexp.MustCompile(`(?s)class="t_msgfont"[^>]*id="postmessage_(\d+)"[^>]*>(.*?)</td>`)
	postAuthorPattern = regexp.MustCompile(`(?s)<td class="postauthor"[^>]*>.*?<a href="space\.php\?uid=(\d+)[^"]*"[^>]*>([^<]+)</a>`)
	postTimePattern   = regexp.MustCompile(`发表于 <em[^>]*>([^<]+)</em>`)

	cdataPattern = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
)

// scanTokens pulls the embedded session id and form token out of any page.
// Both use last-seen wins, matching how the upstream rotates them.
func scanTokens(body string) (sid, formhash string) {
	if ms := sidPattern.FindAllStringSubmatch(body, -1); len(ms) > 0 {
		sid = ms[len(ms)-1][1]
	}
	if ms := formhashPattern.FindAllStringSubmatch(body, -1); len(ms) > 0 {
		formhash = ms[len(ms)-1][1]
	}
	return sid, formhash
}

type threadRow struct {
	ID       string
	Title    string
	AuthorID string
	Author   string
	Replies  int
	Posted   time.Time
}

func parseThreadRows(body string, now time.Time) []threadRow {
	var rows []threadRow
	for _, m := range threadRowPattern.FindAllStringSubmatch(body, -1) {
		id, chunk := m[1], m[2]
		row := threadRow{ID: id}
		if t := rowTitlePattern.FindStringSubmatch(chunk); t != nil {
			row.Title = cleanInline(t[1])
		}
		if a := rowAuthorPattern.FindStringSubmatch(chunk); a != nil {
			row.AuthorID = a[1]
			row.Author = strings.TrimSpace(a[2])
		}
		if r := rowRepliesPattern.FindStringSubmatch(chunk); r != nil {
			row.Replies, _ = strconv.Atoi(r[1])
		}
		if d := rowDatePattern.FindStringSubmatch(chunk); d != nil {
			row.Posted = parseBBSTime(strings.TrimSpace(d[1]), now)
		}
		if row.Title != "" {
			rows = append(rows, row)
		}
	}
	return rows
}

// parseTotalPages returns the highest page number in the pager block, or 1.
func parseTotalPages(body string) int {
	block := pagesBlockPattern.FindStringSubmatch(body)
	if block == nil {
		return 1
	}
	total := 1
	for _, m := range pageNumPattern.FindAllStringSubmatch(block[1], -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > total {
			total = n
		}
	}
	return total
}

// parseForumID finds the board id in the breadcrumb.
func parseForumID(body string) string {
	if m := breadcrumbFidPattern.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}

func parseDetailTitle(body string) string {
	if m := detailTitlePattern.FindStringSubmatch(body); m != nil {
		return cleanInline(m[1])
	}
	return ""
}

type postBlock struct {
	ID       string
	Content  string
	AuthorID string
	Author   string
	Posted   time.Time
}

// parsePosts extracts the message blocks of a thread page. Author and time
// cells live outside the message cell, so they are matched positionally;
// on a count mismatch the extra fields stay empty rather than misalign.
func parsePosts(body string, now time.Time) []postBlock {
	msgs := postBlockPattern.FindAllStringSubmatch(body, -1)
	authors := postAuthorPattern.FindAllStringSubmatch(body, -1)
	times := postTimePattern.FindAllStringSubmatch(body, -1)

	posts := make([]postBlock, 0, len(msgs))
	for i, m := range msgs {
		p := postBlock{ID: m[1], Content: m[2]}
		if i < len(authors) {
			p.AuthorID = authors[i][1]
			p.Author = strings.TrimSpace(authors[i][2])
		}
		if i < len(times) {
			p.Posted = parseBBSTime(strings.TrimSpace(times[i][1]), now)
		}
		posts = append(posts, p)
	}
	return posts
}

// parseAjaxError extracts the error text from an inajax response.
func parseAjaxError(body string) string {
	if m := cdataPattern.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(stripInline(m[1]))
	}
	if strings.Contains(body, "ajaxerror") {
		return "request rejected"
	}
	return ""
}

func isPostSuccess(body string) bool {
	return strings.Contains(body, "succeed") ||
		strings.Contains(body, "成功") ||
		strings.Contains(body, "发布")
}

// looksLikeAuthFailure recognizes the login-wall phrasings.
func looksLikeAuthFailure(body string) bool {
	return strings.Contains(body, "登录") ||
		strings.Contains(body, "无权访问") ||
		strings.Contains(strings.ToLower(body), "login")
}

func parseBBSTime(s string, now time.Time) time.Time {
	for _, layout := range []string{"2006-1-2 15:04", "2006-1-2"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return models.ParseRelative(s, now)
}

var inlineTag = regexp.MustCompile(`(?s)<[^>]+>`)

func cleanInline(s string) string {
	return strings.TrimSpace(inlineTag.ReplaceAllString(s, ""))
}

func stripInline(s string) string {
	return inlineTag.ReplaceAllString(s, "")
}

// gbkEscape percent-encodes a string for a legacy form post: the bytes are
// GB18030, not UTF-8, and only the unreserved set passes through.
func gbkEscape(s string) string {
	raw := httpx.EncodeGB18030(s)
	var b strings.Builder
	for _, c := range raw {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z',
			c == '-', c == '_', c == '.', c == '*':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// encodeForm renders ordered key/value pairs with GB18030 escaping.
func encodeForm(pairs [][2]string) string {
	parts := make([]string, 0, len(pairs))
	for _, kv := range pairs {
		parts = append(parts, kv[0]+"="+gbkEscape(kv[1]))
	}
	return strings.Join(parts, "&")
}
