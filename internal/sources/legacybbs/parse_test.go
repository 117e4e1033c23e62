package legacybbs

import (
	"strings"
	"testing"
	"time"
)

const listFixture = `
<html><body>
<a href="index.php?sid=abCD1234">home</a>
<a href="logging.php?action=logout&amp;formhash=f00dbeef">logout</a>
<table>
<tbody id="normalthread_12345">
<tr>
<th><a href="viewthread.php?tid=12345&amp;extra=page%3D1">First &amp; best thread</a></th>
<td class="author"><cite><a href="space.php?uid=777">poster</a></cite></td>
<td class="nums"><strong>42</strong>/<em>1000</em></td>
<td class="lastpost"><em><a href="redirect.php?tid=12345">2026-8-31 09:30</a></em></td>
</tr>
</tbody>
<tbody id="thread_67890">
<tr>
<th><a href="viewthread.php?tid=67890">Sticky thread</a></th>
<td class="author"><cite><a href="space.php?uid=888">admin</a></cite></td>
<td class="nums"><strong>7</strong>/<em>99</em></td>
<td class="lastpost"><em><a href="redirect.php?tid=67890">2026-8-30</a></em></td>
</tr>
</tbody>
</table>
</body></html>`

const detailFixture = `
<html><body>
<div id="nav"><a href="index.php">Home</a> &raquo; <a href="forumdisplay.php?fid=2">Discovery</a></div>
<h1>First &amp; best thread</h1>
<div class="pages"><strong>1</strong><a href="viewthread.php?tid=12345&amp;page=2">2</a><a href="viewthread.php?tid=12345&amp;page=3">3</a></div>
<table>
<td class="postauthor"><cite><a href="space.php?uid=777">poster</a></cite></td>
发表于 <em id="authorposton1">2026-8-31 08:00</em>
<td class="t_msgfont" id="postmessage_900">Opening body<br><img src="http://img.example.com/pic.jpg"><img src="images/smilies/default/smile.gif"></td>
<td class="postauthor"><cite><a href="space.php?uid=778">replier</a></cite></td>
发表于 <em id="authorposton2">2026-8-31 09:00</em>
<td class="t_msgfont" id="postmessage_901">A reply with a <a href="http://example.com/ref">link</a></td>
</table>
<input type="hidden" name="formhash" value="f00dbeef" />formhash=f00dbeef
</body></html>`

func TestScanTokensLastSeenWins(t *testing.T) {
	body := `sid=first11 ... formhash=aaaa1111 ... sid=second22 ... formhash=bbbb2222`
	sid, formhash := scanTokens(body)
	if sid != "second22" {
		t.Errorf("sid = %q, want last-seen second22", sid)
	}
	if formhash != "bbbb2222" {
		t.Errorf("formhash = %q, want last-seen bbbb2222", formhash)
	}
	if sid, formhash = scanTokens("nothing here"); sid != "" || formhash != "" {
		t.Errorf("tokens found in token-free body: %q %q", sid, formhash)
	}
}

func TestParseThreadRows(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	rows := parseThreadRows(listFixture, now)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	first := rows[0]
	if first.ID != "12345" {
		t.Errorf("id = %q", first.ID)
	}
	if first.Title != "First &amp; best thread" {
		t.Errorf("title = %q", first.Title)
	}
	if first.Author != "poster" || first.AuthorID != "777" {
		t.Errorf("author = %q (%q)", first.Author, first.AuthorID)
	}
	if first.Replies != 42 {
		t.Errorf("replies = %d, want 42", first.Replies)
	}
	if first.Posted.IsZero() {
		t.Error("posted time not parsed")
	}
	if rows[1].ID != "67890" || rows[1].Replies != 7 {
		t.Errorf("second row = %+v", rows[1])
	}
}

func TestParseDetailPage(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	if got := parseTotalPages(detailFixture); got != 3 {
		t.Errorf("total pages = %d, want 3", got)
	}
	if got := parseForumID(detailFixture); got != "2" {
		t.Errorf("forum id = %q, want 2", got)
	}
	if got := parseDetailTitle(detailFixture); got != "First &amp; best thread" {
		t.Errorf("title = %q", got)
	}
	posts := parsePosts(detailFixture, now)
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(posts))
	}
	if posts[0].ID != "900" || posts[0].Author != "poster" || posts[0].AuthorID != "777" {
		t.Errorf("first post = %+v", posts[0])
	}
	if posts[0].Posted.IsZero() {
		t.Error("first post time not parsed")
	}
	if posts[1].ID != "901" || posts[1].Author != "replier" {
		t.Errorf("second post = %+v", posts[1])
	}
	if got := parseTotalPages("<html>no pager</html>"); got != 1 {
		t.Errorf("pagerless total pages = %d, want 1", got)
	}
}

func TestAjaxResponses(t *testing.T) {
	if msg := parseAjaxError(`<root><![CDATA[抱歉，您尚未登录]]></root>`); msg != "抱歉，您尚未登录" {
		t.Errorf("cdata error = %q", msg)
	}
	if msg := parseAjaxError(`ajaxerror[1]`); msg == "" {
		t.Error("ajaxerror marker not recognized")
	}
	if msg := parseAjaxError(`all fine`); msg != "" {
		t.Errorf("false positive error: %q", msg)
	}
	if !isPostSuccess("回复发布成功") || !isPostSuccess("reply succeed") {
		t.Error("success markers not recognized")
	}
	if isPostSuccess("some failure") {
		t.Error("false positive success")
	}
	if !looksLikeAuthFailure("请先登录") || !looksLikeAuthFailure("Please login first") || !looksLikeAuthFailure("无权访问") {
		t.Error("auth failure markers not recognized")
	}
	if looksLikeAuthFailure("ordinary content") {
		t.Error("false positive auth failure")
	}
}

func TestGBKEscape(t *testing.T) {
	if got := gbkEscape("abc-_.*123"); got != "abc-_.*123" {
		t.Errorf("unreserved set escaped: %q", got)
	}
	// GB18030 for 你好 is C4 E3 BA C3, percent-encoded per byte.
	if got := gbkEscape("你好"); got != "%C4%E3%BA%C3" {
		t.Errorf("gbkEscape(你好) = %q, want %%C4%%E3%%BA%%C3", got)
	}
	if got := gbkEscape("a b"); got != "a%20b" {
		t.Errorf("gbkEscape(a b) = %q", got)
	}
	form := encodeForm([][2]string{{"subject", ""}, {"message", "hi 你"}})
	if form != "subject=&message=hi%20%C4%E3" {
		t.Errorf("encodeForm = %q", form)
	}
}

func TestParseBBSTimeFormats(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	if got := parseBBSTime("2026-8-31 09:30", now); got.IsZero() {
		t.Error("dated time not parsed")
	}
	if got := parseBBSTime("2026-8-30", now); got.IsZero() {
		t.Error("date-only not parsed")
	}
	if got := parseBBSTime("3h", now); !strings.Contains(got.String(), "2026-08-31 09:00") {
		t.Errorf("relative fallback = %v", got)
	}
}
