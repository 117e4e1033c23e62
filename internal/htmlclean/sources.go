package htmlclean

import (
	"regexp"
	"strings"
)

var (
	bbsAttach   = regexp.MustCompile(`(?is)<div[^>]*class="[^"]*(?:t_attach|ignore_js_op)[^"]*"[^>]*>.*?</div>`)
	emojiImg    = regexp.MustCompile(`(?is)<img[^>]*class="[^"]*emoji[^"]*"[^>]*>`)
	metaSpan    = regexp.MustCompile(`(?is)<span[^>]*class="[^"]*(?:informations|filename|meta)[^"]*"[^>]*>.*?</span>`)
	preCode     = regexp.MustCompile(`(?is)<pre>\s*<code>(.*?)</code>\s*</pre>`)
	italicTag   = regexp.MustCompile(`(?is)<i>(.*?)</i>`)
	lightboxDiv = regexp.MustCompile(`(?is)<div[^>]*class="[^"]*lightbox-wrapper[^"]*"[^>]*>`)
)

// LegacyBBS cleans a GBK forum post body. Attachment chrome is dropped,
// smiley images vanish, real images and links become markers.
func LegacyBBS(s string) string {
	s = bbsAttach.ReplaceAllString(s, "")
	return Generic(s, func(src string) bool {
		return strings.Contains(src, "smilies/") ||
			strings.Contains(src, "images/default/") ||
			strings.Contains(src, "images/common")
	})
}

// Discourse cleans a cooked post body. Emoji images collapse to their alt
// text, avatars and site chrome are dropped, attachment metadata spans go.
func Discourse(s string) string {
	s = emojiImg.ReplaceAllStringFunc(s, func(tag string) string {
		if m := imgAlt.FindStringSubmatch(tag); m != nil {
			return m[1]
		}
		return ""
	})
	s = metaSpan.ReplaceAllString(s, "")
	s = lightboxDiv.ReplaceAllString(s, "")
	return Generic(s, func(src string) bool {
		return strings.Contains(src, "avatar") || strings.Contains(src, "site-icon")
	})
}

// ItemText cleans link-aggregator item and comment HTML: paragraph breaks
// become blank lines, code blocks become fences, italics become
// underscores and anchors reduce to their URL.
func ItemText(s string) string {
	s = pOpen.ReplaceAllString(s, "\n\n")
	s = pClose.ReplaceAllString(s, "")
	s = preCode.ReplaceAllStringFunc(s, func(block string) string {
		m := preCode.FindStringSubmatch(block)
		if m == nil {
			return ""
		}
		return "\n```\n" + DecodeEntities(m[1]) + "\n```\n"
	})
	s = italicTag.ReplaceAllString(s, "_$1_")
	s = LinksToURLs(s)
	s = StripTags(s)
	s = DecodeEntities(s)
	return Tidy(s)
}

// QA cleans a scraped question-and-answer post body.
func QA(s string) string {
	return Generic(s, nil)
}
