// Package htmlclean converts source-specific HTML fragments into the plain
// text form used across the app: no tags, entities decoded, images and
// links reduced to [IMAGE:url] and [LINK:url|title] markers.
//
// Extraction is pattern based on purpose. Each source's markup drifts
// independently, and these functions take a document string and return
// text with no network dependency, so drift shows up as a localized test
// failure.
package htmlclean

import (
	"html"
	"regexp"
	"strings"
)

var (
	imgTag        = regexp.MustCompile(`(?is)<img[^>]*?src=["']([^"']+)["'][^>]*?>`)
	imgAlt        = regexp.MustCompile(`(?is)alt=["']([^"']*)["']`)
	anchorTag     = regexp.MustCompile(`(?is)<a[^>]*?href=["']([^"']+)["'][^>]*?>(.*?)</a>`)
	brTag         = regexp.MustCompile(`(?i)<br\s*/?>`)
	pOpen         = regexp.MustCompile(`(?i)<p[^>]*>`)
	pClose        = regexp.MustCompile(`(?i)</p>`)
	anyTag        = regexp.MustCompile(`(?s)<[^>]+>`)
	multiNewline  = regexp.MustCompile(`\n{3,}`)
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
)

// ImageFilter reports whether an image src should be dropped instead of
// becoming a marker (forum smilies, avatars, site chrome).
type ImageFilter func(src string) bool

// ImagesToMarkers replaces every img tag with an [IMAGE:src] marker.
// Filtered images are removed entirely.
func ImagesToMarkers(s string, drop ImageFilter) string {
	return imgTag.ReplaceAllStringFunc(s, func(tag string) string {
		m := imgTag.FindStringSubmatch(tag)
		if m == nil {
			return ""
		}
		src := m[1]
		if drop != nil && drop(src) {
			return ""
		}
		return "[IMAGE:" + src + "]"
	})
}

// LinksToMarkers replaces anchors with [LINK:href|text] markers. Anchors
// to fragments and javascript pseudo-links keep only their inner text.
func LinksToMarkers(s string) string {
	return anchorTag.ReplaceAllStringFunc(s, func(tag string) string {
		m := anchorTag.FindStringSubmatch(tag)
		if m == nil {
			return ""
		}
		href, inner := m[1], m[2]
		text := strings.TrimSpace(StripTags(inner))
		if strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return text
		}
		if text == "" {
			text = href
		}
		return "[LINK:" + href + "|" + text + "]"
	})
}

// LinksToURLs replaces anchors with their bare href, the convention for
// link-aggregator comment text.
func LinksToURLs(s string) string {
	return anchorTag.ReplaceAllString(s, "$1")
}

// BreaksToNewlines maps br and paragraph boundaries to newlines.
func BreaksToNewlines(s string) string {
	s = brTag.ReplaceAllString(s, "\n")
	s = pClose.ReplaceAllString(s, "\n")
	s = pOpen.ReplaceAllString(s, "\n")
	return s
}

// StripTags removes every remaining tag.
func StripTags(s string) string {
	return anyTag.ReplaceAllString(s, "")
}

// DecodeEntities resolves named and numeric (decimal and hex) entities.
func DecodeEntities(s string) string {
	return html.UnescapeString(s)
}

// Tidy collapses runs of blank lines and trims the result.
func Tidy(s string) string {
	s = trailingSpace.ReplaceAllString(s, "\n")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Generic is the default pipeline: images and links to markers, breaks to
// newlines, tags stripped, entities decoded.
func Generic(s string, drop ImageFilter) string {
	s = ImagesToMarkers(s, drop)
	s = LinksToMarkers(s)
	s = BreaksToNewlines(s)
	s = StripTags(s)
	s = DecodeEntities(s)
	return Tidy(s)
}
