package qa

import (
	"regexp"
)

// The write token is embedded in the topic page in whichever of these
// shapes the current frontend build emits. First match wins.
var oncePatterns = []*regexp.Regexp{
	regexp.MustCompile(`name="once"\s+value="(\d+)"`),
	regexp.MustCompile(`value="(\d+)"\s+name="once"`),
	regexp.MustCompile(`var\s+once\s*=\s*"?(\d+)"?`),
	regexp.MustCompile(`once:\s*"?(\d+)"?`),
	regexp.MustCompile(`once=(\d+)`),
}

// extractOnce pulls the CSRF token out of a topic page, empty when the
// page carries none (not signed in).
func extractOnce(body string) string {
	for _, p := range oncePatterns {
		if m := p.FindStringSubmatch(body); m != nil {
			return m[1]
		}
	}
	return ""
}

var topicHrefPattern = regexp.MustCompile(`/t/(\d+)`)

// topicIDFromHref extracts the numeric topic id from a topic link.
func topicIDFromHref(href string) string {
	if m := topicHrefPattern.FindStringSubmatch(href); m != nil {
		return m[1]
	}
	return ""
}
