// Package httpx is the shared HTTP plumbing for the source adapters:
// custom headers, manual cookie injection and raw byte access so legacy
// encodings can be decoded after the fact.
package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DesktopUA and MobileUA are the user agents the upstream backends expect.
const (
	DesktopUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	MobileUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
)

// Client wraps http.Client with the conventions every adapter shares.
// Cookie handling is manual: the jar is disabled so a literal Cookie
// header is never silently merged with or dropped by an automatic one.
type Client struct {
	http *http.Client
	ua   string
}

func NewClient(timeout time.Duration, ua string) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if ua == "" {
		ua = DesktopUA
	}
	return &Client{
		http: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		ua: ua,
	}
}

// Do issues a request with the shared conventions applied and returns the
// raw response. Callers own closing the body.
func (c *Client) Do(ctx context.Context, method, url string, headers map[string]string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.ua)
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	return c.http.Do(req)
}

// GetBytes fetches a URL and returns the raw body bytes and status code.
func (c *Client) GetBytes(ctx context.Context, url string, headers map[string]string) ([]byte, int, error) {
	resp, err := c.Do(ctx, http.MethodGet, url, headers, nil)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return b, resp.StatusCode, nil
}

// PostForm posts an already-encoded form body with the usual AJAX headers
// legacy forums check for.
func (c *Client) PostForm(ctx context.Context, url, encodedBody string, headers map[string]string) ([]byte, int, error) {
	merged := map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	}
	for k, v := range headers {
		merged[k] = v
	}
	resp, err := c.Do(ctx, http.MethodPost, url, merged, strings.NewReader(encodedBody))
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return b, resp.StatusCode, nil
}
