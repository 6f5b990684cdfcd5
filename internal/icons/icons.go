// Package icons resolves a service name to a favicon URL so the UI can
// show a logo next to each subscription. Lookups go through an LRU
// cache; any failure degrades to no icon.
package icons

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"abbo/internal/cache"
)

const (
	defaultBaseURL = "https://icons.duckduckgo.com/ip3"

	cacheSize = 256
	cacheTTL  = 24 * time.Hour
)

type Client struct {
	http    *http.Client
	cache   *cache.LRUCache[string]
	baseURL string
}

func NewClient() *Client {
	return &Client{
		http:    &http.Client{Timeout: 5 * time.Second},
		cache:   cache.NewLRUCache[string](cacheSize, cacheTTL),
		baseURL: defaultBaseURL,
	}
}

// NewClientWithBaseURL is used by tests to point lookups at a local server.
func NewClientWithBaseURL(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{
		http:    httpClient,
		cache:   cache.NewLRUCache[string](cacheSize, cacheTTL),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// LookupIconURL returns a favicon URL for the service name, or the
// empty string when none can be resolved. Negative results are cached
// too, so a misspelled name does not hammer the icon host.
func (c *Client) LookupIconURL(ctx context.Context, name string) string {
	domain := guessDomain(name)
	if domain == "" {
		return ""
	}

	if cached, ok := c.cache.Get(domain); ok {
		return cached
	}

	url := fmt.Sprintf("%s/%s.ico", c.baseURL, domain)
	result := ""
	if c.probe(ctx, url) {
		result = url
	}
	c.cache.Set(domain, result)
	return result
}

func (c *Client) probe(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// guessDomain turns "Apple Music " into "applemusic.com". Names that
// already look like a domain are used as-is.
func guessDomain(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return ""
	}
	if strings.Contains(name, ".") && !strings.Contains(name, " ") {
		return name
	}

	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return b.String() + ".com"
}
