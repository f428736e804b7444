// Package media turns stored media keys into URLs at send time.
package media

import (
	"fmt"
	"net/url"
	"strings"
)

// Resolver maps storage keys to fetchable URLs.
type Resolver interface {
	Resolve(keys []string) []string
}

// URLResolver joins keys onto a public base URL. Keys that already are absolute
// http(s) URLs pass through unchanged.
type URLResolver struct {
	base *url.URL
}

func NewURLResolver(baseURL string) (*URLResolver, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return &URLResolver{}, nil
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid media base url %q", baseURL)
	}
	return &URLResolver{base: parsed}, nil
}

// Resolve drops keys it cannot turn into a URL, so a missing base URL only
// hides relative media.
func (r *URLResolver) Resolve(keys []string) []string {
	urls := make([]string, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if isAbsoluteHTTP(key) {
			urls = append(urls, key)
			continue
		}
		if r == nil || r.base == nil {
			continue
		}
		urls = append(urls, r.base.JoinPath(strings.TrimLeft(key, "/")).String())
	}
	return urls
}

func isAbsoluteHTTP(key string) bool {
	u, err := url.Parse(key)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
