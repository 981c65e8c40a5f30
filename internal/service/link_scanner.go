package service

import (
	"strings"

	"github.com/pkg/browser"
	"github.com/serverwave/serverwave/pkg/logger"
)

// LinkOpener opens a URL in the user's environment. Injected so tests and
// headless deployments can swap out the real browser.
type LinkOpener interface {
	Open(url string) error
}

// BrowserOpener opens URLs in the local default browser.
type BrowserOpener struct{}

func (BrowserOpener) Open(url string) error {
	return browser.OpenURL(url)
}

// authKeywords mark a URL as an authentication flow worth surfacing to the
// user, e.g. a device-code login printed by an install script.
var authKeywords = []string{"oauth", "auth", "login", "verify", "device"}

// linkScanner watches install output for authentication URLs and opens each
// distinct one once per run.
type linkScanner struct {
	opener LinkOpener
	opened map[string]struct{}
}

func newLinkScanner(opener LinkOpener) *linkScanner {
	return &linkScanner{
		opener: opener,
		opened: make(map[string]struct{}),
	}
}

// Scan inspects one output line and opens any new authentication URL it
// carries. Failures to open are logged, never propagated; the URL is still in
// the visible log output.
func (s *linkScanner) Scan(line string) {
	for _, word := range strings.Fields(line) {
		idx := strings.Index(word, "https://")
		if idx < 0 {
			continue
		}
		url := trimURL(word[idx:])
		if url == "" || !isAuthURL(url) {
			continue
		}
		if _, seen := s.opened[url]; seen {
			continue
		}
		s.opened[url] = struct{}{}

		logger.Info("Opening authentication link", map[string]interface{}{
			"url": url,
		})
		if err := s.opener.Open(url); err != nil {
			logger.Warn("Failed to open authentication link", map[string]interface{}{
				"url":   url,
				"error": err.Error(),
			})
		}
	}
}

func isAuthURL(url string) bool {
	lower := strings.ToLower(url)
	for _, keyword := range authKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// trimURL strips the punctuation install scripts tend to wrap URLs in.
func trimURL(url string) string {
	url = strings.TrimRight(url, ".,;:!")
	url = strings.Trim(url, `"'<>()[]`)
	return url
}
