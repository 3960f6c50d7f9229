package normalize

import (
	"net/url"
	"strings"
)

// URL canonicalizes an outbound link: protocol-relative URLs get an https
// scheme, plain http is upgraded, and unsafe characters are percent-encoded
// by the round trip through net/url. The bool is false for empty input or
// anything that is not an absolute http(s) URL. Idempotent.
func URL(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if strings.HasPrefix(s, "//") {
		s = "https:" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}
	if u.Scheme == "http" {
		u.Scheme = "https"
	}
	if u.Scheme != "https" || u.Host == "" {
		return "", false
	}
	// net/url re-encodes the path but leaves the raw query alone; spaces are
	// the one unsafe character that actually shows up in feed cells.
	u.RawQuery = strings.ReplaceAll(u.RawQuery, " ", "%20")
	return u.String(), true
}
