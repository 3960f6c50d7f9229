package util

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// StoreFromURL infers a display-level store name from a deal URL when the
// upstream left the store field blank: the registrable domain minus its
// public suffix ("https://www.banggood.com/x" -> "banggood").
func StoreFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// IPs and single-label hosts have no registrable domain.
		return host
	}
	if i := strings.IndexByte(domain, '.'); i > 0 {
		return domain[:i]
	}
	return domain
}
