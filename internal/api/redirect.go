package api

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dealhound/dealfeed/internal/config"
)

// RewriteOutbound prepares a deal link for the outbound hop: https upgrade,
// affiliate parameter injection, and tracking parameters. Existing query
// parameters are never overwritten — an upstream-supplied affiliate tag or
// UTM value wins over ours.
func RewriteOutbound(target string, src, code string, cfg *config.Config) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid target url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("target must be an absolute http(s) url, got %q", target)
	}
	u.Scheme = "https"

	q := u.Query()
	for _, tag := range cfg.AffiliateTags {
		if hostMatches(u.Hostname(), tag.Host) && !q.Has(tag.Param) {
			q.Set(tag.Param, tag.Value)
		}
	}

	setIfAbsent(q, "utm_source", cfg.UTMSource)
	setIfAbsent(q, "utm_medium", cfg.UTMMedium)
	setIfAbsent(q, "utm_campaign", cfg.UTMCampaign)
	if src != "" {
		setIfAbsent(q, "utm_content", src)
	}
	if code != "" {
		setIfAbsent(q, "utm_term", code)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

func setIfAbsent(q url.Values, key, value string) {
	if value != "" && !q.Has(key) {
		q.Set(key, value)
	}
}

func hostMatches(host, suffix string) bool {
	host = strings.ToLower(host)
	return host == suffix || strings.HasSuffix(host, "."+suffix)
}

// interstitialTmpl is the referrer-stripping variant of the redirect: the
// response header, the meta tag, and location.replace together cover client
// quirks so no referrer reaches the merchant.
var interstitialTmpl = template.Must(template.New("interstitial").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="referrer" content="no-referrer">
<meta http-equiv="refresh" content="0;url={{.}}">
<title>Redirecting…</title>
</head>
<body>
<script>location.replace({{.}});</script>
<p>Redirecting to <a href="{{.}}" rel="noreferrer noopener">the deal</a>.</p>
</body>
</html>
`))

// handleRedirect sends the visitor to a rewritten outbound link. With
// out=html it renders the interstitial page instead of a 302; both variants
// suppress the referrer and are never cached.
func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := q.Get("u")
	if target == "" {
		http.Error(w, "missing required parameter u", http.StatusBadRequest)
		return
	}

	dest, err := RewriteOutbound(target, q.Get("src"), q.Get("code"), s.cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer")

	if q.Get("out") == "html" {
		redirectsTotal.WithLabelValues("html").Inc()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		// Headers are out by now; a write failure here means the client hung up.
		if err := interstitialTmpl.Execute(w, dest); err != nil {
			slog.Debug("interstitial write failed", "error", err)
		}
		return
	}

	redirectsTotal.WithLabelValues("302").Inc()
	http.Redirect(w, r, dest, http.StatusFound)
}
