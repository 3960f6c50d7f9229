package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	gojson "github.com/goccy/go-json"

	"github.com/dealhound/dealfeed/internal/aggregate"
	"github.com/dealhound/dealfeed/internal/models"
	"github.com/dealhound/dealfeed/internal/source"
)

const (
	defaultLimit = 60
	maxLimit     = 200

	// Feeds are cheap to regenerate and change slowly; clients may keep a
	// copy for five minutes and serve it stale for ten more while they
	// revalidate.
	feedCacheControl = "public, max-age=300, stale-while-revalidate=600"
)

// feedResponse is the body of every feed endpoint. NextCursor is null, not
// absent, at the end of results — its null-ness is the termination signal.
type feedResponse struct {
	Count      int            `json:"count"`
	Items      []models.Deal  `json:"items"`
	NextCursor *string        `json:"nextCursor"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	Meta       aggregate.Meta `json:"meta"`
}

type feedQuery struct {
	filters         aggregate.Filters
	sortKey         string
	limit           int
	cursor          string
	hot             bool
	catalogFallback bool
}

func parseFeedQuery(r *http.Request) (feedQuery, error) {
	q := r.URL.Query()
	fq := feedQuery{
		filters: aggregate.Filters{
			Keyword:   strings.TrimSpace(q.Get("q")),
			Warehouse: strings.TrimSpace(q.Get("wh")),
			Store:     strings.TrimSpace(q.Get("store")),
		},
		limit:  defaultLimit,
		cursor: q.Get("cursor"),
	}

	switch sortKey := q.Get("sort"); sortKey {
	case "", aggregate.SortPriceAsc, aggregate.SortPriceDesc, aggregate.SortStoreAsc, aggregate.SortStoreDesc:
		fq.sortKey = sortKey
	default:
		return fq, fmt.Errorf("unknown sort %q", sortKey)
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fq, fmt.Errorf("invalid limit %q", v)
		}
		switch {
		case n < 1:
			n = 1
		case n > maxLimit:
			n = maxLimit
		}
		fq.limit = n
	}

	for param, dst := range map[string]**float64{"minPrice": &fq.filters.MinPrice, "maxPrice": &fq.filters.MaxPrice} {
		if v := q.Get(param); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < 0 {
				return fq, fmt.Errorf("invalid %s %q", param, v)
			}
			*dst = &f
		}
	}

	for param, dst := range map[string]*bool{"hot": &fq.hot, "fallback": &fq.catalogFallback} {
		if v := q.Get(param); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fq, fmt.Errorf("invalid %s %q", param, v)
			}
			*dst = b
		}
	}
	return fq, nil
}

// handleFeed serves the cross-source feed: every configured adapter queried
// in parallel, merged and re-ranked.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	s.serveFeed(w, r, s.sources)
}

func (s *Server) handleSourceFeed(w http.ResponseWriter, r *http.Request) {
	name := models.Source(chi.URLParam(r, "source"))
	src, ok := s.byName[name]
	if !ok {
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("unknown source %q", name))
		return
	}
	s.serveFeed(w, r, []source.Source{src})
}

func (s *Server) serveFeed(w http.ResponseWriter, r *http.Request, sources []source.Source) {
	fq, err := parseFeedQuery(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := snapshotKey(r.URL)
	body, degraded, err := s.buildFeed(r.Context(), sources, fq)
	if err != nil {
		slog.Error("feed build failed", "key", key, "error", err)
		s.serveFallback(w, key)
		return
	}

	etag := etagFor(body)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", feedCacheControl)
	if len(degraded) > 0 {
		w.Header().Set("X-Degraded-Sources", strings.Join(degraded, ","))
	}

	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	s.snapshots.Save(key, body, etag)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Write(body)
}

// buildFeed runs the full pipeline for one request. A panic anywhere in
// merge/filter/sort is converted to an error so the caller can fall back to
// the last good snapshot.
func (s *Server) buildFeed(ctx context.Context, sources []source.Source, fq feedQuery) (body []byte, degraded []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("aggregation panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	results := source.FetchAll(ctx, sources, source.Query{
		Keyword:         fq.filters.Keyword,
		Warehouse:       fq.filters.Warehouse,
		Store:           fq.filters.Store,
		CatalogFallback: fq.catalogFallback,
		// Merchants serve their curated hot list when there is nothing to
		// search for.
		Hot: fq.hot || fq.filters.Keyword == "",
	})
	for _, res := range results {
		if res.Degraded != "" {
			degraded = append(degraded, string(res.Source))
			sourceDegradedTotal.WithLabelValues(string(res.Source)).Inc()
		}
	}

	deals := aggregate.Merge(results)
	// Meta is computed before filtering so the client can always populate
	// its filter controls from the response it already has.
	meta := aggregate.CollectMeta(deals)
	deals = aggregate.Filter(deals, fq.filters)

	now := s.now()
	aggregate.SortDeals(deals, fq.sortKey, now)
	page, next := aggregate.Paginate(deals, fq.limit, fq.cursor)

	body, err = gojson.Marshal(feedResponse{
		Count:      len(deals),
		Items:      page,
		NextCursor: next,
		UpdatedAt:  now.UTC(),
		Meta:       meta,
	})
	return body, degraded, err
}

// serveFallback answers with the last good snapshot for this request shape,
// marked as such, or a clean 500 when none exists yet.
func (s *Server) serveFallback(w http.ResponseWriter, key string) {
	snap, ok := s.snapshots.Get(key)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "feed temporarily unavailable")
		return
	}
	snapshotFallbacksTotal.Inc()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("ETag", snap.ETag)
	w.Header().Set("X-Fallback", "snapshot")
	w.Write(snap.Body)
}

// snapshotKey canonicalizes a request shape: same path and same parameters
// in any order share one snapshot slot.
func snapshotKey(u *url.URL) string {
	return u.Path + "?" + u.Query().Encode()
}

func etagFor(body []byte) string {
	sum := sha256.Sum256(body)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// etagMatches implements the If-None-Match comparison: a list of candidates
// or "*", with weak validators compared by their opaque part.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == etag {
			return true
		}
	}
	return false
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	body, _ := gojson.Marshal(map[string]string{"error": msg})
	w.Write(body)
}
