// Package api serves the deal feed over HTTP: per-source and cross-source
// feed endpoints with conditional-GET caching and snapshot fallback, plus
// the outbound redirect rewriter.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dealhound/dealfeed/internal/cache"
	"github.com/dealhound/dealfeed/internal/config"
	"github.com/dealhound/dealfeed/internal/models"
	"github.com/dealhound/dealfeed/internal/source"
)

// maxSnapshotEntries bounds the last-known-good store. Snapshot keys are
// client-controlled query strings, so the store is capped and evicts the
// least-recently-used request shape.
const maxSnapshotEntries = 512

type Server struct {
	cfg       *config.Config
	sources   []source.Source
	byName    map[models.Source]source.Source
	snapshots *cache.SnapshotStore
	now       func() time.Time
}

// NewServer wires the configured adapters into the HTTP surface. Source
// order matters: it decides dedupe priority, so curated feeds go first.
func NewServer(cfg *config.Config, sources []source.Source) *Server {
	byName := make(map[models.Source]source.Source, len(sources))
	for _, s := range sources {
		byName[s.Name()] = s
	}
	return &Server{
		cfg:       cfg,
		sources:   sources,
		byName:    byName,
		snapshots: cache.NewSnapshotStore(maxSnapshotEntries),
		now:       time.Now,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"If-None-Match"},
			MaxAge:         300,
		}))
		r.Get("/deals", s.handleFeed)
		r.Get("/deals/{source}", s.handleSourceFeed)
	})

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(120, time.Minute))
		r.Get("/go", s.handleRedirect)
	})

	return r
}
