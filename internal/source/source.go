// Package source defines the adapter contract every upstream implements and
// the fan-out that queries them all for one request.
package source

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dealhound/dealfeed/internal/models"
)

// Query carries the filter hints a request passes down to adapters. Adapters
// use what their upstream can act on (keyword search, hot mode) and ignore
// the rest; exact filtering happens in the aggregation engine.
type Query struct {
	Keyword   string
	Warehouse string
	Store     string

	// CatalogFallback lets the coupon-centric adapter return plain catalog
	// search results when a keyword matches no coupon, so an explicit query
	// is never answered empty-handed.
	CatalogFallback bool

	// Hot asks merchant adapters for their curated top list instead of a
	// keyword search. The gateway sets it when no keyword was given.
	Hot bool
}

// Source is one upstream adapter. Fetch returns fully normalized deals:
// non-empty title and url, no expired records. Errors are reported to the
// caller, which degrades that source to an empty contribution — a failing
// upstream never fails the aggregation.
type Source interface {
	Name() models.Source
	Fetch(ctx context.Context, q Query) ([]models.Deal, error)
}

// Result is one adapter's contribution. Degraded carries the failure reason
// when the adapter errored or panicked; the deals slice is then empty. This
// keeps failure visibility for headers and metrics without propagating a
// hard error.
type Result struct {
	Source   models.Source
	Deals    []models.Deal
	Degraded string
}

// FetchAll queries every source concurrently and waits for all of them to
// settle. There is no partial response: the slice always has one Result per
// source, in the order given, so curated sources keep dedupe priority.
func FetchAll(ctx context.Context, sources []Source, q Query) []Result {
	results := make([]Result, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("source panicked", "source", src.Name(), "panic", r)
					results[i] = Result{Source: src.Name(), Degraded: fmt.Sprintf("panic: %v", r)}
				}
			}()

			deals, err := src.Fetch(ctx, q)
			if err != nil {
				slog.Warn("source degraded to empty contribution", "source", src.Name(), "error", err)
				results[i] = Result{Source: src.Name(), Degraded: err.Error()}
				return nil
			}
			results[i] = Result{Source: src.Name(), Deals: deals}
			return nil
		})
	}
	// Goroutines never return an error; degradation is encoded per Result.
	_ = g.Wait()
	return results
}
