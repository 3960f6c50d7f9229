// Package aggregate turns per-source deal lists into one feed: merge,
// dedupe, filter, rank, sort, paginate.
package aggregate

import (
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/dealhound/dealfeed/internal/models"
	"github.com/dealhound/dealfeed/internal/source"
	"github.com/dealhound/dealfeed/internal/util"
)

// Sort keys accepted by SortDeals. An empty key means score ordering.
const (
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortStoreAsc  = "store_asc"
	SortStoreDesc = "store_desc"
)

// Filters narrows a merged feed. Nil price bounds are ignored.
type Filters struct {
	Keyword   string
	Warehouse string
	Store     string
	MinPrice  *float64
	MaxPrice  *float64
}

// Meta lists the distinct filter values present in a result set so the
// client can build its filter controls from the data it already has.
type Meta struct {
	Warehouses []string `json:"warehouses"`
	Stores     []string `json:"stores"`
}

// Merge concatenates source results in the order they were requested and
// drops duplicates. Earlier sources win the dedupe, so curated feeds placed
// first take precedence over live API listings of the same offer.
func Merge(results []source.Result) []models.Deal {
	var all []models.Deal
	for _, r := range results {
		all = append(all, r.Deals...)
	}
	return Dedupe(all)
}

// Dedupe removes deals sharing a (URL without query, coupon code) identity,
// keeping the first occurrence. Two listings of one offer that differ only
// in tracking query strings still collide; listings with different coupon
// codes are kept as distinct deals.
func Dedupe(deals []models.Deal) []models.Deal {
	seen := make(map[string]struct{}, len(deals))
	out := deals[:0:0]
	for _, d := range deals {
		key := identityURL(d.URL) + "|" + d.CouponCode
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}
	return out
}

func identityURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// Filter keeps deals matching every supplied criterion.
//
// The keyword matches any one of title, coupon code, or tags as a
// case-insensitive substring. Warehouse "EU" is a regional shorthand meaning
// "has a warehouse tag that is not China", not a literal code. Deals without
// a known price never satisfy a minimum price bound but always satisfy a
// maximum one.
func Filter(deals []models.Deal, f Filters) []models.Deal {
	out := deals[:0:0]
	for _, d := range deals {
		if matches(d, f) {
			out = append(out, d)
		}
	}
	return out
}

func matches(d models.Deal, f Filters) bool {
	if f.Keyword != "" {
		kw := strings.ToLower(f.Keyword)
		hit := strings.Contains(strings.ToLower(d.Title), kw) ||
			strings.Contains(strings.ToLower(d.CouponCode), kw)
		for _, tag := range d.Tags {
			hit = hit || strings.Contains(strings.ToLower(tag), kw)
		}
		if !hit {
			return false
		}
	}

	if f.Warehouse != "" {
		if strings.EqualFold(f.Warehouse, "EU") {
			if d.Warehouse == "" || isChina(d.Warehouse) {
				return false
			}
		} else if !strings.EqualFold(d.Warehouse, f.Warehouse) {
			return false
		}
	}

	if f.Store != "" && !strings.EqualFold(storeName(d), f.Store) {
		return false
	}

	if f.MinPrice != nil && (d.Price == nil || *d.Price < *f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && d.Price != nil && *d.Price > *f.MaxPrice {
		return false
	}
	return true
}

func isChina(warehouse string) bool {
	return strings.EqualFold(warehouse, "CN") || strings.EqualFold(warehouse, "china")
}

// storeName resolves the store label, inferring it from the deal URL's
// domain when the field is blank.
func storeName(d models.Deal) string {
	if d.Store != "" {
		return d.Store
	}
	return util.StoreFromURL(d.URL)
}

// Score ranks a deal for the default ordering. Non-China shipping earns a
// flat 10, nearing expiry earns up to 10 on a ten-day decay, the discount
// depth earns up to 8, and a coupon code adds 2.
func Score(d models.Deal, now time.Time) float64 {
	var s float64
	if d.Warehouse != "" && !isChina(d.Warehouse) {
		s += 10
	}
	if d.EndsAt != nil && d.EndsAt.After(now) {
		days := d.EndsAt.Sub(now).Hours() / 24
		s += math.Max(0, 10-math.Min(10, days))
	}
	if d.Price != nil && d.OriginalPrice != nil && *d.OriginalPrice > 0 && *d.Price < *d.OriginalPrice {
		discount := (1 - *d.Price / *d.OriginalPrice) * 100
		s += math.Min(8, discount/5)
	}
	if d.CouponCode != "" {
		s += 2
	}
	return s
}

// SortDeals orders deals in place. Unknown or empty keys fall back to the
// score ordering, descending; all sorts are stable so merge order breaks
// ties.
func SortDeals(deals []models.Deal, key string, now time.Time) {
	switch key {
	case SortPriceAsc:
		sort.SliceStable(deals, func(i, j int) bool {
			return sortPrice(deals[i]) < sortPrice(deals[j])
		})
	case SortPriceDesc:
		sort.SliceStable(deals, func(i, j int) bool {
			return sortPrice(deals[i]) > sortPrice(deals[j])
		})
	case SortStoreAsc, SortStoreDesc:
		c := collate.New(language.English, collate.IgnoreCase)
		sort.SliceStable(deals, func(i, j int) bool {
			cmp := c.CompareString(storeName(deals[i]), storeName(deals[j]))
			if key == SortStoreDesc {
				return cmp > 0
			}
			return cmp < 0
		})
	default:
		type scored struct {
			deal  models.Deal
			score float64
		}
		ranked := make([]scored, len(deals))
		for i, d := range deals {
			ranked[i] = scored{deal: d, score: Score(d, now)}
		}
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].score > ranked[j].score
		})
		for i, r := range ranked {
			deals[i] = r.deal
		}
	}
}

func sortPrice(d models.Deal) float64 {
	if d.Price == nil {
		// Unknown prices sort after everything ascending and before
		// everything descending.
		return math.Inf(1)
	}
	return *d.Price
}

// Paginate slices out one page. The cursor is an integer offset serialized
// as a string; a nil nextCursor is the only end-of-results signal.
func Paginate(deals []models.Deal, limit int, cursor string) ([]models.Deal, *string) {
	offset := 0
	if cursor != "" {
		if n, err := strconv.Atoi(cursor); err == nil && n > 0 {
			offset = n
		}
	}
	if offset >= len(deals) {
		return []models.Deal{}, nil
	}

	end := offset + limit
	if end > len(deals) {
		end = len(deals)
	}
	page := deals[offset:end]

	if end < len(deals) {
		next := strconv.Itoa(end)
		return page, &next
	}
	return page, nil
}

// CollectMeta gathers the distinct warehouses and store names present in a
// result set, sorted for stable output.
func CollectMeta(deals []models.Deal) Meta {
	whSet := map[string]struct{}{}
	storeSet := map[string]struct{}{}
	for _, d := range deals {
		if d.Warehouse != "" {
			whSet[d.Warehouse] = struct{}{}
		}
		if s := storeName(d); s != "" {
			storeSet[s] = struct{}{}
		}
	}
	meta := Meta{
		Warehouses: make([]string, 0, len(whSet)),
		Stores:     make([]string, 0, len(storeSet)),
	}
	for w := range whSet {
		meta.Warehouses = append(meta.Warehouses, w)
	}
	for s := range storeSet {
		meta.Stores = append(meta.Stores, s)
	}
	sort.Strings(meta.Warehouses)
	sort.Strings(meta.Stores)
	return meta
}
