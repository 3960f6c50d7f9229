package sheets

import "strings"

// column is one logical field of a curated sheet row.
type column int

const (
	colTitle column = iota
	colURL
	colShortURL
	colImage
	colPrice
	colOriginalPrice
	colCurrency
	colCoupon
	colWarehouse
	colStore
	colStartsAt
	colEndsAt
	colTags
)

// columnAliases maps each logical field to the header spellings curators
// have used over time. Matching is case-insensitive; resolution happens once
// per fetch, not per cell.
var columnAliases = map[column][]string{
	colTitle:         {"title", "name", "product", "deal"},
	colURL:           {"url", "link", "deal link", "product url"},
	colShortURL:      {"short url", "shortlink", "short link", "affiliate link"},
	colImage:         {"image", "img", "image url", "picture"},
	colPrice:         {"price", "deal price", "sale price"},
	colOriginalPrice: {"original price", "old price", "list price", "msrp"},
	colCurrency:      {"currency"},
	colCoupon:        {"coupon", "coupon code", "code", "promo code"},
	colWarehouse:     {"warehouse", "ships from", "wh"},
	colStore:         {"store", "merchant", "shop", "retailer"},
	colStartsAt:      {"start", "starts", "start date", "valid from"},
	colEndsAt:        {"end", "ends", "end date", "expires", "expiry", "valid until"},
	colTags:          {"tags", "categories", "category"},
}

// fixedColumns is the positional fallback for sheets whose header row never
// settled on recognizable names. The order matches the curated template.
var fixedColumns = map[column]int{
	colTitle:         0,
	colURL:           1,
	colShortURL:      2,
	colImage:         3,
	colPrice:         4,
	colOriginalPrice: 5,
	colCurrency:      6,
	colCoupon:        7,
	colWarehouse:     8,
	colStore:         9,
	colStartsAt:      10,
	colEndsAt:        11,
	colTags:          12,
}

// resolveColumns matches header cells against the alias lists. It succeeds
// when at least the title and link columns were identified; anything less
// and the caller falls back to fixed offsets.
func resolveColumns(header []string) (map[column]int, bool) {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		byName[strings.ToLower(strings.TrimSpace(h))] = i
	}

	cols := make(map[column]int)
	for col, aliases := range columnAliases {
		for _, alias := range aliases {
			if i, ok := byName[alias]; ok {
				cols[col] = i
				break
			}
		}
	}

	_, hasTitle := cols[colTitle]
	_, hasURL := cols[colURL]
	return cols, hasTitle && hasURL
}
