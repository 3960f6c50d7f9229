package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Source identifies which adapter produced a deal.
type Source string

const (
	SourceSheets     Source = "sheets"
	SourceAliExpress Source = "aliexpress"
	SourceBanggood   Source = "banggood"
)

// DefaultCurrency is assumed when an upstream does not state one.
const DefaultCurrency = "USD"

// Deal is the canonical normalized offer record. Every adapter maps its
// native item shape into this one; nothing downstream knows about upstream
// schemas. Title and URL are required — records missing either never leave
// an adapter.
type Deal struct {
	ID            string     `json:"id" validate:"required"`
	Source        Source     `json:"source" validate:"required"`
	Store         string     `json:"store,omitempty"`
	Title         string     `json:"title" validate:"required"`
	URL           string     `json:"url" validate:"required,url"`
	ShortURL      string     `json:"shortUrl,omitempty" validate:"omitempty,url"`
	Image         string     `json:"image,omitempty" validate:"omitempty,url"`
	Price         *float64   `json:"price,omitempty" validate:"omitempty,gte=0"`
	OriginalPrice *float64   `json:"originalPrice,omitempty" validate:"omitempty,gte=0"`
	Currency      string     `json:"currency"`
	CouponCode    string     `json:"couponCode,omitempty"`
	Warehouse     string     `json:"warehouse,omitempty"`
	StartsAt      *time.Time `json:"startsAt,omitempty"`
	EndsAt        *time.Time `json:"endsAt,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	Tags          []string   `json:"tags,omitempty"`
}

// GenerateID derives a stable identity from the deal's content. Two fetches
// of the same underlying offer within one cache window produce the same id,
// so client-side diffing works.
func GenerateID(source Source, url, couponCode string) string {
	hash := sha256.Sum256([]byte(string(source) + "|" + url + "|" + couponCode))
	return hex.EncodeToString(hash[:])
}

// EnsureID fills in a content-hash id when the adapter had no native one.
func (d *Deal) EnsureID() {
	if d.ID == "" {
		d.ID = GenerateID(d.Source, d.URL, d.CouponCode)
	}
}

// Expired reports whether the deal's end date has passed. Deals without an
// end date never expire.
func (d *Deal) Expired(now time.Time) bool {
	return d.EndsAt != nil && d.EndsAt.Before(now)
}

// OutboundURL is the link a redirect should send the visitor to. The
// shortened affiliate variant wins when the vendor supplied one.
func (d *Deal) OutboundURL() string {
	if d.ShortURL != "" {
		return d.ShortURL
	}
	return d.URL
}
