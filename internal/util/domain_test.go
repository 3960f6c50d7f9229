package util

import "testing"

func TestStoreFromURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain com", "https://banggood.com/item", "banggood"},
		{"www subdomain", "https://www.amazon.com/dp/123", "amazon"},
		{"deep subdomain", "https://shop.eu.gearbest.com/x", "gearbest"},
		{"two part tld", "https://example.co.uk/product", "example"},
		{"uppercase host", "https://WWW.Amazon.COM/dp/1", "amazon"},
		{"no host", "/relative/path", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StoreFromURL(tt.input); got != tt.want {
				t.Errorf("StoreFromURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
