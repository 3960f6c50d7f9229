package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dealhound/dealfeed/internal/validator"
)

// AffiliateTag is one configured affiliate parameter: any outbound URL whose
// host ends in Host gets Param=Value appended unless it already carries the
// parameter.
type AffiliateTag struct {
	Host  string `validate:"required"`
	Param string `validate:"required"`
	Value string `validate:"required"`
}

type Config struct {
	Port           string        `validate:"required,numeric"`
	RequestTimeout time.Duration `validate:"required"`

	// Curated spreadsheet feed. Either an API key (Sheets values API) or a
	// published-to-web URL (HTML table mode) makes the adapter available.
	SheetID           string
	SheetRanges       []string
	GoogleAPIKey      string
	SheetPublishedURL string
	SheetCacheTTL     time.Duration

	AliExpressAppKey     string
	AliExpressAppSecret  string
	AliExpressTrackingID string

	BanggoodAPIKey    string
	BanggoodAPISecret string

	UTMSource   string
	UTMMedium   string
	UTMCampaign string

	AffiliateTags []AffiliateTag
}

func Load() (*Config, error) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		slog.Info("Defaulting to port", "port", port)
	}

	requestTimeout := 15 * time.Second
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REQUEST_TIMEOUT %q: %w", v, err)
		}
		requestTimeout = parsed
	}

	sheetCacheTTL := 5 * time.Minute
	if v := os.Getenv("SHEET_CACHE_TTL"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SHEET_CACHE_TTL %q: %w", v, err)
		}
		sheetCacheTTL = parsed
	}

	sheetRanges := []string{"Deals!A1:N500"}
	if v := os.Getenv("SHEET_RANGES"); v != "" {
		sheetRanges = splitAndTrim(v)
	}

	tags, err := parseAffiliateTags(os.Getenv("AFFILIATE_TAGS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:           port,
		RequestTimeout: requestTimeout,

		SheetID:           os.Getenv("SHEET_ID"),
		SheetRanges:       sheetRanges,
		GoogleAPIKey:      os.Getenv("GOOGLE_API_KEY"),
		SheetPublishedURL: os.Getenv("SHEET_PUBLISHED_URL"),
		SheetCacheTTL:     sheetCacheTTL,

		AliExpressAppKey:     os.Getenv("ALIEXPRESS_APP_KEY"),
		AliExpressAppSecret:  os.Getenv("ALIEXPRESS_APP_SECRET"),
		AliExpressTrackingID: os.Getenv("ALIEXPRESS_TRACKING_ID"),

		BanggoodAPIKey:    os.Getenv("BANGGOOD_API_KEY"),
		BanggoodAPISecret: os.Getenv("BANGGOOD_API_SECRET"),

		UTMSource:   envOr("UTM_SOURCE", "dealfeed"),
		UTMMedium:   envOr("UTM_MEDIUM", "redirect"),
		UTMCampaign: envOr("UTM_CAMPAIGN", "deals"),

		AffiliateTags: tags,
	}

	if err := validator.New().ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if !cfg.SheetsEnabled() && !cfg.AliExpressEnabled() && !cfg.BanggoodEnabled() {
		return nil, fmt.Errorf("no source configured: set SHEET_ID, ALIEXPRESS_APP_KEY or BANGGOOD_API_KEY")
	}
	return cfg, nil
}

// SheetsEnabled reports whether the spreadsheet adapter has enough
// configuration to run in either fetch mode.
func (c *Config) SheetsEnabled() bool {
	return (c.SheetID != "" && c.GoogleAPIKey != "") || c.SheetPublishedURL != ""
}

func (c *Config) AliExpressEnabled() bool {
	return c.AliExpressAppKey != "" && c.AliExpressAppSecret != ""
}

func (c *Config) BanggoodEnabled() bool {
	return c.BanggoodAPIKey != "" && c.BanggoodAPISecret != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseAffiliateTags reads the AFFILIATE_TAGS format:
// "shop.example.com=aff:partner-42,amazon.com=tag:ours-20".
func parseAffiliateTags(raw string) ([]AffiliateTag, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var tags []AffiliateTag
	for _, entry := range splitAndTrim(raw) {
		host, rest, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid AFFILIATE_TAGS entry %q: want host=param:value", entry)
		}
		param, value, ok := strings.Cut(rest, ":")
		if !ok || host == "" || param == "" || value == "" {
			return nil, fmt.Errorf("invalid AFFILIATE_TAGS entry %q: want host=param:value", entry)
		}
		tags = append(tags, AffiliateTag{
			Host:  strings.ToLower(strings.TrimSpace(host)),
			Param: strings.TrimSpace(param),
			Value: strings.TrimSpace(value),
		})
	}
	return tags, nil
}
