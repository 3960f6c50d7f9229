// Package sheets adapts the curated spreadsheet feed. It reads one or more
// named tabular ranges, resolves columns by header aliases (falling back to
// fixed offsets), and keeps all rows behind a short TTL cache shared across
// requests — a stale read beats hammering the spreadsheet API per request.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/dealhound/dealfeed/internal/cache"
	"github.com/dealhound/dealfeed/internal/models"
	"github.com/dealhound/dealfeed/internal/normalize"
	"github.com/dealhound/dealfeed/internal/source"
	"github.com/dealhound/dealfeed/internal/validator"
)

const rowsKey = "all-rows"

// Table is one named range: a header row followed by data rows.
type Table [][]any

type Config struct {
	SpreadsheetID string
	Ranges        []string
	APIKey        string

	// PublishedURL enables the fallback mode that scrapes the
	// published-to-web HTML rendering instead of the values API.
	PublishedURL string

	CacheTTL time.Duration
}

type Adapter struct {
	cfg        Config
	svc        *sheetsapi.Service
	httpClient *http.Client
	rows       *cache.TTL[[]Table]
	limiter    *rate.Limiter
	validate   *validator.Validator
	now        func() time.Time
}

var _ source.Source = (*Adapter)(nil)

func New(ctx context.Context, cfg Config) (*Adapter, error) {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	a := &Adapter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		rows:       cache.NewTTL[[]Table](cfg.CacheTTL),
		limiter:    rate.NewLimiter(rate.Every(time.Second), 2),
		validate:   validator.New(),
		now:        time.Now,
	}

	switch {
	case cfg.APIKey != "" && cfg.SpreadsheetID != "":
		svc, err := sheetsapi.NewService(ctx, option.WithAPIKey(cfg.APIKey))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
		}
		a.svc = svc
	case cfg.PublishedURL != "":
		// HTML mode, no client needed.
	default:
		return nil, errors.New("sheets adapter needs an API key + spreadsheet id, or a published URL")
	}
	return a, nil
}

func (a *Adapter) Name() models.Source { return models.SourceSheets }

// Fetch returns all curated deals. The sheet is small and curated, so filter
// hints are left to the aggregation engine.
func (a *Adapter) Fetch(ctx context.Context, _ source.Query) ([]models.Deal, error) {
	tables, err := a.allTables(ctx)
	if err != nil {
		return nil, err
	}

	now := a.now()
	var deals []models.Deal
	for _, tbl := range tables {
		deals = append(deals, a.mapTable(tbl, now)...)
	}
	return deals, nil
}

// allTables serves from the shared TTL cache and refreshes lazily on expiry.
func (a *Adapter) allTables(ctx context.Context) ([]Table, error) {
	if tables, ok := a.rows.Get(rowsKey); ok {
		return tables, nil
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var tables []Table
	var err error
	if a.svc != nil {
		tables, err = a.fetchValues(ctx)
	} else {
		tables, err = a.fetchPublished(ctx)
	}
	if err != nil {
		return nil, err
	}
	a.rows.Set(rowsKey, tables)
	return tables, nil
}

func (a *Adapter) fetchValues(ctx context.Context) ([]Table, error) {
	resp, err := a.svc.Spreadsheets.Values.
		BatchGet(a.cfg.SpreadsheetID).
		Ranges(a.cfg.Ranges...).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("sheets batchGet failed: %w", err)
	}

	tables := make([]Table, 0, len(resp.ValueRanges))
	for _, vr := range resp.ValueRanges {
		if len(vr.Values) > 0 {
			tables = append(tables, Table(vr.Values))
		}
	}
	return tables, nil
}

// mapTable converts one range into deals: row 1 is the header; rows missing
// title or link are skipped, as are rows whose end date has passed.
func (a *Adapter) mapTable(tbl Table, now time.Time) []models.Deal {
	if len(tbl) < 2 {
		return nil
	}
	header := make([]string, len(tbl[0]))
	for i, cell := range tbl[0] {
		header[i] = cellString(cell)
	}
	cols, ok := resolveColumns(header)
	if !ok {
		cols = fixedColumns
	}

	deals := make([]models.Deal, 0, len(tbl)-1)
	for _, row := range tbl[1:] {
		if deal, ok := a.mapRow(cols, row, now); ok {
			deals = append(deals, deal)
		}
	}
	return deals
}

func (a *Adapter) mapRow(cols map[column]int, row []any, now time.Time) (models.Deal, bool) {
	cell := func(c column) any {
		i, ok := cols[c]
		if !ok || i >= len(row) {
			return nil
		}
		return row[i]
	}
	str := func(c column) string { return cellString(cell(c)) }

	title := str(colTitle)
	dealURL, urlOK := normalize.URL(str(colURL))
	if title == "" || !urlOK {
		return models.Deal{}, false
	}

	deal := models.Deal{
		Source:     models.SourceSheets,
		Title:      title,
		URL:        dealURL,
		Store:      str(colStore),
		CouponCode: str(colCoupon),
		Warehouse:  str(colWarehouse),
		Currency:   models.DefaultCurrency,
		UpdatedAt:  now,
	}
	if c := strings.ToUpper(str(colCurrency)); len(c) == 3 {
		deal.Currency = c
	}
	if short, ok := normalize.URL(str(colShortURL)); ok {
		deal.ShortURL = short
	}
	if img, ok := normalize.URL(str(colImage)); ok {
		deal.Image = img
	}
	if p, ok := cellMoney(cell(colPrice)); ok {
		deal.Price = &p
	}
	if p, ok := cellMoney(cell(colOriginalPrice)); ok {
		deal.OriginalPrice = &p
	}
	if t, ok := normalize.ParseTime(cell(colStartsAt)); ok {
		deal.StartsAt = &t
	}
	if t, ok := normalize.ParseTime(cell(colEndsAt)); ok {
		deal.EndsAt = &t
	}
	if tags := str(colTags); tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				deal.Tags = append(deal.Tags, tag)
			}
		}
	}

	if deal.Expired(now) {
		return models.Deal{}, false
	}
	deal.EnsureID()
	if err := a.validate.ValidateStruct(deal); err != nil {
		return models.Deal{}, false
	}
	return deal, true
}

func cellString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// cellMoney accepts both unformatted numeric cells and display strings.
func cellMoney(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0, false
		}
		return n, true
	case int:
		if n < 0 {
			return 0, false
		}
		return float64(n), true
	default:
		return normalize.ParseMoney(cellString(v))
	}
}
