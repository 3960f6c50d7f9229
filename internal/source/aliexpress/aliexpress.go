// Package aliexpress adapts the AliExpress affiliate API: a bearer token
// obtained with an MD5 sorted-param signature, then coupon-deal and product
// catalog queries mapped into canonical deals.
package aliexpress

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	gojson "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/dealhound/dealfeed/internal/cache"
	"github.com/dealhound/dealfeed/internal/models"
	"github.com/dealhound/dealfeed/internal/normalize"
	"github.com/dealhound/dealfeed/internal/signing"
	"github.com/dealhound/dealfeed/internal/source"
	"github.com/dealhound/dealfeed/internal/validator"
)

const (
	defaultBaseURL = "https://api-sg.aliexpress.com/rest"
	tokenKey       = "access-token"
	pageSize       = 50
	maxPages       = 3

	// tokenSafetyMargin is shaved off the advertised token lifetime so we
	// never present a token that expires mid-request.
	tokenSafetyMargin = 60 * time.Second
)

type Config struct {
	AppKey     string
	AppSecret  string
	TrackingID string

	// BaseURL overrides the production endpoint in tests.
	BaseURL string
}

type Adapter struct {
	cfg        Config
	httpClient *http.Client
	signer     signing.Signer
	tokens     *cache.TTL[string]
	limiter    *rate.Limiter
	validate   *validator.Validator
	now        func() time.Time
}

var _ source.Source = (*Adapter)(nil)

func New(cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Adapter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		signer:     signing.MD5Signer{Secret: cfg.AppSecret},
		tokens:     cache.NewTTL[string](time.Hour),
		limiter:    rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		validate:   validator.New(),
		now:        time.Now,
	}
}

func (a *Adapter) Name() models.Source { return models.SourceAliExpress }

// Fetch queries coupon deals, optionally narrowed by keyword. When a keyword
// search matches no coupon and the catalog fallback is requested, plain
// catalog results are returned instead so an explicit query never comes back
// empty-handed.
func (a *Adapter) Fetch(ctx context.Context, q source.Query) ([]models.Deal, error) {
	token, err := a.token(ctx)
	if err != nil {
		return nil, err
	}

	items, err := a.queryAll(ctx, "/coupon/query", token, q.Keyword)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 && q.Keyword != "" && q.CatalogFallback {
		items, err = a.queryAll(ctx, "/product/query", token, q.Keyword)
		if err != nil {
			return nil, err
		}
	}

	now := a.now()
	deals := make([]models.Deal, 0, len(items))
	for _, it := range items {
		if deal, ok := a.mapItem(it, now); ok {
			deals = append(deals, deal)
		}
	}
	return deals, nil
}

// token returns a cached bearer token, requesting a fresh one when the
// cached token has aged past its advertised lifetime minus a safety margin.
func (a *Adapter) token(ctx context.Context) (string, error) {
	if tok, ok := a.tokens.Get(tokenKey); ok {
		return tok, nil
	}

	params := url.Values{}
	params.Set("app_key", a.cfg.AppKey)
	params.Set("timestamp", strconv.FormatInt(a.now().UnixMilli(), 10))
	params.Set("sign", a.signer.Sign(params))

	body, err := a.get(ctx, "/auth/token", params)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}

	var resp tokenResponse
	if err := gojson.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("malformed token response: %w", err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token (code %d: %s)", resp.Code, resp.Message)
	}

	ttl := time.Duration(resp.ExpiresIn)*time.Second - tokenSafetyMargin
	if ttl <= 0 {
		ttl = time.Minute
	}
	a.tokens.SetFor(tokenKey, resp.AccessToken, ttl)
	return resp.AccessToken, nil
}

// queryAll walks the paginated listing until a short page or the page cap.
func (a *Adapter) queryAll(ctx context.Context, path, token, keyword string) ([]item, error) {
	var items []item
	for page := 1; page <= maxPages; page++ {
		params := url.Values{}
		params.Set("app_key", a.cfg.AppKey)
		params.Set("access_token", token)
		params.Set("tracking_id", a.cfg.TrackingID)
		params.Set("page_no", strconv.Itoa(page))
		params.Set("page_size", strconv.Itoa(pageSize))
		params.Set("timestamp", strconv.FormatInt(a.now().UnixMilli(), 10))
		if keyword != "" {
			params.Set("keywords", keyword)
		}
		params.Set("sign", a.signer.Sign(params))

		body, err := a.get(ctx, path, params)
		if err != nil {
			return nil, err
		}
		var resp queryResponse
		if err := gojson.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("malformed %s response: %w", path, err)
		}
		if resp.Code != 0 {
			return nil, fmt.Errorf("%s returned business error code %d: %s", path, resp.Code, resp.Message)
		}

		items = append(items, resp.Result.Items...)
		if len(resp.Result.Items) < pageSize {
			break
		}
	}
	return items, nil
}

func (a *Adapter) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	res, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status code %d from %s", res.StatusCode, path)
	}
	return io.ReadAll(res.Body)
}

// mapItem converts a vendor item into a canonical deal. The affiliate short
// link comes only from the vendor's promotion_link field — a missing one is
// left absent, never fabricated.
func (a *Adapter) mapItem(it item, now time.Time) (models.Deal, bool) {
	dealURL, ok := normalize.URL(it.ProductURL)
	if it.Title == "" || !ok {
		return models.Deal{}, false
	}

	deal := models.Deal{
		Source:     models.SourceAliExpress,
		Store:      "AliExpress",
		Title:      it.Title,
		URL:        dealURL,
		CouponCode: it.CouponCode,
		Warehouse:  it.ShipFrom,
		Currency:   models.DefaultCurrency,
		UpdatedAt:  now,
	}
	if it.ProductID != "" {
		deal.ID = string(models.SourceAliExpress) + "-" + it.ProductID
	}
	if len(it.Currency) == 3 {
		deal.Currency = it.Currency
	}
	if short, ok := normalize.URL(it.PromotionLink); ok {
		deal.ShortURL = short
	}
	if img, ok := normalize.URL(it.ImageURL); ok {
		deal.Image = img
	}
	if p, ok := normalize.ParseMoney(it.SalePrice); ok {
		deal.Price = &p
	}
	if p, ok := normalize.ParseMoney(it.OriginalPrice); ok {
		deal.OriginalPrice = &p
	}
	if t, ok := normalize.ParseTime(it.CouponStart); ok {
		deal.StartsAt = &t
	}
	if t, ok := normalize.ParseTime(it.CouponEnd); ok {
		deal.EndsAt = &t
	}
	if it.Category != "" {
		deal.Tags = []string{it.Category}
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

type tokenResponse struct {
	Code        int    `json:"code"`
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type queryResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Result  struct {
		Items []item `json:"items"`
		Total int    `json:"total"`
	} `json:"result"`
}

// item is the vendor-native record shape shared by the coupon and catalog
// endpoints; catalog items simply lack the coupon fields.
type item struct {
	ProductID     string `json:"product_id"`
	Title         string `json:"product_title"`
	ProductURL    string `json:"product_url"`
	PromotionLink string `json:"promotion_link"`
	ImageURL      string `json:"product_main_image_url"`
	SalePrice     string `json:"sale_price"`
	OriginalPrice string `json:"original_price"`
	Currency      string `json:"sale_price_currency"`
	CouponCode    string `json:"coupon_code"`
	CouponStart   string `json:"coupon_start_time"`
	CouponEnd     string `json:"coupon_end_time"`
	ShipFrom      string `json:"ship_from"`
	Category      string `json:"first_level_category_name"`
}
