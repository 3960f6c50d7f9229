// Package banggood adapts the Banggood affiliate API. The vendor signs
// business-interface calls with HMAC-SHA256 over sorted params and a
// millisecond timestamp, rate-limits aggressively, and runs two API hosts —
// so fetches are retried a bounded number of times across both hosts with a
// growing per-attempt timeout, behind a circuit breaker.
package banggood

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/dealhound/dealfeed/internal/cache"
	"github.com/dealhound/dealfeed/internal/models"
	"github.com/dealhound/dealfeed/internal/normalize"
	"github.com/dealhound/dealfeed/internal/signing"
	"github.com/dealhound/dealfeed/internal/source"
	"github.com/dealhound/dealfeed/internal/util"
	"github.com/dealhound/dealfeed/internal/validator"
)

const (
	tokenKey          = "access-token"
	maxRetries        = 2
	retryBase         = 500 * time.Millisecond
	retryCap          = 2 * time.Second
	tokenSafetyMargin = 60 * time.Second

	// codeOK is this vendor's success code; anything else is a business
	// error and must never be retried.
	codeOK = 200
)

var defaultBaseURLs = []string{
	"https://affiliate.banggood.com/api",
	"https://affapi.banggood.com/api",
}

type Config struct {
	APIKey    string
	APISecret string

	// BaseURLs lists the primary endpoint first; retries rotate through the
	// rest. Overridden in tests.
	BaseURLs []string

	// AttemptTimeout is the budget for the first attempt; later attempts
	// get proportionally more.
	AttemptTimeout time.Duration
}

type Adapter struct {
	cfg        Config
	httpClient *http.Client
	signer     signing.Signer
	tokens     *cache.TTL[string]
	breaker    *gobreaker.CircuitBreaker[[]models.Deal]
	validate   *validator.Validator
	now        func() time.Time
}

var _ source.Source = (*Adapter)(nil)

func New(cfg Config) *Adapter {
	if len(cfg.BaseURLs) == 0 {
		cfg.BaseURLs = defaultBaseURLs
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 5 * time.Second
	}
	return &Adapter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		signer:     signing.HMACSigner{Secret: cfg.APISecret},
		tokens:     cache.NewTTL[string](time.Hour),
		breaker: gobreaker.NewCircuitBreaker[[]models.Deal](gobreaker.Settings{
			Name:    "banggood",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
		validate: validator.New(),
		now:      time.Now,
	}
}

func (a *Adapter) Name() models.Source { return models.SourceBanggood }

// Fetch returns the vendor's hot list when q.Hot is set or no keyword was
// given, and keyword search results otherwise.
func (a *Adapter) Fetch(ctx context.Context, q source.Query) ([]models.Deal, error) {
	return a.breaker.Execute(func() ([]models.Deal, error) {
		var deals []models.Deal
		err := util.RetryWithBackoff(ctx, maxRetries, retryBase, retryCap, func(attempt int) error {
			base := a.cfg.BaseURLs[attempt%len(a.cfg.BaseURLs)]
			attemptCtx, cancel := context.WithTimeout(ctx, a.cfg.AttemptTimeout*time.Duration(attempt+1))
			defer cancel()

			ds, err := a.fetchOnce(attemptCtx, base, q)
			if err != nil {
				return err
			}
			deals = ds
			return nil
		})
		return deals, err
	})
}

func (a *Adapter) fetchOnce(ctx context.Context, base string, q source.Query) ([]models.Deal, error) {
	token, err := a.token(ctx, base)
	if err != nil {
		return nil, err
	}

	path := "/product/hotProducts"
	params := url.Values{}
	if q.Keyword != "" && !q.Hot {
		path = "/product/search"
		params.Set("keyword", q.Keyword)
	}
	if q.Warehouse != "" {
		params.Set("warehouse", q.Warehouse)
	}
	params.Set("page", "1")

	body, err := a.signedGet(ctx, base, path, params, token)
	if err != nil {
		return nil, err
	}

	var resp productResponse
	if err := gojson.Unmarshal(body, &resp); err != nil {
		return nil, util.Permanent(fmt.Errorf("malformed %s response: %w", path, err))
	}
	if resp.Code != codeOK {
		return nil, util.Permanent(fmt.Errorf("%s returned business error code %d: %s", path, resp.Code, resp.Msg))
	}

	now := a.now()
	deals := make([]models.Deal, 0, len(resp.Result.ProductList))
	for _, p := range resp.Result.ProductList {
		if deal, ok := a.mapProduct(p, now); ok {
			deals = append(deals, deal)
		}
	}
	return deals, nil
}

func (a *Adapter) token(ctx context.Context, base string) (string, error) {
	if tok, ok := a.tokens.Get(tokenKey); ok {
		return tok, nil
	}

	params := url.Values{}
	params.Set("api_key", a.cfg.APIKey)
	params.Set("noncestr", strconv.FormatInt(a.now().UnixNano(), 36))
	body, err := a.signedGet(ctx, base, "/getAccessToken", params, "")
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}

	var resp tokenResponse
	if err := gojson.Unmarshal(body, &resp); err != nil {
		return "", util.Permanent(fmt.Errorf("malformed token response: %w", err))
	}
	if resp.Code != codeOK || resp.Result.AccessToken == "" {
		return "", util.Permanent(fmt.Errorf("token rejected with code %d: %s", resp.Code, resp.Msg))
	}

	ttl := time.Duration(resp.Result.ExpiresIn)*time.Second - tokenSafetyMargin
	if ttl <= 0 {
		ttl = time.Minute
	}
	a.tokens.SetFor(tokenKey, resp.Result.AccessToken, ttl)
	return resp.Result.AccessToken, nil
}

// signedGet performs one signed request. Network and timeout errors come
// back retryable; HTTP 429/5xx are treated as transient too since the vendor
// sheds load that way.
func (a *Adapter) signedGet(ctx context.Context, base, path string, params url.Values, token string) ([]byte, error) {
	params.Set("api_key", a.cfg.APIKey)
	params.Set("timestamp", strconv.FormatInt(a.now().UnixMilli(), 10))
	params.Set("signature", a.signer.Sign(params))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, util.Permanent(err)
	}
	if token != "" {
		req.Header.Set("access-token", token)
	}

	res, err := a.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusOK:
		return io.ReadAll(res.Body)
	case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500:
		return nil, fmt.Errorf("transient status code %d from %s", res.StatusCode, path)
	default:
		return nil, util.Permanent(fmt.Errorf("status code %d from %s", res.StatusCode, path))
	}
}

// classifyTransportError keeps network/timeout failures retryable and marks
// everything else permanent.
func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return err
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return err
	}
	return util.Permanent(err)
}

func (a *Adapter) mapProduct(p product, now time.Time) (models.Deal, bool) {
	dealURL, ok := normalize.URL(p.URL)
	if p.Name == "" || !ok {
		return models.Deal{}, false
	}

	deal := models.Deal{
		Source:     models.SourceBanggood,
		Store:      "Banggood",
		Title:      p.Name,
		URL:        dealURL,
		CouponCode: p.CouponCode,
		Warehouse:  p.Warehouse,
		Currency:   models.DefaultCurrency,
		UpdatedAt:  now,
	}
	if p.ProductID != "" {
		deal.ID = string(models.SourceBanggood) + "-" + p.ProductID
	}
	if len(p.Currency) == 3 {
		deal.Currency = p.Currency
	}
	if short, ok := normalize.URL(p.ShareURL); ok {
		deal.ShortURL = short
	}
	if img, ok := normalize.URL(p.ImageURL); ok {
		deal.Image = img
	}
	if v, ok := normalize.ParseMoney(p.FinalPrice); ok {
		deal.Price = &v
	}
	if v, ok := normalize.ParseMoney(p.OriginalPrice); ok {
		deal.OriginalPrice = &v
	}
	if t, ok := normalize.ParseTime(p.EndTime); ok {
		deal.EndsAt = &t
	}
	if p.CategoryName != "" {
		deal.Tags = []string{p.CategoryName}
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
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	} `json:"result"`
}

type productResponse struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Result struct {
		ProductList []product `json:"product_list"`
		Total       int       `json:"total"`
	} `json:"result"`
}

type product struct {
	ProductID     string `json:"product_id"`
	Name          string `json:"product_name"`
	URL           string `json:"product_url"`
	ShareURL      string `json:"share_url"`
	ImageURL      string `json:"img_url"`
	FinalPrice    string `json:"final_price"`
	OriginalPrice string `json:"original_price"`
	Currency      string `json:"currency"`
	CouponCode    string `json:"coupon_code"`
	Warehouse     string `json:"warehouse"`
	EndTime       int64  `json:"end_time"`
	CategoryName  string `json:"cat_name"`
}
