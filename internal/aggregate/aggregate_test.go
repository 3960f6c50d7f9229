package aggregate

import (
	"testing"
	"time"

	"github.com/dealhound/dealfeed/internal/models"
	"github.com/dealhound/dealfeed/internal/source"
)

func f(v float64) *float64 { return &v }

func deal(title, rawurl string, mut ...func(*models.Deal)) models.Deal {
	d := models.Deal{Title: title, URL: rawurl, Currency: "USD"}
	for _, m := range mut {
		m(&d)
	}
	d.EnsureID()
	return d
}

func TestMerge_DedupesFirstWins(t *testing.T) {
	curated := deal("Curated hub", "https://shop.example.com/hub?utm_source=sheet",
		func(d *models.Deal) { d.Source = models.SourceSheets })
	live := deal("Live hub", "https://shop.example.com/hub?aff=live",
		func(d *models.Deal) { d.Source = models.SourceBanggood })
	otherCoupon := deal("Live hub w/ code", "https://shop.example.com/hub",
		func(d *models.Deal) { d.CouponCode = "HUB5" })

	merged := Merge([]source.Result{
		{Source: models.SourceSheets, Deals: []models.Deal{curated}},
		{Source: models.SourceBanggood, Deals: []models.Deal{live, otherCoupon}},
	})

	if len(merged) != 2 {
		t.Fatalf("expected 2 deals after dedupe, got %d", len(merged))
	}
	if merged[0].Title != "Curated hub" {
		t.Errorf("curated source should win the dedupe, got %q", merged[0].Title)
	}
	if merged[1].CouponCode != "HUB5" {
		t.Errorf("different coupon code must survive as a distinct deal: %+v", merged[1])
	}
}

func TestFilter_Keyword(t *testing.T) {
	deals := []models.Deal{
		deal("USB Hub", "https://a.example.com/1"),
		deal("Drill", "https://a.example.com/2", func(d *models.Deal) { d.CouponCode = "USBFREE" }),
		deal("Lamp", "https://a.example.com/3", func(d *models.Deal) { d.Tags = []string{"usb", "light"} }),
		deal("Chair", "https://a.example.com/4"),
	}
	got := Filter(deals, Filters{Keyword: "usb"})
	if len(got) != 3 {
		t.Fatalf("keyword should match title, coupon, or tags; got %d deals", len(got))
	}
}

func TestFilter_Warehouse(t *testing.T) {
	deals := []models.Deal{
		deal("cn item", "https://a.example.com/1", func(d *models.Deal) { d.Warehouse = "CN" }),
		deal("pl item", "https://a.example.com/2", func(d *models.Deal) { d.Warehouse = "EU-PL" }),
		deal("us item", "https://a.example.com/3", func(d *models.Deal) { d.Warehouse = "USA" }),
		deal("untagged", "https://a.example.com/4"),
	}

	got := Filter(deals, Filters{Warehouse: "eu-pl"})
	if len(got) != 1 || got[0].Title != "pl item" {
		t.Errorf("exact match should be case-insensitive: %+v", got)
	}

	// "EU" is shorthand for "tagged and not shipping from China".
	got = Filter(deals, Filters{Warehouse: "EU"})
	if len(got) != 2 {
		t.Fatalf("EU shorthand should keep non-CN tagged deals, got %d", len(got))
	}
	for _, d := range got {
		if d.Warehouse == "CN" || d.Warehouse == "" {
			t.Errorf("EU shorthand kept %+v", d)
		}
	}
}

func TestFilter_StoreInferredFromURL(t *testing.T) {
	deals := []models.Deal{
		deal("named", "https://x.example.com/1", func(d *models.Deal) { d.Store = "Banggood" }),
		deal("inferred", "https://www.banggood.com/p/2"),
		deal("other", "https://aliexpress.com/item/3"),
	}
	got := Filter(deals, Filters{Store: "banggood"})
	if len(got) != 2 {
		t.Fatalf("store filter should use the URL domain as fallback, got %d", len(got))
	}
}

func TestFilter_PriceBounds(t *testing.T) {
	deals := []models.Deal{
		deal("cheap", "https://a.example.com/1", func(d *models.Deal) { d.Price = f(10) }),
		deal("mid", "https://a.example.com/2", func(d *models.Deal) { d.Price = f(50) }),
		deal("dear", "https://a.example.com/3", func(d *models.Deal) { d.Price = f(90) }),
		deal("unknown", "https://a.example.com/4"),
	}

	got := Filter(deals, Filters{MinPrice: f(50)})
	if len(got) != 2 {
		t.Fatalf("minPrice must exclude unknown prices, got %d deals", len(got))
	}
	for _, d := range got {
		if d.Price == nil {
			t.Error("unknown price passed a minPrice bound")
		}
	}

	got = Filter(deals, Filters{MaxPrice: f(50)})
	if len(got) != 3 {
		t.Fatalf("maxPrice must include unknown prices, got %d deals", len(got))
	}
}

func TestScore(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	in := func(days float64) *time.Time {
		t := now.Add(time.Duration(days * 24 * float64(time.Hour)))
		return &t
	}

	tests := []struct {
		name string
		deal models.Deal
		want float64
	}{
		{"bare", deal("x", "https://a.example.com/1"), 0},
		{"non-cn warehouse", deal("x", "https://a.example.com/1",
			func(d *models.Deal) { d.Warehouse = "EU-CZ" }), 10},
		{"cn warehouse scores nothing", deal("x", "https://a.example.com/1",
			func(d *models.Deal) { d.Warehouse = "CN" }), 0},
		{"expires in 3 days", deal("x", "https://a.example.com/1",
			func(d *models.Deal) { d.EndsAt = in(3) }), 7},
		{"expires far out", deal("x", "https://a.example.com/1",
			func(d *models.Deal) { d.EndsAt = in(45) }), 0},
		{"half price caps at 8", deal("x", "https://a.example.com/1",
			func(d *models.Deal) { d.Price = f(30); d.OriginalPrice = f(60) }), 8},
		{"ten percent off", deal("x", "https://a.example.com/1",
			func(d *models.Deal) { d.Price = f(90); d.OriginalPrice = f(100) }), 2},
		{"coupon bonus", deal("x", "https://a.example.com/1",
			func(d *models.Deal) { d.CouponCode = "SAVE" }), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.deal, now); got != tt.want {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSortDeals_Price(t *testing.T) {
	now := time.Now()
	deals := []models.Deal{
		deal("mid", "https://a.example.com/1", func(d *models.Deal) { d.Price = f(50) }),
		deal("unknown", "https://a.example.com/2"),
		deal("cheap", "https://a.example.com/3", func(d *models.Deal) { d.Price = f(10) }),
	}

	SortDeals(deals, SortPriceAsc, now)
	if deals[0].Title != "cheap" || deals[2].Title != "unknown" {
		t.Errorf("price_asc: unknown price must sort last: %v %v %v",
			deals[0].Title, deals[1].Title, deals[2].Title)
	}

	SortDeals(deals, SortPriceDesc, now)
	if deals[0].Title != "unknown" || deals[2].Title != "cheap" {
		t.Errorf("price_desc: unknown price must sort first: %v %v %v",
			deals[0].Title, deals[1].Title, deals[2].Title)
	}
}

func TestSortDeals_Store(t *testing.T) {
	now := time.Now()
	deals := []models.Deal{
		deal("1", "https://zeta.example.com/1", func(d *models.Deal) { d.Store = "Zeta" }),
		deal("2", "https://a.example.com/2", func(d *models.Deal) { d.Store = "alpha" }),
		deal("3", "https://m.example.com/3", func(d *models.Deal) { d.Store = "Mid" }),
	}
	SortDeals(deals, SortStoreAsc, now)
	if deals[0].Store != "alpha" || deals[2].Store != "Zeta" {
		t.Errorf("store_asc should compare case-insensitively: %+v", deals)
	}
	SortDeals(deals, SortStoreDesc, now)
	if deals[0].Store != "Zeta" {
		t.Errorf("store_desc order wrong: %+v", deals)
	}
}

func TestSortDeals_DefaultScoreOrdering(t *testing.T) {
	now := time.Now()
	discounted := deal("big discount", "https://a.example.com/1",
		func(d *models.Deal) { d.Price = f(30); d.OriginalPrice = f(60) })
	plain := deal("plain", "https://a.example.com/2")
	warehouse := deal("eu stock", "https://a.example.com/3",
		func(d *models.Deal) { d.Warehouse = "EU-PL" })

	deals := []models.Deal{plain, discounted, warehouse}
	SortDeals(deals, "", now)
	if deals[0].Title != "eu stock" || deals[1].Title != "big discount" || deals[2].Title != "plain" {
		t.Errorf("score ordering wrong: %v %v %v", deals[0].Title, deals[1].Title, deals[2].Title)
	}
}

func TestPaginate(t *testing.T) {
	var deals []models.Deal
	for i := 0; i < 25; i++ {
		deals = append(deals, deal("d", "https://a.example.com/"+string(rune('a'+i))))
	}

	page, next := Paginate(deals, 10, "")
	if len(page) != 10 || next == nil || *next != "10" {
		t.Fatalf("first page wrong: len=%d next=%v", len(page), next)
	}

	page, next = Paginate(deals, 10, *next)
	if len(page) != 10 || next == nil || *next != "20" {
		t.Fatalf("second page wrong: len=%d next=%v", len(page), next)
	}

	page, next = Paginate(deals, 10, *next)
	if len(page) != 5 || next != nil {
		t.Fatalf("last page must have nil cursor: len=%d next=%v", len(page), next)
	}

	// Garbage and out-of-range cursors degrade safely.
	if page, next = Paginate(deals, 10, "banana"); len(page) != 10 || next == nil {
		t.Error("invalid cursor should behave as offset 0")
	}
	if page, next = Paginate(deals, 10, "999"); len(page) != 0 || next != nil {
		t.Error("past-the-end cursor should return an empty final page")
	}
}

func TestPaginate_ExactBoundary(t *testing.T) {
	deals := []models.Deal{
		deal("1", "https://a.example.com/1"),
		deal("2", "https://a.example.com/2"),
	}
	page, next := Paginate(deals, 2, "")
	if len(page) != 2 || next != nil {
		t.Errorf("limit == total must end pagination: next=%v", next)
	}
}

func TestCollectMeta(t *testing.T) {
	deals := []models.Deal{
		deal("1", "https://www.banggood.com/p/1", func(d *models.Deal) { d.Warehouse = "CN" }),
		deal("2", "https://a.example.com/2", func(d *models.Deal) { d.Store = "AliExpress"; d.Warehouse = "EU-PL" }),
		deal("3", "https://b.example.com/3", func(d *models.Deal) { d.Store = "AliExpress"; d.Warehouse = "CN" }),
	}
	meta := CollectMeta(deals)
	if len(meta.Warehouses) != 2 || meta.Warehouses[0] != "CN" || meta.Warehouses[1] != "EU-PL" {
		t.Errorf("Warehouses = %v", meta.Warehouses)
	}
	if len(meta.Stores) != 2 || meta.Stores[0] != "AliExpress" || meta.Stores[1] != "banggood" {
		t.Errorf("Stores = %v", meta.Stores)
	}
}
