package sheets

import (
	"context"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"
)

// fetchPublished scrapes the published-to-web HTML rendering of the sheet.
// Each <table> is one range; cells come back as display strings, so the
// normalizers do the heavy lifting downstream.
func (a *Adapter) fetchPublished(ctx context.Context) ([]Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.PublishedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", a.cfg.PublishedURL, err)
	}

	res, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch published sheet: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch published sheet: status code %d", res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse published sheet: %w", err)
	}

	var tables []Table
	doc.Find("table").Each(func(_ int, tblSel *goquery.Selection) {
		var tbl Table
		tblSel.Find("tr").Each(func(_ int, rowSel *goquery.Selection) {
			var row []any
			rowSel.Find("th, td").Each(func(_ int, cellSel *goquery.Selection) {
				row = append(row, cellSel.Text())
			})
			if len(row) > 0 {
				tbl = append(tbl, row)
			}
		})
		if len(tbl) > 0 {
			tables = append(tables, tbl)
		}
	})
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables found in published sheet %s", a.cfg.PublishedURL)
	}
	return tables, nil
}
