package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/stock-price-updater/internal/models"
)

var scrapeNumber = regexp.MustCompile(`-?\d[\d,]*(\.\d+)?`)

// Date formats seen on brokerage history pages
var scrapeDateLayouts = []string{
	"2006-01-02",
	"02-Jan-2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"Jan 02, 2006",
	"02/01/2006",
	"2 Jan 2006",
}

// Scrape reads a historical-price HTML table from a brokerage or analytics
// page. Columns are located by header text, so the table layout may vary as
// long as it has Date and Close (or Price/LTP) headers.
type Scrape struct {
	URL    string
	Symbol string
	// CSS selector of the history table
	Table string

	client *http.Client
}

// NewScrape creates a scraping source for the page at url
func NewScrape(url, symbol string, timeout time.Duration) *Scrape {
	return &Scrape{
		URL:    url,
		Symbol: symbol,
		Table:  "table",
		client: newHTTPClient(timeout),
	}
}

// Name returns the source tag
func (s *Scrape) Name() string {
	return models.SourceWebScrape
}

// Fetch downloads the page and returns the rows dated within [from, to]
func (s *Scrape) Fetch(ctx context.Context, from, to time.Time) ([]models.DailyPrice, error) {
	if s.URL == "" {
		return nil, fmt.Errorf("scrape: no url configured")
	}

	body, err := getBody(ctx, s.client, s.Name(), s.URL, http.Header{"Accept": {"text/html"}})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse scraped page: %w", err)
	}

	records, err := s.parseTable(doc)
	if err != nil {
		return nil, err
	}

	first, last := models.TradeDate(from), models.TradeDate(to)
	inRange := records[:0]
	for _, r := range records {
		if r.Date.Before(first) || r.Date.After(last) {
			continue
		}
		inRange = append(inRange, r)
	}
	if len(inRange) == 0 {
		return nil, fmt.Errorf("scrape: %w", ErrNoData)
	}
	return inRange, nil
}

type scrapeColumns struct {
	date, open, high, low, close, volume int
}

func (s *Scrape) parseTable(doc *goquery.Document) ([]models.DailyPrice, error) {
	var records []models.DailyPrice
	var found bool

	doc.Find(s.Table).EachWithBreak(func(_ int, table *goquery.Selection) bool {
		cols, ok := locateColumns(table)
		if !ok {
			return true
		}
		found = true

		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() == 0 {
				return
			}
			text := func(i int) string {
				if i < 0 || i >= cells.Length() {
					return ""
				}
				return strings.TrimSpace(cells.Eq(i).Text())
			}

			date, ok := parseScrapeDate(text(cols.date))
			if !ok {
				return
			}
			records = append(records, models.DailyPrice{
				Symbol:     s.Symbol,
				Date:       date,
				Open:       parseScrapeNumber(text(cols.open)),
				High:       parseScrapeNumber(text(cols.high)),
				Low:        parseScrapeNumber(text(cols.low)),
				Close:      parseScrapeNumber(text(cols.close)),
				Volume:     parseScrapeNumber(text(cols.volume)).IntPart(),
				DataSource: s.Name(),
			})
		})
		return false
	})

	if !found {
		return nil, fmt.Errorf("scrape: no price table with Date and Close columns")
	}
	return records, nil
}

func locateColumns(table *goquery.Selection) (scrapeColumns, bool) {
	cols := scrapeColumns{-1, -1, -1, -1, -1, -1}

	table.Find("tr").First().Find("th,td").Each(func(i int, cell *goquery.Selection) {
		switch h := strings.ToLower(strings.TrimSpace(cell.Text())); {
		case strings.HasPrefix(h, "date"):
			cols.date = i
		case strings.HasPrefix(h, "open"):
			cols.open = i
		case strings.HasPrefix(h, "high"):
			cols.high = i
		case strings.HasPrefix(h, "low"):
			cols.low = i
		case strings.HasPrefix(h, "close"), h == "price", h == "ltp":
			if cols.close < 0 {
				cols.close = i
			}
		case strings.HasPrefix(h, "vol"):
			cols.volume = i
		}
	})
	return cols, cols.date >= 0 && cols.close >= 0
}

func parseScrapeDate(s string) (time.Time, bool) {
	for _, layout := range scrapeDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseScrapeNumber reads the first number in s, ignoring currency prefixes
// such as "Rs." or "INR" and grouping commas. Anything without a number is
// zero.
func parseScrapeNumber(s string) decimal.Decimal {
	m := scrapeNumber.FindString(s)
	if m == "" {
		return decimal.Zero
	}
	return parseDecimal(strings.ReplaceAll(m, ",", ""))
}
