package scraper

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"ratewatcher/internal/model"
)

// Page carries one fetched upstream document through the extraction cascade.
type Page struct {
	Body         []byte
	Source       string
	LocationCode string
	FetchedAt    time.Time

	doc    *goquery.Document
	docErr error
}

// Document lazily parses the body as HTML. Parse errors are sticky.
func (p *Page) Document() (*goquery.Document, error) {
	if p.doc == nil && p.docErr == nil {
		p.doc, p.docErr = goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	}
	return p.doc, p.docErr
}

func (p *Page) observation(rt model.RateType, rate, apr, points decimal.Decimal) model.RawObservation {
	if apr.LessThan(rate) {
		apr = rate
	}
	return model.RawObservation{
		LocationCode: p.LocationCode,
		RateType:     rt,
		Rate:         rate,
		APR:          apr,
		Points:       points,
		Source:       p.Source,
		ObservedAt:   p.FetchedAt,
	}
}

// Extractor is one stage of the cascade. Stages are tried in order until one
// yields at least one observation.
type Extractor interface {
	Name() string
	TryExtract(page *Page) ([]model.RawObservation, bool)
}

// defaultCascade is the layered fallback shared by every source: embedded
// machine-readable payloads, then markup heuristics, then free-text matching.
func defaultCascade() []Extractor {
	return []Extractor{
		embeddedJSONExtractor{},
		markupExtractor{},
		textExtractor{},
	}
}

// runCascade evaluates the stages in order. Observations with labels that do
// not normalize to a tracked rate type have already been dropped inside the
// stages, so an empty result here means the page yielded nothing usable.
func runCascade(page *Page, stages []Extractor) ([]model.RawObservation, string) {
	for _, stage := range stages {
		if obs, ok := stage.TryExtract(page); ok && len(obs) > 0 {
			return obs, stage.Name()
		}
	}
	return nil, ""
}

func parsePercent(raw string) (decimal.Decimal, bool) {
	cleaned := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if cleaned == "" {
		return decimal.Decimal{}, false
	}
	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return value, true
}

// --- stage 1: embedded JSON payloads ---

type jsonRateEntry struct {
	Product  string  `json:"product"`
	LoanType string  `json:"loanType"`
	Label    string  `json:"label"`
	Rate     float64 `json:"rate"`
	APR      float64 `json:"apr"`
	Points   float64 `json:"points"`
}

func (e jsonRateEntry) label() string {
	for _, candidate := range []string{e.Product, e.LoanType, e.Label} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

type jsonRatePayload struct {
	Rates        []jsonRateEntry `json:"rates"`
	CurrentRates []jsonRateEntry `json:"currentRates"`
	Data         struct {
		Rates []jsonRateEntry `json:"rates"`
	} `json:"data"`
}

func (p jsonRatePayload) entries() []jsonRateEntry {
	entries := make([]jsonRateEntry, 0, len(p.Rates)+len(p.CurrentRates)+len(p.Data.Rates))
	entries = append(entries, p.Rates...)
	entries = append(entries, p.CurrentRates...)
	entries = append(entries, p.Data.Rates...)
	return entries
}

type embeddedJSONExtractor struct{}

func (embeddedJSONExtractor) Name() string { return "embedded-json" }

func (embeddedJSONExtractor) TryExtract(page *Page) ([]model.RawObservation, bool) {
	doc, err := page.Document()
	if err != nil {
		return nil, false
	}

	var observations []model.RawObservation
	doc.Find(`script[type="application/json"], script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var payload jsonRatePayload
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			return
		}
		for _, entry := range payload.entries() {
			rt, ok := model.ParseRateType(entry.label())
			if !ok || entry.Rate <= 0 {
				continue
			}
			observations = append(observations, page.observation(rt,
				decimal.NewFromFloat(entry.Rate),
				decimal.NewFromFloat(entry.APR),
				decimal.NewFromFloat(entry.Points)))
		}
	})

	return observations, len(observations) > 0
}

// --- stage 2: markup heuristics ---

// rowSelectors covers the table layouts seen across the upstream sites.
var rowSelectors = []string{
	"table.rate-table tbody tr",
	"table.rates-table tbody tr",
	"table[data-rates] tbody tr",
}

type markupExtractor struct{}

func (markupExtractor) Name() string { return "markup" }

func (markupExtractor) TryExtract(page *Page) ([]model.RawObservation, bool) {
	doc, err := page.Document()
	if err != nil {
		return nil, false
	}

	for _, selector := range rowSelectors {
		if obs := extractRows(page, doc.Find(selector)); len(obs) > 0 {
			return obs, true
		}
	}

	// Card layouts carry the same fields as labelled child nodes.
	var observations []model.RawObservation
	doc.Find(".rate-card").Each(func(_ int, card *goquery.Selection) {
		rt, ok := model.ParseRateType(card.Find(".product").Text())
		if !ok {
			return
		}
		rate, ok := parsePercent(card.Find(".rate").Text())
		if !ok {
			return
		}
		apr, ok := parsePercent(card.Find(".apr").Text())
		if !ok {
			apr = rate
		}
		points, ok := parsePercent(card.Find(".points").Text())
		if !ok {
			points = decimal.Zero
		}
		observations = append(observations, page.observation(rt, rate, apr, points))
	})

	return observations, len(observations) > 0
}

func extractRows(page *Page, rows *goquery.Selection) []model.RawObservation {
	var observations []model.RawObservation
	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		rt, ok := model.ParseRateType(cells.Eq(0).Text())
		if !ok {
			return
		}
		rate, ok := parsePercent(cells.Eq(1).Text())
		if !ok {
			return
		}
		apr := rate
		if cells.Length() > 2 {
			if parsed, ok := parsePercent(cells.Eq(2).Text()); ok {
				apr = parsed
			}
		}
		points := decimal.Zero
		if cells.Length() > 3 {
			if parsed, ok := parsePercent(cells.Eq(3).Text()); ok {
				points = parsed
			}
		}
		observations = append(observations, page.observation(rt, rate, apr, points))
	})
	return observations
}

// --- stage 3: free-text pattern matching ---

// textRatePattern matches canonical phrases like "30-Year Fixed 6.25%" with an
// optional trailing "6.40% APR". Lowest-confidence stage; used only when the
// structured stages find nothing.
var textRatePattern = regexp.MustCompile(
	`(?i)(30[\s-]?(?:year|yr)[\s-]?fixed|15[\s-]?(?:year|yr)[\s-]?fixed|5[/-]1\s?ARM)` +
		`[^0-9%]{0,60}?(\d{1,2}\.\d{1,3})\s*%` +
		`(?:[^0-9%]{0,40}?(\d{1,2}\.\d{1,3})\s*%\s*APR)?`)

type textExtractor struct{}

func (textExtractor) Name() string { return "text" }

func (textExtractor) TryExtract(page *Page) ([]model.RawObservation, bool) {
	doc, err := page.Document()
	if err != nil {
		return nil, false
	}

	seen := make(map[model.RateType]bool, 3)
	var observations []model.RawObservation
	for _, match := range textRatePattern.FindAllStringSubmatch(doc.Text(), -1) {
		rt, ok := model.ParseRateType(match[1])
		if !ok || seen[rt] {
			continue
		}
		rate, ok := parsePercent(match[2])
		if !ok {
			continue
		}
		apr := rate
		if match[3] != "" {
			if parsed, ok := parsePercent(match[3]); ok {
				apr = parsed
			}
		}
		seen[rt] = true
		observations = append(observations, page.observation(rt, rate, apr, decimal.Zero))
	}

	return observations, len(observations) > 0
}
