package scraper

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"ratewatcher/internal/model"
)

const bankrateDefaultBaseURL = "https://www.bankrate.com"

// Bankrate scrapes Bankrate's mortgage rates pages.
type Bankrate struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	cascade []Extractor
}

// NewBankrate constructs the Bankrate source adapter.
func NewBankrate(opts Options, logger zerolog.Logger) *Bankrate {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = bankrateDefaultBaseURL
	}
	return &Bankrate{
		opts:    opts,
		logger:  logger.With().Str("component", "bankrate_source").Logger(),
		client:  newHTTPClient(opts),
		baseURL: baseURL,
		cascade: defaultCascade(),
	}
}

// Name identifies the source in observations and audit records.
func (b *Bankrate) Name() string { return "bankrate" }

func (b *Bankrate) rateURL(loc model.Location) (string, error) {
	state, err := pageState(loc)
	if err != nil {
		return "", err
	}
	if state == "" {
		return b.baseURL + "/mortgages/mortgage-rates/", nil
	}
	return b.baseURL + "/mortgages/mortgage-rates/" + strings.ToLower(state) + "/", nil
}

// FetchRaw retrieves and extracts Bankrate's readings for one location.
func (b *Bankrate) FetchRaw(ctx context.Context, loc model.Location) ([]model.RawObservation, error) {
	url, err := b.rateURL(loc)
	if err != nil {
		return nil, err
	}
	return fetchAndExtract(ctx, b.client, url, b.opts.UserAgent, b.Name(), loc, b.cascade, b.logger)
}

var _ Source = (*Bankrate)(nil)
