package scraper

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"ratewatcher/internal/model"
)

const zillowDefaultBaseURL = "https://www.zillow.com"

// Zillow scrapes Zillow's mortgage rates pages.
type Zillow struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	cascade []Extractor
}

// NewZillow constructs the Zillow source adapter.
func NewZillow(opts Options, logger zerolog.Logger) *Zillow {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = zillowDefaultBaseURL
	}
	return &Zillow{
		opts:    opts,
		logger:  logger.With().Str("component", "zillow_source").Logger(),
		client:  newHTTPClient(opts),
		baseURL: baseURL,
		cascade: defaultCascade(),
	}
}

// Name identifies the source in observations and audit records.
func (z *Zillow) Name() string { return "zillow" }

func (z *Zillow) rateURL(loc model.Location) (string, error) {
	state, err := pageState(loc)
	if err != nil {
		return "", err
	}
	if state == "" {
		return z.baseURL + "/mortgage-rates/", nil
	}
	return z.baseURL + "/mortgage-rates/" + strings.ToLower(state) + "/", nil
}

// FetchRaw retrieves and extracts Zillow's readings for one location.
func (z *Zillow) FetchRaw(ctx context.Context, loc model.Location) ([]model.RawObservation, error) {
	url, err := z.rateURL(loc)
	if err != nil {
		return nil, err
	}
	return fetchAndExtract(ctx, z.client, url, z.opts.UserAgent, z.Name(), loc, z.cascade, z.logger)
}

var _ Source = (*Zillow)(nil)
