package scraper

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"ratewatcher/internal/model"
)

const mndDefaultBaseURL = "https://www.mortgagenewsdaily.com"

// MND scrapes Mortgage News Daily, which keys state pages off a query
// parameter rather than a path segment.
type MND struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	cascade []Extractor
}

// NewMND constructs the Mortgage News Daily source adapter.
func NewMND(opts Options, logger zerolog.Logger) *MND {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = mndDefaultBaseURL
	}
	return &MND{
		opts:    opts,
		logger:  logger.With().Str("component", "mnd_source").Logger(),
		client:  newHTTPClient(opts),
		baseURL: baseURL,
		cascade: defaultCascade(),
	}
}

// Name identifies the source in observations and audit records.
func (m *MND) Name() string { return "mnd" }

func (m *MND) rateURL(loc model.Location) (string, error) {
	state, err := pageState(loc)
	if err != nil {
		return "", err
	}
	if state == "" {
		return m.baseURL + "/mortgage-rates", nil
	}
	return m.baseURL + "/mortgage-rates?state=" + url.QueryEscape(state), nil
}

// FetchRaw retrieves and extracts Mortgage News Daily's readings for one location.
func (m *MND) FetchRaw(ctx context.Context, loc model.Location) ([]model.RawObservation, error) {
	pageURL, err := m.rateURL(loc)
	if err != nil {
		return nil, err
	}
	return fetchAndExtract(ctx, m.client, pageURL, m.opts.UserAgent, m.Name(), loc, m.cascade, m.logger)
}

var _ Source = (*MND)(nil)
