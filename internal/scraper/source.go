// Package scraper contains the upstream source adapters (Zillow, Bankrate,
// Mortgage News Daily), the layered extraction cascade they share, and the
// Executor that wraps every adapter call with throttling, timeout, retry, and
// validation.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ratewatcher/internal/model"
)

// Options parameterise one source adapter.
type Options struct {
	BaseURL            string
	Timeout            time.Duration
	MaxRetries         int
	RetryBaseDelay     time.Duration
	RateLimitPerMinute int
	UserAgent          string
}

// Source produces raw rate observations for one location. An adapter that
// cannot extract anything reports an error; the Executor treats that as a
// source-level failure, not a fatal one.
type Source interface {
	Name() string
	FetchRaw(ctx context.Context, loc model.Location) ([]model.RawObservation, error)
}

// regionalStates maps a regional code to the representative state whose page
// is scraped in its stead. The upstream sites have no regional granularity,
// so a region is approximated by one state.
var regionalStates = map[string]string{
	"northeast":         "NY",
	"southeast":         "FL",
	"midwest":           "IL",
	"southwest":         "TX",
	"west":              "CA",
	"pacific-northwest": "WA",
	"mountain":          "CO",
	"south":             "GA",
}

// pageState resolves the state token a source URL is built from. National
// locations return "", meaning the source's root rates page.
func pageState(loc model.Location) (string, error) {
	switch loc.Kind {
	case model.KindNational:
		return "", nil
	case model.KindState:
		return loc.Code, nil
	case model.KindMetro:
		parts := strings.Split(loc.Code, "-")
		if len(parts) < 2 {
			return "", fmt.Errorf("scraper: metro code %q has no state token", loc.Code)
		}
		return strings.ToUpper(parts[len(parts)-1]), nil
	case model.KindRegional:
		state, ok := regionalStates[loc.Code]
		if !ok {
			return "", fmt.Errorf("scraper: regional code %q has no representative state", loc.Code)
		}
		return state, nil
	default:
		return "", fmt.Errorf("scraper: unsupported location kind %q", loc.Kind)
	}
}

func newHTTPClient(opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// fetchPage performs the GET and wraps the body in a Page for the cascade.
func fetchPage(ctx context.Context, client *http.Client, url, userAgent, source string, loc model.Location) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if ua := strings.TrimSpace(userAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "ratewatcher/1.0")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s responded %d for %s", source, resp.StatusCode, url)
	}

	return &Page{
		Body:         body,
		Source:       source,
		LocationCode: loc.Code,
		FetchedAt:    time.Now().UTC(),
	}, nil
}

// fetchAndExtract is the shared adapter body: GET the location's rates page
// and walk the extraction cascade. An empty cascade result is a source-level
// failure for this location.
func fetchAndExtract(ctx context.Context, client *http.Client, url, userAgent, source string, loc model.Location, cascade []Extractor, logger zerolog.Logger) ([]model.RawObservation, error) {
	page, err := fetchPage(ctx, client, url, userAgent, source, loc)
	if err != nil {
		return nil, err
	}

	observations, stage := runCascade(page, cascade)
	if len(observations) == 0 {
		// The page parsed but carried no extractable rates; retrying fetches
		// the same page again, so this is not a transient failure.
		return nil, &ValidationError{
			Source: source,
			Err:    fmt.Errorf("no observations extracted for %s", loc.Code),
		}
	}

	logger.Debug().
		Str("location", loc.Code).
		Str("stage", stage).
		Int("observations", len(observations)).
		Msg("extraction succeeded")
	return observations, nil
}
