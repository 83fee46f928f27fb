package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ratewatcher/internal/model"
)

func TestPageState(t *testing.T) {
	cases := []struct {
		name string
		loc  model.Location
		want string
	}{
		{"national", model.Location{Code: "US", Kind: model.KindNational}, ""},
		{"state", model.Location{Code: "FL", Kind: model.KindState}, "FL"},
		{"metro", model.Location{Code: "miami-fl", Kind: model.KindMetro}, "FL"},
		{"metro two-word city", model.Location{Code: "san-jose-ca", Kind: model.KindMetro}, "CA"},
		{"regional", model.Location{Code: "pacific-northwest", Kind: model.KindRegional}, "WA"},
		{"regional south", model.Location{Code: "south", Kind: model.KindRegional}, "GA"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := pageState(tc.loc)
			if err != nil {
				t.Fatalf("pageState: %v", err)
			}
			if got != tc.want {
				t.Fatalf("pageState = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPageStateUnknownRegion(t *testing.T) {
	if _, err := pageState(model.Location{Code: "atlantis", Kind: model.KindRegional}); err == nil {
		t.Fatal("expected error for unmapped regional code")
	}
}

func TestAdapterURLs(t *testing.T) {
	logger := noopLogger()
	opts := Options{BaseURL: "https://example.test"}

	zillow := NewZillow(opts, logger)
	bankrate := NewBankrate(opts, logger)
	mnd := NewMND(opts, logger)

	florida := model.Location{Code: "FL", Kind: model.KindState}
	national := model.Location{Code: "US", Kind: model.KindNational}
	midwest := model.Location{Code: "midwest", Kind: model.KindRegional}

	cases := []struct {
		name string
		got  func() (string, error)
		want string
	}{
		{"zillow state", func() (string, error) { return zillow.rateURL(florida) }, "https://example.test/mortgage-rates/fl/"},
		{"zillow national", func() (string, error) { return zillow.rateURL(national) }, "https://example.test/mortgage-rates/"},
		{"bankrate state", func() (string, error) { return bankrate.rateURL(florida) }, "https://example.test/mortgages/mortgage-rates/fl/"},
		{"bankrate regional", func() (string, error) { return bankrate.rateURL(midwest) }, "https://example.test/mortgages/mortgage-rates/il/"},
		{"mnd state", func() (string, error) { return mnd.rateURL(florida) }, "https://example.test/mortgage-rates?state=FL"},
		{"mnd national", func() (string, error) { return mnd.rateURL(national) }, "https://example.test/mortgage-rates"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.got()
			if err != nil {
				t.Fatalf("rateURL: %v", err)
			}
			if got != tc.want {
				t.Fatalf("rateURL = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestZillowFetchRaw(t *testing.T) {
	var gotPath, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`<html><body>
			<table class="rate-table"><tbody>
				<tr><td>30-Year Fixed</td><td>6.25%</td><td>6.40%</td></tr>
			</tbody></table>
			</body></html>`))
	}))
	defer server.Close()

	zillow := NewZillow(Options{BaseURL: server.URL, UserAgent: "test-agent"}, noopLogger())
	obs, err := zillow.FetchRaw(context.Background(), model.Location{Code: "TX", Kind: model.KindState})
	if err != nil {
		t.Fatalf("FetchRaw: %v", err)
	}
	if gotPath != "/mortgage-rates/tx/" {
		t.Fatalf("request path = %q", gotPath)
	}
	if gotUA != "test-agent" {
		t.Fatalf("user agent = %q", gotUA)
	}
	if len(obs) != 1 || obs[0].Rate.String() != "6.25" || obs[0].Source != "zillow" {
		t.Fatalf("observations = %v", obs)
	}
	if obs[0].LocationCode != "TX" {
		t.Fatalf("location code = %q", obs[0].LocationCode)
	}
}

func TestMNDFetchRawRegional(t *testing.T) {
	var gotState string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotState = r.URL.Query().Get("state")
		w.Write([]byte(`<html><body><p>The 30-year fixed averages 6.33% today.</p></body></html>`))
	}))
	defer server.Close()

	mnd := NewMND(Options{BaseURL: server.URL}, noopLogger())
	obs, err := mnd.FetchRaw(context.Background(), model.Location{Code: "mountain", Kind: model.KindRegional})
	if err != nil {
		t.Fatalf("FetchRaw: %v", err)
	}
	if gotState != "CO" {
		t.Fatalf("state query = %q, want representative state CO", gotState)
	}
	if len(obs) != 1 || obs[0].Rate.String() != "6.33" {
		t.Fatalf("observations = %v", obs)
	}
	// Observations carry the regional code, not the proxy state's.
	if obs[0].LocationCode != "mountain" {
		t.Fatalf("location code = %q", obs[0].LocationCode)
	}
}

func TestFetchRawUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	bankrate := NewBankrate(Options{BaseURL: server.URL}, noopLogger())
	if _, err := bankrate.FetchRaw(context.Background(), model.Location{Code: "FL", Kind: model.KindState}); err == nil {
		t.Fatal("expected error on 503 response")
	}
}

func TestFetchRawEmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><body><p>Nothing to see.</p></body></html>`))
	}))
	defer server.Close()

	bankrate := NewBankrate(Options{BaseURL: server.URL}, noopLogger())
	_, err := bankrate.FetchRaw(context.Background(), model.Location{Code: "FL", Kind: model.KindState})
	if err == nil {
		t.Fatal("expected error when no observations extracted")
	}
	if !IsValidation(err) {
		t.Fatalf("empty extraction must classify as validation, got %v", err)
	}
}

func TestEmptyExtractionNotRetried(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.Write([]byte(`<html><body><p>Rates are temporarily unavailable.</p></body></html>`))
	}))
	defer server.Close()

	bankrate := NewBankrate(Options{BaseURL: server.URL}, noopLogger())
	exec := NewExecutor(bankrate, Options{MaxRetries: 2, RetryBaseDelay: time.Millisecond}, nil, noopLogger())

	result := exec.Execute(context.Background(), model.Location{Code: "FL", Kind: model.KindState})
	if result.Success {
		t.Fatal("expected failure for a page without rates")
	}
	// The same page comes back on every fetch; one attempt is enough.
	if got := requests.Load(); got != 1 {
		t.Fatalf("upstream requests = %d, want 1", got)
	}
	if result.Retries != 0 {
		t.Fatalf("retries = %d, want 0", result.Retries)
	}
	if !IsValidation(result.Err) {
		t.Fatalf("expected a validation error, got %v", result.Err)
	}
}
