package aggregate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ratewatcher/internal/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func obs(source, rate string) model.RawObservation {
	return model.RawObservation{
		LocationCode: "FL",
		RateType:     model.Rate30YearFixed,
		Rate:         dec(rate),
		APR:          dec(rate),
		Source:       source,
	}
}

func TestMedianOdd(t *testing.T) {
	got := Median([]decimal.Decimal{dec("6.30"), dec("6.20"), dec("6.25")})
	if !got.Equal(dec("6.25")) {
		t.Fatalf("median of odd set = %s, want 6.25", got)
	}
}

func TestMedianEven(t *testing.T) {
	got := Median([]decimal.Decimal{dec("6.30"), dec("6.20")})
	if !got.Equal(dec("6.25")) {
		t.Fatalf("median of even set = %s, want 6.25", got)
	}
}

func TestMedianSingle(t *testing.T) {
	got := Median([]decimal.Decimal{dec("7.01")})
	if !got.Equal(dec("7.01")) {
		t.Fatalf("median of single value = %s, want 7.01", got)
	}
}

func TestCombineConfidenceTiers(t *testing.T) {
	cases := []struct {
		sources []string
		want    model.Confidence
	}{
		{[]string{"zillow"}, model.ConfidenceLow},
		{[]string{"zillow", "bankrate"}, model.ConfidenceMedium},
		{[]string{"zillow", "bankrate", "mnd"}, model.ConfidenceHigh},
	}

	for _, tc := range cases {
		observations := make([]model.RawObservation, 0, len(tc.sources))
		for _, source := range tc.sources {
			observations = append(observations, obs(source, "6.25"))
		}
		aggregates := Combine(observations, time.Now())
		if len(aggregates) != 1 {
			t.Fatalf("expected 1 aggregate, got %d", len(aggregates))
		}
		if aggregates[0].Confidence != tc.want {
			t.Errorf("%d sources: confidence = %q, want %q", len(tc.sources), aggregates[0].Confidence, tc.want)
		}
	}
}

func TestCombineMedianPerType(t *testing.T) {
	observations := []model.RawObservation{
		obs("zillow", "6.20"),
		obs("bankrate", "6.25"),
		obs("mnd", "6.30"),
		{
			LocationCode: "FL",
			RateType:     model.Rate15YearFixed,
			Rate:         dec("5.50"),
			APR:          dec("5.60"),
			Source:       "zillow",
		},
	}

	aggregates := Combine(observations, time.Now())
	if len(aggregates) != 2 {
		t.Fatalf("expected 2 aggregates, got %d", len(aggregates))
	}

	byType := make(map[model.RateType]model.AggregatedRate)
	for _, agg := range aggregates {
		byType[agg.RateType] = agg
	}

	thirty := byType[model.Rate30YearFixed]
	if !thirty.Rate.Equal(dec("6.25")) {
		t.Errorf("30-year median = %s, want 6.25", thirty.Rate)
	}
	if thirty.Confidence != model.ConfidenceHigh {
		t.Errorf("30-year confidence = %q, want high", thirty.Confidence)
	}
	if len(thirty.Sources) != 3 {
		t.Errorf("30-year sources = %v, want 3 distinct", thirty.Sources)
	}

	fifteen := byType[model.Rate15YearFixed]
	if !fifteen.Rate.Equal(dec("5.50")) {
		t.Errorf("15-year median = %s, want 5.50", fifteen.Rate)
	}
	if fifteen.Confidence != model.ConfidenceLow {
		t.Errorf("15-year confidence = %q, want low", fifteen.Confidence)
	}
}

func TestCombineDuplicateSourceCountsOnce(t *testing.T) {
	aggregates := Combine([]model.RawObservation{
		obs("zillow", "6.20"),
		obs("zillow", "6.30"),
	}, time.Now())
	if len(aggregates) != 1 {
		t.Fatalf("expected 1 aggregate, got %d", len(aggregates))
	}
	if aggregates[0].Confidence != model.ConfidenceLow {
		t.Fatalf("duplicate source should stay low confidence, got %q", aggregates[0].Confidence)
	}
}

func TestCombineEmpty(t *testing.T) {
	if aggregates := Combine(nil, time.Now()); aggregates != nil {
		t.Fatalf("expected nil for empty input, got %v", aggregates)
	}
}
