package model

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseRateType(t *testing.T) {
	cases := []struct {
		label string
		want  RateType
		ok    bool
	}{
		{"30 Year Fixed", Rate30YearFixed, true},
		{"30yr", Rate30YearFixed, true},
		{"thirty year fixed", Rate30YearFixed, true},
		{"15-Year Fixed", Rate15YearFixed, true},
		{"fifteen year", Rate15YearFixed, true},
		{"5/1 ARM", Rate5To1ARM, true},
		{"5-1 adjustable", Rate5To1ARM, true},
		{"ARM 5/1", Rate5To1ARM, true},
		{"30-year ARM", Rate5To1ARM, true},
		{"jumbo 40-year", "", false},
		{"as of 6/30", "", false},
		{"rates updated 8/15", "", false},
		{"trailing 30 days", "", false},
		{"", "", false},
		{"VA loan", "", false},
	}

	for _, tc := range cases {
		got, ok := ParseRateType(tc.label)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseRateType(%q) = (%q, %v), want (%q, %v)", tc.label, got, ok, tc.want, tc.ok)
		}
	}
}

func validObservation() RawObservation {
	return RawObservation{
		LocationCode: "FL",
		RateType:     Rate30YearFixed,
		Rate:         decimal.NewFromFloat(6.25),
		APR:          decimal.NewFromFloat(6.40),
		Points:       decimal.NewFromFloat(0.5),
		Source:       "zillow",
	}
}

func TestObservationValidate(t *testing.T) {
	if err := validObservation().Validate(); err != nil {
		t.Fatalf("valid observation rejected: %v", err)
	}

	zeroRate := validObservation()
	zeroRate.Rate = decimal.Zero
	zeroRate.APR = decimal.Zero
	if err := zeroRate.Validate(); err == nil {
		t.Fatal("zero rate should be rejected")
	}

	negative := validObservation()
	negative.Rate = decimal.NewFromFloat(-1)
	if err := negative.Validate(); err == nil {
		t.Fatal("negative rate should be rejected")
	}

	ceiling := validObservation()
	ceiling.Rate = decimal.NewFromInt(20)
	ceiling.APR = decimal.NewFromInt(21)
	if err := ceiling.Validate(); err == nil {
		t.Fatal("rate at ceiling should be rejected")
	}

	aprBelow := validObservation()
	aprBelow.APR = decimal.NewFromFloat(6.0)
	if err := aprBelow.Validate(); err == nil {
		t.Fatal("apr below rate should be rejected")
	}

	missing := validObservation()
	missing.LocationCode = ""
	if err := missing.Validate(); err == nil {
		t.Fatal("missing location code should be rejected")
	}

	unsourced := validObservation()
	unsourced.Source = ""
	if err := unsourced.Validate(); err == nil {
		t.Fatal("missing source should be rejected")
	}
}

func TestConfidenceForSources(t *testing.T) {
	cases := map[int]Confidence{
		1: ConfidenceLow,
		2: ConfidenceMedium,
		3: ConfidenceHigh,
		4: ConfidenceHigh,
	}
	for n, want := range cases {
		if got := ConfidenceForSources(n); got != want {
			t.Errorf("ConfidenceForSources(%d) = %q, want %q", n, got, want)
		}
	}
}
