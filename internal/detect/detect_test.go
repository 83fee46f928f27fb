package detect

import (
	"testing"

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

func agg(rate string) model.AggregatedRate {
	return model.AggregatedRate{
		LocationCode: "FL",
		RateType:     model.Rate30YearFixed,
		Rate:         dec(rate),
	}
}

func TestDetectNoBaseline(t *testing.T) {
	d := New(dec("0.25"), ModeRelative)
	if _, significant := d.Detect(agg("6.25"), nil); significant {
		t.Fatal("first observation must not produce a change event")
	}
}

func TestDetectThresholdInclusive(t *testing.T) {
	d := New(dec("0.25"), ModeRelative)

	// 6.00 -> 6.015 is exactly +0.25% relative.
	prev := dec("6.00")
	if _, significant := d.Detect(agg("6.015"), &prev); !significant {
		t.Fatal("change of exactly 0.25% must be significant")
	}

	// 6.00 -> 6.01494 is +0.249%.
	if _, significant := d.Detect(agg("6.01494"), &prev); significant {
		t.Fatal("change of 0.249% must not be significant")
	}
}

func TestDetectDecrease(t *testing.T) {
	d := New(dec("0.25"), ModeRelative)
	prev := dec("6.50")

	event, significant := d.Detect(agg("6.25"), &prev)
	if !significant {
		t.Fatal("6.50 -> 6.25 must be significant")
	}
	if !IsDecrease(event) {
		t.Fatal("6.50 -> 6.25 must be a decrease")
	}

	// (6.25-6.50)/6.50*100 ≈ -3.846
	if event.ChangePct.Round(2).String() != "-3.85" {
		t.Fatalf("change pct = %s, want ≈ -3.85", event.ChangePct)
	}
	if !event.OldRate.Equal(prev) || !event.NewRate.Equal(dec("6.25")) {
		t.Fatalf("event rates wrong: %+v", event)
	}
}

func TestDetectIncreaseIsSignificantNotDecrease(t *testing.T) {
	d := New(dec("0.25"), ModeRelative)
	prev := dec("6.00")

	event, significant := d.Detect(agg("6.50"), &prev)
	if !significant {
		t.Fatal("large increase must be significant")
	}
	if IsDecrease(event) {
		t.Fatal("increase misclassified as decrease")
	}
}

func TestDetectPointsMode(t *testing.T) {
	d := New(dec("0.25"), ModePoints)
	prev := dec("6.50")

	// 0.25 percentage-point drop: significant in points mode.
	if _, significant := d.Detect(agg("6.25"), &prev); !significant {
		t.Fatal("quarter-point move must be significant in points mode")
	}

	// 0.10 points is ~1.5% relative: relative mode flags it, points mode must not.
	if _, significant := d.Detect(agg("6.40"), &prev); significant {
		t.Fatal("0.10-point move must not be significant in points mode")
	}
	relative := New(dec("0.25"), ModeRelative)
	if _, significant := relative.Detect(agg("6.40"), &prev); !significant {
		t.Fatal("0.10-point move should be significant in relative mode")
	}
}

func TestDetectZeroPrevious(t *testing.T) {
	d := New(dec("0.25"), ModeRelative)
	zero := decimal.Zero
	if _, significant := d.Detect(agg("6.25"), &zero); significant {
		t.Fatal("zero baseline must not divide")
	}
}
