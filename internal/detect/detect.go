// Package detect compares a fresh aggregate against the previous snapshot and
// flags economically significant moves.
package detect

import (
	"github.com/shopspring/decimal"

	"ratewatcher/internal/model"
)

// Mode selects how the significance threshold is interpreted.
type Mode string

const (
	// ModeRelative compares the relative percent change of the rate value
	// (delta/previous * 100) against the threshold. Historical behaviour.
	ModeRelative Mode = "relative"
	// ModePoints compares the absolute percentage-point move of the rate
	// itself against the threshold ("a quarter point").
	ModePoints Mode = "points"
)

var hundred = decimal.NewFromInt(100)

// Detector holds the configured threshold and interpretation mode.
type Detector struct {
	threshold decimal.Decimal
	mode      Mode
}

// New builds a detector. An unrecognized mode falls back to relative.
func New(threshold decimal.Decimal, mode Mode) *Detector {
	if mode != ModePoints {
		mode = ModeRelative
	}
	return &Detector{threshold: threshold, mode: mode}
}

// Detect evaluates one aggregate against the previous snapshot rate. previous
// is nil on the first-ever observation for the pair, which establishes the
// baseline and never produces an event. The returned event's ChangePct is
// always the relative percent change; significance is judged per mode with an
// inclusive threshold.
func (d *Detector) Detect(agg model.AggregatedRate, previous *decimal.Decimal) (model.ChangeEvent, bool) {
	if previous == nil || previous.IsZero() {
		return model.ChangeEvent{}, false
	}

	delta := agg.Rate.Sub(*previous)
	changePct := delta.Div(*previous).Mul(hundred)

	magnitude := changePct.Abs()
	if d.mode == ModePoints {
		magnitude = delta.Abs()
	}

	if magnitude.LessThan(d.threshold) {
		return model.ChangeEvent{}, false
	}

	return model.ChangeEvent{
		LocationCode: agg.LocationCode,
		RateType:     agg.RateType,
		OldRate:      *previous,
		NewRate:      agg.Rate,
		ChangePct:    changePct,
	}, true
}

// IsDecrease reports whether an event is a rate drop, the only direction that
// triggers subscriber alerts.
func IsDecrease(ev model.ChangeEvent) bool {
	return ev.ChangePct.IsNegative()
}
