package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LocationKind classifies the granularity of a tracked location.
type LocationKind string

const (
	KindState    LocationKind = "state"
	KindMetro    LocationKind = "metro"
	KindRegional LocationKind = "regional"
	KindNational LocationKind = "national"
)

// Location is one entry of the static registry.
type Location struct {
	Name string
	Code string
	Kind LocationKind
}

// RateType identifies a tracked mortgage product.
type RateType string

const (
	Rate30YearFixed RateType = "30-year-fixed"
	Rate15YearFixed RateType = "15-year-fixed"
	Rate5To1ARM     RateType = "5-1-arm"
)

// RateTypes lists every tracked product in display order.
func RateTypes() []RateType {
	return []RateType{Rate30YearFixed, Rate15YearFixed, Rate5To1ARM}
}

// Label patterns are token-scoped so incidental digit pairs in surrounding
// text ("as of 6/30") do not claim a product. Adjustable labels are matched
// first and map to the one tracked ARM product.
var (
	adjustableLabelPattern = regexp.MustCompile(`5\s*[/-]\s*1|\barm\b|adjustable`)
	thirtyLabelPattern     = regexp.MustCompile(`\b(?:30|thirty)[\s-]?(?:year|yr)\b|\b30[\s-]?fixed\b`)
	fifteenLabelPattern    = regexp.MustCompile(`\b(?:15|fifteen)[\s-]?(?:year|yr)\b|\b15[\s-]?fixed\b`)
)

// ParseRateType canonicalizes a free-text product label ("30 Year Fixed",
// "30yr", "thirty year", "5/1 ARM") to one of the tracked rate types.
// Unrecognized labels return ok=false and are dropped by callers.
func ParseRateType(label string) (RateType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if normalized == "" {
		return "", false
	}
	switch {
	case adjustableLabelPattern.MatchString(normalized):
		return Rate5To1ARM, true
	case thirtyLabelPattern.MatchString(normalized):
		return Rate30YearFixed, true
	case fifteenLabelPattern.MatchString(normalized):
		return Rate15YearFixed, true
	}
	return "", false
}

var (
	maxRate = decimal.NewFromInt(20)

	// ErrInvalidObservation wraps any bounds or shape violation in a raw
	// observation reported by a source adapter.
	ErrInvalidObservation = errors.New("invalid observation")
)

// RawObservation is a single source's reading for one location and product.
// It lives only until aggregation; the aggregate and the scrape log are the
// durable records.
type RawObservation struct {
	LocationCode string
	RateType     RateType
	Rate         decimal.Decimal
	APR          decimal.Decimal
	Points       decimal.Decimal
	Source       string
	ObservedAt   time.Time
}

// Validate enforces the physical bounds on a raw observation: a positive rate
// below 20%, an APR no lower than the note rate, and all identifying fields
// present.
func (o RawObservation) Validate() error {
	if o.LocationCode == "" {
		return fmt.Errorf("%w: missing location code", ErrInvalidObservation)
	}
	if o.RateType == "" {
		return fmt.Errorf("%w: missing rate type", ErrInvalidObservation)
	}
	if o.Source == "" {
		return fmt.Errorf("%w: missing source name", ErrInvalidObservation)
	}
	if !o.Rate.IsPositive() {
		return fmt.Errorf("%w: rate %s is not positive", ErrInvalidObservation, o.Rate)
	}
	if o.Rate.GreaterThanOrEqual(maxRate) {
		return fmt.Errorf("%w: rate %s exceeds ceiling", ErrInvalidObservation, o.Rate)
	}
	if o.APR.LessThan(o.Rate) {
		return fmt.Errorf("%w: apr %s below rate %s", ErrInvalidObservation, o.APR, o.Rate)
	}
	return nil
}

// Confidence labels how many independent sources agreed on an aggregate.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ConfidenceForSources maps a distinct-source count to a confidence tier.
func ConfidenceForSources(n int) Confidence {
	switch {
	case n >= 3:
		return ConfidenceHigh
	case n == 2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// AggregatedRate is the canonical per-location, per-product reading produced
// once per scrape cycle. It supersedes, never mutates, the prior cycle's value.
type AggregatedRate struct {
	LocationCode string
	RateType     RateType
	Rate         decimal.Decimal
	APR          decimal.Decimal
	Points       decimal.Decimal
	Sources      []string
	Confidence   Confidence
	ComputedAt   time.Time
}

// RateSnapshot is the persisted latest-known-good aggregate per
// (location, rate type). Its pre-update value feeds change detection.
type RateSnapshot struct {
	LocationCode string
	RateType     RateType
	Rate         decimal.Decimal
	UpdatedAt    time.Time
}

// AlertSubscription is read-only from the pipeline's perspective; creation and
// management happen in a user-facing flow elsewhere.
type AlertSubscription struct {
	ID           int64
	OwnerEmail   string
	LocationCode string
	RateType     RateType
	ThresholdPct decimal.Decimal
	Active       bool
}

// AlertHistoryEntry records one sent notification. The rolling daily cap is
// enforced by counting entries in the trailing 24 hours.
type AlertHistoryEntry struct {
	ID           int64
	OwnerEmail   string
	LocationCode string
	RateType     RateType
	OldRate      decimal.Decimal
	NewRate      decimal.Decimal
	ChangePct    decimal.Decimal
	SentAt       time.Time
}

// ScrapeStatus enumerates the lifecycle of one adapter invocation.
type ScrapeStatus string

const (
	ScrapeStarted ScrapeStatus = "started"
	ScrapeSuccess ScrapeStatus = "success"
	ScrapeFailed  ScrapeStatus = "failed"
)

// ScrapeLogEntry is the append-only audit record per adapter invocation.
type ScrapeLogEntry struct {
	Source       string
	LocationCode string
	Status       ScrapeStatus
	Observations int
	Duration     time.Duration
	Error        string
}

// ChangeEvent describes a significant move detected against the previous
// snapshot. ChangePct is always the relative percent change of the rate value.
type ChangeEvent struct {
	LocationCode string
	RateType     RateType
	OldRate      decimal.Decimal
	NewRate      decimal.Decimal
	ChangePct    decimal.Decimal
}

// RunSummary accumulates cycle-level statistics for reporting.
type RunSummary struct {
	StartedAt          time.Time
	FinishedAt         time.Time
	LocationsAttempted int
	LocationsSucceeded int
	Observations       int
	Changes            int
	AlertsSent         int
	Errors             []string
}
