// Package aggregate reconciles the raw observations collected for a single
// location into one canonical reading per rate type. Median is used instead
// of mean so a single outlier source cannot move the consensus.
package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"ratewatcher/internal/model"
)

var two = decimal.NewFromInt(2)

// Combine groups observations by rate type and produces one AggregatedRate
// per type present. Rate, APR, and points are each the median across the
// group; confidence follows the distinct-source count. Empty input yields no
// aggregates.
func Combine(observations []model.RawObservation, computedAt time.Time) []model.AggregatedRate {
	if len(observations) == 0 {
		return nil
	}

	groups := make(map[model.RateType][]model.RawObservation)
	for _, obs := range observations {
		groups[obs.RateType] = append(groups[obs.RateType], obs)
	}

	aggregates := make([]model.AggregatedRate, 0, len(groups))
	for _, rt := range model.RateTypes() {
		group, ok := groups[rt]
		if !ok {
			continue
		}

		rates := make([]decimal.Decimal, 0, len(group))
		aprs := make([]decimal.Decimal, 0, len(group))
		points := make([]decimal.Decimal, 0, len(group))
		sourceSet := make(map[string]bool, len(group))
		for _, obs := range group {
			rates = append(rates, obs.Rate)
			aprs = append(aprs, obs.APR)
			points = append(points, obs.Points)
			sourceSet[obs.Source] = true
		}

		sources := make([]string, 0, len(sourceSet))
		for name := range sourceSet {
			sources = append(sources, name)
		}
		sort.Strings(sources)

		aggregates = append(aggregates, model.AggregatedRate{
			LocationCode: group[0].LocationCode,
			RateType:     rt,
			Rate:         Median(rates),
			APR:          Median(aprs),
			Points:       Median(points),
			Sources:      sources,
			Confidence:   model.ConfidenceForSources(len(sources)),
			ComputedAt:   computedAt,
		})
	}

	return aggregates
}

// Median returns the mathematical median of values: the middle element for
// odd-sized input, the mean of the two middle elements for even-sized input.
func Median(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}

	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(two)
}
