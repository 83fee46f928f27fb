package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"ratewatcher/internal/model"
)

// Export renders one (location, rate type) audit history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.LocationCode == "" {
		return errors.New("--location is required")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}
	from := to.AddDate(0, -3, 0)
	if opts.From != nil {
		from = opts.From.UTC()
	}
	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	history, err := store.ListAggregateHistory(ctx, opts.LocationCode, opts.RateType, from, to)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		a.Logger.Info().Msg("no aggregates found for export window")
		return nil
	}

	downsampled := downsampleAggregates(history, opts.MaxPoints)
	a.Logger.Info().Int("total", len(history)).Int("exported", len(downsampled)).Msg("exporting aggregates")

	if opts.CSVPath != "" {
		if err := writeAggregatesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeAggregatesPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleAggregates(aggregates []model.AggregatedRate, max int) []model.AggregatedRate {
	if max <= 0 || len(aggregates) <= max {
		return aggregates
	}
	if max == 1 {
		return aggregates[len(aggregates)-1:]
	}

	result := make([]model.AggregatedRate, 0, max)
	step := float64(len(aggregates)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(aggregates) {
			idx = len(aggregates) - 1
		}
		result = append(result, aggregates[idx])
	}
	return result
}

func writeAggregatesCSV(path string, aggregates []model.AggregatedRate) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"computed_at", "location_code", "rate_type", "rate", "apr", "points", "sources", "confidence"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, agg := range aggregates {
		record := []string{
			agg.ComputedAt.Format(time.RFC3339),
			agg.LocationCode,
			string(agg.RateType),
			agg.Rate.String(),
			agg.APR.String(),
			agg.Points.String(),
			strings.Join(agg.Sources, "|"),
			string(agg.Confidence),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeAggregatesPNG(path string, aggregates []model.AggregatedRate) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(aggregates))
	rates := make([]float64, len(aggregates))
	aprs := make([]float64, len(aggregates))

	for i, agg := range aggregates {
		x[i] = agg.ComputedAt
		rates[i] = agg.Rate.InexactFloat64()
		aprs[i] = agg.APR.InexactFloat64()
	}

	percentFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.3f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Rate (%)",
			ValueFormatter: percentFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Rate",
				XValues: x,
				YValues: rates,
			},
			chart.TimeSeries{
				Name:    "APR",
				XValues: x,
				YValues: aprs,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
