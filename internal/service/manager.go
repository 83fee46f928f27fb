package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"ratewatcher/internal/aggregate"
	"ratewatcher/internal/detect"
	"ratewatcher/internal/model"
	"ratewatcher/internal/scraper"
)

// Store is the slice of persistence the orchestrator needs per cycle.
type Store interface {
	InsertAggregates(ctx context.Context, aggregates []model.AggregatedRate) error
	UpsertSnapshot(ctx context.Context, locationCode string, rateType model.RateType, rate decimal.Decimal, at time.Time) (*decimal.Decimal, error)
}

// Dispatcher forwards significant decreases to subscribers.
type Dispatcher interface {
	Dispatch(ctx context.Context, loc model.Location, ev model.ChangeEvent) (int, error)
}

// Options tune cycle orchestration.
type Options struct {
	BatchSize  int
	BatchDelay time.Duration
}

// Manager drives one full scrape cycle: batches the registry, fans the source
// executors out per location, then aggregates, detects changes, and
// dispatches alerts location by location.
type Manager struct {
	locations []model.Location
	executors []*scraper.Executor
	store     Store
	detector  *detect.Detector
	dispatch  Dispatcher
	opts      Options
	logger    zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewManager constructs the orchestrator. dispatch may be nil when alerting
// is disabled; store may not.
func NewManager(locations []model.Location, executors []*scraper.Executor, store Store, detector *detect.Detector, dispatch Dispatcher, opts Options, logger zerolog.Logger) *Manager {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	return &Manager{
		locations: locations,
		executors: executors,
		store:     store,
		detector:  detector,
		dispatch:  dispatch,
		opts:      opts,
		logger:    logger.With().Str("component", "manager").Logger(),
		sleep:     sleepContext,
	}
}

// locationResult carries one location's settled adapter outcomes.
type locationResult struct {
	loc          model.Location
	observations []model.RawObservation
	failures     []error
}

// RunCycle executes one full scrape cycle across every registered location.
// Individual location failures are accumulated in the summary; only a
// cancelled context aborts the cycle.
func (m *Manager) RunCycle(ctx context.Context) (model.RunSummary, error) {
	summary := model.RunSummary{StartedAt: time.Now().UTC()}

	for start := 0; start < len(m.locations); start += m.opts.BatchSize {
		end := start + m.opts.BatchSize
		if end > len(m.locations) {
			end = len(m.locations)
		}
		batch := m.locations[start:end]

		m.logger.Info().
			Int("batch_start", start).
			Int("batch_size", len(batch)).
			Msg("scraping batch")

		results := m.scrapeBatch(ctx, batch)

		for _, result := range results {
			if err := ctx.Err(); err != nil {
				summary.FinishedAt = time.Now().UTC()
				return summary, err
			}
			m.processLocation(ctx, result, &summary)
		}

		if end < len(m.locations) && m.opts.BatchDelay > 0 {
			if err := m.sleep(ctx, m.opts.BatchDelay); err != nil {
				summary.FinishedAt = time.Now().UTC()
				return summary, err
			}
		}
	}

	summary.FinishedAt = time.Now().UTC()
	m.logger.Info().
		Int("attempted", summary.LocationsAttempted).
		Int("succeeded", summary.LocationsSucceeded).
		Int("observations", summary.Observations).
		Int("changes", summary.Changes).
		Int("alerts_sent", summary.AlertsSent).
		Int("errors", len(summary.Errors)).
		Msg("cycle complete")
	return summary, nil
}

// scrapeBatch runs every location in the batch concurrently; each location
// joins its three adapter calls before settling. Order within the batch is
// preserved so post-processing stays deterministic.
func (m *Manager) scrapeBatch(ctx context.Context, batch []model.Location) []locationResult {
	results := make([]locationResult, len(batch))

	var wg sync.WaitGroup
	for i, loc := range batch {
		wg.Add(1)
		go func(i int, loc model.Location) {
			defer wg.Done()
			results[i] = m.scrapeLocation(ctx, loc)
		}(i, loc)
	}
	wg.Wait()

	return results
}

// scrapeLocation fans the executors out and waits until all three settle,
// collecting whatever succeeded. Adapter failures are recorded, not returned:
// the errgroup only observes panics-by-contract, never a scrape failure.
func (m *Manager) scrapeLocation(ctx context.Context, loc model.Location) locationResult {
	result := locationResult{loc: loc}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	for _, exec := range m.executors {
		group.Go(func() error {
			res := exec.Execute(groupCtx, loc)
			mu.Lock()
			defer mu.Unlock()
			if res.Success {
				result.observations = append(result.observations, res.Observations...)
			} else {
				result.failures = append(result.failures, res.Err)
			}
			return nil
		})
	}
	_ = group.Wait()

	return result
}

// processLocation runs aggregation, persistence, change detection, and alert
// dispatch for one settled location.
func (m *Manager) processLocation(ctx context.Context, result locationResult, summary *model.RunSummary) {
	summary.LocationsAttempted++
	loc := result.loc

	if len(result.observations) == 0 {
		summary.Errors = append(summary.Errors,
			fmt.Sprintf("%s: all sources failed: %s", loc.Code, joinErrors(result.failures)))
		m.logger.Warn().Str("location", loc.Code).Msg("no sources succeeded; skipping location")
		return
	}

	summary.LocationsSucceeded++
	summary.Observations += len(result.observations)

	aggregates := aggregate.Combine(result.observations, time.Now().UTC())
	if err := m.store.InsertAggregates(ctx, aggregates); err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("%s: audit write failed: %v", loc.Code, err))
		m.logger.Error().Err(err).Str("location", loc.Code).Msg("failed to persist aggregates")
	}

	for _, agg := range aggregates {
		previous, err := m.store.UpsertSnapshot(ctx, agg.LocationCode, agg.RateType, agg.Rate, agg.ComputedAt)
		if err != nil {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("%s/%s: snapshot upsert failed: %v", agg.LocationCode, agg.RateType, err))
			m.logger.Error().Err(err).
				Str("location", agg.LocationCode).
				Str("rate_type", string(agg.RateType)).
				Msg("failed to upsert snapshot")
			continue
		}

		event, significant := m.detector.Detect(agg, previous)
		if !significant {
			continue
		}
		summary.Changes++
		m.logger.Info().
			Str("location", event.LocationCode).
			Str("rate_type", string(event.RateType)).
			Str("change_pct", event.ChangePct.StringFixed(3)).
			Msg("significant rate change")

		// Product intent is rate-drop notification; increases are recorded
		// in the summary but never alerted.
		if !detect.IsDecrease(event) || m.dispatch == nil {
			continue
		}
		sent, err := m.dispatch.Dispatch(ctx, loc, event)
		if err != nil {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("%s/%s: dispatch failed: %v", event.LocationCode, event.RateType, err))
			m.logger.Error().Err(err).Str("location", event.LocationCode).Msg("alert dispatch failed")
			continue
		}
		summary.AlertsSent += sent
	}
}

func joinErrors(errs []error) string {
	if len(errs) == 0 {
		return "no observations"
	}
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	out := msgs[0]
	for _, msg := range msgs[1:] {
		out += "; " + msg
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
