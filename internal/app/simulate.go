package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"ratewatcher/internal/alerting"
	"ratewatcher/internal/model"
	"ratewatcher/internal/registry"
	"ratewatcher/internal/scraper"
	"ratewatcher/internal/service"
)

// SimulateAlert drives the full aggregation, detection, and dispatch path
// with fixed per-source rates instead of live scrapes. Nothing is persisted.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting not enabled")
	}
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no notification gateway configured")
	}
	if opts.To == "" {
		return errors.New("--to recipient is required")
	}
	if len(opts.SourceRates) == 0 {
		return errors.New("at least one source rate is required")
	}

	loc, err := registry.ByCode(opts.LocationCode)
	if err != nil {
		return err
	}

	executors := make([]*scraper.Executor, 0, len(opts.SourceRates))
	for name, rate := range opts.SourceRates {
		src := &staticSource{name: name, rateType: opts.RateType, rate: decimal.NewFromFloat(rate)}
		executors = append(executors, scraper.NewExecutor(src, scraper.Options{}, nil, a.Logger))
	}

	previous := decimal.NewFromFloat(opts.PreviousRate)
	store := &staticSnapshotStore{previous: &previous}
	if opts.PreviousRate <= 0 {
		store.previous = nil
	}

	manager := service.NewManager(
		[]model.Location{loc},
		executors,
		store,
		a.newDetector(),
		&directDispatcher{notifier: notifier, to: opts.To},
		service.Options{BatchSize: 1},
		a.Logger,
	)

	summary, err := manager.RunCycle(ctx)
	if err != nil {
		return err
	}
	a.logSummary(summary)
	return nil
}

// staticSource reports one fixed observation for any location.
type staticSource struct {
	name     string
	rateType model.RateType
	rate     decimal.Decimal
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) FetchRaw(_ context.Context, loc model.Location) ([]model.RawObservation, error) {
	return []model.RawObservation{{
		LocationCode: loc.Code,
		RateType:     s.rateType,
		Rate:         s.rate,
		APR:          s.rate,
		Source:       s.name,
		ObservedAt:   time.Now().UTC(),
	}}, nil
}

// staticSnapshotStore provides a fixed baseline and discards writes.
type staticSnapshotStore struct {
	previous *decimal.Decimal
}

func (s *staticSnapshotStore) InsertAggregates(context.Context, []model.AggregatedRate) error {
	return nil
}

func (s *staticSnapshotStore) UpsertSnapshot(context.Context, string, model.RateType, decimal.Decimal, time.Time) (*decimal.Decimal, error) {
	return s.previous, nil
}

// directDispatcher bypasses subscription lookup and sends to one recipient.
type directDispatcher struct {
	notifier alerting.Notifier
	to       string
}

func (d *directDispatcher) Dispatch(ctx context.Context, loc model.Location, ev model.ChangeEvent) (int, error) {
	alert := alerting.Alert{
		To:           d.to,
		LocationName: loc.Name,
		LocationCode: ev.LocationCode,
		RateType:     ev.RateType,
		OldRate:      ev.OldRate,
		NewRate:      ev.NewRate,
		ChangePct:    ev.ChangePct,
	}
	if err := d.notifier.SendRateAlert(ctx, alert); err != nil {
		return 0, err
	}
	return 1, nil
}

var _ scraper.Source = (*staticSource)(nil)
var _ service.Store = (*staticSnapshotStore)(nil)
var _ service.Dispatcher = (*directDispatcher)(nil)
