package alerting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ratewatcher/internal/model"
)

type fakeSubs struct {
	subs []model.AlertSubscription
	err  error
}

func (f *fakeSubs) ListActiveSubscriptions(_ context.Context, _ string, _ model.RateType, _ decimal.Decimal) ([]model.AlertSubscription, error) {
	return f.subs, f.err
}

type fakeHistory struct {
	counts   map[string]int64
	countErr error
	inserted []model.AlertHistoryEntry
}

func (f *fakeHistory) CountRecentAlerts(_ context.Context, ownerEmail string, _ time.Time) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.counts[ownerEmail], nil
}

func (f *fakeHistory) InsertAlertHistory(_ context.Context, entry model.AlertHistoryEntry) error {
	f.inserted = append(f.inserted, entry)
	return nil
}

type fakeNotifier struct {
	sent    []Alert
	failFor map[string]bool
}

func (f *fakeNotifier) SendRateAlert(_ context.Context, alert Alert) error {
	if f.failFor[alert.To] {
		return errors.New("gateway unavailable")
	}
	f.sent = append(f.sent, alert)
	return nil
}

var testEvent = model.ChangeEvent{
	LocationCode: "FL",
	RateType:     model.Rate30YearFixed,
	OldRate:      decimal.NewFromFloat(6.50),
	NewRate:      decimal.NewFromFloat(6.25),
	ChangePct:    decimal.NewFromFloat(-3.85),
}

var testLoc = model.Location{Name: "Florida", Code: "FL", Kind: model.KindState}

func sub(email string) model.AlertSubscription {
	return model.AlertSubscription{
		OwnerEmail:   email,
		LocationCode: "FL",
		RateType:     model.Rate30YearFixed,
		ThresholdPct: decimal.NewFromFloat(0.25),
		Active:       true,
	}
}

func TestDispatchSendsAndRecordsHistory(t *testing.T) {
	history := &fakeHistory{counts: map[string]int64{}}
	notifier := &fakeNotifier{}
	d := NewDispatcher(&fakeSubs{subs: []model.AlertSubscription{sub("a@example.com")}}, history, notifier, 5, zerolog.Nop())

	sent, err := d.Dispatch(context.Background(), testLoc, testEvent)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if sent != 1 || len(notifier.sent) != 1 {
		t.Fatalf("sent = %d, deliveries = %d", sent, len(notifier.sent))
	}
	if len(history.inserted) != 1 {
		t.Fatalf("history entries = %d, want 1", len(history.inserted))
	}
	entry := history.inserted[0]
	if entry.OwnerEmail != "a@example.com" || entry.LocationCode != "FL" {
		t.Fatalf("history entry = %+v", entry)
	}
	if !entry.ChangePct.Equal(testEvent.ChangePct) {
		t.Fatalf("history change pct = %s", entry.ChangePct)
	}
}

func TestDispatchEnforcesDailyCap(t *testing.T) {
	history := &fakeHistory{counts: map[string]int64{
		"capped@example.com": 5,
		"open@example.com":   4,
	}}
	notifier := &fakeNotifier{}
	subs := &fakeSubs{subs: []model.AlertSubscription{
		sub("capped@example.com"),
		sub("open@example.com"),
	}}
	d := NewDispatcher(subs, history, notifier, 5, zerolog.Nop())

	sent, err := d.Dispatch(context.Background(), testLoc, testEvent)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1 (capped subscriber skipped)", sent)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].To != "open@example.com" {
		t.Fatalf("deliveries = %+v", notifier.sent)
	}
}

func TestDispatchSendFailureDoesNotBlockOthers(t *testing.T) {
	history := &fakeHistory{counts: map[string]int64{}}
	notifier := &fakeNotifier{failFor: map[string]bool{"broken@example.com": true}}
	subs := &fakeSubs{subs: []model.AlertSubscription{
		sub("broken@example.com"),
		sub("fine@example.com"),
	}}
	d := NewDispatcher(subs, history, notifier, 5, zerolog.Nop())

	sent, err := d.Dispatch(context.Background(), testLoc, testEvent)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
	// History is written only for confirmed deliveries.
	if len(history.inserted) != 1 || history.inserted[0].OwnerEmail != "fine@example.com" {
		t.Fatalf("history entries = %+v", history.inserted)
	}
}

func TestDispatchCountErrorSkipsSubscriber(t *testing.T) {
	history := &fakeHistory{countErr: errors.New("db down")}
	notifier := &fakeNotifier{}
	d := NewDispatcher(&fakeSubs{subs: []model.AlertSubscription{sub("a@example.com")}}, history, notifier, 5, zerolog.Nop())

	sent, err := d.Dispatch(context.Background(), testLoc, testEvent)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if sent != 0 || len(notifier.sent) != 0 {
		t.Fatalf("expected no deliveries when cap count fails, sent = %d", sent)
	}
}

func TestDispatchSubscriptionErrorPropagates(t *testing.T) {
	d := NewDispatcher(&fakeSubs{err: errors.New("query failed")}, &fakeHistory{}, &fakeNotifier{}, 5, zerolog.Nop())
	if _, err := d.Dispatch(context.Background(), testLoc, testEvent); err == nil {
		t.Fatal("expected subscription query error to propagate")
	}
}

func TestDispatchDefaultCap(t *testing.T) {
	history := &fakeHistory{counts: map[string]int64{"a@example.com": 5}}
	notifier := &fakeNotifier{}
	d := NewDispatcher(&fakeSubs{subs: []model.AlertSubscription{sub("a@example.com")}}, history, notifier, 0, zerolog.Nop())

	sent, err := d.Dispatch(context.Background(), testLoc, testEvent)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if sent != 0 {
		t.Fatalf("zero-config cap must fall back to 5, sent = %d", sent)
	}
}
