// Package alerting resolves subscriber alerts for significant rate drops and
// delivers them through the notification gateway, honouring the rolling
// 24-hour per-subscriber cap.
package alerting

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ratewatcher/internal/model"
)

// capWindow is the trailing window the daily cap counts against.
const capWindow = 24 * time.Hour

// SubscriptionSource lists active subscriptions whose threshold is met by the
// observed change magnitude.
type SubscriptionSource interface {
	ListActiveSubscriptions(ctx context.Context, locationCode string, rateType model.RateType, maxThreshold decimal.Decimal) ([]model.AlertSubscription, error)
}

// HistoryStore counts and appends alert history for cap enforcement.
type HistoryStore interface {
	CountRecentAlerts(ctx context.Context, ownerEmail string, since time.Time) (int64, error)
	InsertAlertHistory(ctx context.Context, entry model.AlertHistoryEntry) error
}

// Dispatcher fans a change event out to matching subscribers.
type Dispatcher struct {
	subs     SubscriptionSource
	history  HistoryStore
	notifier Notifier
	dailyCap int64
	logger   zerolog.Logger
}

// NewDispatcher wires the dispatcher. dailyCap <= 0 falls back to 5.
func NewDispatcher(subs SubscriptionSource, history HistoryStore, notifier Notifier, dailyCap int, logger zerolog.Logger) *Dispatcher {
	cap64 := int64(dailyCap)
	if cap64 <= 0 {
		cap64 = 5
	}
	return &Dispatcher{
		subs:     subs,
		history:  history,
		notifier: notifier,
		dailyCap: cap64,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch sends alerts for one change event. A failure for one subscriber is
// logged and does not block the rest; the returned count is successful sends.
// Callers dispatch events sequentially, which keeps the count-then-insert cap
// check serialised per subscriber.
func (d *Dispatcher) Dispatch(ctx context.Context, loc model.Location, ev model.ChangeEvent) (int, error) {
	subscriptions, err := d.subs.ListActiveSubscriptions(ctx, ev.LocationCode, ev.RateType, ev.ChangePct.Abs())
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, sub := range subscriptions {
		count, err := d.history.CountRecentAlerts(ctx, sub.OwnerEmail, time.Now().UTC().Add(-capWindow))
		if err != nil {
			d.logger.Error().Err(err).Str("owner", sub.OwnerEmail).Msg("failed to count recent alerts")
			continue
		}
		if count >= d.dailyCap {
			d.logger.Info().
				Str("owner", sub.OwnerEmail).
				Int64("recent_alerts", count).
				Msg("daily cap reached; skipping subscriber")
			continue
		}

		alert := Alert{
			To:           sub.OwnerEmail,
			LocationName: loc.Name,
			LocationCode: ev.LocationCode,
			RateType:     ev.RateType,
			OldRate:      ev.OldRate,
			NewRate:      ev.NewRate,
			ChangePct:    ev.ChangePct,
		}
		if err := d.notifier.SendRateAlert(ctx, alert); err != nil {
			d.logger.Error().Err(err).Str("owner", sub.OwnerEmail).Msg("failed to deliver alert")
			continue
		}

		entry := model.AlertHistoryEntry{
			OwnerEmail:   sub.OwnerEmail,
			LocationCode: ev.LocationCode,
			RateType:     ev.RateType,
			OldRate:      ev.OldRate,
			NewRate:      ev.NewRate,
			ChangePct:    ev.ChangePct,
			SentAt:       time.Now().UTC(),
		}
		if err := d.history.InsertAlertHistory(ctx, entry); err != nil {
			d.logger.Error().Err(err).Str("owner", sub.OwnerEmail).Msg("failed to record alert history")
		}
		sent++
	}

	return sent, nil
}
