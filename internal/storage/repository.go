package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"ratewatcher/internal/model"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertAggregateSQL = `INSERT INTO rate_observations (
        location_code,
        rate_type,
        rate,
        apr,
        points,
        sources,
        confidence,
        computed_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    );`

	upsertSnapshotSQL = `WITH prev AS (
        SELECT rate FROM rate_snapshots
        WHERE location_code = $1 AND rate_type = $2
    )
    INSERT INTO rate_snapshots (location_code, rate_type, rate, updated_at)
    VALUES ($1, $2, $3, $4)
    ON CONFLICT (location_code, rate_type) DO UPDATE
    SET rate = EXCLUDED.rate,
        updated_at = EXCLUDED.updated_at
    RETURNING (SELECT rate FROM prev);`

	listRecentSnapshotsSQL = `SELECT
        location_code,
        rate_type,
        rate,
        updated_at
    FROM rate_snapshots
    ORDER BY updated_at DESC, location_code, rate_type
    LIMIT $1;`

	listAggregateHistorySQL = `SELECT
        location_code,
        rate_type,
        rate,
        apr,
        points,
        sources,
        confidence,
        computed_at
    FROM rate_observations
    WHERE location_code = $1
      AND rate_type = $2
      AND computed_at >= $3
      AND computed_at < $4
    ORDER BY computed_at;`

	appendScrapeLogSQL = `INSERT INTO scrape_log (
        source,
        location_code,
        status,
        observation_count,
        duration_ms,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    );`

	listActiveSubscriptionsSQL = `SELECT
        id,
        owner_email,
        location_code,
        rate_type,
        threshold_pct,
        active
    FROM alert_subscriptions
    WHERE active
      AND location_code = $1
      AND rate_type = $2
      AND threshold_pct <= $3
    ORDER BY id;`

	countRecentAlertsSQL = `SELECT COUNT(*)
    FROM alert_history
    WHERE owner_email = $1
      AND sent_at > $2;`

	insertAlertHistorySQL = `INSERT INTO alert_history (
        owner_email,
        location_code,
        rate_type,
        old_rate,
        new_rate,
        change_pct,
        sent_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    );`
)

// SnapshotStore covers the latest-known-good aggregate per (location, type).
type SnapshotStore interface {
	UpsertSnapshot(ctx context.Context, locationCode string, rateType model.RateType, rate decimal.Decimal, at time.Time) (*decimal.Decimal, error)
	ListRecentSnapshots(ctx context.Context, limit int) ([]model.RateSnapshot, error)
}

// AuditStore covers the append-only audit writes and their read paths.
type AuditStore interface {
	InsertAggregates(ctx context.Context, aggregates []model.AggregatedRate) error
	ListAggregateHistory(ctx context.Context, locationCode string, rateType model.RateType, from, to time.Time) ([]model.AggregatedRate, error)
	AppendScrapeLog(ctx context.Context, entry model.ScrapeLogEntry) error
}

// Store aggregates access to every pipeline table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertAggregates appends one audit row per aggregate.
func (s *Store) InsertAggregates(ctx context.Context, aggregates []model.AggregatedRate) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	for _, agg := range aggregates {
		_, execErr := pool.Exec(ctx, insertAggregateSQL,
			agg.LocationCode,
			string(agg.RateType),
			agg.Rate.String(),
			agg.APR.String(),
			agg.Points.String(),
			agg.Sources,
			string(agg.Confidence),
			agg.ComputedAt,
		)
		if execErr != nil {
			return fmt.Errorf("insert aggregate: %w", execErr)
		}
	}
	return nil
}

// UpsertSnapshot writes the new latest rate for a (location, type) pair and
// returns the pre-update value, or nil when no baseline existed.
func (s *Store) UpsertSnapshot(ctx context.Context, locationCode string, rateType model.RateType, rate decimal.Decimal, at time.Time) (*decimal.Decimal, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var prior sql.NullString
	if scanErr := pool.QueryRow(ctx, upsertSnapshotSQL,
		locationCode,
		string(rateType),
		rate.String(),
		at,
	).Scan(&prior); scanErr != nil {
		return nil, fmt.Errorf("upsert snapshot: %w", scanErr)
	}

	if !prior.Valid {
		return nil, nil
	}
	previous, convErr := decimal.NewFromString(prior.String)
	if convErr != nil {
		return nil, fmt.Errorf("parse previous rate: %w", convErr)
	}
	return &previous, nil
}

// ListRecentSnapshots lists the most recently updated snapshots.
func (s *Store) ListRecentSnapshots(ctx context.Context, limit int) ([]model.RateSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSnapshotsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent snapshots: %w", queryErr)
	}
	defer rows.Close()

	snapshots := make([]model.RateSnapshot, 0, limit)
	for rows.Next() {
		var (
			snap    model.RateSnapshot
			rt      string
			rateStr string
		)
		if err := rows.Scan(&snap.LocationCode, &rt, &rateStr, &snap.UpdatedAt); err != nil {
			return nil, err
		}
		snap.RateType = model.RateType(rt)
		var convErr error
		snap.Rate, convErr = decimal.NewFromString(rateStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse snapshot rate: %w", convErr)
		}
		snapshots = append(snapshots, snap)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snapshots, nil
}

// ListAggregateHistory reads the audit trail for one (location, type) pair
// within a time window.
func (s *Store) ListAggregateHistory(ctx context.Context, locationCode string, rateType model.RateType, from, to time.Time) ([]model.AggregatedRate, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAggregateHistorySQL, locationCode, string(rateType), from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list aggregate history: %w", queryErr)
	}
	defer rows.Close()

	aggregates := make([]model.AggregatedRate, 0)
	for rows.Next() {
		agg, scanErr := scanAggregate(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		aggregates = append(aggregates, agg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return aggregates, nil
}

// AppendScrapeLog writes one audit row for an adapter attempt. Best effort;
// callers treat failures as non-fatal.
func (s *Store) AppendScrapeLog(ctx context.Context, entry model.ScrapeLogEntry) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var errMsg interface{}
	if entry.Error != "" {
		errMsg = entry.Error
	}

	if _, execErr := pool.Exec(ctx, appendScrapeLogSQL,
		entry.Source,
		entry.LocationCode,
		string(entry.Status),
		entry.Observations,
		entry.Duration.Milliseconds(),
		errMsg,
	); execErr != nil {
		return fmt.Errorf("append scrape log: %w", execErr)
	}
	return nil
}

// ListActiveSubscriptions lists active subscriptions for a (location, type)
// pair whose threshold is at or below the observed change magnitude.
func (s *Store) ListActiveSubscriptions(ctx context.Context, locationCode string, rateType model.RateType, maxThreshold decimal.Decimal) ([]model.AlertSubscription, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listActiveSubscriptionsSQL, locationCode, string(rateType), maxThreshold.String())
	if queryErr != nil {
		return nil, fmt.Errorf("list active subscriptions: %w", queryErr)
	}
	defer rows.Close()

	subscriptions := make([]model.AlertSubscription, 0)
	for rows.Next() {
		var (
			sub          model.AlertSubscription
			rt           string
			thresholdStr string
		)
		if err := rows.Scan(&sub.ID, &sub.OwnerEmail, &sub.LocationCode, &rt, &thresholdStr, &sub.Active); err != nil {
			return nil, err
		}
		sub.RateType = model.RateType(rt)
		var convErr error
		sub.ThresholdPct, convErr = decimal.NewFromString(thresholdStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse threshold pct: %w", convErr)
		}
		subscriptions = append(subscriptions, sub)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return subscriptions, nil
}

// CountRecentAlerts counts history entries for one subscriber since a cutoff.
func (s *Store) CountRecentAlerts(ctx context.Context, ownerEmail string, since time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countRecentAlertsSQL, ownerEmail, since).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count recent alerts: %w", scanErr)
	}
	return count, nil
}

// InsertAlertHistory appends one sent-notification record.
func (s *Store) InsertAlertHistory(ctx context.Context, entry model.AlertHistoryEntry) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, insertAlertHistorySQL,
		entry.OwnerEmail,
		entry.LocationCode,
		string(entry.RateType),
		entry.OldRate.String(),
		entry.NewRate.String(),
		entry.ChangePct.String(),
		entry.SentAt,
	); execErr != nil {
		return fmt.Errorf("insert alert history: %w", execErr)
	}
	return nil
}

type aggregateRow interface {
	Scan(dest ...any) error
}

func scanAggregate(row aggregateRow) (model.AggregatedRate, error) {
	var (
		agg        model.AggregatedRate
		rt         string
		rateStr    string
		aprStr     string
		pointsStr  string
		confidence string
	)

	if err := row.Scan(
		&agg.LocationCode,
		&rt,
		&rateStr,
		&aprStr,
		&pointsStr,
		&agg.Sources,
		&confidence,
		&agg.ComputedAt,
	); err != nil {
		return model.AggregatedRate{}, err
	}

	agg.RateType = model.RateType(rt)
	agg.Confidence = model.Confidence(confidence)

	var err error
	if agg.Rate, err = decimal.NewFromString(rateStr); err != nil {
		return model.AggregatedRate{}, fmt.Errorf("parse rate: %w", err)
	}
	if agg.APR, err = decimal.NewFromString(aprStr); err != nil {
		return model.AggregatedRate{}, fmt.Errorf("parse apr: %w", err)
	}
	if agg.Points, err = decimal.NewFromString(pointsStr); err != nil {
		return model.AggregatedRate{}, fmt.Errorf("parse points: %w", err)
	}

	return agg, nil
}
