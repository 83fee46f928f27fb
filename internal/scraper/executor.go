package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ratewatcher/internal/model"
)

// ErrRetriesExhausted marks an adapter call that failed on every attempt.
var ErrRetriesExhausted = errors.New("scraper: retries exhausted")

// ValidationError marks an observation that failed the physical-bounds check.
// It is a logic error in the adapter and is never retried.
type ValidationError struct {
	Source string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s returned invalid observation: %v", e.Source, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a non-retryable validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ScrapeLogFunc receives one audit entry per adapter attempt. Implementations
// must not block; the Executor fires and forgets.
type ScrapeLogFunc func(entry model.ScrapeLogEntry)

// Result is the settled outcome of one Execute call.
type Result struct {
	Success      bool
	Observations []model.RawObservation
	Err          error
	Duration     time.Duration
	Retries      int
}

// Executor wraps a Source with the shared scraping contract: minimum request
// spacing, a per-attempt timeout, exponential-backoff retries for transient
// failures, observation validation, and a scrape-log side effect per attempt.
type Executor struct {
	source Source
	opts   Options
	log    ScrapeLogFunc
	logger zerolog.Logger

	// lastRequest is shared by every concurrent call to this executor; the
	// mutex serialises the read-then-write so spacing holds under fan-out.
	mu          sync.Mutex
	lastRequest time.Time

	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor wraps a source adapter.
func NewExecutor(source Source, opts Options, log ScrapeLogFunc, logger zerolog.Logger) *Executor {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 500 * time.Millisecond
	}
	return &Executor{
		source: source,
		opts:   opts,
		log:    log,
		logger: logger.With().Str("component", "executor").Str("source", source.Name()).Logger(),
		sleep:  sleepContext,
	}
}

// Source exposes the wrapped adapter.
func (e *Executor) Source() Source { return e.source }

// Execute performs the full scrape contract for one location. It returns a
// failed Result only after all retries are exhausted or a validation error
// occurred; it never panics the pipeline.
func (e *Executor) Execute(ctx context.Context, loc model.Location) Result {
	started := time.Now()
	e.emit(model.ScrapeLogEntry{
		Source:       e.source.Name(),
		LocationCode: loc.Code,
		Status:       model.ScrapeStarted,
	})

	var lastErr error
	retries := 0
	for attempt := 0; attempt <= e.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			retries++
			delay := e.opts.RetryBaseDelay * (1 << (attempt - 1))
			e.logger.Warn().
				Str("location", loc.Code).
				Int("attempt", attempt).
				Dur("delay", delay).
				Err(lastErr).
				Msg("retrying after transient failure")
			if err := e.sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}

		if err := e.throttle(ctx); err != nil {
			lastErr = err
			break
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
		observations, err := e.source.FetchRaw(attemptCtx, loc)
		cancel()

		if err != nil {
			lastErr = err
			if IsValidation(err) {
				break
			}
			continue
		}

		if err := validateAll(e.source.Name(), observations); err != nil {
			// Broken adapter output, not a flaky network: stop immediately.
			lastErr = err
			break
		}

		duration := time.Since(started)
		e.emit(model.ScrapeLogEntry{
			Source:       e.source.Name(),
			LocationCode: loc.Code,
			Status:       model.ScrapeSuccess,
			Observations: len(observations),
			Duration:     duration,
		})
		return Result{
			Success:      true,
			Observations: observations,
			Duration:     duration,
			Retries:      retries,
		}
	}

	if lastErr == nil {
		lastErr = ErrRetriesExhausted
	} else if !IsValidation(lastErr) && !errors.Is(lastErr, context.Canceled) {
		lastErr = fmt.Errorf("%w: %v", ErrRetriesExhausted, lastErr)
	}

	duration := time.Since(started)
	e.emit(model.ScrapeLogEntry{
		Source:       e.source.Name(),
		LocationCode: loc.Code,
		Status:       model.ScrapeFailed,
		Duration:     duration,
		Error:        lastErr.Error(),
	})
	return Result{
		Err:      lastErr,
		Duration: duration,
		Retries:  retries,
	}
}

// throttle reserves the next request slot so that calls to the same source
// are spaced at least 60s/RateLimitPerMinute apart, then waits for it.
func (e *Executor) throttle(ctx context.Context) error {
	if e.opts.RateLimitPerMinute <= 0 {
		return nil
	}
	spacing := time.Minute / time.Duration(e.opts.RateLimitPerMinute)

	e.mu.Lock()
	now := time.Now()
	next := e.lastRequest.Add(spacing)
	if next.Before(now) {
		next = now
	}
	e.lastRequest = next
	e.mu.Unlock()

	if wait := time.Until(next); wait > 0 {
		return e.sleep(ctx, wait)
	}
	return nil
}

func (e *Executor) emit(entry model.ScrapeLogEntry) {
	if e.log == nil {
		return
	}
	e.log(entry)
}

func validateAll(source string, observations []model.RawObservation) error {
	if len(observations) == 0 {
		return &ValidationError{Source: source, Err: errors.New("empty observation set")}
	}
	for _, obs := range observations {
		if err := obs.Validate(); err != nil {
			return &ValidationError{Source: source, Err: err}
		}
	}
	return nil
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
