package app

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ratewatcher/internal/alerting"
	"ratewatcher/internal/config"
	"ratewatcher/internal/detect"
	"ratewatcher/internal/model"
	"ratewatcher/internal/registry"
	"ratewatcher/internal/scheduler"
	"ratewatcher/internal/scraper"
	"ratewatcher/internal/service"
	"ratewatcher/internal/storage"
	"ratewatcher/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	logger.Debug().Str("build", version.String()).Msg("application initialized")
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func sourceOptions(sc config.SourceConfig) scraper.Options {
	return scraper.Options{
		BaseURL:            sc.BaseURL,
		Timeout:            sc.Timeout,
		MaxRetries:         sc.MaxRetries,
		RetryBaseDelay:     sc.RetryBaseDelay,
		RateLimitPerMinute: sc.RateLimitPerMinute,
		UserAgent:          sc.UserAgent,
	}
}

func (a *App) newExecutors(logFn scraper.ScrapeLogFunc) []*scraper.Executor {
	sources := a.Config.Scrape.Sources
	return []*scraper.Executor{
		scraper.NewExecutor(scraper.NewZillow(sourceOptions(sources.Zillow), a.Logger), sourceOptions(sources.Zillow), logFn, a.Logger),
		scraper.NewExecutor(scraper.NewBankrate(sourceOptions(sources.Bankrate), a.Logger), sourceOptions(sources.Bankrate), logFn, a.Logger),
		scraper.NewExecutor(scraper.NewMND(sourceOptions(sources.MND), a.Logger), sourceOptions(sources.MND), logFn, a.Logger),
	}
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	gw := a.Config.Alerting.Gateway
	return alerting.NewGatewayNotifier(gw.BaseURL, gw.APIKey, gw.From, gw.Timeout, a.Logger)
}

func (a *App) newDetector() *detect.Detector {
	return detect.New(decimal.NewFromFloat(a.Config.Detect.ThresholdPct), detect.Mode(a.Config.Detect.Mode))
}

// openStore connects to the persistence layer. The pipeline cannot run
// without it; failures here are the only non-zero exit path.
func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}
	store := storage.NewStore(pool)
	return store, store.Close, nil
}

type scrapeLogWriter interface {
	AppendScrapeLog(ctx context.Context, entry model.ScrapeLogEntry) error
}

// scrapeLogSink writes audit entries without ever blocking or failing the
// scrape that produced them. Drain must complete before the store closes.
type scrapeLogSink struct {
	store  scrapeLogWriter
	logger zerolog.Logger
	wg     sync.WaitGroup
}

func newScrapeLogSink(store scrapeLogWriter, logger zerolog.Logger) *scrapeLogSink {
	return &scrapeLogSink{store: store, logger: logger}
}

func (s *scrapeLogSink) Write(entry model.ScrapeLogEntry) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.AppendScrapeLog(ctx, entry); err != nil {
			s.logger.Debug().Err(err).Str("source", entry.Source).Msg("scrape log write failed")
		}
	}()
}

// Drain blocks until every in-flight write has settled.
func (s *scrapeLogSink) Drain() {
	s.wg.Wait()
}

func (a *App) newManager(store *storage.Store, logFn scraper.ScrapeLogFunc) *service.Manager {
	var dispatcher service.Dispatcher
	if notifier := a.newNotifier(); notifier != nil {
		dispatcher = alerting.NewDispatcher(store, store, notifier, a.Config.Alerting.DailyCap, a.Logger)
	}

	return service.NewManager(
		registry.All(),
		a.newExecutors(logFn),
		store,
		a.newDetector(),
		dispatcher,
		service.Options{
			BatchSize:  a.Config.Scrape.BatchSize,
			BatchDelay: a.Config.Scrape.BatchDelay,
		},
		a.Logger,
	)
}

// Run executes one full scrape cycle. Per-location failures are reported in
// the summary, not the exit code.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	sink := newScrapeLogSink(store, a.Logger)
	defer sink.Drain()

	summary, err := a.newManager(store, sink.Write).RunCycle(ctx)
	a.logSummary(summary)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Watch runs full cycles on the configured cadence until interrupted.
func (a *App) Watch(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	sink := newScrapeLogSink(store, a.Logger)
	defer sink.Drain()

	manager := a.newManager(store, sink.Write)
	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting watch mode")
	err = sched.Run(ctx, func(ctx context.Context, _ time.Time) error {
		summary, err := manager.RunCycle(ctx)
		a.logSummary(summary)
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	a.Logger.Info().Msg("watch mode stopped")
	return nil
}

func (a *App) logSummary(summary model.RunSummary) {
	event := a.Logger.Info().
		Time("started_at", summary.StartedAt).
		Time("finished_at", summary.FinishedAt).
		Int("locations_attempted", summary.LocationsAttempted).
		Int("locations_succeeded", summary.LocationsSucceeded).
		Int("observations", summary.Observations).
		Int("changes", summary.Changes).
		Int("alerts_sent", summary.AlertsSent)
	if len(summary.Errors) > 0 {
		event = event.Strs("errors", summary.Errors)
	}
	event.Msg("run summary")
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ExportOptions hold parameters for exporting one pair's audit history.
type ExportOptions struct {
	LocationCode string
	RateType     model.RateType
	From         *time.Time
	To           *time.Time
	CSVPath      string
	PNGPath      string
	MaxPoints    int
}

// SimulateOptions inject fixed per-source rates through the pipeline.
type SimulateOptions struct {
	LocationCode string
	RateType     model.RateType
	SourceRates  map[string]float64
	PreviousRate float64
	To           string
}
