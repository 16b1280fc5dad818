package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"StationScraper/internal/cache"
	"StationScraper/internal/config"
	"StationScraper/internal/domain"
	"StationScraper/internal/extractor"
	"StationScraper/internal/infrastructure/gateway"
	"StationScraper/internal/infrastructure/httpapi"
	"StationScraper/internal/infrastructure/parser"
	"StationScraper/internal/infrastructure/scheduler"
	"StationScraper/internal/infrastructure/storage"
	"StationScraper/internal/infrastructure/telegram"
	"StationScraper/internal/infrastructure/uptime"
	"StationScraper/internal/logging"
	"StationScraper/internal/metrics"
	"StationScraper/internal/ports"
	"StationScraper/internal/usecase"
)

const defaultFetchTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	batch     *usecase.Batch
	scheduler *usecase.Scheduler
	server    *httpapi.Server
	journal   *storage.SQLiteJournal
}

// New builds the application from configuration. Optional adapters (journal,
// notifier, HTTP server) are only created when configured.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	m := metrics.New()

	registry := extractor.NewRegistry()
	fetchTimeout := cfg.Scraper.FetchTimeout.Std()
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	fetchClient := &http.Client{Timeout: fetchTimeout}
	parser.RegisterAll(registry, fetchClient, baseLogger)
	baseLogger.Debug("extractors registered", "categories", registry.Categories())

	deps := usecase.BatchDeps{
		Gateway: gateway.NewClient(
			cfg.Gateway.Endpoint,
			cfg.Gateway.AdminSecret,
			cfg.Gateway.Timeout.Std(),
			baseLogger.With("component", "gateway"),
		),
		Source:       usecase.NewMerger(registry, m, baseLogger.With("component", "merger")),
		Prober:       uptime.NewProber(cfg.Scraper.ProbeTimeout.Std(), baseLogger.With("component", "uptime")),
		Cache:        cache.NewStats(cfg.Cache.RefreshInterval.Std()),
		Metrics:      m,
		Logger:       baseLogger.With("component", "batch"),
		Concurrency:  cfg.Scraper.Concurrency,
		ShuffleSeed:  cfg.Scraper.ShuffleSeed,
		WriteTimeout: cfg.Gateway.Timeout.Std(),
	}

	if cfg.Gateway.WritesPerSecond > 0 {
		burst := cfg.Gateway.WriteBurst
		if burst <= 0 {
			burst = 1
		}
		deps.Limiter = rate.NewLimiter(rate.Limit(cfg.Gateway.WritesPerSecond), burst)
	}

	a := &Application{cfg: cfg, logger: baseLogger}

	if cfg.Journal.Path != "" {
		journal, err := storage.OpenSQLiteJournal(cfg.Journal.Path)
		if err != nil {
			return nil, errors.Wrap(err, "open run journal")
		}
		a.journal = journal
		deps.Journal = journal
	}

	if cfg.Notifications.Telegram.Enabled() {
		deps.Notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	a.batch = usecase.NewBatch(deps)

	var driver ports.Scheduler
	if cfg.Scheduler.CronExpression != "" {
		driver = scheduler.NewCronScheduler(
			cfg.Scheduler.CronExpression,
			cfg.Scheduler.Location(),
			cfg.Scheduler.ShouldRunOnStart(),
			baseLogger,
		)
	}
	a.scheduler = usecase.NewScheduler(driver, a.batch, baseLogger.With("component", "scheduler"))

	if cfg.HTTP.Addr != "" {
		opts := httpapi.Options{
			Stats:   deps.Cache,
			Metrics: m.Handler(),
			Logger:  baseLogger.With("component", "http"),
		}
		if a.journal != nil {
			opts.History = a.journal
		}
		a.server = httpapi.NewServer(cfg.HTTP.Addr, a.batch, opts)
	}

	return a, nil
}

// RunOnce executes a single batch and returns its results.
func (a *Application) RunOnce(ctx context.Context) ([]domain.BatchResult, error) {
	results, err := a.batch.Run(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "run batch")
	}
	return results, nil
}

// Close releases the run journal. Run closes it on return.
func (a *Application) Close() error {
	return a.journal.Close()
}

// Run starts the scheduler and the HTTP server and blocks until ctx is done
// or the server fails.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Warn("close run journal", "error", err)
		}
	}()

	if err := a.scheduler.Start(ctx); err != nil {
		return errors.Wrap(err, "start scheduler")
	}
	defer func() {
		if err := a.scheduler.Stop(context.Background()); err != nil {
			a.logger.Warn("stop scheduler", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	if a.server != nil {
		g.Go(func() error {
			return errors.Wrap(a.server.ListenAndServe(gctx), "serve http")
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	a.logger.Info("station scraper started",
		"cron", a.cfg.Scheduler.CronExpression,
		"timezone", a.cfg.Scheduler.Location().String(),
		"http", a.cfg.HTTP.Addr)

	return g.Wait()
}
