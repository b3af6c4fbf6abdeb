package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"gold-price-watcher/internal/config"
	"gold-price-watcher/internal/cron"
	"gold-price-watcher/internal/httpapi"
	"gold-price-watcher/internal/scraper"
	"gold-price-watcher/internal/service"
	"gold-price-watcher/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.ResolveDSN() == "" {
		return nil, nil, errors.New("database connection parameters not configured")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool, a.Config.Scraper.DefaultURL, a.Logger)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run starts the HTTP API and the background schedule, blocking until the
// process is signalled to stop.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	browser := scraper.NewBrowser(scraper.Options{
		UserAgent:   a.Config.Scraper.UserAgent,
		WaitTimeout: a.Config.Scraper.WaitTimeout,
	}, a.Logger)

	svc := service.New(store, browser, service.Options{
		CacheTTL:    a.Config.Scraper.CacheTTL,
		FallbackURL: a.Config.Scraper.DefaultURL,
	}, a.Logger)

	sched := cron.NewScheduler(svc.ScheduledRefresh, a.Logger)
	defer sched.Stop()

	a.restoreSchedule(ctx, store, sched)

	api := httpapi.NewServer(svc, store, store, sched, httpapi.Options{
		DefaultHistoryDays: a.Config.Scraper.HistoryDays,
	}, a.Logger)

	server := &http.Server{
		Addr:         a.Config.Server.Addr,
		Handler:      api.Router(),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", server.Addr).Msg("http server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		a.Logger.Info().Msg("shutting down")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancelShutdown()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}

	return nil
}

// restoreSchedule replays the persisted cron settings into the scheduler so
// a restart resumes the schedule without a settings round-trip.
func (a *App) restoreSchedule(ctx context.Context, store *storage.Store, sched *cron.Scheduler) {
	readCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cfg, err := store.CronConfig(readCtx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("could not read persisted schedule; starting without one")
		return
	}
	if !cfg.Enabled || cfg.Expression == "" {
		return
	}
	if err := sched.Start(cfg.Expression); err != nil {
		a.Logger.Error().Err(err).Str("expression", cfg.Expression).Msg("persisted schedule is invalid; starting without one")
		return
	}
	a.Logger.Info().Str("expression", cfg.Expression).Msg("restored persisted schedule")
}

// ExportOptions hold parameters for exporting historical observations.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
