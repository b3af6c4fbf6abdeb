// Package httpapi exposes the price, history, and settings endpoints
// consumed by the front end.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"gold-price-watcher/internal/cron"
	"gold-price-watcher/internal/service"
	"gold-price-watcher/internal/storage"
)

// PriceService serves current-price requests.
type PriceService interface {
	CurrentPrice(ctx context.Context) (service.Result, error)
}

// SettingsStore is the persistence surface the settings endpoints need.
type SettingsStore interface {
	ScrapeURL(ctx context.Context) (string, error)
	SetScrapeURL(ctx context.Context, url string) error
	CronConfig(ctx context.Context) (storage.CronConfig, error)
	SaveCronConfig(ctx context.Context, enabled bool, expression string) error
}

// HistoryStore lists observations by time window.
type HistoryStore interface {
	HistorySince(ctx context.Context, days *int) ([]storage.Observation, error)
}

// CronControl is the scheduler surface the settings endpoint drives.
type CronControl interface {
	Start(expression string) error
	Stop()
	Status() cron.Status
}

// Options tune API behaviour.
type Options struct {
	// DefaultHistoryDays bounds the history window when the request does
	// not name one.
	DefaultHistoryDays int
}

// Server bundles the handlers and their dependencies.
type Server struct {
	prices   PriceService
	settings SettingsStore
	history  HistoryStore
	sched    CronControl
	opts     Options
	logger   zerolog.Logger
}

// NewServer constructs the API server.
func NewServer(prices PriceService, settings SettingsStore, history HistoryStore, sched CronControl, opts Options, logger zerolog.Logger) *Server {
	if opts.DefaultHistoryDays <= 0 {
		opts.DefaultHistoryDays = 30
	}
	return &Server{
		prices:   prices,
		settings: settings,
		history:  history,
		sched:    sched,
		opts:     opts,
		logger:   logger.With().Str("component", "httpapi").Logger(),
	}
}

// Router constructs the chi mux with all routes wired.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth())

	r.Route("/api", func(r chi.Router) {
		r.Get("/gold-price", s.handleCurrentPrice())
		r.Get("/gold-history", s.handleHistory())
		r.Get("/settings", s.handleGetSettings())
		r.Post("/settings", s.handleUpdateSettings())
	})

	return r
}
