// Package service holds the acquisition orchestrator: the decision between
// serving a fresh-enough cached observation, scraping live, and degrading to
// the last known value when the scrape fails.
package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"gold-price-watcher/internal/scraper"
	"gold-price-watcher/internal/storage"
)

// Source labels where a served price came from.
const (
	SourceCache   = "cache"
	SourceScraper = "scraper"
)

// Store is the subset of persistence operations the orchestrator needs.
type Store interface {
	LatestObservation(ctx context.Context) (*storage.Observation, error)
	AppendObservation(ctx context.Context, price decimal.Decimal, unit string, ts time.Time) (storage.Observation, error)
	ScrapeURL(ctx context.Context) (string, error)
}

// Options tune orchestrator behaviour.
type Options struct {
	// CacheTTL is the freshness window under which a stored observation is
	// served without re-extraction. Keeps bursty request traffic from
	// hammering the remote target.
	CacheTTL time.Duration
	// FallbackURL is used when even the config read fails.
	FallbackURL string
}

// Result is a served price with its provenance.
type Result struct {
	Observation storage.Observation
	Source      string
}

// Service coordinates the extractor and the store.
type Service struct {
	store     Store
	extractor scraper.Extractor
	opts      Options
	logger    zerolog.Logger
	now       func() time.Time

	refreshFailures atomic.Uint64
}

// New constructs the orchestrator.
func New(store Store, extractor scraper.Extractor, opts Options, logger zerolog.Logger) *Service {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Second
	}
	return &Service{
		store:     store,
		extractor: extractor,
		opts:      opts,
		logger:    logger.With().Str("component", "service").Logger(),
		now:       time.Now,
	}
}

// CurrentPrice serves the freshest price available. A stored observation
// younger than the cache TTL short-circuits extraction entirely; otherwise
// a live scrape is attempted, falling back to the last known value when the
// scrape fails and one exists.
func (s *Service) CurrentPrice(ctx context.Context) (Result, error) {
	latest, err := s.store.LatestObservation(ctx)
	if err != nil {
		return Result{}, err
	}
	if latest != nil && s.now().Sub(latest.Timestamp) < s.opts.CacheTTL {
		s.logger.Debug().Int64("id", latest.ID).Msg("serving cached observation")
		return Result{Observation: *latest, Source: SourceCache}, nil
	}

	obs, scrapeErr := s.RefreshAndPersist(ctx)
	if scrapeErr == nil {
		return Result{Observation: obs, Source: SourceScraper}, nil
	}
	if storage.IsStoreError(scrapeErr) {
		return Result{}, scrapeErr
	}

	s.logger.Warn().Err(scrapeErr).Msg("scrape failed, falling back to last known value")

	latest, err = s.store.LatestObservation(ctx)
	if err != nil {
		return Result{}, err
	}
	if latest != nil {
		return Result{Observation: *latest, Source: SourceCache}, nil
	}

	return Result{}, scrapeErr
}

// RefreshAndPersist scrapes the configured URL and appends the result. No
// freshness check; this is the path the scheduler drives.
func (s *Service) RefreshAndPersist(ctx context.Context) (storage.Observation, error) {
	url, err := s.store.ScrapeURL(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("scrape url read failed, using built-in default")
		url = s.opts.FallbackURL
	}

	quote, err := s.extractor.FetchPrice(ctx, url)
	if err != nil {
		return storage.Observation{}, err
	}

	// Timestamp reflects extraction time, not persistence time.
	obs, err := s.store.AppendObservation(ctx, quote.Price, quote.Unit, s.now().UTC())
	if err != nil {
		return storage.Observation{}, err
	}

	s.logger.Info().
		Int64("id", obs.ID).
		Str("price", obs.Price.StringFixed(2)).
		Str("unit", obs.Unit).
		Msg("observation recorded")
	return obs, nil
}

// ScheduledRefresh is the best-effort tick body for the background schedule.
// Failures are counted and logged, never propagated, so a bad scrape cannot
// kill the schedule.
func (s *Service) ScheduledRefresh(ctx context.Context) {
	if _, err := s.RefreshAndPersist(ctx); err != nil {
		s.refreshFailures.Add(1)
		s.logger.Error().Err(err).Uint64("failures", s.refreshFailures.Load()).Msg("scheduled refresh failed")
	}
}

// RefreshFailures reports how many background refreshes have failed since
// startup.
func (s *Service) RefreshFailures() uint64 {
	return s.refreshFailures.Load()
}
