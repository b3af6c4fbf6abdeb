package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	createGoldPricesSQL = `CREATE TABLE IF NOT EXISTS gold_prices (
        id        BIGSERIAL PRIMARY KEY,
        price     NUMERIC(10,2) NOT NULL,
        unit      VARCHAR(50) NOT NULL,
        timestamp TIMESTAMPTZ NOT NULL
    );`

	createScraperConfigSQL = `CREATE TABLE IF NOT EXISTS scraper_config (
        id    BIGSERIAL PRIMARY KEY,
        name  VARCHAR(50) UNIQUE NOT NULL,
        value TEXT NOT NULL
    );`

	createTimestampIndexSQL = `CREATE INDEX IF NOT EXISTS idx_gold_prices_timestamp
    ON gold_prices (timestamp DESC);`

	selectConfigSQL = `SELECT value FROM scraper_config WHERE name = $1 LIMIT 1;`

	seedConfigSQL = `INSERT INTO scraper_config (name, value) VALUES ($1, $2)
    ON CONFLICT (name) DO NOTHING;`

	upsertConfigSQL = `INSERT INTO scraper_config (name, value) VALUES ($1, $2)
    ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value;`

	insertObservationSQL = `INSERT INTO gold_prices (price, unit, timestamp)
    VALUES ($1, $2, $3)
    RETURNING id, price, unit, timestamp;`

	latestObservationSQL = `SELECT id, price, unit, timestamp
    FROM gold_prices
    ORDER BY id DESC
    LIMIT 1;`

	listObservationsSQL = `SELECT id, price, unit, timestamp
    FROM gold_prices
    ORDER BY id DESC
    LIMIT $1;`

	listAllByTimestampSQL = `SELECT id, price, unit, timestamp
    FROM gold_prices
    ORDER BY timestamp DESC;`

	listSinceByTimestampSQL = `SELECT id, price, unit, timestamp
    FROM gold_prices
    WHERE timestamp >= NOW() - $1 * INTERVAL '1 day'
    ORDER BY timestamp DESC;`

	listBetweenSQL = `SELECT id, price, unit, timestamp
    FROM gold_prices
    WHERE timestamp >= $1
      AND timestamp < $2
    ORDER BY timestamp;`
)

// pgUniqueViolation is the Postgres error code raised when concurrent
// initialisers race to create the same schema object.
const pgUniqueViolation = "23505"

// querier is the subset of pgxpool.Pool the repository uses. Narrowed so
// the schema-init and config paths can be exercised without a live
// database.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ObservationStore defines persistence operations for price readings.
type ObservationStore interface {
	AppendObservation(ctx context.Context, price decimal.Decimal, unit string, ts time.Time) (Observation, error)
	LatestObservation(ctx context.Context) (*Observation, error)
	History(ctx context.Context, limit int) ([]Observation, error)
	HistorySince(ctx context.Context, days *int) ([]Observation, error)
}

// ConfigStore defines persistence operations for scraper settings.
type ConfigStore interface {
	ScrapeURL(ctx context.Context) (string, error)
	SetScrapeURL(ctx context.Context, url string) error
	CronConfig(ctx context.Context) (CronConfig, error)
	SaveCronConfig(ctx context.Context, enabled bool, expression string) error
}

// Store provides access to the gold price time series and scraper settings.
// The schema is created lazily before the first operation; construction does
// not touch the database.
type Store struct {
	db          querier
	pool        *pgxpool.Pool
	defaultURL  string
	logger      zerolog.Logger
	initialized atomic.Bool
}

// NewStore wires a pgx pool into a Store. defaultURL seeds scrape_url on
// first read.
func NewStore(pool *pgxpool.Pool, defaultURL string, logger zerolog.Logger) *Store {
	return &Store{
		db:         pool,
		pool:       pool,
		defaultURL: defaultURL,
		logger:     logger.With().Str("component", "storage").Logger(),
	}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getDB() (querier, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	return s.db, nil
}

// ensure creates the schema once per process. Initialisation is naturally
// idempotent: a unique violation from a racing initialiser means the schema
// already exists, so it counts as success rather than being serialised
// behind a mutex.
func (s *Store) ensure(ctx context.Context) error {
	if s.initialized.Load() {
		return nil
	}

	db, err := s.getDB()
	if err != nil {
		return err
	}

	for _, stmt := range []string{createGoldPricesSQL, createScraperConfigSQL, createTimestampIndexSQL} {
		if _, execErr := db.Exec(ctx, stmt); execErr != nil {
			var pgErr *pgconn.PgError
			if errors.As(execErr, &pgErr) && pgErr.Code == pgUniqueViolation {
				s.logger.Warn().Str("detail", pgErr.Detail).Msg("schema init race detected, continuing")
				continue
			}
			return storeErr("init schema", execErr)
		}
	}

	s.initialized.Store(true)
	s.logger.Debug().Msg("schema initialised")
	return nil
}

// ScrapeURL returns the configured target URL, seeding the built-in default
// on first access.
func (s *Store) ScrapeURL(ctx context.Context) (string, error) {
	if err := s.ensure(ctx); err != nil {
		return "", err
	}
	db, err := s.getDB()
	if err != nil {
		return "", err
	}

	var value string
	scanErr := db.QueryRow(ctx, selectConfigSQL, keyScrapeURL).Scan(&value)
	switch {
	case scanErr == nil && value != "":
		return value, nil
	case scanErr != nil && !errors.Is(scanErr, pgx.ErrNoRows):
		return "", storeErr("get scrape url", scanErr)
	}

	if _, execErr := db.Exec(ctx, seedConfigSQL, keyScrapeURL, s.defaultURL); execErr != nil {
		return "", storeErr("seed scrape url", execErr)
	}
	return s.defaultURL, nil
}

// SetScrapeURL overwrites the configured target URL.
func (s *Store) SetScrapeURL(ctx context.Context, url string) error {
	return s.setConfig(ctx, keyScrapeURL, url)
}

// CronConfig reads the persisted schedule settings. Absent keys map to a
// disabled schedule with no expression.
func (s *Store) CronConfig(ctx context.Context) (CronConfig, error) {
	if err := s.ensure(ctx); err != nil {
		return CronConfig{}, err
	}
	db, err := s.getDB()
	if err != nil {
		return CronConfig{}, err
	}

	rows, queryErr := db.Query(ctx, `SELECT name, value FROM scraper_config WHERE name = ANY($1);`,
		[]string{keyCronEnabled, keyCronExpression})
	if queryErr != nil {
		return CronConfig{}, storeErr("get cron config", queryErr)
	}
	defer rows.Close()

	var cfg CronConfig
	for rows.Next() {
		var name, value string
		if scanErr := rows.Scan(&name, &value); scanErr != nil {
			return CronConfig{}, storeErr("scan cron config", scanErr)
		}
		switch name {
		case keyCronEnabled:
			cfg.Enabled = value == "true"
		case keyCronExpression:
			cfg.Expression = value
		}
	}
	if rows.Err() != nil {
		return CronConfig{}, storeErr("get cron config", rows.Err())
	}
	return cfg, nil
}

// SaveCronConfig upserts the schedule settings.
func (s *Store) SaveCronConfig(ctx context.Context, enabled bool, expression string) error {
	enabledValue := "false"
	if enabled {
		enabledValue = "true"
	}
	if err := s.setConfig(ctx, keyCronEnabled, enabledValue); err != nil {
		return err
	}
	return s.setConfig(ctx, keyCronExpression, expression)
}

func (s *Store) setConfig(ctx context.Context, key, value string) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if _, execErr := db.Exec(ctx, upsertConfigSQL, key, value); execErr != nil {
		return storeErr("set "+key, execErr)
	}
	return nil
}

// AppendObservation inserts a reading and returns the row with its assigned
// identifier. A single statement, so there are no partial writes.
func (s *Store) AppendObservation(ctx context.Context, price decimal.Decimal, unit string, ts time.Time) (Observation, error) {
	if err := s.ensure(ctx); err != nil {
		return Observation{}, err
	}
	db, err := s.getDB()
	if err != nil {
		return Observation{}, err
	}

	row := db.QueryRow(ctx, insertObservationSQL, price.StringFixed(2), unit, ts)
	obs, scanErr := scanObservation(row)
	if scanErr != nil {
		return Observation{}, storeErr("append observation", scanErr)
	}
	return obs, nil
}

// LatestObservation returns the most recent reading by identifier, or nil
// when the table is empty.
func (s *Store) LatestObservation(ctx context.Context) (*Observation, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	row := db.QueryRow(ctx, latestObservationSQL)
	obs, scanErr := scanObservation(row)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return nil, nil
	}
	if scanErr != nil {
		return nil, storeErr("latest observation", scanErr)
	}
	return &obs, nil
}

// History lists the most recent readings by identifier, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]Observation, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, queryErr := db.Query(ctx, listObservationsSQL, limit)
	if queryErr != nil {
		return nil, storeErr("list history", queryErr)
	}
	defer rows.Close()

	return collectObservations(rows, limit)
}

// HistorySince lists readings newer than the given day window ordered by
// timestamp descending. A nil window means the entire table.
func (s *Store) HistorySince(ctx context.Context, days *int) ([]Observation, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	var (
		rows     pgx.Rows
		queryErr error
	)
	if days == nil {
		rows, queryErr = db.Query(ctx, listAllByTimestampSQL)
	} else {
		rows, queryErr = db.Query(ctx, listSinceByTimestampSQL, *days)
	}
	if queryErr != nil {
		return nil, storeErr("list history since", queryErr)
	}
	defer rows.Close()

	return collectObservations(rows, 0)
}

// HistoryBetween lists readings within a half-open time window ordered by
// timestamp ascending, for charting.
func (s *Store) HistoryBetween(ctx context.Context, from, to time.Time) ([]Observation, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, queryErr := db.Query(ctx, listBetweenSQL, from, to)
	if queryErr != nil {
		return nil, storeErr("list history between", queryErr)
	}
	defer rows.Close()

	return collectObservations(rows, 0)
}

func collectObservations(rows pgx.Rows, sizeHint int) ([]Observation, error) {
	observations := make([]Observation, 0, sizeHint)
	for rows.Next() {
		obs, scanErr := scanObservation(rows)
		if scanErr != nil {
			return nil, storeErr("scan observation", scanErr)
		}
		observations = append(observations, obs)
	}
	if rows.Err() != nil {
		return nil, storeErr("iterate observations", rows.Err())
	}
	return observations, nil
}

func scanObservation(row pgx.Row) (Observation, error) {
	var (
		obs      Observation
		priceStr string
	)
	if err := row.Scan(&obs.ID, &priceStr, &obs.Unit, &obs.Timestamp); err != nil {
		return Observation{}, err
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return Observation{}, err
	}
	obs.Price = price
	return obs, nil
}

var (
	_ ObservationStore = (*Store)(nil)
	_ ConfigStore      = (*Store)(nil)
)
