package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Observation is one persisted gold price reading. Rows are immutable once
// written; identifiers are assigned by the database in insertion order.
type Observation struct {
	ID        int64
	Price     decimal.Decimal
	Unit      string
	Timestamp time.Time
}

// CronConfig is the persisted background-refresh schedule.
type CronConfig struct {
	Enabled    bool
	Expression string
}

// Config keys stored in scraper_config.
const (
	keyScrapeURL      = "scrape_url"
	keyCronEnabled    = "cron_enabled"
	keyCronExpression = "cron_expression"
)
