package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"gold-price-watcher/internal/logging"
)

// DefaultScrapeURL is the built-in target when no URL has been configured.
const DefaultScrapeURL = "https://lsjr.ccb.com/msmp/ecpweb/page/internet/dist/preciousMetalsDetail.html?CCB_EmpID=71693716&PM_PD_ID=261108522&Org_Inst_Rgon_Cd=JS&page=preciousMetalsDetail"

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. Either DSN is set
// directly or it is assembled from the discrete fields.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// ServerConfig governs the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ScraperConfig tunes the extraction pipeline.
type ScraperConfig struct {
	DefaultURL  string        `mapstructure:"default_url"`
	UserAgent   string        `mapstructure:"user_agent"`
	WaitTimeout time.Duration `mapstructure:"wait_timeout"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	HistoryDays int           `mapstructure:"history_days"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GOLDWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindLegacyEnv(v)
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// bindLegacyEnv accepts the POSTGRES_* variables the deployment already
// exports alongside the GOLDWATCHER_ prefixed form.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("database.host", "GOLDWATCHER_DATABASE_HOST", "POSTGRES_HOST")
	_ = v.BindEnv("database.port", "GOLDWATCHER_DATABASE_PORT", "POSTGRES_PORT")
	_ = v.BindEnv("database.user", "GOLDWATCHER_DATABASE_USER", "POSTGRES_USER")
	_ = v.BindEnv("database.password", "GOLDWATCHER_DATABASE_PASSWORD", "POSTGRES_PASSWORD")
	_ = v.BindEnv("database.name", "GOLDWATCHER_DATABASE_NAME", "POSTGRES_DB")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "goldwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.connect_timeout", "2s")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("scraper.default_url", DefaultScrapeURL)
	v.SetDefault("scraper.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("scraper.wait_timeout", "30s")
	v.SetDefault("scraper.cache_ttl", "10s")
	v.SetDefault("scraper.history_days", 30)

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scraper.WaitTimeout <= 0 {
		return fmt.Errorf("scraper.wait_timeout must be greater than zero")
	}
	if c.Scraper.CacheTTL < 0 {
		return fmt.Errorf("scraper.cache_ttl cannot be negative")
	}
	if c.Scraper.HistoryDays <= 0 {
		return fmt.Errorf("scraper.history_days must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	return nil
}

// ResolveDSN returns the configured DSN, assembling one from the discrete
// connection fields when it is unset. Empty when the database is not
// configured at all.
func (c *DatabaseConfig) ResolveDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.Host == "" {
		return ""
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Name,
	}
	if c.User != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password)
		} else {
			u.User = url.User(c.User)
		}
	}

	q := u.Query()
	if c.ConnectTimeout > 0 {
		seconds := int(c.ConnectTimeout.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		q.Set("connect_timeout", fmt.Sprintf("%d", seconds))
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
