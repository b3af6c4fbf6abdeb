package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("默认配置加载应成功: %v", err)
	}

	if cfg.App.Name != "goldwatcher" {
		t.Fatalf("应用名不正确: %s", cfg.App.Name)
	}
	if cfg.Scraper.DefaultURL != DefaultScrapeURL {
		t.Fatal("默认抓取 URL 不正确")
	}
	if cfg.Scraper.CacheTTL != 10*time.Second {
		t.Fatalf("缓存窗口默认应为 10s, 实际 %s", cfg.Scraper.CacheTTL)
	}
	if cfg.Scraper.WaitTimeout != 30*time.Second {
		t.Fatalf("等待超时默认应为 30s, 实际 %s", cfg.Scraper.WaitTimeout)
	}
	if cfg.Scraper.HistoryDays != 30 {
		t.Fatalf("默认历史窗口应为 30 天, 实际 %d", cfg.Scraper.HistoryDays)
	}
	if cfg.Database.MaxOpenConns != 20 {
		t.Fatalf("连接池上限默认应为 20, 实际 %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("监听地址默认应为 :8080, 实际 %s", cfg.Server.Addr)
	}
}

func TestResolveDSNFromFields(t *testing.T) {
	db := DatabaseConfig{
		Host:           "db.internal",
		Port:           5432,
		User:           "gold",
		Password:       "secret",
		Name:           "goldprices",
		ConnectTimeout: 2 * time.Second,
	}

	dsn := db.ResolveDSN()
	for _, part := range []string{"postgres://", "gold:secret@", "db.internal:5432", "/goldprices", "connect_timeout=2"} {
		if !strings.Contains(dsn, part) {
			t.Fatalf("DSN 缺少 %q: %s", part, dsn)
		}
	}
}

func TestResolveDSNPrefersExplicit(t *testing.T) {
	db := DatabaseConfig{
		DSN:  "postgres://explicit/db",
		Host: "ignored",
	}
	if db.ResolveDSN() != "postgres://explicit/db" {
		t.Fatal("显式 DSN 应优先")
	}
}

func TestResolveDSNEmptyWhenUnconfigured(t *testing.T) {
	var db DatabaseConfig
	if db.ResolveDSN() != "" {
		t.Fatal("未配置数据库时 DSN 应为空")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("默认配置加载应成功: %v", err)
	}

	cfg.Scraper.WaitTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("wait_timeout 为零应校验失败")
	}
	cfg.Scraper.WaitTimeout = 30 * time.Second

	cfg.Scraper.HistoryDays = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("history_days 为零应校验失败")
	}
}
