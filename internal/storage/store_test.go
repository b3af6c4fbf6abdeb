package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// fakeDB implements querier over an in-memory config map, simulating just
// enough of Postgres for the schema-init and config paths.
type fakeDB struct {
	config   map[string]string
	ddlExecs []string
	ddlErrs  map[string]error
	execErr  error
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		config:  make(map[string]string),
		ddlErrs: make(map[string]error),
	}
}

func isDDL(sql string) bool {
	switch sql {
	case createGoldPricesSQL, createScraperConfigSQL, createTimestampIndexSQL:
		return true
	}
	return false
}

func (f *fakeDB) Exec(_ context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	if isDDL(sql) {
		f.ddlExecs = append(f.ddlExecs, sql)
		if err, ok := f.ddlErrs[sql]; ok {
			return pgconn.CommandTag{}, err
		}
		return pgconn.CommandTag{}, nil
	}
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}

	switch sql {
	case upsertConfigSQL:
		f.config[arguments[0].(string)] = arguments[1].(string)
	case seedConfigSQL:
		key := arguments[0].(string)
		if _, exists := f.config[key]; !exists {
			f.config[key] = arguments[1].(string)
		}
	}
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("fakeDB: Query not supported")
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	if sql == selectConfigSQL {
		value, ok := f.config[args[0].(string)]
		return &fakeRow{value: value, ok: ok}
	}
	return &fakeRow{}
}

type fakeRow struct {
	value string
	ok    bool
}

func (r *fakeRow) Scan(dest ...any) error {
	if !r.ok {
		return pgx.ErrNoRows
	}
	*dest[0].(*string) = r.value
	return nil
}

func newTestStore(db querier) *Store {
	return &Store{
		db:         db,
		defaultURL: "http://default",
		logger:     zerolog.Nop(),
	}
}

func TestEnsureRunsSchemaOnce(t *testing.T) {
	db := newFakeDB()
	store := newTestStore(db)

	if err := store.SetScrapeURL(context.Background(), "http://a"); err != nil {
		t.Fatalf("首次操作应成功: %v", err)
	}
	if len(db.ddlExecs) != 3 {
		t.Fatalf("首次操作应执行 3 条 DDL, 实际 %d", len(db.ddlExecs))
	}

	if err := store.SetScrapeURL(context.Background(), "http://b"); err != nil {
		t.Fatalf("二次操作应成功: %v", err)
	}
	if len(db.ddlExecs) != 3 {
		t.Fatalf("初始化成功后不应重复执行 DDL, 实际 %d 条", len(db.ddlExecs))
	}
}

func TestEnsureTreatsUniqueViolationAsInitialized(t *testing.T) {
	db := newFakeDB()
	db.ddlErrs[createTimestampIndexSQL] = &pgconn.PgError{Code: pgUniqueViolation}
	store := newTestStore(db)

	if err := store.SetScrapeURL(context.Background(), "http://a"); err != nil {
		t.Fatalf("并发初始化冲突应视为已初始化: %v", err)
	}
	if !store.initialized.Load() {
		t.Fatal("唯一约束冲突后初始化标志应置位")
	}

	// Subsequent operations short-circuit the schema check entirely.
	ddlCount := len(db.ddlExecs)
	if err := store.SetScrapeURL(context.Background(), "http://b"); err != nil {
		t.Fatalf("后续操作应成功: %v", err)
	}
	if len(db.ddlExecs) != ddlCount {
		t.Fatal("初始化标志置位后不应再执行 DDL")
	}
}

func TestEnsurePropagatesOtherInitErrors(t *testing.T) {
	db := newFakeDB()
	db.ddlErrs[createGoldPricesSQL] = errors.New("connection refused")
	store := newTestStore(db)

	err := store.SetScrapeURL(context.Background(), "http://a")
	if !IsStoreError(err) {
		t.Fatalf("非唯一约束的初始化错误应上抛 StoreError, 实际 %v", err)
	}
	if store.initialized.Load() {
		t.Fatal("初始化失败后标志不应置位")
	}

	// Next operation retries the DDL.
	delete(db.ddlErrs, createGoldPricesSQL)
	if err := store.SetScrapeURL(context.Background(), "http://b"); err != nil {
		t.Fatalf("故障恢复后应可重试初始化: %v", err)
	}
	if !store.initialized.Load() {
		t.Fatal("重试成功后标志应置位")
	}
}

func TestConfigUpsertLastWriteWins(t *testing.T) {
	db := newFakeDB()
	store := newTestStore(db)

	if err := store.SetScrapeURL(context.Background(), "http://v1"); err != nil {
		t.Fatalf("写入 v1 应成功: %v", err)
	}
	if err := store.SetScrapeURL(context.Background(), "http://v2"); err != nil {
		t.Fatalf("写入 v2 应成功: %v", err)
	}

	url, err := store.ScrapeURL(context.Background())
	if err != nil {
		t.Fatalf("读取应成功: %v", err)
	}
	if url != "http://v2" {
		t.Fatalf("覆盖写入后应读到 v2, 实际 %s", url)
	}
}

func TestScrapeURLSeedsDefaultOnFirstRead(t *testing.T) {
	db := newFakeDB()
	store := newTestStore(db)

	url, err := store.ScrapeURL(context.Background())
	if err != nil {
		t.Fatalf("首次读取应成功: %v", err)
	}
	if url != "http://default" {
		t.Fatalf("应返回内置默认 URL, 实际 %s", url)
	}
	if db.config[keyScrapeURL] != "http://default" {
		t.Fatal("默认 URL 应被播种到配置表")
	}
}
