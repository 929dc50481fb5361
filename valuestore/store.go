// Package valuestore persists (entity, field, value) rows in a relational
// database through bun. Rows are upserted on their composite primary key, so a
// write for an existing pair replaces its value.
package valuestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-webstats/cache"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

var Logger = logger.GetLogger("store")

// dbClosedMessage is what database/sql reports once its pool was closed.
const dbClosedMessage = "sql: database is closed"

// TableName is the table holding persisted scores.
const TableName = "entity_field_values"

// Row is one persisted (entity, field) score.
type Row struct {
	bun.BaseModel `bun:"table:entity_field_values"`

	EntityID string         `bun:"entity_id,pk,notnull,type:varchar(36)"`
	Field    string         `bun:"field,pk,notnull,type:varchar(255)"`
	Value    sql.NullString `bun:"value,type:varchar(255)"`
}

// Store wraps a bun database holding the entity_field_values table.
type Store struct {
	db     *bun.DB
	name   string
	closed atomic.Bool
}

// Open connects to the database described by opts and verifies the
// connection with a ping.
func Open(ctx context.Context, opts Options) (*Store, error) {
	dsn, err := opts.DSN()
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", opts.Driver, err)
	}

	var db *bun.DB
	switch opts.Driver {
	case DriverSQLite:
		// one connection keeps in-memory databases alive and avoids
		// "database is locked" between concurrent writers
		sqlDB.SetMaxOpenConns(1)
		db = bun.NewDB(sqlDB, sqlitedialect.New())
	default:
		db = bun.NewDB(sqlDB, pgdialect.New())
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &cache.StoreError{Op: "connect", Table: opts.Name(), Err: err}
	}

	Logger.Infof("Connected to %s database %s", opts.Driver, opts.Name())
	return New(db, opts.Name()), nil
}

// New wraps an already opened bun database.
func New(db *bun.DB, name string) *Store {
	return &Store{db: db, name: name}
}

// Name returns the database name used in log lines.
func (s *Store) Name() string {
	return s.name
}

// DB exposes the underlying bun database.
func (s *Store) DB() *bun.DB {
	return s.db
}

func (s *Store) check(op string) error {
	if s == nil || s.db == nil || s.closed.Load() {
		return &cache.StoreError{Op: op, Table: TableName, Err: cache.ErrStoreClosed}
	}
	return nil
}

func (s *Store) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if s.released(err) {
		return &cache.StoreError{Op: op, Table: TableName, Err: fmt.Errorf("%w: %v", cache.ErrStoreClosed, err)}
	}
	return &cache.StoreError{Op: op, Table: TableName, Err: err}
}

// released reports whether err means the handle is gone, either through
// Close or because the underlying database was closed by someone else. The
// latter marks the store closed.
func (s *Store) released(err error) bool {
	if s.closed.Load() || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if strings.Contains(err.Error(), dbClosedMessage) {
		s.closed.Store(true)
		Logger.Warningf("Database %s was closed outside the store", s.name)
		return true
	}
	return false
}

// TableExists reports whether the entity_field_values table is present.
func (s *Store) TableExists(ctx context.Context) (bool, error) {
	if err := s.check("inspect"); err != nil {
		return false, err
	}

	var query string
	switch s.db.Dialect().Name() {
	case dialect.SQLite:
		query = "SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
	case dialect.PG:
		query = "SELECT count(*) FROM information_schema.tables WHERE table_name = ?"
	default:
		return false, s.wrap("inspect", fmt.Errorf("unsupported dialect %s", s.db.Dialect().Name()))
	}

	var n int
	if err := s.db.NewRaw(query, TableName).Scan(ctx, &n); err != nil {
		return false, s.wrap("inspect", err)
	}
	return n > 0, nil
}

// EnsureSchema creates the table when it does not exist yet. It reports
// whether the table was created by this call.
func (s *Store) EnsureSchema(ctx context.Context) (bool, error) {
	exists, err := s.TableExists(ctx)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	if _, err := s.db.NewCreateTable().Model((*Row)(nil)).IfNotExists().Exec(ctx); err != nil {
		return false, s.wrap("create", err)
	}
	Logger.Infof("Created table %s in database %s", TableName, s.name)
	return true, nil
}

// Load returns every persisted row matching criteria; no criteria loads the
// whole table.
func (s *Store) Load(ctx context.Context, criteria ...repository.SelectCriteria) ([]Row, error) {
	if err := s.check("load"); err != nil {
		return nil, err
	}

	var rows []Row
	q := s.db.NewSelect().Model(&rows)
	for _, c := range criteria {
		q = c(q)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, s.wrap("load", err)
	}
	return rows, nil
}

// Upsert writes rows in one statement, replacing the value of pairs that
// already exist. It returns the number of rows written.
func (s *Store) Upsert(ctx context.Context, rows []Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := s.check("upsert"); err != nil {
		return 0, err
	}

	_, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (entity_id, field) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	if err != nil {
		return 0, s.wrap("upsert", err)
	}
	return len(rows), nil
}

// Status returns "connected" when the database answers a ping, "closed"
// otherwise.
func (s *Store) Status(ctx context.Context) string {
	if s.check("ping") != nil {
		return "closed"
	}
	if err := s.db.PingContext(ctx); err != nil {
		return "closed"
	}
	return "connected"
}

// Close releases the database handle. Later calls are no-ops.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return &cache.StoreError{Op: "close", Table: s.name, Err: err}
	}
	Logger.Infof("Closed database %s", s.name)
	return nil
}

// ByEntity restricts a Load to the rows of one entity.
func ByEntity(entityID string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("entity_id = ?", entityID)
	}
}

// ByField restricts a Load to the rows of one field.
func ByField(field string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("field = ?", field)
	}
}
