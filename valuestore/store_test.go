package valuestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/goliatone/go-webstats/cache"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	store, err := Open(context.Background(), Options{
		Driver: DriverSQLite,
		Path:   fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func row(entity, field, value string) Row {
	return Row{EntityID: entity, Field: field, Value: sql.NullString{String: value, Valid: true}}
}

func TestStore_EnsureSchemaIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	exists, err := store.TableExists(ctx)
	if err != nil {
		t.Fatalf("TableExists: %v", err)
	}
	if exists {
		t.Fatal("expected fresh database to have no table")
	}

	created, err := store.EnsureSchema(ctx)
	if err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if !created {
		t.Error("expected first EnsureSchema to create the table")
	}

	created, err = store.EnsureSchema(ctx)
	if err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}
	if created {
		t.Error("expected second EnsureSchema to be a no-op")
	}
}

func TestStore_UpsertReplacesValues(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	if _, err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	const u1 = "3f2b8c1e-9d4a-4c7e-8b1f-2a6d5e9c0b17"
	n, err := store.Upsert(ctx, []Row{row(u1, "balance", "100"), row(u1, "kills", "3")})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows written, got %d", n)
	}

	if _, err := store.Upsert(ctx, []Row{row(u1, "balance", "150")}); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	rows, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows after upsert, got %d: %+v", len(rows), rows)
	}

	got := map[string]string{}
	for _, r := range rows {
		got[r.Field] = r.Value.String
	}
	if got["balance"] != "150" || got["kills"] != "3" {
		t.Errorf("unexpected rows: %v", got)
	}
}

func TestStore_NullValues(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	if _, err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	if _, err := store.Upsert(ctx, []Row{{EntityID: "e1", Field: "nick"}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	rows, err := store.Load(ctx, ByEntity("e1"), ByField("nick"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Value.Valid {
		t.Errorf("expected NULL value, got %q", rows[0].Value.String)
	}
}

func TestStore_LoadCriteria(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	if _, err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	if _, err := store.Upsert(ctx, []Row{
		row("e1", "balance", "1"),
		row("e1", "kills", "2"),
		row("e2", "balance", "3"),
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	rows, err := store.Load(ctx, ByEntity("e1"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 rows for e1, got %d", len(rows))
	}

	rows, err = store.Load(ctx, ByField("balance"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 balance rows, got %d", len(rows))
	}
}

func TestStore_UpsertEmptyIsNoop(t *testing.T) {
	store := openTestStore(t)

	// no schema: an empty batch must not touch the database
	n, err := store.Upsert(context.Background(), nil)
	if err != nil || n != 0 {
		t.Errorf("expected (0, nil), got (%d, %v)", n, err)
	}
}

func TestStore_ClosedStore(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	if _, err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	if got := store.Status(ctx); got != "connected" {
		t.Errorf("expected connected, got %q", got)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}

	if got := store.Status(ctx); got != "closed" {
		t.Errorf("expected closed, got %q", got)
	}

	_, err := store.Upsert(ctx, []Row{row("e1", "balance", "1")})
	if !cache.IsResourceReleased(err) {
		t.Errorf("expected resource released error, got %v", err)
	}

	var storeErr *cache.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected *cache.StoreError, got %T", err)
	}
	if storeErr.Op != "upsert" || storeErr.Table != TableName {
		t.Errorf("unexpected store error context: %+v", storeErr)
	}

	if _, err := store.Load(ctx); !cache.IsResourceReleased(err) {
		t.Errorf("expected Load on closed store to report release, got %v", err)
	}
}

func TestStore_DatabaseClosedElsewhere(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	if _, err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	if err := store.DB().Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}

	_, err := store.Upsert(ctx, []Row{row("e1", "balance", "1")})
	if !errors.Is(err, cache.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
	if got := store.Status(ctx); got != "closed" {
		t.Errorf("expected closed, got %q", got)
	}
	if _, err := store.Load(ctx); !cache.IsResourceReleased(err) {
		t.Errorf("expected Load to report release, got %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("expected Close after an outside close to be a no-op, got %v", err)
	}
}

func TestOptions_DSN(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		want    string
		wantErr bool
	}{
		{
			name: "sqlite",
			opts: Options{Driver: DriverSQLite, Path: "webstats.db"},
			want: "webstats.db",
		},
		{
			name:    "sqlite without path",
			opts:    Options{Driver: DriverSQLite},
			wantErr: true,
		},
		{
			name: "postgres",
			opts: Options{Driver: DriverPostgres, Hostname: "db", Port: 5432, Username: "mc", Password: "p@ss", Database: "stats"},
			want: "postgres://mc:p%40ss@db:5432/stats?sslmode=disable",
		},
		{
			name:    "postgres missing database",
			opts:    Options{Driver: DriverPostgres, Hostname: "db", Username: "mc"},
			wantErr: true,
		},
		{
			name:    "unknown driver",
			opts:    Options{Driver: "mysql"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.opts.DSN()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}
