package placeholdercache

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-webstats/cache"
	"github.com/goliatone/go-webstats/valuestore"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/singleflight"
)

var Logger = logger.GetLogger("cache")

// ValueStore is the relational side of the cache.
type ValueStore interface {
	Name() string
	EnsureSchema(ctx context.Context) (bool, error)
	Load(ctx context.Context, criteria ...repository.SelectCriteria) ([]valuestore.Row, error)
	Upsert(ctx context.Context, rows []valuestore.Row) (int, error)
	Status(ctx context.Context) string
	Close() error
}

// Cache mirrors the value store in memory and keeps it in sync with an
// upstream FieldSource. Get is served from memory only; store I/O happens in
// New, Save, SaveAll and Close.
type Cache struct {
	source  cache.FieldSource
	store   ValueStore
	table   *table
	saves   singleflight.Group
	metrics *Metrics
}

// Option configures a Cache.
type Option func(*Cache)

// WithMetrics overrides the default metric counters.
func WithMetrics(m *Metrics) Option {
	return func(c *Cache) {
		if m != nil {
			c.metrics = m
		}
	}
}

// New builds the cache and runs the startup protocol: ensure the schema,
// load every persisted row, then merge a full recompute of the upstream
// source into memory. The recompute is not written back; that is left to
// Save and SaveAll.
//
// A nil store runs the cache memory-only. Store failures during startup are
// logged and leave the cache in memory-only mode for the rows that could not
// be loaded.
func New(ctx context.Context, source cache.FieldSource, store ValueStore, opts ...Option) *Cache {
	c := &Cache{
		source:  source,
		store:   store,
		table:   newTable(),
		metrics: DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(c)
	}

	Logger.Infof("Enabling placeholder storage")
	if c.store != nil {
		if _, err := c.store.EnsureSchema(ctx); err != nil {
			c.storeFailed("initialise", err)
		}
		c.load(ctx)
	} else {
		Logger.Warningf("No value store configured, placeholders are kept in memory only")
	}
	c.update(ctx)
	return c
}

func (c *Cache) storeFailed(action string, err error) {
	c.metrics.StoreErrors.Inc()
	Logger.Errorf("Could not %s placeholder database %s: %v", action, c.storeName(), err)
}

func (c *Cache) storeName() string {
	if c.store == nil {
		return "<none>"
	}
	return c.store.Name()
}

func (c *Cache) load(ctx context.Context) {
	rows, err := c.store.Load(ctx)
	if err != nil {
		c.storeFailed("query", err)
		return
	}

	loaded := 0
	for _, row := range rows {
		id, err := uuid.Parse(row.EntityID)
		if err != nil {
			Logger.Warningf("Skipping row with invalid entity id %q: %v", row.EntityID, err)
			continue
		}
		score := cache.Score{Value: row.Value.String, Valid: row.Value.Valid}
		c.table.put(id, row.Field, score)
		loaded++
		Logger.Debugf("Loaded %s: %s = %s", id, row.Field, score)
	}
	c.metrics.RowsLoaded.Add(loaded)
	Logger.Infof("Loaded %d rows from database", loaded)
}

func (c *Cache) update(ctx context.Context) {
	entities, err := c.source.ListKnownEntities(ctx)
	if err != nil {
		Logger.Errorf("Could not list entities for placeholder update: %v", err)
		return
	}

	for _, e := range entities {
		c.Refresh(ctx, e)
	}
}

// Refresh recomputes e from the upstream source into memory only. It returns
// the number of cells updated. The store is not written.
func (c *Cache) Refresh(ctx context.Context, e cache.Entity) int {
	values, err := c.source.CurrentFieldValues(ctx, e)
	if err != nil {
		Logger.Warningf("Could not update placeholders for %s: %v", e, err)
		return 0
	}
	c.table.rename(e)
	for field, score := range values {
		c.table.put(e.ID, field, score)
		Logger.Debugf("Updated %s: %s = %s", e, field, score)
	}
	return len(values)
}

// Get returns the in-memory score for (entity, field). It never touches the
// store.
func (c *Cache) Get(entity uuid.UUID, field string) (cache.Score, bool) {
	return c.table.get(entity, field)
}

// Len returns the number of cells held in memory.
func (c *Cache) Len() int {
	return c.table.size()
}

// Source returns the upstream source the cache recomputes from.
func (c *Cache) Source() cache.FieldSource {
	return c.source
}

// Save recomputes the entity from the upstream source, updates memory and
// upserts exactly those cells in one batch. It returns the number of rows
// written; failures are logged and reported as 0.
func (c *Cache) Save(ctx context.Context, e cache.Entity) int {
	n, err := c.save(ctx, e)
	if err != nil {
		c.logSaveError(e, err)
		return 0
	}
	return n
}

// save collapses concurrent saves of the same entity into one write.
func (c *Cache) save(ctx context.Context, e cache.Entity) (int, error) {
	v, err, _ := c.saves.Do(e.ID.String(), func() (any, error) {
		return c.persist(ctx, e)
	})
	n, _ := v.(int)
	return n, err
}

func (c *Cache) persist(ctx context.Context, e cache.Entity) (int, error) {
	values, err := c.source.CurrentFieldValues(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("recompute %s: %w", e, err)
	}
	if len(values) == 0 {
		return 0, nil
	}

	fields := make([]string, 0, len(values))
	for field := range values {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	c.table.rename(e)
	rows := make([]valuestore.Row, 0, len(fields))
	for _, field := range fields {
		score := values[field]
		c.table.put(e.ID, field, score)
		rows = append(rows, valuestore.Row{
			EntityID: e.ID.String(),
			Field:    field,
			Value:    sql.NullString{String: score.Value, Valid: score.Valid},
		})
		Logger.Debugf("Saving %s: %s = %s", e, field, score)
	}

	if c.store == nil {
		return 0, nil
	}

	n, err := c.store.Upsert(ctx, rows)
	if err != nil {
		c.metrics.StoreErrors.Inc()
		return 0, err
	}
	c.metrics.RowsSaved.Add(n)
	Logger.Infof("Saved %d placeholders for player %s", n, e.DisplayName())
	return n, nil
}

func (c *Cache) logSaveError(e cache.Entity, err error) {
	if cache.IsResourceReleased(err) {
		Logger.Errorf("Could not save placeholders for %s, resource already released: %v", e, err)
		return
	}
	Logger.Errorf("Could not update placeholder database %s for %s: %v", c.storeName(), e, err)
}

// SaveAll saves every entity the upstream source knows about. One failing
// entity does not stop the sweep. The returned error is non-nil only when
// the sweep hit a released store or source, so shutdown code can tell that
// case apart.
func (c *Cache) SaveAll(ctx context.Context) (int, error) {
	entities, err := c.source.ListKnownEntities(ctx)
	if err != nil {
		Logger.Errorf("Could not list entities to save: %v", err)
		if cache.IsResourceReleased(err) {
			return 0, err
		}
		return 0, nil
	}

	total := 0
	var released error
	for _, e := range entities {
		n, err := c.save(ctx, e)
		if err != nil {
			c.logSaveError(e, err)
			if released == nil && cache.IsResourceReleased(err) {
				released = err
			}
			continue
		}
		total += n
	}

	Logger.Infof("Saved all placeholders (%d rows) to database", total)
	return total, released
}

// Close closes the value store.
func (c *Cache) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}

// Debug describes the store connection and every cell held in memory.
func (c *Cache) Debug(ctx context.Context) string {
	status := "none"
	if c.store != nil {
		status = c.store.Status(ctx)
	}

	var lines []string
	c.table.each(func(entity uuid.UUID, field string, score cache.Score) bool {
		lines = append(lines, fmt.Sprintf("%s (%s): %s = %s", entity, c.table.name(entity), field, score))
		return true
	})
	sort.Strings(lines)

	return "Placeholder storage database connection: " + status +
		"\nLoaded placeholders:\n" + strings.Join(lines, "\n")
}
