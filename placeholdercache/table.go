package placeholdercache

import (
	"github.com/cespare/xxhash/v2"
	"github.com/goliatone/go-webstats/cache"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// cell addresses one (entity, field) pair of the in-memory table.
type cell struct {
	entity uuid.UUID
	field  string
}

func hashCell(c cell, seed uint64) uint64 {
	d := xxhash.NewWithSeed(seed)
	_, _ = d.Write(c.entity[:])
	_, _ = d.WriteString(c.field)
	return d.Sum64()
}

// table is the concurrent (entity, field) -> score map. Reads are lock-free;
// writes lock a single bucket.
type table struct {
	cells *xsync.MapOf[cell, cache.Score]
	names *xsync.MapOf[uuid.UUID, string]
}

func newTable() *table {
	return &table{
		cells: xsync.NewMapOfWithHasher[cell, cache.Score](hashCell),
		names: xsync.NewMapOf[uuid.UUID, string](),
	}
}

func (t *table) get(entity uuid.UUID, field string) (cache.Score, bool) {
	return t.cells.Load(cell{entity: entity, field: field})
}

func (t *table) put(entity uuid.UUID, field string, score cache.Score) {
	t.cells.Store(cell{entity: entity, field: field}, score)
}

func (t *table) rename(e cache.Entity) {
	if e.Name != "" {
		t.names.Store(e.ID, e.Name)
	}
}

func (t *table) name(entity uuid.UUID) string {
	name, _ := t.names.Load(entity)
	return name
}

func (t *table) size() int {
	return t.cells.Size()
}

func (t *table) each(fn func(entity uuid.UUID, field string, score cache.Score) bool) {
	t.cells.Range(func(c cell, s cache.Score) bool {
		return fn(c.entity, c.field, s)
	})
}
