package placeholdercache

import (
	"context"

	"github.com/goliatone/go-webstats/cache"
)

// EntityLister enumerates the entities of the environment.
type EntityLister interface {
	ListKnownEntities(ctx context.Context) ([]cache.Entity, error)
}

// CachedSource is a FieldSource that answers from cache memory. Entities come
// from the lister; values are never recomputed at read time.
type CachedSource struct {
	cache  *Cache
	lister EntityLister
	fields []string
}

// NewCachedSource returns a source serving fields from c. A nil lister
// enumerates through the cache's upstream source.
func NewCachedSource(c *Cache, lister EntityLister, fields []string) *CachedSource {
	if lister == nil {
		lister = c.Source()
	}
	return &CachedSource{cache: c, lister: lister, fields: append([]string(nil), fields...)}
}

// ListKnownEntities delegates to the environment listing.
func (s *CachedSource) ListKnownEntities(ctx context.Context) ([]cache.Entity, error) {
	return s.lister.ListKnownEntities(ctx)
}

// CurrentFieldValues returns the cached score of every configured field the
// cache holds for e.
func (s *CachedSource) CurrentFieldValues(_ context.Context, e cache.Entity) (map[string]cache.Score, error) {
	values := make(map[string]cache.Score, len(s.fields))
	for _, field := range s.fields {
		if score, ok := s.cache.Get(e.ID, field); ok {
			values[field] = score
		}
	}
	return values, nil
}

// Fields returns the configured fields.
func (s *CachedSource) Fields() []string {
	return append([]string(nil), s.fields...)
}
