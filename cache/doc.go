// Package cache holds the domain types shared by the stats pipeline and the
// response cache that sits in front of it.
//
// # Domain types
//
//   - Entity: a tracked subject (a player) with a stable UUID and a display name
//   - Score: the nullable text value of one (entity, field) pair
//   - FieldSource: anything that can list entities and produce their field values
//
// The placeholdercache package implements FieldSource on top of an in-memory
// table backed by a relational store; the stats package provides the live
// implementations and turns sources into a response document.
//
// # Response cache
//
// ResponseCache memoizes rendered documents for a short TTL. The default
// implementation wraps sturdyc:
//
//	rc, err := cache.NewResponseCache(cache.Config{
//		Capacity:           64,
//		NumShards:          4,
//		TTL:                time.Second,
//		EvictionPercentage: 10,
//	})
//	doc, err := cache.GetOrFetch(ctx, rc, key, func(ctx context.Context) (stats.Document, error) {
//		return aggregator.Aggregate(ctx), nil
//	})
//
// A zero TTL returns Passthrough, which renders on every call.
//
// # Errors
//
// StoreError carries the operation and table of a failed store call.
// IsResourceReleased recognises failures caused by a store or source that was
// released before the caller was done with it; shutdown code uses it to print
// a remediation hint instead of a generic error.
package cache
