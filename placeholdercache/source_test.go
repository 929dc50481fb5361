package placeholdercache

import (
	"context"
	"testing"

	"github.com/goliatone/go-webstats/cache"
)

func TestCachedSource_ServesMemory(t *testing.T) {
	source := NewMockSource(alice, bob)
	source.Set(alice, balance, cache.NewScore("100"))
	source.Set(alice, "%player_level%", cache.NewScore("3"))
	c, _ := newTestCache(t, source, openStore(t))

	cached := NewCachedSource(c, nil, []string{balance, "%missing%"})
	ctx := context.Background()

	// later upstream changes are not visible until the next save
	source.Set(alice, balance, cache.NewScore("999"))

	entities, err := cached.ListKnownEntities(ctx)
	if err != nil {
		t.Fatalf("ListKnownEntities: %v", err)
	}
	if len(entities) != 2 {
		t.Errorf("expected 2 entities, got %d", len(entities))
	}

	values, err := cached.CurrentFieldValues(ctx, alice)
	if err != nil {
		t.Fatalf("CurrentFieldValues: %v", err)
	}
	if len(values) != 1 {
		t.Errorf("expected only configured cached fields, got %v", values)
	}
	if values[balance].Value != "100" {
		t.Errorf("expected cached 100, got %v", values[balance])
	}

	bobValues, err := cached.CurrentFieldValues(ctx, bob)
	if err != nil {
		t.Fatalf("CurrentFieldValues: %v", err)
	}
	if len(bobValues) != 0 {
		t.Errorf("expected no values for bob, got %v", bobValues)
	}
}

func TestCachedSource_UsesLister(t *testing.T) {
	c, _ := newTestCache(t, NewMockSource(alice), nil)
	lister := NewMockSource(bob)

	cached := NewCachedSource(c, lister, []string{balance})
	entities, err := cached.ListKnownEntities(context.Background())
	if err != nil {
		t.Fatalf("ListKnownEntities: %v", err)
	}
	if len(entities) != 1 || entities[0].ID != bob.ID {
		t.Errorf("expected lister entities, got %v", entities)
	}
	if got := cached.Fields(); len(got) != 1 || got[0] != balance {
		t.Errorf("unexpected fields %v", got)
	}
}
