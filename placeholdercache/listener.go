package placeholdercache

import (
	"context"
	"sync"

	"github.com/goliatone/go-webstats/cache"
)

// Listener drives persistence from lifecycle events. With eager persistence
// an entity is saved as soon as it is removed; otherwise everything is saved
// in one sweep at shutdown.
type Listener struct {
	cache    *Cache
	eager    bool
	shutdown sync.Once
	err      error
}

// NewListener returns a Listener persisting through c.
func NewListener(c *Cache, eager bool) *Listener {
	return &Listener{cache: c, eager: eager}
}

// Eager reports whether entities are saved on removal.
func (l *Listener) Eager() bool {
	return l.eager
}

// OnEntityRemoved is called when an entity leaves the environment, e.g. a
// player disconnecting. It returns the number of rows written.
func (l *Listener) OnEntityRemoved(ctx context.Context, e cache.Entity) int {
	if !l.eager {
		Logger.Debugf("Deferring save of %s to shutdown", e)
		return 0
	}
	return l.cache.Save(ctx, e)
}

// OnShutdown runs the shutdown save, when persistence is not eager, and then
// closes the store. Only the first call does any work.
func (l *Listener) OnShutdown(ctx context.Context) error {
	l.shutdown.Do(func() {
		if !l.eager {
			if _, err := l.cache.SaveAll(ctx); err != nil && cache.IsResourceReleased(err) {
				Logger.Errorf("Could not save placeholders on shutdown because a resource was already released: %v", err)
				Logger.Errorf("Try to enable persist-on-removal in the configuration")
			}
		}
		l.err = l.cache.Close()
	})
	return l.err
}
