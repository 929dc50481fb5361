package stats

import (
	"context"
	"fmt"

	"github.com/goliatone/go-webstats/cache"
)

// PlayerDirectory lists every player the environment knows, online or not.
type PlayerDirectory interface {
	ListKnownEntities(ctx context.Context) ([]cache.Entity, error)
}

// PlaceholderResolver expands a placeholder expression for one player. ok is
// false when the expression has no value for that player.
type PlaceholderResolver interface {
	Resolve(ctx context.Context, player cache.Entity, expr string) (value string, ok bool, err error)
}

// Live is a cache.FieldSource that resolves every configured placeholder on
// each call. Placeholders without a value for the player are left out, so a
// player with nothing to report yields an empty map.
type Live struct {
	players  PlayerDirectory
	resolver PlaceholderResolver
	fields   []string
}

// NewLive returns a live source for fields.
func NewLive(players PlayerDirectory, resolver PlaceholderResolver, fields []string) *Live {
	return &Live{players: players, resolver: resolver, fields: append([]string(nil), fields...)}
}

func (l *Live) ListKnownEntities(ctx context.Context) ([]cache.Entity, error) {
	return l.players.ListKnownEntities(ctx)
}

func (l *Live) CurrentFieldValues(ctx context.Context, player cache.Entity) (map[string]cache.Score, error) {
	values := make(map[string]cache.Score, len(l.fields))
	for _, field := range l.fields {
		v, ok, err := l.resolver.Resolve(ctx, player, field)
		if err != nil {
			return nil, fmt.Errorf("resolve %s for %s: %w", field, player, err)
		}
		if ok {
			values[field] = cache.NewScore(v)
		}
	}
	return values, nil
}

var _ cache.FieldSource = (*Live)(nil)
