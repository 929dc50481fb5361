// Package gamestate is the in-process game environment: the players the
// server knows, their placeholder values and the main scoreboard. It is fed
// from a JSON snapshot and by event requests, and tells subscribers when a
// player quits.
package gamestate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-webstats/cache"
	"github.com/goliatone/go-webstats/stats"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("gamestate")

// Player is the state of one known player. Values are replaced as a whole on
// every change, so a Player read from the world is never mutated afterwards.
type Player struct {
	ID           uuid.UUID         `json:"id"`
	Name         string            `json:"name"`
	Online       bool              `json:"online"`
	AFK          bool              `json:"afk"`
	Placeholders map[string]string `json:"placeholders,omitempty"`
}

// Entity returns the cache identity of the player.
func (p Player) Entity() cache.Entity {
	return cache.Entity{ID: p.ID, Name: p.Name}
}

// Snapshot is the persisted form of a world.
type Snapshot struct {
	Players    []Player                  `json:"players"`
	Objectives map[string]map[string]int `json:"objectives"`
}

// QuitHandler is notified, on the event worker, when a player quits.
type QuitHandler func(ctx context.Context, player cache.Entity)

// World holds the game state. All methods are safe for concurrent use.
type World struct {
	players    *xsync.MapOf[uuid.UUID, Player]
	objectives *xsync.MapOf[string, map[string]int]
	released   atomic.Bool
	running    atomic.Bool

	handlersMu sync.Mutex
	handlers   []QuitHandler

	mu      sync.RWMutex
	events  chan cache.Entity
	stopped bool
	done    chan struct{}
}

// NewWorld returns an empty world.
func NewWorld() *World {
	return &World{
		players:    xsync.NewMapOf[uuid.UUID, Player](),
		objectives: xsync.NewMapOf[string, map[string]int](),
		events:     make(chan cache.Entity, 64),
		done:       make(chan struct{}),
	}
}

// Load adds every player and objective of the snapshot read from r. Existing
// entries with the same key are overwritten.
func (w *World) Load(r io.Reader) error {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("decode game state: %w", err)
	}
	for _, p := range snap.Players {
		if p.ID == uuid.Nil {
			return fmt.Errorf("player %q has no id", p.Name)
		}
		p.Placeholders = maps.Clone(p.Placeholders)
		w.players.Store(p.ID, p)
	}
	for name, scores := range snap.Objectives {
		w.objectives.Store(name, maps.Clone(scores))
	}
	Logger.Infof("Loaded %d players and %d objectives", len(snap.Players), len(snap.Objectives))
	return nil
}

// LoadFile loads a snapshot file.
func (w *World) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open game state: %w", err)
	}
	defer f.Close()
	return w.Load(f)
}

// Snapshot returns the current state, players sorted by name.
func (w *World) Snapshot() Snapshot {
	snap := Snapshot{Objectives: map[string]map[string]int{}}
	w.players.Range(func(_ uuid.UUID, p Player) bool {
		snap.Players = append(snap.Players, p)
		return true
	})
	sort.Slice(snap.Players, func(i, j int) bool { return snap.Players[i].Name < snap.Players[j].Name })
	w.objectives.Range(func(name string, scores map[string]int) bool {
		snap.Objectives[name] = maps.Clone(scores)
		return true
	})
	return snap
}

// Release marks the world as unloaded. Placeholder lookups fail with
// cache.ErrSourceReleased from then on.
func (w *World) Release() {
	w.released.Store(true)
}

// Player returns the player with id.
func (w *World) Player(id uuid.UUID) (Player, bool) {
	return w.players.Load(id)
}

// Join marks the player online, registering it when unknown.
func (w *World) Join(player cache.Entity) {
	p, _ := w.players.Compute(player.ID, func(old Player, loaded bool) (Player, bool) {
		old.ID = player.ID
		if player.Name != "" {
			old.Name = player.Name
		}
		old.Online = true
		old.AFK = false
		return old, false
	})
	Logger.Infof("Player %s joined", p.Entity())
}

// SetAFK updates the away flag of an online player.
func (w *World) SetAFK(id uuid.UUID, afk bool) bool {
	_, ok := w.players.Compute(id, func(old Player, loaded bool) (Player, bool) {
		if !loaded {
			return old, true
		}
		old.AFK = afk
		return old, false
	})
	return ok
}

// Quit marks the player offline and queues a quit event. It reports whether
// the player was online.
func (w *World) Quit(id uuid.UUID) bool {
	wasOnline := false
	p, ok := w.players.Compute(id, func(old Player, loaded bool) (Player, bool) {
		if !loaded {
			return old, true
		}
		wasOnline = old.Online
		old.Online = false
		old.AFK = false
		return old, false
	})
	if !ok || !wasOnline {
		return false
	}
	Logger.Infof("Player %s quit", p.Entity())
	w.emit(p.Entity())
	return true
}

// QuitAll quits every online player, as happens when the server stops. It
// returns the players that were online.
func (w *World) QuitAll() []cache.Entity {
	var online []uuid.UUID
	w.players.Range(func(id uuid.UUID, p Player) bool {
		if p.Online {
			online = append(online, id)
		}
		return true
	})

	var quit []cache.Entity
	for _, id := range online {
		if w.Quit(id) {
			p, _ := w.players.Load(id)
			quit = append(quit, p.Entity())
		}
	}
	return quit
}

// SetPlaceholders merges values into the player's placeholder values. An
// empty value removes the placeholder.
func (w *World) SetPlaceholders(id uuid.UUID, values map[string]string) bool {
	_, ok := w.players.Compute(id, func(old Player, loaded bool) (Player, bool) {
		if !loaded {
			return old, true
		}
		merged := maps.Clone(old.Placeholders)
		if merged == nil {
			merged = make(map[string]string, len(values))
		}
		for k, v := range values {
			if v == "" {
				delete(merged, k)
				continue
			}
			merged[k] = v
		}
		old.Placeholders = merged
		return old, false
	})
	return ok
}

// SetScores merges scores into an objective, creating it when needed.
func (w *World) SetScores(objective string, scores map[string]int) {
	w.objectives.Compute(objective, func(old map[string]int, _ bool) (map[string]int, bool) {
		merged := maps.Clone(old)
		if merged == nil {
			merged = make(map[string]int, len(scores))
		}
		maps.Copy(merged, scores)
		return merged, false
	})
}

// RemoveObjective drops an objective and its scores.
func (w *World) RemoveObjective(objective string) {
	w.objectives.Delete(objective)
}

// ListKnownEntities returns every player ever seen, sorted by name.
func (w *World) ListKnownEntities(ctx context.Context) ([]cache.Entity, error) {
	if w.released.Load() {
		return nil, cache.ErrSourceReleased
	}
	var out []cache.Entity
	w.players.Range(func(_ uuid.UUID, p Player) bool {
		out = append(out, p.Entity())
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName() < out[j].DisplayName() })
	return out, nil
}

// Resolve looks up a placeholder value of player.
func (w *World) Resolve(ctx context.Context, player cache.Entity, expr string) (string, bool, error) {
	if w.released.Load() {
		return "", false, cache.ErrSourceReleased
	}
	p, ok := w.players.Load(player.ID)
	if !ok {
		return "", false, nil
	}
	v, ok := p.Placeholders[expr]
	return v, ok, nil
}

// ScoreboardEntries returns every entry holding at least one score, sorted.
func (w *World) ScoreboardEntries(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	w.objectives.Range(func(_ string, scores map[string]int) bool {
		for entry := range scores {
			seen[entry] = struct{}{}
		}
		return true
	})
	entries := make([]string, 0, len(seen))
	for entry := range seen {
		entries = append(entries, entry)
	}
	sort.Strings(entries)
	return entries, nil
}

// Objectives returns every objective, sorted by name.
func (w *World) Objectives(ctx context.Context) ([]stats.Objective, error) {
	var out []stats.Objective
	w.objectives.Range(func(name string, scores map[string]int) bool {
		out = append(out, stats.Objective{Name: name, Scores: maps.Clone(scores)})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// OnlineStatus maps every online player's name to true, or to "afk" when the
// player is away.
func (w *World) OnlineStatus() map[string]any {
	out := make(map[string]any)
	w.players.Range(func(_ uuid.UUID, p Player) bool {
		if !p.Online {
			return true
		}
		if p.AFK {
			out[p.Name] = "afk"
		} else {
			out[p.Name] = true
		}
		return true
	})
	return out
}

var (
	_ stats.Scoreboard          = (*World)(nil)
	_ stats.PlaceholderResolver = (*World)(nil)
	_ stats.PlayerDirectory     = (*World)(nil)
)
