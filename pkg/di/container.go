package di

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-webstats/cache"
	"github.com/goliatone/go-webstats/internal/config"
	"github.com/goliatone/go-webstats/internal/gamestate"
	"github.com/goliatone/go-webstats/internal/server"
	"github.com/goliatone/go-webstats/placeholdercache"
	"github.com/goliatone/go-webstats/stats"
	"github.com/goliatone/go-webstats/valuestore"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("di")

// Container wires the game state, the placeholder cache, the stats sources
// and the web server from one Config, and owns their lifecycle.
type Container struct {
	config        config.Config
	world         *gamestate.World
	responseCache cache.ResponseCache
	keySerializer cache.KeySerializer
	placeholders  *placeholdercache.Cache
	listener      *placeholdercache.Listener
	aggregator    *stats.Aggregator
	server        *server.Server

	cancel context.CancelFunc
}

// NewContainer builds every component. Placeholder storage problems never
// fail construction: an invalid database configuration serves placeholders
// live without a cache, and an unreachable database keeps the cache in
// memory only.
func NewContainer(ctx context.Context, cfg config.Config, world *gamestate.World) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if world == nil {
		world = gamestate.NewWorld()
	}

	responseCache, err := newResponseCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("response cache: %w", err)
	}

	c := &Container{
		config:        cfg,
		world:         world,
		responseCache: responseCache,
		keySerializer: cache.NewDefaultKeySerializer(),
	}

	var sources []stats.Source
	if len(cfg.Objectives) > 0 {
		sources = append(sources, stats.NewScoreboardSource(world, cfg.Objectives))
	}
	if len(cfg.Placeholders) > 0 {
		sources = append(sources, c.placeholderSource(ctx))
	}
	c.aggregator = stats.NewAggregator(sources...)

	opts := server.Options{
		Endpoint:    cfg.Endpoint,
		LogRequests: cfg.LogLevel == "debug",
		Cache:       responseCache,
		Presence:    world,
		Events:      &worldEvents{World: world, cache: c.placeholders},
	}
	if c.placeholders != nil {
		opts.Debugger = c.placeholders
	}
	c.server = server.New(c.aggregator, opts)

	return c, nil
}

func newResponseCache(cfg config.Config) (cache.ResponseCache, error) {
	rc := cache.DefaultConfig()
	rc.TTL = cfg.ResponseCacheTTL
	return cache.NewResponseCache(rc)
}

// placeholderSource builds the placeholder stats source, backed by the
// placeholder cache when the database configuration allows it.
func (c *Container) placeholderSource(ctx context.Context) stats.Source {
	fields := c.config.Fields()
	live := stats.NewLive(c.world, c.world, fields)

	if err := c.config.Database.Validate(); err != nil {
		var cfgErr *cache.ConfigError
		if errors.As(err, &cfgErr) {
			Logger.Errorf("Invalid placeholder storage configuration (%s), serving placeholders without storage", cfgErr)
		}
		return stats.NewFieldColumns("placeholders", live, c.config.Placeholders)
	}

	var store placeholdercache.ValueStore
	opened, err := valuestore.Open(ctx, c.config.Database.Options())
	if err != nil {
		Logger.Errorf("Could not connect to placeholder storage, keeping placeholders in memory only: %v", err)
	} else {
		store = opened
	}

	c.placeholders = placeholdercache.New(ctx, live, store)
	c.listener = placeholdercache.NewListener(c.placeholders, c.config.PersistOnRemoval)
	c.world.OnQuit(func(ctx context.Context, player cache.Entity) {
		c.listener.OnEntityRemoved(ctx, player)
	})

	cached := placeholdercache.NewCachedSource(c.placeholders, c.world, fields)
	return stats.NewFieldColumns("placeholders", cached, c.config.Placeholders)
}

// Start runs the event worker and the web server.
func (c *Container) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.world.Start(runCtx)

	if err := c.server.Start(); err != nil {
		return err
	}
	return nil
}

// Shutdown stops the web server, disconnects every online player, drains the
// pending quit events and then runs the placeholder shutdown save.
func (c *Container) Shutdown(ctx context.Context) error {
	var errs []error
	if err := c.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if quit := c.world.QuitAll(); len(quit) > 0 {
		Logger.Infof("Disconnected %d online players", len(quit))
	}
	if err := c.world.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("events: %w", err))
	}
	if c.listener != nil {
		if err := c.listener.OnShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("placeholder storage: %w", err))
		}
	}
	if c.cancel != nil {
		c.cancel()
	}
	return errors.Join(errs...)
}

// Config returns the configuration the container was built from.
func (c *Container) Config() config.Config {
	return c.config
}

// World returns the game state.
func (c *Container) World() *gamestate.World {
	return c.world
}

// ResponseCache returns the response cache used by the server.
func (c *Container) ResponseCache() cache.ResponseCache {
	return c.responseCache
}

// KeySerializer returns the key serializer used for response cache keys.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Placeholders returns the placeholder cache, or nil when placeholders are
// served live.
func (c *Container) Placeholders() *placeholdercache.Cache {
	return c.placeholders
}

// Listener returns the placeholder lifecycle listener, or nil.
func (c *Container) Listener() *placeholdercache.Listener {
	return c.listener
}

// Aggregator returns the stats aggregator.
func (c *Container) Aggregator() *stats.Aggregator {
	return c.aggregator
}

// Server returns the web server.
func (c *Container) Server() *server.Server {
	return c.server
}

// worldEvents applies events to the world and refreshes the placeholder
// cache memory of the affected player.
type worldEvents struct {
	*gamestate.World
	cache *placeholdercache.Cache
}

func (e *worldEvents) refresh(id uuid.UUID) {
	if e.cache == nil {
		return
	}
	if p, ok := e.World.Player(id); ok {
		e.cache.Refresh(context.Background(), p.Entity())
	}
}

func (e *worldEvents) Join(player cache.Entity) {
	e.World.Join(player)
	e.refresh(player.ID)
}

func (e *worldEvents) SetPlaceholders(id uuid.UUID, values map[string]string) bool {
	if !e.World.SetPlaceholders(id, values) {
		return false
	}
	e.refresh(id)
	return true
}

var _ server.Events = (*worldEvents)(nil)
