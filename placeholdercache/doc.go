// Package placeholdercache keeps the volatile placeholder values of every
// known entity in memory and mirrors them to a relational value store.
//
// Startup loads every persisted row and then merges a fresh recompute of the
// upstream source on top, so values the source can no longer produce survive
// from the store. Reads never touch the store. Writes happen per entity
// through Save, or for everyone through SaveAll, and the Listener decides
// which of the two a lifecycle event triggers.
//
// Basic usage:
//
//	store, err := valuestore.Open(ctx, opts)
//	if err != nil {
//		return err
//	}
//	c := placeholdercache.New(ctx, liveSource, store)
//	listener := placeholdercache.NewListener(c, false)
//	defer listener.OnShutdown(ctx)
//
//	score, ok := c.Get(playerID, "%vault_eco_balance%")
package placeholdercache
