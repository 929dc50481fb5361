package gamestate

import (
	"context"

	"github.com/goliatone/go-webstats/cache"
)

// OnQuit registers h for quit events. Handlers run one at a time on the
// event worker.
func (w *World) OnQuit(h QuitHandler) {
	w.handlersMu.Lock()
	defer w.handlersMu.Unlock()
	w.handlers = append(w.handlers, h)
}

func (w *World) emit(player cache.Entity) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		Logger.Warningf("Dropping quit event of %s, event worker stopped", player)
		return
	}
	if w.running.Load() {
		w.events <- player
		return
	}
	select {
	case w.events <- player:
	default:
		Logger.Warningf("Dropping quit event of %s, event queue full and no worker running", player)
	}
}

// Start runs the event worker in a new goroutine. It dispatches queued
// events until Stop is called and the queue is drained.
func (w *World) Start(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *World) run(ctx context.Context) {
	defer close(w.done)
	for player := range w.events {
		w.dispatch(ctx, player)
	}
}

func (w *World) dispatch(ctx context.Context, player cache.Entity) {
	w.handlersMu.Lock()
	handlers := append([]QuitHandler(nil), w.handlers...)
	w.handlersMu.Unlock()

	for _, h := range handlers {
		h(ctx, player)
	}
}

// Stop stops accepting events and waits for the worker to handle the queued
// ones. When the worker was never started the queue is drained on the
// calling goroutine.
func (w *World) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.events)
	w.mu.Unlock()

	if !w.running.Load() {
		for player := range w.events {
			w.dispatch(ctx, player)
		}
		return nil
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
