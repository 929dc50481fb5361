package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/VictoriaMetrics/metrics"
	"github.com/goliatone/go-webstats/cache"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	formatJSON    = "json"
	formatMsgpack = "msgpack"

	contentTypeMsgpack = "application/msgpack"
)

// format picks the response encoding from ?format= or the Accept header.
func format(r *http.Request) string {
	if f := r.URL.Query().Get("format"); f != "" {
		if f == formatMsgpack {
			return formatMsgpack
		}
		return formatJSON
	}
	if strings.Contains(r.Header.Get("Accept"), contentTypeMsgpack) {
		return formatMsgpack
	}
	return formatJSON
}

func encode(f string, v any) ([]byte, error) {
	if f == formatMsgpack {
		return msgpack.Marshal(v)
	}
	return json.Marshal(v)
}

// serveCached writes the document rendered by render, memoized per route and
// format.
func (s *Server) serveCached(w http.ResponseWriter, r *http.Request, route string, render func(ctx context.Context) any) {
	f := format(r)
	key := s.keys.SerializeKey(route, f)

	body, err := cache.GetOrFetch(r.Context(), s.cache, key, func(ctx context.Context) ([]byte, error) {
		return encode(f, render(ctx))
	})
	if err != nil {
		Logger.Errorf("Could not render %s: %v", route, err)
		http.Error(w, "Failed to render response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	if f == formatMsgpack {
		w.Header().Set("Content-Type", contentTypeMsgpack)
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	if _, err := w.Write(body); err != nil {
		Logger.Warningf("Could not write %s response: %v", route, err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, "stats", func(ctx context.Context) any {
		return s.stats.Aggregate(ctx)
	})
}

func (s *Server) handleOnline(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, "online", func(context.Context) any {
		return s.opts.Presence.OnlineStatus()
	})
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.opts.Debugger.Debug(r.Context()) + "\n"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	metrics.WritePrometheus(w, true)
}

// invalidate drops every memoized response after the game state changed.
func (s *Server) invalidate(ctx context.Context) {
	if err := s.cache.DeleteByPrefix(ctx, ""); err != nil {
		Logger.Warningf("Could not purge response cache: %v", err)
	}
}
