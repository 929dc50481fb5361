// Package server exposes the aggregated stats over HTTP on a single
// listening socket that serves one connection at a time.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/goliatone/go-webstats/cache"
	"github.com/goliatone/go-webstats/stats"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/net/netutil"
)

var Logger = logger.GetLogger("server")

// ShutdownWait bounds how long Shutdown waits for the serving goroutine.
const ShutdownWait = 100 * time.Millisecond

// Aggregator produces the stats document.
type Aggregator interface {
	Aggregate(ctx context.Context) stats.Document
}

// Presence reports which players are online.
type Presence interface {
	OnlineStatus() map[string]any
}

// Debugger describes internal state for /debug.
type Debugger interface {
	Debug(ctx context.Context) string
}

// Options configures a Server.
type Options struct {
	Endpoint string
	// LogRequests logs every request at debug level.
	LogRequests bool
	// Cache memoizes rendered responses; nil disables memoization.
	Cache cache.ResponseCache
	// Presence serves /online when set.
	Presence Presence
	// Debugger serves /debug when set.
	Debugger Debugger
	// Events serves the /events routes when set.
	Events Events
}

// Server serves the stats document and the event routes.
type Server struct {
	stats    Aggregator
	opts     Options
	keys     cache.KeySerializer
	cache    cache.ResponseCache
	http     *http.Server
	listener net.Listener

	mu   sync.Mutex
	done chan struct{}
}

// New builds a server for agg.
func New(agg Aggregator, opts Options) *Server {
	s := &Server{
		stats: agg,
		opts:  opts,
		keys:  cache.NewDefaultKeySerializer(),
		cache: opts.Cache,
	}
	if s.cache == nil {
		s.cache = cache.Passthrough()
	}
	s.http = &http.Server{Handler: s.Handler()}
	// one connection at a time, so never hold one open between requests
	s.http.SetKeepAlivesEnabled(false)
	return s
}

// Handler returns the route multiplexer.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.handle(mux, "GET /stats", s.handleStats)
	s.handle(mux, "GET /metrics", s.handleMetrics)
	if s.opts.Presence != nil {
		s.handle(mux, "GET /online", s.handleOnline)
	}
	if s.opts.Debugger != nil {
		s.handle(mux, "GET /debug", s.handleDebug)
	}
	if s.opts.Events != nil {
		s.handle(mux, "POST /events/join", s.handleJoin)
		s.handle(mux, "POST /events/quit", s.handleQuit)
		s.handle(mux, "PUT /events/placeholders", s.handlePlaceholders)
		s.handle(mux, "PUT /events/scores", s.handleScores)
	}
	return mux
}

func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	h = countRequests(pattern, h)
	if s.opts.LogRequests {
		h = loggerMiddleware(h)
	}
	mux.HandleFunc(pattern, h)
}

// Listen opens the listening socket. It is limited to one accepted
// connection at a time.
func (s *Server) Listen() error {
	l, err := net.Listen("tcp", s.opts.Endpoint)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Endpoint, err)
	}

	s.mu.Lock()
	s.listener = netutil.LimitListener(l, 1)
	s.mu.Unlock()

	Logger.Infof("Web server started on %s", l.Addr())
	return nil
}

// Addr returns the listening address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start listens and serves in a new goroutine.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	s.done = make(chan struct{})
	done, l := s.done, s.listener
	s.mu.Unlock()

	go func() {
		defer close(done)
		if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("Web server stopped: %v", err)
		}
	}()
	return nil
}

// Shutdown closes the listener and waits up to ShutdownWait for in-flight
// requests and the serving goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ShutdownWait)
	defer cancel()

	err := s.http.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		Logger.Warningf("Web server did not stop in %s, closing connections", ShutdownWait)
		err = s.http.Close()
	}

	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-time.After(ShutdownWait):
			Logger.Warningf("Web server goroutine still running after %s", ShutdownWait)
		}
	}

	Logger.Infof("Web server stopped")
	return err
}

func countRequests(pattern string, next http.HandlerFunc) http.HandlerFunc {
	counter := metrics.GetOrCreateCounter(fmt.Sprintf(`webstats_requests_total{path=%q}`, routePath(pattern)))
	return func(w http.ResponseWriter, r *http.Request) {
		counter.Inc()
		next(w, r)
	}
}

func routePath(pattern string) string {
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == ' ' {
			return pattern[i+1:]
		}
	}
	return pattern
}

// responseWriter captures the status code for the request log.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	}
}
