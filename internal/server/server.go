// Package server implements the HTTP API, middleware, and request handlers of the relay.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/woozymasta/srcrelay/internal/config"
	"github.com/woozymasta/srcrelay/internal/relay"
	"github.com/woozymasta/srcrelay/internal/routes"
)

// New creates a new Server instance feeding accepted messages to inbound.
func New(inbound InboundHandler, table *routes.Table, status StatusSource, cfg *config.Config) *Server {
	workers := cfg.Server.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Server{
		inbound:        inbound,
		status:         status,
		table:          table,
		authToken:      cfg.Server.AuthToken,
		maxBody:        cfg.Server.MaxBodySize,
		trustProxy:     cfg.Server.TrustProxy,
		hardLimitCount: cfg.RateLimit.HardLimitCount,
		hardLimitWin:   cfg.RateLimit.HardLimitWin,
		dedupWindow:    cfg.RateLimit.DedupWindow,
		workers:        workers,

		queue:    make(chan relay.InboundMessage, max(cfg.Server.QueueSize, 1)),
		shutdown: make(chan struct{}),
	}
}

// StartWorkers initializes the background worker pool for processing
// queued messages and the dedup cache cleanup routine. Workers keep the
// values of ctx but not its cancellation: they stop in StopWorkers.
func (s *Server) StartWorkers(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(workerCtx)
	}

	go s.gcSeenCache()
}

// StopWorkers gracefully stops the background workers and closes the job queue.
// Messages already queued are still delivered, with a live context.
func (s *Server) StopWorkers() {
	s.stopOnce.Do(func() {
		close(s.shutdown)
		close(s.queue)
	})
	s.wg.Wait()

	if s.cancel != nil {
		s.cancel()
	}
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /api/messages", AdminAuthMiddleware(s.authToken, s.RateLimitMiddleware(http.HandlerFunc(s.handleMessage))))
	mux.Handle("GET /api/status", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleStatus)))
	mux.Handle("GET /api/routes", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleRoutes)))
	mux.Handle("GET /api/version", http.HandlerFunc(s.handleVersion))

	return s.LoggingMiddleware(mux)
}

// gcSeenCache periodically drops message ids older than the dedup window.
func (s *Server) gcSeenCache() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.expireSeen(time.Now())
		}
	}
}

func (s *Server) expireSeen(now time.Time) {
	s.seenCache.Range(func(key, value any) bool {
		if t, ok := value.(time.Time); !ok || now.Sub(t) > s.dedupWindow {
			s.seenCache.Delete(key)
		}
		return true
	})
}
