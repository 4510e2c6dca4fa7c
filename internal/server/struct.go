package server

import (
	"context"
	"sync"
	"time"

	"github.com/woozymasta/srcrelay/internal/models"
	"github.com/woozymasta/srcrelay/internal/relay"
	"github.com/woozymasta/srcrelay/internal/routes"
)

// InboundHandler consumes chat messages accepted by the API.
type InboundHandler interface {
	HandleInbound(ctx context.Context, msg relay.InboundMessage)
}

// StatusSource provides the latest known state of every route.
type StatusSource interface {
	Snapshot() []models.RouteStatus
}

// Server holds the dependencies, configuration, and runtime state required
// to handle HTTP requests and background message processing.
type Server struct {
	// inbound receives queued messages from the workers.
	inbound InboundHandler

	// status is optional; nil makes /api/status return an empty list.
	status StatusSource

	// table is used to reject messages for unmapped channels before queueing.
	table *routes.Table

	// queue is a buffered channel used to pass messages from HTTP handlers
	// to background workers for asynchronous processing.
	queue chan relay.InboundMessage

	// shutdown is a signal channel used to broadcast a stop signal to all background workers
	// during a graceful shutdown.
	shutdown chan struct{}

	// seenCache maps recently accepted message ids to the time they were seen.
	seenCache sync.Map

	// authToken is the secret token required to access the API.
	authToken string

	// wg is used to wait for all background workers to finish processing
	// before the server shuts down completely.
	wg sync.WaitGroup

	// maxBody specifies the maximum allowed size (in bytes) for incoming HTTP request bodies.
	maxBody int64

	// hardLimitCount is the maximum number of requests allowed per IP address
	// within the hardLimitWin duration.
	hardLimitCount int

	// hardLimitWin is the time window duration for the hard rate limiter.
	hardLimitWin time.Duration

	// dedupWindow is how long a message id is remembered.
	dedupWindow time.Duration

	workers int

	// trustProxy indicates whether the server should trust headers like X-Forwarded-For
	// or CF-Connecting-IP when determining the client's real IP address.
	trustProxy bool

	// cancel ends the worker context once the queue is drained.
	cancel context.CancelFunc

	stopOnce sync.Once
}
