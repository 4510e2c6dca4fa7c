// Package rcon runs single Source RCON command exchanges against game servers.
package rcon

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/srcrelay/internal/config"
	"github.com/woozymasta/srcrelay/internal/routes"
)

// DefaultIdleTimeout is the quiet period after the last response chunk that
// completes an exchange.
const DefaultIdleTimeout = 500 * time.Millisecond

// ErrAuthFailed is reported when the server rejects the password.
var ErrAuthFailed = errors.New("rcon: authentication failed")

// Result is the outcome of one exchange. Text holds the collected output or,
// when Err is set, the error message.
type Result struct {
	Err  error
	Text string
}

// Failed reports whether the exchange ended with a transport or auth error.
func (r Result) Failed() bool {
	return r.Err != nil
}

func failure(err error) Result {
	return Result{Text: err.Error(), Err: err}
}

// Client executes commands. Each Execute opens and closes its own connection.
type Client struct {
	dialer      *net.Dialer
	idleTimeout time.Duration
	nextID      atomic.Int32
}

// New creates a client from the RCON options.
func New(opts config.RCON) *Client {
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}

	return &Client{
		dialer:      &net.Dialer{Timeout: opts.DialTimeout},
		idleTimeout: idle,
	}
}

// Execute authenticates against route, sends command once and collects the
// output until the connection has been quiet for the idle timeout, the server
// closes it, or an error occurs. It never returns an error directly; failures
// are reported in the Result. Cancelling ctx resolves the exchange early.
func (c *Client) Execute(ctx context.Context, route routes.Route, command string) Result {
	x := &exchange{
		client:  c,
		route:   route,
		command: command,
		authID:  c.nextID.Add(1),
		cmdID:   c.nextID.Add(1),
		events:  make(chan event, 8),
		done:    make(chan struct{}),
		logger: log.With().
			Str("component", "rcon").
			Str("route", route.Name).
			Str("exchange", uuid.NewString()).
			Logger(),
	}

	return x.run(ctx)
}

// state is the position of an exchange in its lifecycle.
type state int

const (
	stateConnecting state = iota
	stateAuthenticating
	stateSending
	stateAccumulating
	stateResolved
)

func (s state) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateAuthenticating:
		return "authenticating"
	case stateSending:
		return "sending"
	case stateAccumulating:
		return "accumulating"
	default:
		return "resolved"
	}
}

type eventKind int

const (
	evPacket eventKind = iota
	evEnd
	evError
	evIdle
)

type event struct {
	err    error
	packet Packet
	kind   eventKind
	gen    uint64
}

// exchange lives for exactly one Execute call.
type exchange struct {
	err     error
	conn    net.Conn
	client  *Client
	events  chan event
	done    chan struct{}
	timer   *time.Timer
	logger  zerolog.Logger
	route   routes.Route
	command string
	buf     []byte
	gen     uint64
	state   state
	authID  int32
	cmdID   int32
}

func (x *exchange) run(ctx context.Context) Result {
	defer close(x.done)

	conn, err := x.client.dialer.DialContext(ctx, "tcp", x.route.Address())
	if err != nil {
		x.resolve(err)
		return x.result()
	}
	x.conn = conn
	defer func() { _ = conn.Close() }()

	x.state = stateAuthenticating
	if err := WritePacket(conn, Packet{ID: x.authID, Type: TypeAuth, Body: x.route.Password}); err != nil {
		x.resolve(err)
		return x.result()
	}

	go x.read()

	for x.state != stateResolved {
		select {
		case ev := <-x.events:
			x.step(ev)
		case <-ctx.Done():
			x.resolve(ctx.Err())
		}
	}

	return x.result()
}

// read forwards packets and the terminal read error to the event loop.
func (x *exchange) read() {
	for {
		p, err := ReadPacket(x.conn)
		ev := event{kind: evPacket, packet: p}
		if err != nil {
			ev = event{kind: evError, err: err}
			if errors.Is(err, io.EOF) {
				ev = event{kind: evEnd}
			}
		}

		select {
		case x.events <- ev:
		case <-x.done:
			return
		}

		if err != nil {
			return
		}
	}
}

// step is the transition function of the exchange.
func (x *exchange) step(ev event) {
	switch ev.kind {
	case evError:
		x.resolve(ev.err)

	case evEnd:
		x.logger.Trace().Str("state", x.state.String()).Msg("Connection closed by server")
		x.resolve(nil)

	case evIdle:
		if ev.gen == x.gen && x.state == stateAccumulating {
			x.resolve(nil)
		}

	case evPacket:
		x.onPacket(ev.packet)
	}
}

func (x *exchange) onPacket(p Packet) {
	switch x.state {
	case stateAuthenticating:
		// servers send an empty RESPONSE_VALUE before the auth verdict
		if p.Type != TypeAuthResponse {
			return
		}
		if p.ID == -1 {
			x.resolve(ErrAuthFailed)
			return
		}

		x.state = stateSending
		if err := WritePacket(x.conn, Packet{ID: x.cmdID, Type: TypeExecCommand, Body: x.command}); err != nil {
			x.resolve(err)
			return
		}
		x.state = stateAccumulating
		x.logger.Trace().Str("command", x.command).Msg("Command sent")

	case stateAccumulating:
		if p.Type != TypeResponseValue {
			return
		}
		x.buf = append(x.buf, p.Body...)
		x.arm()
	}
}

// arm (re)starts the idle timer. Stale firings are discarded by generation.
func (x *exchange) arm() {
	if x.timer != nil {
		x.timer.Stop()
	}

	x.gen++
	gen := x.gen
	x.timer = time.AfterFunc(x.client.idleTimeout, func() {
		select {
		case x.events <- event{kind: evIdle, gen: gen}:
		case <-x.done:
		}
	})
}

// resolve is idempotent: only the first call decides the result.
func (x *exchange) resolve(err error) {
	if x.state == stateResolved {
		return
	}

	x.state = stateResolved
	x.err = err
	if x.timer != nil {
		x.timer.Stop()
	}
	if x.conn != nil {
		_ = x.conn.Close()
	}

	if err != nil {
		x.logger.Debug().Err(err).Msg("RCON exchange failed")
		return
	}
	x.logger.Trace().Int("bytes", len(x.buf)).Msg("RCON exchange resolved")
}

func (x *exchange) result() Result {
	if x.err != nil {
		return failure(x.err)
	}

	return Result{Text: string(x.buf)}
}
