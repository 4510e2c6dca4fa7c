// Package logrecv receives srcds remote logs (logaddress_add) over UDP.
package logrecv

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/srcrelay/internal/config"
	"github.com/woozymasta/srcrelay/internal/routes"
)

// maxDatagram is the largest UDP payload accepted.
const maxDatagram = 65535

// Handler processes one log line of a registered route.
type Handler func(ctx context.Context, route routes.Route, line string)

// Receiver accepts log datagrams from registered game servers only. Each
// datagram is handled in its own goroutine.
type Receiver struct {
	conn    *net.UDPConn
	table   *routes.Table
	handler Handler
	address string
	secret  string
}

// New creates a receiver for the routes in table.
func New(cfg config.Logs, table *routes.Table, handler Handler) *Receiver {
	return &Receiver{
		table:   table,
		handler: handler,
		address: cfg.Address,
		secret:  cfg.Secret,
	}
}

// Listen binds the UDP socket. The socket is closed when ctx is done.
func (r *Receiver) Listen(ctx context.Context) error {
	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp", r.address)
	if err != nil {
		return fmt.Errorf("listen log receiver on %s: %w", r.address, err)
	}
	r.conn = pc.(*net.UDPConn)

	go func() {
		<-ctx.Done()
		_ = r.conn.Close()
	}()

	log.Info().Str("address", r.conn.LocalAddr().String()).Int("routes", r.table.Len()).Msg("Log receiver started")
	return nil
}

// Addr returns the bound address after Listen.
func (r *Receiver) Addr() net.Addr {
	if r.conn == nil {
		return nil
	}

	return r.conn.LocalAddr()
}

// Serve reads datagrams until ctx is done.
func (r *Receiver) Serve(ctx context.Context) error {
	buf := make([]byte, maxDatagram)
	for {
		n, remote, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				log.Info().Msg("Log receiver stopping")
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Error().Err(err).Msg("UDP read error")
			continue
		}

		route, ok := r.table.ByAddress(remote.IP.String(), remote.Port)
		if !ok {
			log.Trace().Str("remote", remote.String()).Msg("Log from unregistered server dropped")
			continue
		}

		line, err := ParsePacket(buf[:n], r.secret)
		if err != nil {
			log.Debug().Err(err).Str("route", route.Name).Msg("Invalid log packet")
			continue
		}

		go r.handler(ctx, route, line)
	}
}

// Start listens and serves until ctx is done.
func (r *Receiver) Start(ctx context.Context) error {
	if err := r.Listen(ctx); err != nil {
		return err
	}

	return r.Serve(ctx)
}
