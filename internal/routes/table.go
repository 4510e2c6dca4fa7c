// Package routes holds the immutable mapping between game servers and chat channels.
package routes

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
)

var (
	// ErrDuplicateAddress is returned when two routes point at the same host and port.
	ErrDuplicateAddress = errors.New("duplicate server address")

	// ErrDuplicateChannel is returned when two routes are bound to the same channel.
	ErrDuplicateChannel = errors.New("duplicate channel id")

	// ErrInvalidRoute is returned for routes missing a required field.
	ErrInvalidRoute = errors.New("invalid route")
)

// Route binds one game server (RCON endpoint and log source) to one chat channel.
type Route struct {
	// Name is the key of the route in the routes file.
	Name string `json:"name" yaml:"-"`

	// Host is the RCON host and the expected source address of log datagrams.
	Host string `json:"host" yaml:"ip"`

	// PublicHost is an optional address used for A2S status queries.
	PublicHost string `json:"public_host,omitempty" yaml:"public_ip"`

	// Password is the RCON password.
	Password string `json:"-" yaml:"password"`

	// ChannelID is the chat channel bound to this server.
	ChannelID string `json:"channel_id" yaml:"relay_channel"`

	// WebhookURL is the incoming webhook used to post game events to the channel.
	WebhookURL string `json:"-" yaml:"webhook"`

	Port int `json:"port" yaml:"port"`
}

// Address returns host:port of the RCON and log endpoint.
func (r Route) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// QueryHost returns the host used for status queries.
func (r Route) QueryHost() string {
	if r.PublicHost != "" {
		return r.PublicHost
	}

	return r.Host
}

// Table is a read-only bidirectional index of routes by address and by channel.
// It is safe for concurrent use because it is never mutated after NewTable.
type Table struct {
	byAddr    map[string]int
	byChannel map[string]int
	byName    map[string]int
	routes    []Route
}

// NewTable validates routes and builds the lookup table.
// Addresses and channel ids must be unique across all routes.
func NewTable(list []Route) (*Table, error) {
	t := &Table{
		byAddr:    make(map[string]int, len(list)),
		byChannel: make(map[string]int, len(list)),
		byName:    make(map[string]int, len(list)),
		routes:    make([]Route, 0, len(list)),
	}

	sorted := append([]Route(nil), list...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for _, r := range sorted {
		if r.Host == "" || r.Port <= 0 || r.Port > 65535 || r.ChannelID == "" {
			return nil, fmt.Errorf("%w: %q needs ip, port and relay_channel", ErrInvalidRoute, r.Name)
		}

		addr := r.Address()
		if prev, ok := t.byAddr[addr]; ok {
			return nil, fmt.Errorf("%w: %s used by %q and %q", ErrDuplicateAddress, addr, t.routes[prev].Name, r.Name)
		}
		if prev, ok := t.byChannel[r.ChannelID]; ok {
			return nil, fmt.Errorf("%w: %s used by %q and %q", ErrDuplicateChannel, r.ChannelID, t.routes[prev].Name, r.Name)
		}

		idx := len(t.routes)
		t.routes = append(t.routes, r)
		t.byAddr[addr] = idx
		t.byChannel[r.ChannelID] = idx
		if r.Name != "" {
			t.byName[r.Name] = idx
		}
	}

	return t, nil
}

// ByAddress finds the route of a server by its host and port.
func (t *Table) ByAddress(host string, port int) (Route, bool) {
	return t.lookup(t.byAddr, net.JoinHostPort(host, strconv.Itoa(port)))
}

// ByChannel finds the route bound to a chat channel.
func (t *Table) ByChannel(channelID string) (Route, bool) {
	return t.lookup(t.byChannel, channelID)
}

// ByName finds a route by its configured name.
func (t *Table) ByName(name string) (Route, bool) {
	return t.lookup(t.byName, name)
}

// All returns a copy of every route ordered by name.
func (t *Table) All() []Route {
	return append([]Route(nil), t.routes...)
}

// Len returns the number of routes.
func (t *Table) Len() int {
	return len(t.routes)
}

func (t *Table) lookup(index map[string]int, key string) (Route, bool) {
	idx, ok := index[key]
	if !ok {
		return Route{}, false
	}

	return t.routes[idx], true
}
