package status

import (
	"net"

	"github.com/woozymasta/a2s/pkg/a2s"
	"github.com/woozymasta/srcrelay/internal/config"
	"github.com/woozymasta/srcrelay/internal/routes"
)

// QueryFunc fetches A2S_INFO of a route.
type QueryFunc func(route routes.Route) (*a2s.Info, error)

// A2SQuery returns a QueryFunc using the A2S options. The query goes to the
// public host of the route when set; loopback IPv6 is mapped to IPv4.
func A2SQuery(options config.A2S) QueryFunc {
	return func(route routes.Route) (*a2s.Info, error) {
		host := route.QueryHost()
		if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
			host = "127.0.0.1"
		}

		client, err := a2s.New(host, route.Port)
		if err != nil {
			return nil, err
		}
		defer func() { _ = client.Close() }()

		client.BufferSize = options.BufferSize
		client.Timeout = options.Timeout

		return client.GetInfo()
	}
}
