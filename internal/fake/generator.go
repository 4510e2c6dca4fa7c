// Package fake generates synthetic srcds log lines for exercising the relay
// without a running game server.
package fake

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/srcrelay/internal/routes"
)

// LineHandler consumes log lines as if they came from route.
type LineHandler interface {
	HandleLogLine(ctx context.Context, route routes.Route, line string) error
}

var (
	names    = []string{"Alice", "Bob", "[TTT] Garry", "xX_sniper_Xx", "Kleiner", "Медведь", "gman"}
	teams    = []string{"", "Unassigned", "Innocent", "Traitor", "Spectator"}
	messages = []string{
		"hello", "gg", "anyone on the server?", "rtv", "who is the traitor",
		"@everyone come play", `he said "wait"`, "restart the map pls", "lol",
	}
	noise = []string{
		`server cvars start`,
		`"sv_gravity" = "600"`,
		`Started map "gm_construct" (CRC "-1234567")`,
		`Log file closed`,
	}
	senders = []string{"Admin", "Server", "ULX"}
	notices = []string{"Map changes in 5 minutes", "Round restarting", "Welcome to the server"}
)

// Generator produces random log lines with srcds timestamps.
type Generator struct {
	rng *rand.Rand
	now func() time.Time
}

// NewGenerator returns a generator seeded with seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
}

// Line returns one random log line: mostly chat, with occasional custom
// notices, Lua errors and unrelated noise.
func (g *Generator) Line() string {
	stamp := g.now().Format("01/02/2006 - 15:04:05") + ": "

	roll := g.rng.Float32()
	switch {
	case roll < 0.60:
		return stamp + g.chat()
	case roll < 0.75:
		return stamp + g.custom()
	case roll < 0.85:
		return stamp + "Lua Error: \n[ERROR] " + g.luaError()
	default:
		return stamp + pick(g.rng, noise)
	}
}

func (g *Generator) chat() string {
	verb := "say"
	if g.rng.Intn(4) == 0 {
		verb = "say_team"
	}

	return fmt.Sprintf(`"%s<%d><STEAM_0:%d:%d><%s>" %s "%s"`,
		pick(g.rng, names),
		g.rng.Intn(64)+1,
		g.rng.Intn(2),
		g.rng.Intn(50_000_000)+1,
		pick(g.rng, teams),
		verb,
		pick(g.rng, messages),
	)
}

func (g *Generator) custom() string {
	enc := base64.StdEncoding.EncodeToString
	return "[relay_custom]" + enc([]byte(pick(g.rng, senders))) + "|" + enc([]byte(pick(g.rng, notices))) + "[/relay_custom]"
}

func (g *Generator) luaError() string {
	return fmt.Sprintf("addons/ulx/lua/ulx/modules/sh/fun.lua:%d: attempt to index a nil value\n  1. unknown - addons/ulx/lua/ulx/modules/sh/fun.lua:%d",
		g.rng.Intn(900)+1, g.rng.Intn(900)+1)
}

// Generate feeds count random lines from random routes to handler.
// Delivery errors are logged and do not stop the run.
func Generate(ctx context.Context, table *routes.Table, handler LineHandler, count int) {
	list := table.All()
	if len(list) == 0 {
		log.Warn().Msg("No routes to generate fake logs for")
		return
	}

	g := NewGenerator(time.Now().UnixNano())
	failed := 0

	for i := 0; i < count; i++ {
		if ctx.Err() != nil {
			break
		}

		route := list[g.rng.Intn(len(list))]
		if err := handler.HandleLogLine(ctx, route, g.Line()); err != nil {
			failed++
			log.Debug().Err(err).Str("route", route.Name).Msg("Failed to deliver fake log line")
		}
	}

	log.Info().Int("count", count).Int("failed", failed).Msg("Fake log lines generated")
}

func pick(rng *rand.Rand, list []string) string {
	return list[rng.Intn(len(list))]
}
