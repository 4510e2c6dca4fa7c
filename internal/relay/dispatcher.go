// Package relay moves chat between game server logs, RCON and chat channels.
package relay

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/srcrelay/internal/codec"
	"github.com/woozymasta/srcrelay/internal/config"
	"github.com/woozymasta/srcrelay/internal/logline"
	"github.com/woozymasta/srcrelay/internal/rcon"
	"github.com/woozymasta/srcrelay/internal/routes"
	"github.com/woozymasta/srcrelay/internal/steamid"
)

// LuaErrorUsername is the author shown for relayed Lua errors.
const LuaErrorUsername = "Lua Error"

// Reply texts of the RCON command.
const (
	executingPrefix = "Executing command : "
	noResultsText   = "Command executed but returned no results."
)

// Executor runs one RCON command against a route.
type Executor interface {
	Execute(ctx context.Context, route routes.Route, command string) rcon.Result
}

// Avatars resolves player avatars; "" means none.
type Avatars interface {
	Resolve(ctx context.Context, id steamid.SteamID) string
}

// Options is the message policy of a Dispatcher.
type Options struct {
	Blacklist        []string
	Aliases          []string // full command aliases including the prefix
	AllowedUsers     []string
	ErrorMarkers     []string
	Codec            codec.Codec
	MaxMessageLength int
	PreviewLength    int
	AnnounceTrim     bool
	SurfaceErrors    bool
	UniqueTags       bool
}

// OptionsFromConfig builds dispatcher options from the relay flags.
func OptionsFromConfig(cfg config.Relay) Options {
	aliases := make([]string, 0, len(cfg.Commands))
	for _, c := range cfg.Commands {
		if c = strings.TrimSpace(c); c != "" {
			aliases = append(aliases, cfg.CommandPrefix+c)
		}
	}

	return Options{
		Blacklist:        cfg.Blacklist,
		Aliases:          aliases,
		AllowedUsers:     cfg.AllowedUsers,
		ErrorMarkers:     cfg.ErrorMarkers,
		Codec:            codec.Codec{Verb: cfg.Verb, Ceiling: cfg.Ceiling},
		MaxMessageLength: cfg.MaxMessageLength,
		PreviewLength:    cfg.PreviewLength,
		AnnounceTrim:     !cfg.NoTrimNotice,
		SurfaceErrors:    cfg.ShowLuaErrors,
		UniqueTags:       cfg.UniqueTags,
	}
}

// Dispatcher routes log events to notifiers and inbound messages to RCON.
// It holds no per-message state and is safe for concurrent use.
type Dispatcher struct {
	routes     *routes.Table
	notifier   Notifier
	responder  Responder
	executor   Executor
	avatars    Avatars
	tags       *codec.TagRegistry
	allowed    map[uint64]struct{}
	logger     zerolog.Logger
	classifier logline.Classifier
	opts       Options
}

// New creates a dispatcher. avatars may be nil.
func New(table *routes.Table, notifier Notifier, responder Responder, executor Executor, avatars Avatars, opts Options) *Dispatcher {
	allowed := make(map[uint64]struct{}, len(opts.AllowedUsers))
	for _, id := range opts.AllowedUsers {
		allowed[xxhash.Sum64String(id)] = struct{}{}
	}

	// longest alias first so "--command" wins over "--c"
	opts.Aliases = append([]string(nil), opts.Aliases...)
	sort.SliceStable(opts.Aliases, func(i, j int) bool { return len(opts.Aliases[i]) > len(opts.Aliases[j]) })

	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 512
	}
	if opts.PreviewLength <= 0 {
		opts.PreviewLength = 1993
	}

	d := &Dispatcher{
		routes:     table,
		notifier:   notifier,
		responder:  responder,
		executor:   executor,
		avatars:    avatars,
		allowed:    allowed,
		classifier: logline.Classifier{SurfaceErrors: opts.SurfaceErrors},
		opts:       opts,
		logger:     log.With().Str("component", "relay").Logger(),
	}
	if opts.UniqueTags {
		d.tags = codec.NewTagRegistry()
	}

	return d
}

// blacklisted reports whether trimmed body starts with a blocked prefix.
func (d *Dispatcher) blacklisted(body string) bool {
	body = strings.TrimSpace(body)
	for _, prefix := range d.opts.Blacklist {
		if prefix != "" && strings.HasPrefix(body, prefix) {
			return true
		}
	}

	return false
}

func (d *Dispatcher) isAllowed(userID string) bool {
	_, ok := d.allowed[xxhash.Sum64String(userID)]
	return ok
}

// looksFailed is the heuristic for relay command results: transport errors
// and any output containing an error marker count as failures.
func (d *Dispatcher) looksFailed(res rcon.Result) bool {
	if res.Failed() {
		return true
	}

	text := strings.ToLower(res.Text)
	for _, marker := range d.opts.ErrorMarkers {
		if marker != "" && strings.Contains(text, strings.ToLower(marker)) {
			return true
		}
	}

	return false
}

// neutralizeMentions breaks @everyone, @here and user pings.
func neutralizeMentions(s string) string {
	return strings.ReplaceAll(s, "@", "@ ")
}

// Truncate cuts s to at most limit characters. It reports whether s was cut.
func Truncate(s string, limit int) (string, bool) {
	if utf8.RuneCountInString(s) <= limit {
		return s, false
	}

	n := 0
	for i := range s {
		if n == limit {
			return s[:i], true
		}
		n++
	}

	return s, false
}
