package relay

import (
	"context"
	"strings"

	"github.com/woozymasta/srcrelay/internal/codec"
	"github.com/woozymasta/srcrelay/internal/routes"
)

// HandleInbound relays a chat platform message to the game server bound to
// its channel, or runs it as an RCON command when it starts with a command
// alias and the author is allowed to. Outcomes are reported through the
// Responder; nothing is returned.
func (d *Dispatcher) HandleInbound(ctx context.Context, msg InboundMessage) {
	if msg.Bot {
		return
	}

	route, ok := d.routes.ByChannel(msg.ChannelID)
	if !ok {
		d.logger.Trace().Str("channel", msg.ChannelID).Msg("Message from unmapped channel ignored")
		return
	}

	logger := d.logger.With().Str("route", route.Name).Str("message", msg.ID).Logger()

	for _, alias := range d.opts.Aliases {
		if !strings.HasPrefix(msg.Body, alias) {
			continue
		}

		if !d.isAllowed(msg.AuthorID) {
			logger.Debug().Str("author", msg.AuthorID).Msg("Unauthorized command ignored")
			return
		}

		command := strings.ReplaceAll(strings.TrimSpace(msg.Body[len(alias):]), `"`, `'`)
		d.runCommand(ctx, route, msg, command)
		return
	}

	if msg.AuthorName == "" || strings.TrimSpace(msg.Body) == "" {
		return
	}

	body, trimmed := Truncate(msg.Body, d.opts.MaxMessageLength)
	if trimmed && d.opts.AnnounceTrim {
		if err := d.responder.React(ctx, msg, ReactionTrimmed); err != nil {
			logger.Warn().Err(err).Msg("Failed to react to trimmed message")
		}
	}

	if !d.sendChat(ctx, route, msg, body) {
		if err := d.responder.React(ctx, msg, ReactionFailed); err != nil {
			logger.Warn().Err(err).Msg("Failed to react to failed message")
		}
	}
}

// runCommand executes an administrator command and reports the output as an
// edited reply.
func (d *Dispatcher) runCommand(ctx context.Context, route routes.Route, msg InboundMessage, command string) {
	logger := d.logger.With().Str("route", route.Name).Str("author", msg.AuthorID).Logger()
	logger.Info().Str("command", command).Msg("Executing RCON command")

	replyID, err := d.responder.Reply(ctx, msg, executingPrefix+command)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to reply to command")
	}

	res := d.executor.Execute(ctx, route, command)

	text := noResultsText
	if res.Text != "" {
		preview, _ := Truncate(res.Text, d.opts.PreviewLength)
		text = "```" + preview + "```"
	}

	if replyID != "" {
		err = d.responder.EditReply(ctx, msg, replyID, text)
	} else {
		_, err = d.responder.Reply(ctx, msg, text)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to report command result")
	}
}

// sendChat delivers body as relay frames. It reports false when any exchange
// looked failed; fragments after a failed one are not sent.
func (d *Dispatcher) sendChat(ctx context.Context, route routes.Route, msg InboundMessage, body string) bool {
	var acquired string
	tag := func() string {
		if d.tags == nil {
			return codec.GroupTag(msg.ID)
		}
		acquired = d.tags.Acquire(route.Name, msg.ID)
		return acquired
	}

	frames := d.opts.Codec.Split(msg.AuthorName, body, tag)
	if acquired != "" {
		defer d.tags.Release(route.Name, acquired)
	}

	verb := d.opts.Codec.Verb
	if verb == "" {
		verb = codec.DefaultVerb
	}

	logger := d.logger.With().Str("route", route.Name).Str("message", msg.ID).Logger()
	for _, f := range frames {
		res := d.executor.Execute(ctx, route, f.Command(verb))
		if d.looksFailed(res) {
			logger.Debug().
				Str("result", res.Text).
				Int("frame", f.Index).
				Int("frames", len(frames)).
				Msg("Relay command failed")
			return false
		}
	}

	logger.Trace().Int("frames", len(frames)).Msg("Message relayed")
	return true
}
