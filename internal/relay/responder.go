package relay

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Reactions used to acknowledge inbound messages.
const (
	ReactionTrimmed = "✂"
	ReactionFailed  = "❌"
)

// InboundMessage is a chat platform message addressed to a game server.
type InboundMessage struct {
	ID         string `json:"id"`
	ChannelID  string `json:"channel_id"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	Body       string `json:"body"`
	Bot        bool   `json:"bot,omitempty"`
}

// Responder acts on the originating message on the chat platform.
type Responder interface {
	React(ctx context.Context, msg InboundMessage, emoji string) error
	Reply(ctx context.Context, msg InboundMessage, text string) (replyID string, err error)
	EditReply(ctx context.Context, msg InboundMessage, replyID, text string) error
}

// LogResponder logs responses instead of sending them. It is used when no
// platform credentials are configured.
type LogResponder struct{}

// React implements Responder.
func (LogResponder) React(_ context.Context, msg InboundMessage, emoji string) error {
	log.Info().Str("message", msg.ID).Str("reaction", emoji).Msg("Reaction")
	return nil
}

// Reply implements Responder.
func (LogResponder) Reply(_ context.Context, msg InboundMessage, text string) (string, error) {
	log.Info().Str("message", msg.ID).Str("text", text).Msg("Reply")
	return "", nil
}

// EditReply implements Responder.
func (LogResponder) EditReply(_ context.Context, msg InboundMessage, _ string, text string) error {
	log.Info().Str("message", msg.ID).Str("text", text).Msg("Reply edited")
	return nil
}
