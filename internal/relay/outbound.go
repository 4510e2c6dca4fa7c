package relay

import (
	"context"

	"github.com/woozymasta/srcrelay/internal/logline"
	"github.com/woozymasta/srcrelay/internal/routes"
)

// HandleLogLine classifies one log line of route and posts the resulting
// event to its channel. Unrecognized and blacklisted lines are dropped
// silently. The returned error is the delivery error after retries.
func (d *Dispatcher) HandleLogLine(ctx context.Context, route routes.Route, line string) error {
	ev := d.classifier.Classify(line)

	var post Post
	switch ev.Kind {
	case logline.Chat:
		if d.blacklisted(ev.Body) {
			d.logger.Debug().Str("route", route.Name).Str("speaker", ev.Speaker).Msg("Blacklisted chat dropped")
			return nil
		}
		post = Post{
			Username: ev.Speaker,
			Content:  neutralizeMentions(ev.Body),
		}
		if d.avatars != nil {
			post.AvatarURL = d.avatars.Resolve(ctx, ev.SpeakerID)
		}

	case logline.Error:
		post = Post{Username: LuaErrorUsername, Content: ev.Body}

	case logline.Custom:
		post = Post{Username: ev.Sender, Content: neutralizeMentions(ev.Body)}

	default:
		return nil
	}

	if err := d.notifier.Post(ctx, route, post); err != nil {
		d.logger.Warn().Err(err).Str("route", route.Name).Str("kind", ev.Kind.String()).Msg("Failed to deliver event")
		return err
	}

	d.logger.Trace().Str("route", route.Name).Str("kind", ev.Kind.String()).Msg("Event delivered")
	return nil
}
