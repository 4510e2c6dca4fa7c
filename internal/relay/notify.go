package relay

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/srcrelay/internal/config"
	"github.com/woozymasta/srcrelay/internal/routes"
)

// Post is one message delivered to a chat channel.
type Post struct {
	Username  string `json:"username"`
	Content   string `json:"content"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Notifier delivers posts to the channel of a route.
type Notifier interface {
	Post(ctx context.Context, route routes.Route, post Post) error
}

// RetryPolicy decides whether a failed delivery is retried and with which
// post. attempt starts at 1 for the first retry.
type RetryPolicy interface {
	Retry(attempt int, post Post, err error) (Post, bool)
}

// LeadingSpaceRetry retries once with a single space prepended to the
// content, which gets past platforms rejecting content starting with some
// characters.
type LeadingSpaceRetry struct{}

// Retry implements RetryPolicy.
func (LeadingSpaceRetry) Retry(attempt int, post Post, _ error) (Post, bool) {
	if attempt > 1 {
		return post, false
	}

	post.Content = " " + post.Content
	return post, true
}

// NoRetry never retries.
type NoRetry struct{}

// Retry implements RetryPolicy.
func (NoRetry) Retry(int, Post, error) (Post, bool) { return Post{}, false }

// RetryPolicyFor returns the webhook retry policy selected by cfg.
func RetryPolicyFor(cfg config.Discord) RetryPolicy {
	if cfg.NoRetry {
		return NoRetry{}
	}

	return LeadingSpaceRetry{}
}

// WithRetry wraps n so that failed posts are retried according to p.
func WithRetry(n Notifier, p RetryPolicy) Notifier {
	return &retrying{next: n, policy: p}
}

type retrying struct {
	next   Notifier
	policy RetryPolicy
}

func (r *retrying) Post(ctx context.Context, route routes.Route, post Post) error {
	err := r.next.Post(ctx, route, post)
	for attempt := 1; err != nil; attempt++ {
		next, ok := r.policy.Retry(attempt, post, err)
		if !ok || ctx.Err() != nil {
			return err
		}

		log.Debug().Err(err).Str("route", route.Name).Int("attempt", attempt).Msg("Retrying delivery")
		post = next
		err = r.next.Post(ctx, route, post)
	}

	return nil
}

// Fanout posts to every notifier and joins their errors.
type Fanout []Notifier

// Post implements Notifier.
func (f Fanout) Post(ctx context.Context, route routes.Route, post Post) error {
	var errs []error
	for _, n := range f {
		if err := n.Post(ctx, route, post); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
