// Package discord posts relay events through webhooks and acknowledges
// inbound messages through the bot REST API.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/woozymasta/srcrelay/internal/relay"
	"github.com/woozymasta/srcrelay/internal/routes"
	"github.com/woozymasta/srcrelay/internal/vars"
)

// ErrNoWebhook is returned for routes without a webhook URL.
var ErrNoWebhook = errors.New("discord: route has no webhook")

// StatusError is a non-2xx answer of the Discord API.
type StatusError struct {
	Body   string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("discord: status %d: %s", e.Status, e.Body)
}

type allowedMentions struct {
	Parse []string `json:"parse"`
}

type webhookPayload struct {
	AllowedMentions allowedMentions `json:"allowed_mentions"`
	Content         string          `json:"content"`
	Username        string          `json:"username,omitempty"`
	AvatarURL       string          `json:"avatar_url,omitempty"`
}

// Webhook delivers posts to the webhook configured on each route.
type Webhook struct {
	client *http.Client
}

// NewWebhook creates a webhook notifier.
func NewWebhook(timeout time.Duration) *Webhook {
	return &Webhook{client: &http.Client{Timeout: timeout}}
}

// Post implements relay.Notifier.
func (w *Webhook) Post(ctx context.Context, route routes.Route, post relay.Post) error {
	if route.WebhookURL == "" {
		return ErrNoWebhook
	}

	payload := webhookPayload{
		Content:         post.Content,
		Username:        post.Username,
		AvatarURL:       post.AvatarURL,
		AllowedMentions: allowedMentions{Parse: []string{}},
	}

	_, err := do(ctx, w.client, http.MethodPost, route.WebhookURL, "", payload)
	return err
}

// do sends a JSON request and returns the response body of a 2xx answer.
func do(ctx context.Context, client *http.Client, method, url, token string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bot "+token)
	}
	req.Header.Set("User-Agent", vars.UserAgent())

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Status: resp.StatusCode, Body: string(data)}
	}

	return data, nil
}
