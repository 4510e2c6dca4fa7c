package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/woozymasta/srcrelay/internal/relay"
)

type messageReference struct {
	MessageID string `json:"message_id"`
}

type replyMentions struct {
	Parse       []string `json:"parse"`
	RepliedUser bool     `json:"replied_user"`
}

type createMessage struct {
	MessageReference *messageReference `json:"message_reference,omitempty"`
	AllowedMentions  replyMentions     `json:"allowed_mentions"`
	Content          string            `json:"content"`
}

type editMessage struct {
	Content string `json:"content"`
}

// Client is a relay.Responder backed by the bot REST API.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

// NewClient creates a REST client for the bot token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

func (c *Client) messageURL(channelID, messageID string) string {
	u := c.baseURL + "/channels/" + url.PathEscape(channelID) + "/messages"
	if messageID != "" {
		u += "/" + url.PathEscape(messageID)
	}

	return u
}

// React adds a reaction of the bot to the message.
func (c *Client) React(ctx context.Context, msg relay.InboundMessage, emoji string) error {
	u := c.messageURL(msg.ChannelID, msg.ID) + "/reactions/" + url.PathEscape(emoji) + "/@me"
	_, err := do(ctx, c.http, http.MethodPut, u, c.token, nil)
	return err
}

// Reply posts text as a reply to the message and returns the reply id.
func (c *Client) Reply(ctx context.Context, msg relay.InboundMessage, text string) (string, error) {
	payload := createMessage{
		Content:         text,
		AllowedMentions: replyMentions{Parse: []string{}},
	}
	if msg.ID != "" {
		payload.MessageReference = &messageReference{MessageID: msg.ID}
	}

	data, err := do(ctx, c.http, http.MethodPost, c.messageURL(msg.ChannelID, ""), c.token, payload)
	if err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		return "", fmt.Errorf("discord: decode reply: %w", err)
	}

	return created.ID, nil
}

// EditReply replaces the content of a previous reply.
func (c *Client) EditReply(ctx context.Context, msg relay.InboundMessage, replyID, text string) error {
	_, err := do(ctx, c.http, http.MethodPatch, c.messageURL(msg.ChannelID, replyID), c.token, editMessage{Content: text})
	return err
}
