// Package bridge mirrors relay traffic to an MQTT broker: every post is
// published as an event and messages on inbound topics are relayed to the
// game servers.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/srcrelay/internal/config"
	"github.com/woozymasta/srcrelay/internal/relay"
	"github.com/woozymasta/srcrelay/internal/routes"
)

const publishTimeout = 5 * time.Second

// ErrNotConnected is returned by Post while the broker is unreachable.
var ErrNotConnected = errors.New("mqtt: not connected")

// InboundHandler receives messages from inbound topics.
type InboundHandler func(ctx context.Context, msg relay.InboundMessage)

// Event is the payload published for every relay post.
type Event struct {
	Time      time.Time `json:"time"`
	Route     string    `json:"route"`
	ChannelID string    `json:"channel_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

// Bridge is a relay.Notifier publishing to MQTT and a source of inbound messages.
type Bridge struct {
	client mqtt.Client
	table  *routes.Table
	ctx    context.Context
	handle InboundHandler
	prefix string
	qos    byte
}

// New configures the MQTT client; nothing connects until Start.
func New(cfg config.MQTT, table *routes.Table) *Bridge {
	b := &Bridge{
		table:  table,
		prefix: strings.TrimRight(cfg.Prefix, "/"),
		qos:    cfg.QoS,
		ctx:    context.Background(),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)

	// resubscribe on every (re)connect
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log.Info().Str("broker", cfg.Broker).Msg("MQTT connected")
		b.subscribe(c)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	b.client = mqtt.NewClient(opts)
	return b
}

// Start connects to the broker and relays inbound messages to handle until
// ctx is done. It returns after the first connection attempt.
func (b *Bridge) Start(ctx context.Context, handle InboundHandler) error {
	b.ctx = ctx
	b.handle = handle

	token := b.client.Connect()
	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}

	go func() {
		<-ctx.Done()
		b.client.Disconnect(5000)
		log.Info().Msg("MQTT disconnected")
	}()

	return nil
}

// EventTopic is the topic posts for route are published to.
func (b *Bridge) EventTopic(route routes.Route) string {
	return b.prefix + "/" + route.Name + "/events"
}

// InboundFilter is the subscription filter of inbound messages.
func (b *Bridge) InboundFilter() string {
	return b.prefix + "/+/inbound"
}

// Post implements relay.Notifier.
func (b *Bridge) Post(ctx context.Context, route routes.Route, post relay.Post) error {
	if !b.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	data, err := json.Marshal(Event{
		Time:      time.Now().UTC(),
		Route:     route.Name,
		ChannelID: route.ChannelID,
		Username:  post.Username,
		Content:   post.Content,
		AvatarURL: post.AvatarURL,
	})
	if err != nil {
		return err
	}

	token := b.client.Publish(b.EventTopic(route), b.qos, false, data)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("mqtt publish to %s: timeout", b.EventTopic(route))
	}
}

func (b *Bridge) subscribe(c mqtt.Client) {
	filter := b.InboundFilter()
	token := c.Subscribe(filter, b.qos, func(_ mqtt.Client, m mqtt.Message) {
		b.onMessage(m.Topic(), m.Payload())
	})

	go func() {
		token.Wait()
		if token.Error() != nil {
			log.Error().Err(token.Error()).Str("topic", filter).Msg("MQTT subscribe failed")
		}
	}()
}

func (b *Bridge) onMessage(topic string, payload []byte) {
	msg, err := b.decode(topic, payload)
	if err != nil {
		log.Debug().Err(err).Str("topic", topic).Msg("Invalid inbound MQTT message")
		return
	}
	if b.handle == nil {
		return
	}

	go b.handle(b.ctx, msg)
}

// decode turns an inbound payload into a message. A missing channel id is
// taken from the route named in the topic.
func (b *Bridge) decode(topic string, payload []byte) (relay.InboundMessage, error) {
	var msg relay.InboundMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}

	if msg.ChannelID == "" {
		name, ok := b.routeFromTopic(topic)
		if !ok {
			return msg, fmt.Errorf("unexpected topic %q", topic)
		}
		route, ok := b.table.ByName(name)
		if !ok {
			return msg, fmt.Errorf("unknown route %q", name)
		}
		msg.ChannelID = route.ChannelID
	}

	if msg.ID == "" {
		msg.ID = fmt.Sprintf("mqtt-%d", time.Now().UnixNano())
	}

	return msg, nil
}

func (b *Bridge) routeFromTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, b.prefix+"/")
	if !ok {
		return "", false
	}

	name, ok := strings.CutSuffix(rest, "/inbound")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}

	return name, true
}
