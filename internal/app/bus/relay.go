/*
Package bus relays chat fanouts between server instances over Redis pub/sub.

Every instance publishes the events it fans out locally and applies the ones published
by others. Envelopes carry the sender's origin id so an instance never re-applies its
own traffic.
*/
package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"roomhub/internal/app/chat"
	"roomhub/internal/pkg/logx"
	"roomhub/internal/pkg/randx"
)

// envelope is the wire format on the channel.
type envelope struct {
	Origin  string            `json:"origin"`
	Message chat.RelayMessage `json:"message"`
}

// Handler applies a relayed message to local sessions.
type Handler func(ctx context.Context, msg chat.RelayMessage)

// Relay implements chat.Relay on a Redis channel.
type Relay struct {
	client  *redis.Client
	channel string
	origin  string
	logger  zerolog.Logger
}

var _ chat.Relay = (*Relay)(nil)

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// New returns a relay publishing on channel with a fresh origin id.
func New(client *redis.Client, channel string) *Relay {
	origin := randx.RecordID()
	return &Relay{
		client:  client,
		channel: channel,
		origin:  origin,
		logger:  logx.Component("relay").With().Str("origin", origin).Logger(),
	}
}

// Origin identifies this instance on the channel.
func (r *Relay) Origin() string {
	return r.origin
}

// Forward publishes msg to the other instances.
func (r *Relay) Forward(ctx context.Context, msg chat.RelayMessage) error {
	payload, err := json.Marshal(envelope{Origin: r.origin, Message: msg})
	if err != nil {
		return fmt.Errorf("encode relay message: %w", err)
	}

	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish relay message: %w", err)
	}
	return nil
}

// Run subscribes to the channel and hands every foreign message to handle until ctx ends.
func (r *Relay) Run(ctx context.Context, handle Handler) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.Info().Str("channel", r.channel).Msg("Relay subscribed.")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Relay stopped.")
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			r.dispatch(ctx, []byte(m.Payload), handle)
		}
	}
}

// dispatch decodes one payload and applies it unless it came from this instance.
// It reports whether handle was called.
func (r *Relay) dispatch(ctx context.Context, payload []byte, handle Handler) bool {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		r.logger.Warn().Err(err).Msg("Dropping malformed relay message.")
		return false
	}
	if env.Origin == r.origin {
		return false
	}

	handle(ctx, env.Message)
	return true
}
