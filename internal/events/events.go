// Package events announces stock level changes to interested listeners such
// as dashboards or kitchen displays.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel stock changes are published on.
const DefaultChannel = "stock:update"

const (
	SourceOrder  = "order"
	SourceSupply = "supply"
)

// StockChanged is published after a transaction that moved ingredient stock has committed.
type StockChanged struct {
	Source      string    `json:"source"`
	Reference   string    `json:"reference,omitempty"`
	Ingredients []uint    `json:"ingredients"`
	At          time.Time `json:"at"`
}

// Publisher delivers StockChanged events. Delivery is best-effort.
type Publisher interface {
	Publish(ctx context.Context, event StockChanged) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, event StockChanged) error

func (f PublisherFunc) Publish(ctx context.Context, event StockChanged) error {
	return f(ctx, event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, StockChanged) error { return nil }

// RedisPublisher publishes events as JSON on a Redis pub/sub channel.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisPublisher returns a publisher writing to channel. An empty channel
// selects DefaultChannel.
func NewRedisPublisher(client redis.UniversalClient, channel string) (*RedisPublisher, error) {
	if client == nil {
		return nil, errors.New("events: redis client is nil")
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}, nil
}

// Channel reports the channel events are published on.
func (p *RedisPublisher) Channel() string {
	return p.channel
}

func (p *RedisPublisher) Publish(ctx context.Context, event StockChanged) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("events: publish to %s: %w", p.channel, err)
	}
	return nil
}

// Encode renders the wire form of an event.
func Encode(event StockChanged) ([]byte, error) {
	if event.Ingredients == nil {
		event.Ingredients = []uint{}
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("events: encode: %w", err)
	}
	return payload, nil
}

// Connect parses a redis:// URL and verifies the server answers a ping.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("events: parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("events: ping redis: %w", err)
	}
	return client, nil
}
