// Package redis publishes backtest signals for live-trading consumers.
//
// Key layout, per symbol:
//
//	signal:latest:{symbol}   SET    latest signal JSON (TTL)
//	signal:stream:{symbol}   XADD   signal history, approx-trimmed
//	pub:signal:{symbol}      PUBLISH latest signal JSON
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/karnagge/bitcoin-trading-bot/internal/logger"
	"github.com/karnagge/bitcoin-trading-bot/internal/strategy"
)

const (
	defaultLatestTTL = 24 * time.Hour
	streamMaxLen     = 5000
)

// Client is the subset of *goredis.Client the publisher uses.
type Client interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Get(ctx context.Context, key string) *goredis.StringCmd
	XAdd(ctx context.Context, a *goredis.XAddArgs) *goredis.StringCmd
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
	Close() error
}

// PublisherConfig configures the Redis connection.
type PublisherConfig struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// SignalMessage is the published payload.
type SignalMessage struct {
	Symbol string `json:"symbol"`
	RunID  string `json:"run_id,omitempty"`
	strategy.Signal
}

// Publisher writes the latest signal of each symbol to Redis.
type Publisher struct {
	client  Client
	breaker *Breaker
	ttl     time.Duration
}

// New connects to Redis, pings it and returns a Publisher.
func New(cfg PublisherConfig) (*Publisher, *goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return NewPublisher(client, NewBreaker(5, 10*time.Second)), client, nil
}

// NewPublisher wraps an existing client. b may be nil to disable the breaker.
func NewPublisher(c Client, b *Breaker) *Publisher {
	return &Publisher{client: c, breaker: b, ttl: defaultLatestTTL}
}

func LatestKey(symbol string) string  { return "signal:latest:" + symbol }
func StreamKey(symbol string) string  { return "signal:stream:" + symbol }
func ChannelKey(symbol string) string { return "pub:signal:" + symbol }

// PublishSignal stores sig as the latest signal of symbol, appends it to the
// history stream and notifies subscribers. The run ID is taken from ctx.
func (p *Publisher) PublishSignal(ctx context.Context, symbol string, sig strategy.Signal) error {
	data, err := json.Marshal(SignalMessage{Symbol: symbol, RunID: logger.RunID(ctx), Signal: sig})
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	payload := string(data)

	write := func() error {
		if err := p.client.Set(ctx, LatestKey(symbol), payload, p.ttl).Err(); err != nil {
			return fmt.Errorf("redis SET %s: %w", LatestKey(symbol), err)
		}
		if err := p.client.XAdd(ctx, &goredis.XAddArgs{
			Stream: StreamKey(symbol),
			MaxLen: streamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": payload},
		}).Err(); err != nil {
			return fmt.Errorf("redis XADD %s: %w", StreamKey(symbol), err)
		}
		if err := p.client.Publish(ctx, ChannelKey(symbol), payload).Err(); err != nil {
			return fmt.Errorf("redis PUBLISH %s: %w", ChannelKey(symbol), err)
		}
		return nil
	}
	if p.breaker == nil {
		return write()
	}
	return p.breaker.Do(write)
}

// LatestSignal reads back the stored latest signal. ok is false when none exists.
func (p *Publisher) LatestSignal(ctx context.Context, symbol string) (SignalMessage, bool, error) {
	data, err := p.client.Get(ctx, LatestKey(symbol)).Result()
	if err == goredis.Nil {
		return SignalMessage{}, false, nil
	}
	if err != nil {
		return SignalMessage{}, false, fmt.Errorf("redis GET %s: %w", LatestKey(symbol), err)
	}
	var msg SignalMessage
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		return SignalMessage{}, false, fmt.Errorf("unmarshal signal: %w", err)
	}
	return msg, true, nil
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
