// Package bus publishes confirmed gestures to other processes.
package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/ayusman/mudra/internal/gesture"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Publisher delivers gesture events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev gesture.Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, gesture.Event) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }

// Options configures the Redis publisher.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Channel is the pub/sub channel. The most recent event is also stored
	// under Channel + ":last".
	Channel string
	// LastTTL bounds how long the most recent event is kept. Zero keeps it
	// until overwritten.
	LastTTL time.Duration
}

// Redis publishes events as JSON on a Redis pub/sub channel.
type Redis struct {
	client  *redis.Client
	channel string
	lastTTL time.Duration
	log     logrus.FieldLogger
}

// NewRedis connects to Redis. A failed ping is logged, not returned: the
// client reconnects on its own and publishing errors are reported per event.
func NewRedis(opts Options, log logrus.FieldLogger) *Redis {
	log.WithField("addr", opts.Addr).Info("connecting to redis")

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Error("failed to connect to redis")
	} else {
		log.Info("connected to redis")
	}

	return &Redis{
		client:  client,
		channel: opts.Channel,
		lastTTL: opts.LastTTL,
		log:     log,
	}
}

// Message is the JSON document published for each event.
type Message struct {
	ID         string          `json:"id"`
	Label      gesture.Label   `json:"label"`
	Type       gesture.Type    `json:"type"`
	Channel    gesture.Channel `json:"channel"`
	Confidence float64         `json:"confidence"`
	X          float64         `json:"x"`
	Y          float64         `json:"y"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Encode returns the published form of ev.
func Encode(ev gesture.Event) ([]byte, error) {
	return json.Marshal(Message{
		ID:         ev.ID,
		Label:      ev.Label,
		Type:       ev.Label.Type(),
		Channel:    ev.Channel,
		Confidence: ev.Confidence,
		X:          ev.Position.X,
		Y:          ev.Position.Y,
		Timestamp:  ev.Timestamp,
	})
}

// Publish sends ev to the channel and records it as the latest event.
func (r *Redis) Publish(ctx context.Context, ev gesture.Event) error {
	payload, err := Encode(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Publish(ctx, r.channel, payload)
	pipe.Set(ctx, r.channel+":last", payload, r.lastTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.WithError(err).WithField("gesture", ev.Label).Warn("failed to publish gesture")
		return fmt.Errorf("publish %s: %w", ev.ID, err)
	}

	r.log.WithFields(logrus.Fields{"gesture": ev.Label, "channel": r.channel}).Debug("gesture published")
	return nil
}

// Last returns the most recently published message.
func (r *Redis) Last(ctx context.Context) (*Message, error) {
	data, err := r.client.Get(ctx, r.channel+":last").Bytes()
	if err != nil {
		return nil, err
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
