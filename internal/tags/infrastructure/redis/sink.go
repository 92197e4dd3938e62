package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	tags "linesim/internal/tags/domain"
)

const defaultKey = "linesim:tags"

// Config holds connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// NewClient constructs a go-redis client.
func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Change is the message published on the changes channel.
type Change struct {
	Writes    []tags.Write `json:"writes"`
	Timestamp time.Time    `json:"ts"`
}

// Sink mirrors the tree into a Redis hash and announces each batch.
type Sink struct {
	client *redis.Client
	key    string
}

// NewSink constructs a Redis sink. An empty key selects linesim:tags.
func NewSink(client *redis.Client, key string) (*Sink, error) {
	if client == nil {
		return nil, errors.New("redis sink: nil client")
	}
	if key == "" {
		key = defaultKey
	}
	return &Sink{client: client, key: key}, nil
}

// Name implements tags.Sink.
func (s *Sink) Name() string { return "redis" }

// Channel returns the pub/sub channel batches are announced on.
func (s *Sink) Channel() string { return s.key + ":changes" }

// Ping checks connectivity.
func (s *Sink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Apply implements tags.Sink with one pipeline per batch.
func (s *Sink) Apply(ctx context.Context, writes []tags.Write, at time.Time) error {
	if len(writes) == 0 {
		return nil
	}
	fields := make([]interface{}, 0, len(writes)*2)
	for _, w := range writes {
		fields = append(fields, w.Path, w.Value.String())
	}
	payload, err := json.Marshal(Change{Writes: writes, Timestamp: at.UTC()})
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key, fields...)
	pipe.Publish(ctx, s.Channel(), payload)
	_, err = pipe.Exec(ctx)
	return err
}

// Close implements tags.Sink.
func (s *Sink) Close() error {
	return s.client.Close()
}
