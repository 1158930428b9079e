package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	URL             string `split_words:"true" default:"redis://localhost:6379/0"`
	ReadTimeout     int    `split_words:"true" default:"3"`
	WriteTimeout    int    `split_words:"true" default:"3"`
	DialTimeout     int    `split_words:"true" default:"5"`
	ConversationTTL int    `split_words:"true" default:"86400"`
}

// TTL is how long an idle conversation is kept.
func (r *Config) TTL() time.Duration {
	return time.Duration(r.ConversationTTL) * time.Second
}

func (r *Config) New(ctx context.Context) (*redis.Client, error) {
	opts, err := redis.ParseURL(r.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.ReadTimeout = time.Duration(r.ReadTimeout) * time.Second
	opts.WriteTimeout = time.Duration(r.WriteTimeout) * time.Second
	opts.DialTimeout = time.Duration(r.DialTimeout) * time.Second

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

func (r *Config) MustNew(ctx context.Context) *redis.Client {
	client, err := r.New(ctx)
	if err != nil {
		panic(err)
	}

	return client
}
