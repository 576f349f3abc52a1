package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
}

// Redis publishes every envelope on the channel <prefix><tournament code>.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return NewRedisWithClient(rdb, cfg.ChannelPrefix), nil
}

func NewRedisWithClient(rdb *redis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) Channel(code string) string { return r.prefix + code }

func (r *Redis) Publish(ctx context.Context, b Batch) error {
	envs, err := Envelopes(b)
	if err != nil {
		return err
	}
	channel := r.Channel(b.Tournament)
	pipe := r.rdb.Pipeline()
	for _, env := range envs {
		payload, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("redis: encode envelope: %w", err)
		}
		pipe.Publish(ctx, channel, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

func (r *Redis) Close() error { return r.rdb.Close() }
