package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/zeromicro/go-zero/core/logx"

	"go-messenger/internal/infrastructure/pubsub/port"
)

// redisPrefix namespaces application channels inside the Redis pub/sub keyspace.
const redisPrefix = "realtime:"

// RedisPublisher publishes envelopes with Redis PUBLISH. Redis pub/sub is at-most-once,
// matching the best-effort contract of port.Publisher.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher constructs a publisher from a redis:// URL.
func NewRedisPublisher(url string) (*RedisPublisher, error) {
	if url == "" {
		return nil, errors.New("redis pubsub: REDIS_URL is not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis pubsub: parse url: %w", err)
	}
	return &RedisPublisher{client: redis.NewClient(opt)}, nil
}

var _ port.Publisher = (*RedisPublisher)(nil)

func (p *RedisPublisher) Publish(ctx context.Context, channel, event string, payload any) error {
	env, err := port.NewEnvelope(channel, event, payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, redisPrefix+channel, frame).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// RedisBridge pattern-subscribes to every realtime channel and hands frames to the local
// router, so that a subscriber connected to any node receives events published by any node.
type RedisBridge struct {
	client    *redis.Client
	deliverer port.Deliverer
}

func NewRedisBridge(url string, d port.Deliverer) (*RedisBridge, error) {
	if url == "" {
		return nil, errors.New("redis pubsub: REDIS_URL is not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis pubsub: parse url: %w", err)
	}
	return &RedisBridge{client: redis.NewClient(opt), deliverer: d}, nil
}

var _ port.Bridge = (*RedisBridge)(nil)

func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.PSubscribe(ctx, redisPrefix+"*")
	defer func() {
		_ = sub.Close()
		_ = b.client.Close()
	}()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			channel := strings.TrimPrefix(msg.Channel, redisPrefix)
			n := b.deliverer.Deliver(channel, []byte(msg.Payload))
			logx.WithContext(ctx).Debugw("redis bridge delivered",
				logx.Field("channel", channel), logx.Field("subscribers", n))
		}
	}
}
