// Package app assembles stores and transports from config for the binaries.
package app

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"

	"go-messenger/internal/config"
	cacheadapter "go-messenger/internal/infrastructure/cache/adapter"
	cache "go-messenger/internal/infrastructure/cache/port"
	"go-messenger/internal/infrastructure/database"
	pubsubadapter "go-messenger/internal/infrastructure/pubsub/adapter"
	pubsub "go-messenger/internal/infrastructure/pubsub/port"
	chatadapter "go-messenger/internal/pkg/chat/persistence/repository/adapter"
	chatrepo "go-messenger/internal/pkg/chat/persistence/repository/port"
	useradapter "go-messenger/internal/repository/adapter"
	userrepo "go-messenger/internal/repository/port"
)

// Stores is the durable side of the service.
type Stores struct {
	Chat  chatrepo.ChatRepository
	Users userrepo.UserRepository
	Close func()
}

// OpenStores connects to the configured database and prepares its schema.
func OpenStores(ctx context.Context, cfg config.Config) (*Stores, error) {
	switch cfg.DBDriver {
	case config.DBDriverPgx:
		pool, err := database.Open(ctx, cfg.DBURL)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Chat:  chatadapter.NewPgChatRepository(pool),
			Users: useradapter.NewPgUserRepository(pool),
			Close: pool.Close,
		}, nil
	case config.DBDriverGormPostgres, config.DBDriverSQLite:
		db, err := database.OpenGorm(cfg.DBDriver, cfg.DBURL)
		if err != nil {
			return nil, err
		}
		if err := chatadapter.AutoMigrate(db.WithContext(ctx)); err != nil {
			return nil, fmt.Errorf("gorm: migrate: %w", err)
		}
		repo := chatadapter.NewGormChatRepository(db)
		return &Stores{
			Chat:  repo,
			Users: repo,
			Close: func() {
				if sqlDB, err := db.DB(); err == nil {
					_ = sqlDB.Close()
				}
			},
		}, nil
	default:
		return nil, fmt.Errorf("app: unknown db driver %q", cfg.DBDriver)
	}
}

// OpenSessionCache uses Redis when configured and falls back to process memory.
func OpenSessionCache(ctx context.Context, cfg config.Config) (cache.Cache, error) {
	if cfg.RedisURL == "" {
		logx.Info("REDIS_URL not set, sessions are kept in process memory")
		return cacheadapter.NewMemoryCache(), nil
	}
	c, err := cacheadapter.NewRedisCache(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// OpenTransport returns the publisher for the configured transport and, when d is
// non-nil and the transport is shared, the bridge feeding frames back into d.
func OpenTransport(cfg config.Config, d pubsub.Deliverer) (pubsub.Publisher, pubsub.Bridge, error) {
	switch cfg.PubSubDriver {
	case config.PubSubLocal:
		if d == nil {
			return nil, nil, fmt.Errorf("app: local transport needs a websocket router")
		}
		return pubsubadapter.NewLocalPublisher(d), nil, nil
	case config.PubSubRedis:
		pub, err := pubsubadapter.NewRedisPublisher(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		if d == nil {
			return pub, nil, nil
		}
		bridge, err := pubsubadapter.NewRedisBridge(cfg.RedisURL, d)
		if err != nil {
			_ = pub.Close()
			return nil, nil, err
		}
		return pub, bridge, nil
	case config.PubSubKafka:
		pub, err := pubsubadapter.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		if d == nil {
			return pub, nil, nil
		}
		bridge, err := pubsubadapter.NewKafkaBridge(cfg.KafkaBrokers, cfg.KafkaTopic, d)
		if err != nil {
			_ = pub.Close()
			return nil, nil, err
		}
		return pub, bridge, nil
	default:
		return nil, nil, fmt.Errorf("app: unknown pubsub driver %q", cfg.PubSubDriver)
	}
}
