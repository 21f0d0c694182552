package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/zeromicro/go-zero/core/logx"
)

const (
	DBDriverPgx          = "pgx"
	DBDriverGormPostgres = "gorm-postgres"
	DBDriverSQLite       = "sqlite"

	PubSubLocal = "local"
	PubSubRedis = "redis"
	PubSubKafka = "kafka"

	PublishInline = "inline"
	PublishQueue  = "queue"
)

// Config holds process settings for cmd/api and cmd/worker.
type Config struct {
	HTTPAddr       string
	DBDriver       string
	DBURL          string
	RedisURL       string
	PubSubDriver   string
	KafkaBrokers   []string
	KafkaTopic     string
	PublishMode    string
	ChannelKey     string
	ChannelSecret  string
	SessionTTL     time.Duration
	RequestTimeout time.Duration
	PublishTimeout time.Duration

	WorkerConcurrency int
	WorkerQueues      string

	Log logx.LogConf
}

// Load reads .env when present, then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function and validates it.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		HTTPAddr:      get("HTTP_ADDR", ":8080"),
		DBDriver:      strings.ToLower(get("DB_DRIVER", DBDriverPgx)),
		DBURL:         get("DB_URL", ""),
		RedisURL:      get("REDIS_URL", ""),
		PubSubDriver:  strings.ToLower(get("PUBSUB_DRIVER", PubSubLocal)),
		KafkaBrokers:  splitCSV(get("KAFKA_BROKERS", "")),
		KafkaTopic:    get("KAFKA_TOPIC", "chat.realtime"),
		PublishMode:   strings.ToLower(get("PUBLISH_MODE", PublishInline)),
		ChannelKey:    get("CHANNEL_KEY", "app"),
		ChannelSecret: get("CHANNEL_SECRET", ""),
		WorkerQueues:  get("WORKER_QUEUES", ""),
		Log: logx.LogConf{
			ServiceName: get("SERVICE_NAME", "go-messenger"),
			Mode:        get("LOG_MODE", "console"),
			Encoding:    get("LOG_ENCODING", "json"),
			Level:       get("LOG_LEVEL", "info"),
			Path:        get("LOG_PATH", "logs"),
		},
	}

	var err error
	if cfg.SessionTTL, err = duration(get("SESSION_TTL", "168h"), "SESSION_TTL"); err != nil {
		return Config{}, err
	}
	if cfg.RequestTimeout, err = duration(get("REQUEST_TIMEOUT", "3s"), "REQUEST_TIMEOUT"); err != nil {
		return Config{}, err
	}
	if cfg.PublishTimeout, err = duration(get("PUBLISH_TIMEOUT", "2s"), "PUBLISH_TIMEOUT"); err != nil {
		return Config{}, err
	}
	if _, err = fmt.Sscanf(get("WORKER_CONCURRENCY", "10"), "%d", &cfg.WorkerConcurrency); err != nil || cfg.WorkerConcurrency <= 0 {
		return Config{}, fmt.Errorf("config: WORKER_CONCURRENCY must be a positive integer")
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DBDriver {
	case DBDriverPgx, DBDriverGormPostgres:
		if c.DBURL == "" {
			return fmt.Errorf("config: DB_URL is required for DB_DRIVER=%s", c.DBDriver)
		}
	case DBDriverSQLite:
	default:
		return fmt.Errorf("config: unknown DB_DRIVER %q", c.DBDriver)
	}

	switch c.PubSubDriver {
	case PubSubLocal:
	case PubSubRedis:
		if c.RedisURL == "" {
			return errors.New("config: REDIS_URL is required for PUBSUB_DRIVER=redis")
		}
	case PubSubKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("config: KAFKA_BROKERS is required for PUBSUB_DRIVER=kafka")
		}
	default:
		return fmt.Errorf("config: unknown PUBSUB_DRIVER %q", c.PubSubDriver)
	}

	switch c.PublishMode {
	case PublishInline:
	case PublishQueue:
		if c.RedisURL == "" {
			return errors.New("config: REDIS_URL is required for PUBLISH_MODE=queue")
		}
		if c.PubSubDriver == PubSubLocal {
			return errors.New("config: PUBLISH_MODE=queue needs a shared PUBSUB_DRIVER (redis or kafka)")
		}
	default:
		return fmt.Errorf("config: unknown PUBLISH_MODE %q", c.PublishMode)
	}

	if c.ChannelSecret == "" {
		return errors.New("config: CHANNEL_SECRET is required")
	}
	return nil
}

func duration(raw, key string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive duration, got %q", key, raw)
	}
	return d, nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
