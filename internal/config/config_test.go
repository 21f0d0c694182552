package config

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func env(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	c := qt.New(t)
	cfg, err := FromEnv(env(map[string]string{
		"DB_URL":         "postgres://localhost/chat",
		"CHANNEL_SECRET": "s3cret",
	}))
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.HTTPAddr, qt.Equals, ":8080")
	c.Assert(cfg.DBDriver, qt.Equals, DBDriverPgx)
	c.Assert(cfg.PubSubDriver, qt.Equals, PubSubLocal)
	c.Assert(cfg.PublishMode, qt.Equals, PublishInline)
	c.Assert(cfg.KafkaTopic, qt.Equals, "chat.realtime")
	c.Assert(cfg.SessionTTL, qt.Equals, 168*time.Hour)
	c.Assert(cfg.RequestTimeout, qt.Equals, 3*time.Second)
	c.Assert(cfg.PublishTimeout, qt.Equals, 2*time.Second)
	c.Assert(cfg.WorkerConcurrency, qt.Equals, 10)
	c.Assert(cfg.Log.Encoding, qt.Equals, "json")
	c.Assert(cfg.Log.Level, qt.Equals, "info")
}

func TestFromEnvOverrides(t *testing.T) {
	c := qt.New(t)
	cfg, err := FromEnv(env(map[string]string{
		"DB_DRIVER":       "SQLite",
		"PUBSUB_DRIVER":   "kafka",
		"KAFKA_BROKERS":   " k1:9092, ,k2:9092 ",
		"PUBLISH_MODE":    "queue",
		"REDIS_URL":       "redis://localhost:6379/0",
		"CHANNEL_SECRET":  "s3cret",
		"SESSION_TTL":     "1h",
		"REQUEST_TIMEOUT": "500ms",
	}))
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.DBDriver, qt.Equals, DBDriverSQLite)
	c.Assert(cfg.KafkaBrokers, qt.DeepEquals, []string{"k1:9092", "k2:9092"})
	c.Assert(cfg.PublishMode, qt.Equals, PublishQueue)
	c.Assert(cfg.SessionTTL, qt.Equals, time.Hour)
	c.Assert(cfg.RequestTimeout, qt.Equals, 500*time.Millisecond)
}

func TestFromEnvRejectsInvalid(t *testing.T) {
	c := qt.New(t)
	base := func(extra map[string]string) map[string]string {
		m := map[string]string{"DB_DRIVER": "sqlite", "CHANNEL_SECRET": "s3cret"}
		for k, v := range extra {
			m[k] = v
		}
		return m
	}
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret", map[string]string{"DB_DRIVER": "sqlite"}, ".*CHANNEL_SECRET is required"},
		{"missing db url", map[string]string{"CHANNEL_SECRET": "x"}, ".*DB_URL is required.*"},
		{"unknown driver", base(map[string]string{"DB_DRIVER": "mysql"}), `.*unknown DB_DRIVER "mysql"`},
		{"redis without url", base(map[string]string{"PUBSUB_DRIVER": "redis"}), ".*REDIS_URL is required.*"},
		{"kafka without brokers", base(map[string]string{"PUBSUB_DRIVER": "kafka"}), ".*KAFKA_BROKERS is required.*"},
		{"queue with local transport", base(map[string]string{"PUBLISH_MODE": "queue", "REDIS_URL": "redis://r"}), ".*needs a shared PUBSUB_DRIVER.*"},
		{"bad ttl", base(map[string]string{"SESSION_TTL": "forever"}), ".*SESSION_TTL must be a positive duration.*"},
		{"bad concurrency", base(map[string]string{"WORKER_CONCURRENCY": "0"}), ".*WORKER_CONCURRENCY.*"},
	}
	for _, tc := range cases {
		c.Run(tc.name, func(c *qt.C) {
			_, err := FromEnv(env(tc.env))
			c.Assert(err, qt.ErrorMatches, tc.want)
		})
	}
}
