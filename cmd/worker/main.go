package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/zeromicro/go-zero/core/logx"

	"go-messenger/internal/app"
	"go-messenger/internal/config"
	qadapter "go-messenger/internal/infrastructure/queue/adapter"
	"go-messenger/internal/pkg/chat/application/task"
)

// The worker drains queued realtime frames into the shared transport.
func main() {
	cfg, err := config.Load()
	logx.Must(err)
	logx.MustSetup(cfg.Log)
	defer logx.Close()

	if cfg.RedisURL == "" {
		logx.Must(errors.New("worker: REDIS_URL is required"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	transport, _, err := app.OpenTransport(cfg, nil)
	logx.Must(err)
	defer transport.Close()

	srv, err := qadapter.NewAsynqServer(cfg.RedisURL, qadapter.ServerConfig{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      cfg.WorkerQueues,
	})
	logx.Must(err)
	task.RegisterPublishEventTask(srv, transport)

	logx.Infow("worker started",
		logx.Field("pubsub_driver", cfg.PubSubDriver),
		logx.Field("concurrency", cfg.WorkerConcurrency))
	if err := srv.Run(ctx); err != nil {
		logx.Errorw("worker stopped", logx.Field("error", err.Error()))
	}
}
