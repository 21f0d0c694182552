package adapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/zeromicro/go-zero/core/logx"

	"go-messenger/internal/infrastructure/queue/port"
)

// AsynqClient implements port.Client on asynq with Redis as the backing store.
type AsynqClient struct {
	client *asynq.Client
}

// NewAsynqClient builds a client for the redis:// URL.
func NewAsynqClient(redisURL string) (*AsynqClient, error) {
	opt, err := parseRedis(redisURL)
	if err != nil {
		return nil, err
	}
	return &AsynqClient{client: asynq.NewClient(opt)}, nil
}

var _ port.Client = (*AsynqClient)(nil)

func parseRedis(redisURL string) (asynq.RedisConnOpt, error) {
	if redisURL == "" {
		return nil, errors.New("asynq: REDIS_URL is not set")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse REDIS_URL: %w", err)
	}
	return opt, nil
}

func asynqOptions(op port.EnqueueOption) []asynq.Option {
	var out []asynq.Option
	if op.Queue != "" {
		out = append(out, asynq.Queue(op.Queue))
	}
	if op.NoRetry {
		out = append(out, asynq.MaxRetry(0))
	}
	if op.Timeout > 0 {
		out = append(out, asynq.Timeout(op.Timeout))
	}
	if op.Retention > 0 {
		out = append(out, asynq.Retention(op.Retention))
	}
	return out
}

func (a *AsynqClient) Enqueue(ctx context.Context, t port.Task, opts ...port.EnqueueOption) (string, error) {
	if t.Type == "" {
		return "", errors.New("asynq: task type is required")
	}
	var op port.EnqueueOption
	if len(opts) > 0 {
		op = opts[0]
	}
	info, err := a.client.EnqueueContext(ctx, asynq.NewTask(t.Type, t.Payload), asynqOptions(op)...)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func (a *AsynqClient) Close() error {
	return a.client.Close()
}

// AsynqServer implements port.Server on asynq.
type AsynqServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// ServerConfig sizes the worker pool. Queues uses the "realtime=6,default=1" form.
type ServerConfig struct {
	Concurrency int
	Queues      string
}

func NewAsynqServer(redisURL string, cfg ServerConfig) (*AsynqServer, error) {
	opt, err := parseRedis(redisURL)
	if err != nil {
		return nil, err
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	queues := parseQueueWeights(cfg.Queues)
	if len(queues) == 0 {
		queues = map[string]int{"realtime": 1, "default": 1}
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      queues,
		Logger:      asynqLogger{},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logx.WithContext(ctx).Errorw("task failed",
				logx.Field("type", task.Type()),
				logx.Field("error", err.Error()))
		}),
	})
	return &AsynqServer{server: srv, mux: asynq.NewServeMux()}, nil
}

var _ port.Server = (*AsynqServer)(nil)

func (s *AsynqServer) Register(taskType string, h port.Handler) {
	s.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		return h(ctx, port.Task{Type: t.Type(), Payload: t.Payload()})
	})
}

// Run starts the workers and shuts them down gracefully once ctx is canceled.
func (s *AsynqServer) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	<-ctx.Done()
	s.server.Shutdown()
	return nil
}

func (s *AsynqServer) Stop(context.Context) error {
	s.server.Shutdown()
	return nil
}

// parseQueueWeights parses "critical=6,default=3,low=1" into a map.
func parseQueueWeights(s string) map[string]int {
	res := make(map[string]int)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		name := strings.TrimSpace(kv[0])
		if name == "" {
			continue
		}
		w := 1
		if len(kv) == 2 {
			if i, err := strconv.Atoi(strings.TrimSpace(kv[1])); err == nil && i > 0 {
				w = i
			}
		}
		res[name] = w
	}
	return res
}

// asynqLogger routes asynq's internal logging through logx.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...any) { logx.Debug(args...) }
func (asynqLogger) Info(args ...any)  { logx.Info(args...) }
func (asynqLogger) Warn(args ...any)  { logx.Info(args...) }
func (asynqLogger) Error(args ...any) { logx.Error(args...) }
func (asynqLogger) Fatal(args ...any) { logx.Must(errors.New(fmt.Sprint(args...))) }
