package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "go-messenger/internal/infrastructure/pubsub/port"
	qport "go-messenger/internal/infrastructure/queue/port"

	"github.com/zeromicro/go-zero/core/logx"
)

// PublishEventTaskType is the queue task that performs one realtime publish.
const PublishEventTaskType = "realtime:publish"

// RealtimeQueue is the queue publish tasks are routed to.
const RealtimeQueue = "realtime"

// QueuedPublisher hands each publish to the job queue instead of talking to the
// transport inline. Tasks run once: a lost notification is never retried.
type QueuedPublisher struct {
	client qport.Client
}

func NewQueuedPublisher(client qport.Client) *QueuedPublisher {
	return &QueuedPublisher{client: client}
}

var _ pubsub.Publisher = (*QueuedPublisher)(nil)

func (p *QueuedPublisher) Publish(ctx context.Context, channel, event string, payload any) error {
	env, err := pubsub.NewEnvelope(channel, event, payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = p.client.Enqueue(ctx, qport.Task{Type: PublishEventTaskType, Payload: body}, qport.EnqueueOption{
		Queue:     RealtimeQueue,
		NoRetry:   true,
		Timeout:   10 * time.Second,
		Retention: time.Minute,
	})
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", PublishEventTaskType, err)
	}
	return nil
}

func (p *QueuedPublisher) Close() error {
	return p.client.Close()
}

// RegisterPublishEventTask binds the worker side: each task is forwarded to pub,
// which is the real transport (Redis or Kafka) in multi node deployments.
func RegisterPublishEventTask(srv qport.Server, pub pubsub.Publisher) {
	srv.Register(PublishEventTaskType, func(ctx context.Context, t qport.Task) error {
		var env pubsub.Envelope
		if err := json.Unmarshal(t.Payload, &env); err != nil {
			logx.WithContext(ctx).Errorw("malformed publish task", logx.Field("error", err.Error()))
			return err
		}
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return pub.Publish(ctx, env.Channel, env.Event, env.Data)
	})
}
