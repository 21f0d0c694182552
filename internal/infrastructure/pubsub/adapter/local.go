package adapter

import (
	"context"
	"encoding/json"

	"go-messenger/internal/infrastructure/pubsub/port"
)

// LocalPublisher delivers frames straight to subscribers connected to this process.
// It fits single node deployments; multi node setups use RedisPublisher or KafkaPublisher
// together with the matching bridge.
type LocalPublisher struct {
	deliverer port.Deliverer
}

func NewLocalPublisher(d port.Deliverer) *LocalPublisher {
	return &LocalPublisher{deliverer: d}
}

var _ port.Publisher = (*LocalPublisher)(nil)

func (p *LocalPublisher) Publish(_ context.Context, channel, event string, payload any) error {
	env, err := port.NewEnvelope(channel, event, payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(env)
	if err != nil {
		return err
	}
	p.deliverer.Deliver(channel, frame)
	return nil
}

func (p *LocalPublisher) Close() error { return nil }
