package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	kafka "github.com/segmentio/kafka-go"
	"github.com/zeromicro/go-zero/core/logx"

	"go-messenger/internal/infrastructure/pubsub/port"
)

const defaultKafkaTopic = "chat.realtime"

// KafkaPublisher writes envelopes to a single topic keyed by channel name, so frames for
// one channel land on one partition in send order.
type KafkaPublisher struct {
	w *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka pubsub: no brokers configured")
	}
	if topic == "" {
		topic = defaultKafkaTopic
	}
	// Writers are safe for concurrent use
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireOne,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}
	return &KafkaPublisher{w: w}, nil
}

var _ port.Publisher = (*KafkaPublisher)(nil)

func (p *KafkaPublisher) Publish(ctx context.Context, channel, event string, payload any) error {
	env, err := port.NewEnvelope(channel, event, payload)
	if err != nil {
		return err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{Key: []byte(channel), Value: b})
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// KafkaBridge tails the realtime topic and delivers frames to local subscribers.
// Every node joins its own consumer group so each node sees every frame; it starts at
// the newest offset because missed frames are not replayed to clients anyway.
type KafkaBridge struct {
	r         *kafka.Reader
	deliverer port.Deliverer
}

func NewKafkaBridge(brokers []string, topic string, d port.Deliverer) (*KafkaBridge, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka pubsub: no brokers configured")
	}
	if topic == "" {
		topic = defaultKafkaTopic
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     "realtime-bridge-" + uuid.NewString(),
		StartOffset: kafka.LastOffset,
		MaxWait:     250 * time.Millisecond,
	})
	return &KafkaBridge{r: r, deliverer: d}, nil
}

var _ port.Bridge = (*KafkaBridge)(nil)

func (b *KafkaBridge) Run(ctx context.Context) error {
	defer b.r.Close()
	for {
		m, err := b.r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		var env port.Envelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			logx.WithContext(ctx).Errorw("kafka bridge: malformed frame", logx.Field("error", err.Error()))
			continue
		}
		b.deliverer.Deliver(env.Channel, m.Value)
	}
}
