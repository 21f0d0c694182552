package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"go-messenger/internal/infrastructure/pubsub/port"
	"go-messenger/internal/pkg/chat/application/fanout"
)

const (
	instrumentation       = "go-messenger/broadcast"
	defaultPublishTimeout = 2 * time.Second
)

// Report summarizes one Dispatch call.
type Report struct {
	Attempted int
	Failed    int
}

// Broadcaster publishes fan-out deliveries after the durable write they describe has
// committed. Every delivery is attempted on its own: a failing channel is logged and
// skipped, it never aborts the remaining deliveries and never reaches the caller.
type Broadcaster struct {
	pub      port.Publisher
	timeout  time.Duration
	tracer   trace.Tracer
	attempts metric.Int64Counter
	failures metric.Int64Counter
}

// New builds a Broadcaster on top of pub using the global otel providers.
func New(pub port.Publisher) *Broadcaster {
	meter := otel.Meter(instrumentation)
	attempts, err := meter.Int64Counter("realtime.publish.attempts")
	if err != nil {
		logx.Errorf("broadcast: create attempts counter: %v", err)
	}
	failures, err := meter.Int64Counter("realtime.publish.failures")
	if err != nil {
		logx.Errorf("broadcast: create failures counter: %v", err)
	}
	return &Broadcaster{
		pub:      pub,
		timeout:  defaultPublishTimeout,
		tracer:   otel.Tracer(instrumentation),
		attempts: attempts,
		failures: failures,
	}
}

// WithTimeout overrides the per-delivery publish budget.
func (b *Broadcaster) WithTimeout(d time.Duration) *Broadcaster {
	if d > 0 {
		b.timeout = d
	}
	return b
}

// Dispatch publishes every delivery. The request context is detached from cancellation:
// once the write committed, a client hanging up must not drop the notifications.
func (b *Broadcaster) Dispatch(ctx context.Context, deliveries []fanout.Delivery) Report {
	var rep Report
	if len(deliveries) == 0 {
		return rep
	}
	ctx = context.WithoutCancel(ctx)
	ctx, span := b.tracer.Start(ctx, "broadcast.dispatch", trace.WithAttributes(
		attribute.Int("deliveries", len(deliveries)),
	))
	defer span.End()

	for _, d := range deliveries {
		rep.Attempted++
		attrs := metric.WithAttributes(attribute.String("event", d.Event))
		if b.attempts != nil {
			b.attempts.Add(ctx, 1, attrs)
		}
		if err := b.publish(ctx, d); err != nil {
			rep.Failed++
			if b.failures != nil {
				b.failures.Add(ctx, 1, attrs)
			}
			logx.WithContext(ctx).Errorw("realtime publish failed",
				logx.Field("channel", d.Channel),
				logx.Field("event", d.Event),
				logx.Field("error", err.Error()),
			)
		}
	}
	span.SetAttributes(attribute.Int("failed", rep.Failed))
	return rep
}

func (b *Broadcaster) publish(ctx context.Context, d fanout.Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errPanic{value: r}
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.pub.Publish(ctx, d.Channel, d.Event, d.Payload)
}

type errPanic struct{ value any }

func (e errPanic) Error() string { return fmt.Sprintf("broadcast: publisher panicked: %v", e.value) }
