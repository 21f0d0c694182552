package adapter

import (
	"context"
	"encoding/json"
	"testing"

	qt "github.com/frankban/quicktest"

	"go-messenger/internal/infrastructure/pubsub/port"
)

type recordingDeliverer struct {
	frames map[string][][]byte
}

func (r *recordingDeliverer) Deliver(channel string, frame []byte) int {
	if r.frames == nil {
		r.frames = make(map[string][][]byte)
	}
	r.frames[channel] = append(r.frames[channel], frame)
	return 1
}

func TestLocalPublisherWritesEnvelopeFrames(t *testing.T) {
	c := qt.New(t)
	d := &recordingDeliverer{}
	p := NewLocalPublisher(d)

	err := p.Publish(context.Background(), "conversation:c1", "message:update", map[string]string{"id": "m1"})
	c.Assert(err, qt.IsNil)
	c.Assert(d.frames["conversation:c1"], qt.HasLen, 1)

	var env port.Envelope
	c.Assert(json.Unmarshal(d.frames["conversation:c1"][0], &env), qt.IsNil)
	c.Assert(env.Channel, qt.Equals, "conversation:c1")
	c.Assert(env.Event, qt.Equals, "message:update")
	c.Assert(string(env.Data), qt.JSONEquals, map[string]string{"id": "m1"})
}

func TestLocalPublisherRejectsEmptyAddress(t *testing.T) {
	c := qt.New(t)
	p := NewLocalPublisher(&recordingDeliverer{})
	err := p.Publish(context.Background(), "", "message:update", nil)
	c.Assert(err, qt.ErrorIs, port.ErrInvalidAddress)
}

func TestMemoryPublisherFailureInjection(t *testing.T) {
	c := qt.New(t)
	m := NewMemoryPublisher()
	m.Fail("user:b@example.com")

	c.Assert(m.Publish(context.Background(), "user:a@example.com", "conversation:new", 1), qt.IsNil)
	c.Assert(m.Publish(context.Background(), "user:b@example.com", "conversation:new", 1), qt.ErrorIs, ErrInjected)
	c.Assert(m.Attempts(), qt.Equals, 2)
	c.Assert(m.Envelopes(), qt.HasLen, 1)
}
