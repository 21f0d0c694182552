package port

import (
	"context"
	"encoding/json"
	"errors"
)

// Envelope is the frame carried by every transport and written verbatim to websocket
// subscribers. Data holds the JSON encoded payload.
type Envelope struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

// NewEnvelope encodes payload into an Envelope.
func NewEnvelope(channel, event string, payload any) (Envelope, error) {
	if channel == "" || event == "" {
		return Envelope{}, ErrInvalidAddress
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Channel: channel, Event: event, Data: data}, nil
}

// ErrInvalidAddress is returned when a channel or event name is empty.
var ErrInvalidAddress = errors.New("pubsub: channel and event are required")

// Publisher is the best-effort, fire-and-forget side of the transport.
// A nil error only means the transport accepted the frame; nothing is known about
// subscriber receipt. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload any) error
	Close() error
}

// Deliverer hands an encoded frame to every local subscriber of channel and reports how
// many subscribers accepted it. The websocket router implements it.
type Deliverer interface {
	Deliver(channel string, frame []byte) int
}

// Bridge relays frames published on a shared transport (possibly by other nodes) into the
// local Deliverer. Run blocks until ctx is canceled.
type Bridge interface {
	Run(ctx context.Context) error
}
