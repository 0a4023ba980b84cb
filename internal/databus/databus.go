package databus

import (
	"context"

	"moff.io/moff-connect/pkg/log"
)

type Event interface {
	Serialize() []byte
	Topic() string
}

// Publisher delivers events to the data bus.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// LocalBus only logs events, used when no broker is configured.
type LocalBus struct{}

func (LocalBus) Publish(_ context.Context, e Event) error {
	log.Infof("topic: %s message: %s", e.Topic(), string(e.Serialize()))
	return nil
}
