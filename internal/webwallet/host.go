package webwallet

import (
	"context"
	"encoding/json"

	"moff.io/moff-connect/internal/walletlink"
	"moff.io/moff-connect/pkg/endpoint"
	"moff.io/moff-connect/pkg/errors"
)

// Host is the host environment the web wallet is embedded in. Its presence
// is an explicit dependency of New rather than an ambient global.
type Host interface {
	// Origin the calling origin, forwarded so the remote side can authorize it.
	Origin() string
}

type staticHost string

func (h staticHost) Origin() string {
	return string(h)
}

// NewStaticHost returns a Host for the origin of rawURL.
func NewStaticHost(rawURL string) (Host, error) {
	origin, err := endpoint.Origin(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "host origin %q", rawURL)
	}
	return staticHost(origin), nil
}

// Frame is the embedded frame hosting the remote wallet.
type Frame interface {
	SetHeight(height int)
}

// Container is the element wrapping the frame whose visibility is toggled.
type Container interface {
	Show()
	Hide()
}

// ModalProps is the frame/container pair a modal bridge drives.
type ModalProps struct {
	Frame     Frame
	Container Container
	Options   []BridgeOption
}

// Subscriber opens push subscriptions on the wallet link.
type Subscriber interface {
	Subscribe(ctx context.Context, path string, input interface{}, onData func(json.RawMessage)) (walletlink.Subscription, error)
}

// Link is the request/response link to the frame-hosted wallet; *walletlink.Client implements it.
type Link interface {
	Subscriber
	Query(ctx context.Context, path string, input, out interface{}) error
	Mutation(ctx context.Context, path string, input, out interface{}) error
	// Done is closed once the link stops working.
	Done() <-chan struct{}
	Close() error
}

var _ Link = (*walletlink.Client)(nil)
