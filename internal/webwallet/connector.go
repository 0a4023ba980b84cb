package webwallet

import (
	"context"
	"sync"

	"moff.io/moff-connect/internal/connector"
	"moff.io/moff-connect/pkg/log"
)

// Factory builds the web wallet handle on first use.
type Factory func(ctx context.Context) (*Wallet, error)

// Connector is the remote-frame-backed connector. The handle is built lazily
// by the factory; a failed build is retried on the next operation, and a
// handle whose link has stopped is closed and rebuilt.
type Connector struct {
	*connector.Injected

	factory Factory
	mu      sync.Mutex
	wallet  *Wallet
}

var _ connector.Connector = (*Connector)(nil)

func NewConnector(factory Factory) *Connector {
	c := &Connector{factory: factory}
	c.Injected = connector.NewInjected(connector.InjectedOptions{ID: WalletID}, connector.RegistryFunc(c.wallets))
	return c
}

func (c *Connector) wallets(ctx context.Context) ([]connector.Wallet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wallet != nil && c.wallet.Broken() {
		log.Warnf("connector %s - wallet link stopped, rebuilding", WalletID)
		c.wallet.Close()
		c.wallet = nil
	}
	if c.wallet == nil {
		w, err := c.factory(ctx)
		if err != nil {
			return nil, err
		}
		c.wallet = w
	}
	return []connector.Wallet{c.wallet}, nil
}

// Close closes the built handle, if any.
func (c *Connector) Close() {
	c.mu.Lock()
	w := c.wallet
	c.mu.Unlock()
	if w != nil {
		w.Close()
	}
}
