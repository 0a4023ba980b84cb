package connector

import (
	"context"
	"sync"

	"moff.io/moff-connect/pkg/errors"
	"moff.io/moff-connect/pkg/log"
)

// InjectedOptions injected connector options.
type InjectedOptions struct {
	// ID the wallet id looked up in the registry.
	ID string `yaml:"id" json:"id"`
}

// Injected is a Connector backed by a Registry lookup. The wallet is
// re-resolved at the top of every blocking operation, since wallets may
// appear or disappear between calls.
type Injected struct {
	options  InjectedOptions
	registry Registry

	// mu guards wallet and resolved; overlapping callers are not serialized otherwise
	mu       sync.RWMutex
	wallet   Wallet
	resolved bool
}

var _ Connector = (*Injected)(nil)

func NewInjected(options InjectedOptions, registry Registry) *Injected {
	return &Injected{
		options:  options,
		registry: registry,
	}
}

func (c *Injected) ID() string {
	return c.options.ID
}

func (c *Injected) Name() (string, error) {
	w, err := c.Wallet()
	if err != nil {
		return "", err
	}
	return w.Name(), nil
}

func (c *Injected) Icon() (string, error) {
	w, err := c.Wallet()
	if err != nil {
		return "", err
	}
	return w.Icon(), nil
}

// Wallet returns the cached wallet without resolving.
func (c *Injected) Wallet() (Wallet, error) {
	w := c.cached()
	if w == nil {
		return nil, errors.Wrapf(ErrConnectorNotConnected, "connector %s", c.options.ID)
	}
	return w, nil
}

func (c *Injected) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch {
	case !c.resolved:
		return StateUnresolved
	case c.wallet == nil:
		return StateUnavailable
	case c.wallet.IsConnected():
		return StateConnected
	default:
		return StateAvailableUnauthorized
	}
}

func (c *Injected) Available(ctx context.Context) bool {
	if err := c.ensureWallet(ctx); err != nil {
		log.Warnf("connector %s - resolve wallet: %v", c.options.ID, err)
	}
	return c.cached() != nil
}

func (c *Injected) Ready(ctx context.Context) (bool, error) {
	if err := c.ensureWallet(ctx); err != nil {
		return false, err
	}
	w := c.cached()
	if w == nil {
		return false, nil
	}
	return w.IsPreauthorized(ctx)
}

func (c *Injected) Connect(ctx context.Context) (Account, error) {
	if err := c.ensureWallet(ctx); err != nil {
		return nil, err
	}
	w := c.cached()
	if w == nil {
		return nil, errors.Wrapf(ErrConnectorNotFound, "connector %s", c.options.ID)
	}

	if err := w.Enable(ctx, EnableOptions{StarknetVersion: StarknetVersion}); err != nil {
		log.Debugf("connector %s - enable rejected: %v", c.options.ID, err)
		return nil, errors.Wrapf(ErrUserRejectedRequest, "connector %s", c.options.ID)
	}
	if !w.IsConnected() {
		return nil, errors.Wrapf(ErrUserRejectedRequest, "connector %s", c.options.ID)
	}
	return w.Account(), nil
}

// Disconnect only validates preconditions; disconnecting is up to the wallet itself.
func (c *Injected) Disconnect(ctx context.Context) error {
	if err := c.ensureWallet(ctx); err != nil {
		return err
	}
	w := c.cached()
	if w == nil {
		return errors.Wrapf(ErrConnectorNotFound, "connector %s", c.options.ID)
	}
	if !w.IsConnected() {
		return errors.Wrapf(ErrUserNotConnected, "connector %s", c.options.ID)
	}
	return nil
}

func (c *Injected) Account(ctx context.Context) (Account, error) {
	if err := c.ensureWallet(ctx); err != nil {
		return nil, err
	}
	w, err := c.Wallet()
	if err != nil {
		return nil, err
	}
	return w.Account(), nil
}

func (c *Injected) InitEventListener(ctx context.Context, handler AccountsChangedHandler) error {
	if err := c.ensureWallet(ctx); err != nil {
		return err
	}
	w, err := c.Wallet()
	if err != nil {
		return err
	}
	w.On(AccountsChanged, handler)
	return nil
}

func (c *Injected) RemoveEventListener(ctx context.Context, handler AccountsChangedHandler) error {
	if err := c.ensureWallet(ctx); err != nil {
		return err
	}
	w, err := c.Wallet()
	if err != nil {
		return err
	}
	w.Off(AccountsChanged, handler)
	return nil
}

func (c *Injected) cached() Wallet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wallet
}

// ensureWallet replaces the cached wallet with the first registry match. A
// miss keeps the previously resolved wallet: transient registry misses must
// not wipe a known-good handle.
func (c *Injected) ensureWallet(ctx context.Context) error {
	installed, err := c.registry.GetAvailableWallets(ctx)
	if err != nil {
		return errors.Wrapf(err, "connector %s - get available wallets", c.options.ID)
	}
	var found Wallet
	for _, w := range installed {
		if w != nil && w.ID() == c.options.ID {
			found = w
			break
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolved = true
	if found != nil {
		c.wallet = found
	}
	return nil
}
