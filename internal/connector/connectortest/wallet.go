// Package connectortest provides in-memory wallets and registries for connector tests.
package connectortest

import (
	"context"
	"sync"

	"moff.io/moff-connect/internal/connector"
)

type Account struct {
	Addr string
}

func (a *Account) Address() string {
	return a.Addr
}

// Wallet is a scriptable connector.Wallet.
type Wallet struct {
	WalletID   string
	WalletName string
	WalletIcon string

	mu              sync.Mutex
	connected       bool
	account         connector.Account
	preauthorized   bool
	preauthErr      error
	enableErr       error
	connectOnEnable bool
	enableCalls     []connector.EnableOptions
	listeners       connector.Listeners
}

var _ connector.Wallet = (*Wallet)(nil)

// NewWallet returns a wallet that connects with account addr when enabled.
func NewWallet(id, addr string) *Wallet {
	w := &Wallet{
		WalletID:        id,
		WalletName:      id + " wallet",
		WalletIcon:      "https://icons.example/" + id + ".svg",
		connectOnEnable: true,
	}
	if addr != "" {
		w.account = &Account{Addr: addr}
	}
	return w
}

func (w *Wallet) ID() string   { return w.WalletID }
func (w *Wallet) Name() string { return w.WalletName }
func (w *Wallet) Icon() string { return w.WalletIcon }

func (w *Wallet) IsConnected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

func (w *Wallet) Account() connector.Account {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.account == nil {
		return nil
	}
	return w.account
}

func (w *Wallet) IsPreauthorized(ctx context.Context) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.preauthorized, w.preauthErr
}

func (w *Wallet) Enable(ctx context.Context, options connector.EnableOptions) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.enableCalls = append(w.enableCalls, options)
	if w.enableErr != nil {
		return w.enableErr
	}
	if w.connectOnEnable {
		w.connected = true
	}
	return nil
}

func (w *Wallet) On(event connector.Event, handler connector.AccountsChangedHandler) {
	if event == connector.AccountsChanged {
		w.listeners.Add(handler)
	}
}

func (w *Wallet) Off(event connector.Event, handler connector.AccountsChangedHandler) {
	if event == connector.AccountsChanged {
		w.listeners.Remove(handler)
	}
}

// ChangeAccounts switches the current account and notifies listeners.
func (w *Wallet) ChangeAccounts(accounts ...string) {
	w.mu.Lock()
	if len(accounts) > 0 {
		w.account = &Account{Addr: accounts[0]}
	} else {
		w.account = nil
	}
	w.mu.Unlock()
	w.listeners.Emit(accounts)
}

func (w *Wallet) SetConnected(connected bool) *Wallet {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = connected
	return w
}

func (w *Wallet) SetPreauthorized(preauthorized bool, err error) *Wallet {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.preauthorized = preauthorized
	w.preauthErr = err
	return w
}

// RejectEnable makes Enable fail with err.
func (w *Wallet) RejectEnable(err error) *Wallet {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.enableErr = err
	return w
}

// SilentEnable makes Enable succeed without connecting, the way some wallets swallow a rejection.
func (w *Wallet) SilentEnable() *Wallet {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connectOnEnable = false
	return w
}

func (w *Wallet) ClearAccount() *Wallet {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.account = nil
	return w
}

func (w *Wallet) EnableCalls() []connector.EnableOptions {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]connector.EnableOptions(nil), w.enableCalls...)
}

func (w *Wallet) ListenerCount() int {
	return w.listeners.Len()
}

// Registry is a mutable connector.Registry.
type Registry struct {
	mu      sync.Mutex
	wallets []connector.Wallet
	err     error
	calls   int
}

func NewRegistry(wallets ...connector.Wallet) *Registry {
	return &Registry{wallets: wallets}
}

func (r *Registry) Set(wallets ...connector.Wallet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wallets = wallets
}

func (r *Registry) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Registry) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *Registry) GetAvailableWallets(ctx context.Context) ([]connector.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return append([]connector.Wallet(nil), r.wallets...), nil
}
