// Package webwallet builds wallet handles backed by a frame-hosted web wallet
// reached over a wallet link, plus the bridge driving its modal.
package webwallet

import (
	"context"
	"encoding/json"
	"sync"

	"moff.io/moff-connect/internal/connector"
	"moff.io/moff-connect/pkg/errors"
	"moff.io/moff-connect/pkg/log"
)

const (
	WalletID      = "argentWebWallet"
	WalletName    = "Argent Web Wallet"
	WalletIcon    = "https://www.argent.xyz/favicon.ico"
	WalletVersion = "1.0.0"

	pathEnable          = "enable"
	pathIsPreauthorized = "isPreauthorized"
	pathAccountsChanged = "onAccountsChanged"
)

// Account is an account exposed by the web wallet.
type Account struct {
	address  string
	provider Provider
}

func (a *Account) Address() string {
	return a.address
}

// Provider reads chain state for this account.
func (a *Account) Provider() Provider {
	return a.provider
}

type enableInput struct {
	StarknetVersion string `json:"starknetVersion"`
	Host            string `json:"host"`
}

// Wallet is a connector.Wallet whose operations are forwarded to the remote wallet.
type Wallet struct {
	host     string
	link     Link
	ownsLink bool
	provider Provider

	mu        sync.RWMutex
	connected bool
	account   *Account

	listeners connector.Listeners

	disposeMu sync.Mutex
	disposers []Disposer
}

var _ connector.Wallet = (*Wallet)(nil)

func (w *Wallet) ID() string      { return WalletID }
func (w *Wallet) Name() string    { return WalletName }
func (w *Wallet) Icon() string    { return WalletIcon }
func (w *Wallet) Version() string { return WalletVersion }

// Host is the origin the wallet was created from.
func (w *Wallet) Host() string {
	return w.host
}

func (w *Wallet) Provider() Provider {
	return w.provider
}

func (w *Wallet) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *Wallet) Account() connector.Account {
	w.mu.RLock()
	defer w.mu.RUnlock()
	// 不能直接返回w.account，nil指针会变成非nil接口
	if w.account == nil {
		return nil
	}
	return w.account
}

func (w *Wallet) IsPreauthorized(ctx context.Context) (bool, error) {
	var ok bool
	if err := w.link.Query(ctx, pathIsPreauthorized, nil, &ok); err != nil {
		return false, errors.Wrap(err, "web wallet isPreauthorized")
	}
	return ok, nil
}

// Enable asks the remote wallet to authorize this host. The wallet is
// connected only when the remote side hands back at least one account.
func (w *Wallet) Enable(ctx context.Context, options connector.EnableOptions) error {
	var accounts []string
	input := enableInput{StarknetVersion: options.StarknetVersion, Host: w.host}
	if err := w.link.Mutation(ctx, pathEnable, input, &accounts); err != nil {
		return errors.Wrap(err, "web wallet enable")
	}
	if len(accounts) == 0 {
		log.Warnf("web wallet - enable for %s returned no account", w.host)
		return nil
	}
	w.mu.Lock()
	w.connected = true
	w.account = &Account{address: accounts[0], provider: w.provider}
	w.mu.Unlock()
	return nil
}

func (w *Wallet) On(event connector.Event, handler connector.AccountsChangedHandler) {
	if event != connector.AccountsChanged {
		log.Warnf("web wallet - unsupported event %q", event)
		return
	}
	w.listeners.Add(handler)
}

func (w *Wallet) Off(event connector.Event, handler connector.AccountsChangedHandler) {
	if event != connector.AccountsChanged {
		return
	}
	w.listeners.Remove(handler)
}

// Close disposes every subscription the wallet holds on the link, and
// closes the link when the wallet owns it.
func (w *Wallet) Close() {
	w.disposeMu.Lock()
	disposers := w.disposers
	w.disposers = nil
	w.disposeMu.Unlock()
	for _, d := range disposers {
		d.Unsubscribe()
	}
	if w.ownsLink {
		if err := w.link.Close(); err != nil {
			log.Warnf("web wallet - close link: %v", err)
		}
	}
}

// Broken reports whether the link under the wallet has stopped.
func (w *Wallet) Broken() bool {
	select {
	case <-w.link.Done():
		return true
	default:
		return false
	}
}

func (w *Wallet) retain(d Disposer) {
	w.disposeMu.Lock()
	defer w.disposeMu.Unlock()
	w.disposers = append(w.disposers, d)
}

func (w *Wallet) handleAccountsChanged(raw json.RawMessage) {
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		log.Warnf("web wallet - drop accounts event %s: %v", string(raw), err)
		return
	}
	w.mu.Lock()
	if len(accounts) == 0 {
		w.account = nil
	} else {
		w.account = &Account{address: accounts[0], provider: w.provider}
	}
	w.mu.Unlock()
	w.listeners.Emit(accounts)
}
