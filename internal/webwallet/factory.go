package webwallet

import (
	"context"

	"moff.io/moff-connect/pkg/endpoint"
	"moff.io/moff-connect/pkg/errors"
	"moff.io/moff-connect/pkg/log"
)

var (
	// ErrNoHostEnvironment the web wallet needs a host to embed it.
	ErrNoHostEnvironment = errors.New("web wallet requires a host environment")
	ErrNoLink            = errors.New("web wallet requires a wallet link")
)

// Options of New.
type Options struct {
	// Target the web wallet url, mapped to the chain node the default provider talks to.
	Target string
	Link   Link
	Host   Host
	// Modal optional; without it no modal bridge is installed.
	Modal *ModalProps
	// Provider overrides the provider built from Target.
	Provider Provider
	// OwnsLink hands Link over to the wallet: Wallet.Close closes it, and so
	// does a failing New.
	OwnsLink bool
}

// New builds a wallet handle backed by the web wallet behind opts.Link.
func New(ctx context.Context, opts Options) (*Wallet, error) {
	if opts.Host == nil {
		return nil, ErrNoHostEnvironment
	}
	if opts.Link == nil {
		return nil, ErrNoLink
	}
	provider := opts.Provider
	if provider == nil {
		p, err := NewRPCProvider(endpoint.MapTargetURLToNodeURL(opts.Target))
		if err != nil {
			closeOwnedLink(opts)
			return nil, err
		}
		provider = p
	}

	w := &Wallet{
		host:     opts.Host.Origin(),
		link:     opts.Link,
		ownsLink: opts.OwnsLink,
		provider: provider,
	}
	sub, err := opts.Link.Subscribe(ctx, pathAccountsChanged, nil, w.handleAccountsChanged)
	if err != nil {
		closeOwnedLink(opts)
		return nil, errors.Wrap(err, "subscribe web wallet accounts")
	}
	w.retain(sub)

	if opts.Modal != nil && opts.Modal.Frame != nil && opts.Modal.Container != nil {
		bridge := NewModalBridge(opts.Modal.Frame, opts.Modal.Container, opts.Modal.Options...)
		d, err := bridge.Install(ctx, opts.Link)
		if err != nil {
			w.Close()
			return nil, err
		}
		w.retain(d)
	}
	log.Infof("web wallet - created for host %s, node %s", w.host, provider.NodeURL())
	return w, nil
}

func closeOwnedLink(opts Options) {
	if !opts.OwnsLink {
		return
	}
	if err := opts.Link.Close(); err != nil {
		log.Warnf("web wallet - close link: %v", err)
	}
}
