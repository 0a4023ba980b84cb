// Package registry keeps the wallets a host has discovered, in discovery order.
package registry

import (
	"context"
	"sync"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"moff.io/moff-connect/internal/connector"
	"moff.io/moff-connect/pkg/log"
)

// Registry is an in-memory connector.Registry. Wallets may be registered and
// unregistered at any time; enumeration follows registration order.
type Registry struct {
	mu      sync.RWMutex
	wallets *linkedhashmap.Map
}

var _ connector.Registry = (*Registry)(nil)

func New(wallets ...connector.Wallet) *Registry {
	r := &Registry{wallets: linkedhashmap.New()}
	for _, w := range wallets {
		r.Register(w)
	}
	return r
}

// Register adds w, replacing a wallet with the same id in place.
func (r *Registry) Register(w connector.Wallet) {
	if w == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.wallets.Get(w.ID()); found {
		log.Debugf("registry - replacing wallet %s", w.ID())
	}
	r.wallets.Put(w.ID(), w)
}

func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.wallets.Get(id); !found {
		return false
	}
	r.wallets.Remove(id)
	log.Debugf("registry - wallet %s unregistered", id)
	return true
}

func (r *Registry) Get(id string) (connector.Wallet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, found := r.wallets.Get(id)
	if !found {
		return nil, false
	}
	return v.(connector.Wallet), true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.wallets.Size()
}

// GetAvailableWallets returns a snapshot in registration order.
func (r *Registry) GetAvailableWallets(ctx context.Context) ([]connector.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallets := make([]connector.Wallet, 0, r.wallets.Size())
	it := r.wallets.Iterator()
	for it.Next() {
		wallets = append(wallets, it.Value().(connector.Wallet))
	}
	return wallets, nil
}
