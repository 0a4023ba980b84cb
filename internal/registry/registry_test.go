package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"moff.io/moff-connect/internal/connector"
	"moff.io/moff-connect/internal/connector/connectortest"
)

func ids(wallets []connector.Wallet) []string {
	out := make([]string, 0, len(wallets))
	for _, w := range wallets {
		out = append(out, w.ID())
	}
	return out
}

func TestRegistrationOrder(t *testing.T) {
	r := New(
		connectortest.NewWallet("argentX", ""),
		connectortest.NewWallet("braavos", ""),
	)
	r.Register(connectortest.NewWallet("okxwallet", ""))
	r.Register(nil)

	wallets, err := r.GetAvailableWallets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"argentX", "braavos", "okxwallet"}, ids(wallets))
	assert.Equal(t, 3, r.Len())
}

func TestReplaceKeepsPosition(t *testing.T) {
	replacement := connectortest.NewWallet("argentX", "0x2")
	r := New(connectortest.NewWallet("argentX", "0x1"), connectortest.NewWallet("braavos", ""))
	r.Register(replacement)

	wallets, err := r.GetAvailableWallets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"argentX", "braavos"}, ids(wallets))
	got, ok := r.Get("argentX")
	require.True(t, ok)
	assert.Same(t, replacement, got)
}

func TestUnregister(t *testing.T) {
	r := New(connectortest.NewWallet("argentX", ""))
	assert.True(t, r.Unregister("argentX"))
	assert.False(t, r.Unregister("argentX"))
	_, ok := r.Get("argentX")
	assert.False(t, ok)

	wallets, err := r.GetAvailableWallets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, wallets)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().GetAvailableWallets(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConnectorFollowsRegistry(t *testing.T) {
	ctx := context.Background()
	r := New()
	c := connector.NewInjected(connector.InjectedOptions{ID: "argentX"}, r)
	assert.False(t, c.Available(ctx))

	r.Register(connectortest.NewWallet("argentX", "0x1"))
	assert.True(t, c.Available(ctx))
}
