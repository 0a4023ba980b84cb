package webwallet_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"moff.io/moff-connect/internal/connector"
	"moff.io/moff-connect/internal/walletlink"
	"moff.io/moff-connect/internal/walletlink/linktest"
	"moff.io/moff-connect/internal/webwallet"
)

type stubProvider struct{}

func (stubProvider) NodeURL() string { return "https://node.example" }

func (stubProvider) ChainID(context.Context) (string, error) { return "0x534e5f4d41494e", nil }

// recorder is a Frame and Container remembering every effect in order.
type recorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *recorder) record(step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
}

func (r *recorder) Show()           { r.record("show") }
func (r *recorder) Hide()           { r.record("hide") }
func (r *recorder) SetHeight(h int) { r.record(fmt.Sprintf("height:%d", h)) }

func (r *recorder) Steps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.steps...)
}

func mustHost(t *testing.T, rawURL string) webwallet.Host {
	t.Helper()
	h, err := webwallet.NewStaticHost(rawURL)
	require.NoError(t, err)
	return h
}

func dial(t *testing.T, srv *linktest.Server) *walletlink.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := walletlink.Dial(ctx, srv.URL())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewConfigurationErrors(t *testing.T) {
	ctx := context.Background()

	_, err := webwallet.New(ctx, webwallet.Options{Target: "https://web.argent.xyz"})
	assert.ErrorIs(t, err, webwallet.ErrNoHostEnvironment)

	_, err = webwallet.New(ctx, webwallet.Options{Host: mustHost(t, "https://dapp.example")})
	assert.ErrorIs(t, err, webwallet.ErrNoLink)
}

func TestIdentityAndHost(t *testing.T) {
	srv := linktest.NewServer()
	defer srv.Close()

	w, err := webwallet.New(context.Background(), webwallet.Options{
		Target:   "https://web.argent.xyz",
		Link:     dial(t, srv),
		Host:     mustHost(t, "https://dapp.example/swap?from=eth"),
		Provider: stubProvider{},
	})
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, "argentWebWallet", w.ID())
	assert.Equal(t, "Argent Web Wallet", w.Name())
	assert.Equal(t, "https://www.argent.xyz/favicon.ico", w.Icon())
	assert.Equal(t, "1.0.0", w.Version())
	assert.Equal(t, "https://dapp.example", w.Host())
	assert.False(t, w.IsConnected())
	assert.Nil(t, w.Account())
}

func TestModalEndToEnd(t *testing.T) {
	srv := linktest.NewServer()
	defer srv.Close()

	rec := &recorder{}
	w, err := webwallet.New(context.Background(), webwallet.Options{
		Link:     dial(t, srv),
		Host:     mustHost(t, "https://dapp.example"),
		Modal:    &webwallet.ModalProps{Frame: rec, Container: rec},
		Provider: stubProvider{},
	})
	require.NoError(t, err)
	defer w.Close()
	require.True(t, srv.WaitSubscribed(webwallet.ModalTopic, 1, time.Second))

	srv.Publish(webwallet.ModalTopic, map[string]interface{}{"action": "show"})
	srv.Publish(webwallet.ModalTopic, map[string]interface{}{"action": "updateHeight", "height": 480})
	srv.Publish(webwallet.ModalTopic, map[string]interface{}{"action": "hide"})

	assert.Eventually(t, func() bool { return len(rec.Steps()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"show", "height:480", "hide"}, rec.Steps())
}

func TestModalStateThroughBridge(t *testing.T) {
	srv := linktest.NewServer()
	defer srv.Close()

	state := webwallet.NewModalState(0)
	w, err := webwallet.New(context.Background(), webwallet.Options{
		Link:     dial(t, srv),
		Host:     mustHost(t, "https://dapp.example"),
		Modal:    &webwallet.ModalProps{Frame: state, Container: state},
		Provider: stubProvider{},
	})
	require.NoError(t, err)
	defer w.Close()
	require.True(t, srv.WaitSubscribed(webwallet.ModalTopic, 1, time.Second))

	srv.Publish(webwallet.ModalTopic, map[string]interface{}{"action": "show"})
	srv.Publish(webwallet.ModalTopic, map[string]interface{}{"action": "updateHeight", "height": 480})

	assert.Eventually(t, func() bool { return state.Snapshot().Updates == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, webwallet.ModalSnapshot{Visible: true, Height: 480, Updates: 2}, state.Snapshot())
}

func TestNoModalNoBridge(t *testing.T) {
	srv := linktest.NewServer()
	defer srv.Close()

	w, err := webwallet.New(context.Background(), webwallet.Options{
		Link:     dial(t, srv),
		Host:     mustHost(t, "https://dapp.example"),
		Provider: stubProvider{},
	})
	require.NoError(t, err)
	defer w.Close()

	require.True(t, srv.WaitSubscribed("onAccountsChanged", 1, time.Second))
	assert.Equal(t, 0, srv.Subscribed(webwallet.ModalTopic))
}

func TestCloseDisposesSubscriptions(t *testing.T) {
	srv := linktest.NewServer()
	defer srv.Close()

	rec := &recorder{}
	w, err := webwallet.New(context.Background(), webwallet.Options{
		Link:     dial(t, srv),
		Host:     mustHost(t, "https://dapp.example"),
		Modal:    &webwallet.ModalProps{Frame: rec, Container: rec},
		Provider: stubProvider{},
	})
	require.NoError(t, err)
	require.True(t, srv.WaitSubscribed(webwallet.ModalTopic, 1, time.Second))
	require.True(t, srv.WaitSubscribed("onAccountsChanged", 1, time.Second))

	w.Close()
	assert.Eventually(t, func() bool {
		return srv.Subscribed(webwallet.ModalTopic) == 0 && srv.Subscribed("onAccountsChanged") == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{webwallet.ModalTopic, "onAccountsChanged"}, srv.Stops())
}

func newWebConnector(t *testing.T, srv *linktest.Server) *webwallet.Connector {
	t.Helper()
	link := dial(t, srv)
	c := webwallet.NewConnector(func(ctx context.Context) (*webwallet.Wallet, error) {
		return webwallet.New(ctx, webwallet.Options{
			Link:     link,
			Host:     mustHost(t, "https://dapp.example"),
			Provider: stubProvider{},
		})
	})
	t.Cleanup(c.Close)
	return c
}

func TestConnectorConnect(t *testing.T) {
	srv := linktest.NewServer()
	defer srv.Close()
	inputs := make(chan json.RawMessage, 1)
	srv.Handle("enable", func(input json.RawMessage) (interface{}, error) {
		inputs <- input
		return []string{"0xabc"}, nil
	})
	srv.Handle("isPreauthorized", func(json.RawMessage) (interface{}, error) {
		return false, nil
	})
	c := newWebConnector(t, srv)
	ctx := context.Background()

	assert.Equal(t, "argentWebWallet", c.ID())
	_, err := c.Name()
	assert.ErrorIs(t, err, connector.ErrConnectorNotConnected)

	require.True(t, c.Available(ctx))
	ready, err := c.Ready(ctx)
	require.NoError(t, err)
	assert.False(t, ready)
	assert.Equal(t, connector.StateAvailableUnauthorized, c.State())

	account, err := c.Connect(ctx)
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "0xabc", account.Address())
	assert.JSONEq(t, `{"starknetVersion":"v5","host":"https://dapp.example"}`, string(<-inputs))
	assert.Equal(t, connector.StateConnected, c.State())

	name, err := c.Name()
	require.NoError(t, err)
	assert.Equal(t, "Argent Web Wallet", name)
	assert.NoError(t, c.Disconnect(ctx))
}

func TestConnectorConnectRejected(t *testing.T) {
	srv := linktest.NewServer()
	defer srv.Close()
	srv.Handle("enable", func(json.RawMessage) (interface{}, error) {
		return nil, &linktest.Error{Code: 4001, Message: "user aborted"}
	})
	c := newWebConnector(t, srv)

	_, err := c.Connect(context.Background())
	assert.ErrorIs(t, err, connector.ErrUserRejectedRequest)

	err = c.Disconnect(context.Background())
	assert.ErrorIs(t, err, connector.ErrUserNotConnected)
}

func TestConnectorAccountsChanged(t *testing.T) {
	srv := linktest.NewServer()
	defer srv.Close()
	srv.Handle("enable", func(json.RawMessage) (interface{}, error) {
		return []string{"0xabc"}, nil
	})
	c := newWebConnector(t, srv)
	ctx := context.Background()

	got := make(chan []string, 2)
	listener := connector.NewAccountsListener(func(accounts []string) { got <- accounts })
	require.NoError(t, c.InitEventListener(ctx, listener))
	_, err := c.Connect(ctx)
	require.NoError(t, err)
	require.True(t, srv.WaitSubscribed("onAccountsChanged", 1, time.Second))

	srv.Publish("onAccountsChanged", []string{"0xdef"})
	select {
	case accounts := <-got:
		assert.Equal(t, []string{"0xdef"}, accounts)
	case <-time.After(2 * time.Second):
		t.Fatal("accounts change not delivered")
	}
	account, err := c.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0xdef", account.Address())

	require.NoError(t, c.RemoveEventListener(ctx, listener))
	srv.Publish("onAccountsChanged", []string{})
	assert.Eventually(t, func() bool {
		a, err := c.Account(ctx)
		return err == nil && a == nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, got)
}

func TestConnectorRetriesFailedFactory(t *testing.T) {
	calls := 0
	c := webwallet.NewConnector(func(ctx context.Context) (*webwallet.Wallet, error) {
		calls++
		return webwallet.New(ctx, webwallet.Options{})
	})
	ctx := context.Background()

	assert.False(t, c.Available(ctx))
	_, err := c.Ready(ctx)
	assert.ErrorIs(t, err, webwallet.ErrNoHostEnvironment)
	assert.Equal(t, 2, calls)
	assert.Equal(t, connector.StateUnresolved, c.State())
}

// ownedLinkConnector dials a fresh link on every build and hands it to the wallet.
func ownedLinkConnector(t *testing.T, srv *linktest.Server) (*webwallet.Connector, func() []*walletlink.Client) {
	t.Helper()
	var (
		mu    sync.Mutex
		links []*walletlink.Client
	)
	c := webwallet.NewConnector(func(ctx context.Context) (*webwallet.Wallet, error) {
		link := dial(t, srv)
		mu.Lock()
		links = append(links, link)
		mu.Unlock()
		return webwallet.New(ctx, webwallet.Options{
			Link:     link,
			Host:     mustHost(t, "https://dapp.example"),
			Provider: stubProvider{},
			OwnsLink: true,
		})
	})
	t.Cleanup(c.Close)
	return c, func() []*walletlink.Client {
		mu.Lock()
		defer mu.Unlock()
		return append([]*walletlink.Client(nil), links...)
	}
}

func isDone(link *walletlink.Client) bool {
	select {
	case <-link.Done():
		return true
	default:
		return false
	}
}

func TestConnectorReconnectsAfterLinkDrop(t *testing.T) {
	srv := linktest.NewServer()
	defer srv.Close()
	srv.Handle("enable", func(json.RawMessage) (interface{}, error) {
		return []string{"0xabc"}, nil
	})
	c, links := ownedLinkConnector(t, srv)
	ctx := context.Background()

	_, err := c.Connect(ctx)
	require.NoError(t, err)
	require.Len(t, links(), 1)

	srv.Drop()
	first := links()[0]
	require.Eventually(t, func() bool { return isDone(first) }, 2*time.Second, 10*time.Millisecond)

	account, err := c.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", account.Address())
	assert.Len(t, links(), 2)
	assert.Equal(t, connector.StateConnected, c.State())
	assert.False(t, isDone(links()[1]))
}

func TestConnectorCloseClosesOwnedLink(t *testing.T) {
	srv := linktest.NewServer()
	defer srv.Close()
	c, links := ownedLinkConnector(t, srv)

	require.True(t, c.Available(context.Background()))
	require.Len(t, links(), 1)
	assert.False(t, isDone(links()[0]))

	c.Close()
	assert.Eventually(t, func() bool { return isDone(links()[0]) }, 2*time.Second, 10*time.Millisecond)
}
