package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"moff.io/moff-connect/internal/connector"
	"moff.io/moff-connect/internal/connector/connectortest"
	"moff.io/moff-connect/internal/registry"
	"moff.io/moff-connect/internal/session"
	"moff.io/moff-connect/internal/webwallet"
	"moff.io/moff-connect/pkg/errors"
)

type denyAfter struct {
	left int
}

func (d *denyAfter) Allow(context.Context, string) (bool, time.Duration, error) {
	if d.left == 0 {
		return false, 3 * time.Second, nil
	}
	d.left--
	return true, 0, nil
}

type fixture struct {
	argent *connectortest.Wallet
	reg    *registry.Registry
	server *Server
}

func newFixture(opts ...Option) *fixture {
	gin.SetMode(gin.TestMode)
	f := &fixture{argent: connectortest.NewWallet("argentX", "0xa1")}
	f.reg = registry.New(f.argent)
	manager := session.New([]connector.Connector{
		connector.NewInjected(connector.InjectedOptions{ID: "argentX"}, f.reg),
		connector.NewInjected(connector.InjectedOptions{ID: "braavos"}, f.reg),
	})
	f.server = NewServer(":0", manager, opts...)
	return f
}

func (f *fixture) do(t *testing.T, method, path string) (int, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, httptest.NewRequest(method, path, nil))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w.Code, body
}

func TestListConnectors(t *testing.T) {
	f := newFixture()
	code, body := f.do(t, http.MethodGet, "/connectors")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "default", body["session"])

	connectors := body["connectors"].([]interface{})
	require.Len(t, connectors, 2)
	first := connectors[0].(map[string]interface{})
	assert.Equal(t, "argentX", first["id"])
	assert.Equal(t, true, first["available"])
	assert.Equal(t, "available", first["state"])
	second := connectors[1].(map[string]interface{})
	assert.Equal(t, "unavailable", second["state"])
}

func TestConnectFlow(t *testing.T) {
	f := newFixture()

	code, body := f.do(t, http.MethodGet, "/session/account")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, float64(4009), body["code"])

	code, body = f.do(t, http.MethodPost, "/connectors/argentX/connect")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "0xa1", body["account"])

	code, body = f.do(t, http.MethodGet, "/session/account")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "argentX", body["connector"])
	assert.Equal(t, "0xa1", body["account"])

	f.argent.ClearAccount()
	code, body = f.do(t, http.MethodGet, "/session/account")
	assert.Equal(t, http.StatusOK, code)
	assert.Nil(t, body["account"])

	code, _ = f.do(t, http.MethodPost, "/session/disconnect")
	assert.Equal(t, http.StatusOK, code)
	code, _ = f.do(t, http.MethodPost, "/session/disconnect")
	assert.Equal(t, http.StatusConflict, code)
}

func TestConnectErrors(t *testing.T) {
	f := newFixture()

	code, body := f.do(t, http.MethodPost, "/connectors/braavos/connect")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, float64(4004), body["code"])

	code, _ = f.do(t, http.MethodPost, "/connectors/metamask/connect")
	assert.Equal(t, http.StatusNotFound, code)

	f.argent.RejectEnable(errors.New("rejected"))
	code, body = f.do(t, http.MethodPost, "/connectors/argentX/connect")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, float64(4003), body["code"])
}

func TestConnectRateLimited(t *testing.T) {
	f := newFixture(WithLimiter(&denyAfter{left: 1}))

	code, _ := f.do(t, http.MethodPost, "/connectors/argentX/connect")
	assert.Equal(t, http.StatusOK, code)

	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/connectors/argentX/connect", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3", w.Header().Get("Retry-After"))
}

func TestModalState(t *testing.T) {
	code, _ := newFixture().do(t, http.MethodGet, "/webwallet/modal")
	assert.Equal(t, http.StatusNotFound, code)

	state := webwallet.NewModalState(0)
	state.Show()
	state.SetHeight(480)
	code, body := newFixture(WithModal(state)).do(t, http.MethodGet, "/webwallet/modal")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["visible"])
	assert.Equal(t, float64(480), body["height"])
}
