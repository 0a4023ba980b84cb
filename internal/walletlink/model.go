package walletlink

import (
	"encoding/json"
	"fmt"

	"moff.io/moff-connect/pkg/errors"
)

const jsonRPCVersion = "2.0"

// 请求方法，与tRPC websocket协议保持一致
const (
	methodQuery            = "query"
	methodMutation         = "mutation"
	methodSubscription     = "subscription"
	methodSubscriptionStop = "subscription.stop"
)

// 响应结果类型
const (
	resultData    = "data"
	resultStarted = "started"
	resultStopped = "stopped"
)

var (
	// ErrClosed the link is closed, pending and future calls fail with it.
	ErrClosed = errors.New("wallet link closed")
)

type request struct {
	ID      int64          `json:"id"`
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  *requestParams `json:"params,omitempty"`
}

type requestParams struct {
	Path  string      `json:"path"`
	Input interface{} `json:"input,omitempty"`
}

func newRequest(id int64, method, path string, input interface{}) *request {
	r := &request{
		ID:      id,
		JSONRPC: jsonRPCVersion,
		Method:  method,
	}
	if method != methodSubscriptionStop {
		r.Params = &requestParams{Path: path, Input: input}
	}
	return r
}

func (r *request) Marshal() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s request %s", r.Method, r.pathOrEmpty())
	}
	return data, nil
}

func (r *request) pathOrEmpty() string {
	if r.Params == nil {
		return ""
	}
	return r.Params.Path
}

// RemoteError is an error answered by the remote wallet.
type RemoteError struct {
	Path    string          `json:"-"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RemoteError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("remote error %d on %s: %s", e.Code, e.Path, e.Message)
}

type response struct {
	data json.RawMessage
	err  error
}
