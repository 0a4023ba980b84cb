// Package walletlink is the request/response and push-subscription link to a
// frame-hosted wallet, spoken over a websocket in the tRPC wire format.
package walletlink

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"go.uber.org/atomic"
	"moff.io/moff-connect/pkg/concurrent"
	"moff.io/moff-connect/pkg/errors"
	"moff.io/moff-connect/pkg/log"
)

const (
	defaultMaxInFlight      = 16
	defaultSubscriptionSize = 64
	clientIDHeader          = "X-Wallet-Link-Client"
)

// Subscription is the disposer of a push subscription.
type Subscription interface {
	Unsubscribe()
}

type Option func(*Client)

// WithMaxInFlight bounds concurrent request/response calls.
func WithMaxInFlight(n int) Option {
	return func(c *Client) {
		c.limiter = concurrent.NewLimiter(n)
	}
}

// WithCallTimeout bounds every call that has no earlier deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.callTimeout = d
	}
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithOrigin sets the Origin header so the remote side can apply origin based authorization.
func WithOrigin(origin string) Option {
	return func(c *Client) {
		c.header.Set("Origin", origin)
	}
}

type Client struct {
	url      string
	clientID string
	header   http.Header
	dialer   *websocket.Dialer

	conn    *websocket.Conn
	writeMu sync.Mutex

	limiter     concurrent.Limiter
	callTimeout time.Duration
	nextID      atomic.Int64
	closed      atomic.Bool
	done        chan struct{}
	closeErr    error

	mu      sync.Mutex
	pending map[int64]chan response
	subs    map[int64]*subscription
}

// Dial connects to the wallet link at url and starts reading.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	c := &Client{
		url:      url,
		clientID: uuid.NewString(),
		header:   http.Header{},
		dialer:   websocket.DefaultDialer,
		limiter:  concurrent.NewLimiter(defaultMaxInFlight),
		done:     make(chan struct{}),
		pending:  make(map[int64]chan response),
		subs:     make(map[int64]*subscription),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.header.Set(clientIDHeader, c.clientID)

	conn, _, err := c.dialer.DialContext(ctx, url, c.header)
	if err != nil {
		return nil, errors.WrapfAndReport(err, "dial wallet link %s", url)
	}
	c.conn = conn
	log.Debugf("wallet link %s - connected to %s", c.clientID, url)
	go c.readLoop()
	return c, nil
}

// Query performs a read-only call on path and decodes the result into out, if out is not nil.
func (c *Client) Query(ctx context.Context, path string, input, out interface{}) error {
	return c.call(ctx, methodQuery, path, input, out)
}

// Mutation performs a state-changing call on path.
func (c *Client) Mutation(ctx context.Context, path string, input, out interface{}) error {
	return c.call(ctx, methodMutation, path, input, out)
}

// Subscribe starts a push subscription on path. Data is handed to onData in
// arrival order from a dedicated goroutine until the subscription is disposed,
// stopped by the remote side, or the link closes. onData may call back into
// the link; while it runs at most 64 events are buffered and later ones are
// dropped.
func (c *Client) Subscribe(ctx context.Context, path string, input interface{}, onData func(json.RawMessage)) (Subscription, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	sub := &subscription{
		client:  c,
		id:      c.nextID.Inc(),
		path:    path,
		onData:  onData,
		events:  make(chan json.RawMessage, defaultSubscriptionSize),
		stopped: make(chan struct{}),
	}
	c.mu.Lock()
	c.subs[sub.id] = sub
	c.mu.Unlock()

	if err := c.send(newRequest(sub.id, methodSubscription, path, input)); err != nil {
		c.removeSubscription(sub.id)
		sub.stop()
		return nil, err
	}
	go sub.dispatch()
	log.Debugf("wallet link %s - subscribed %s (%d)", c.clientID, path, sub.id)
	return sub, nil
}

// Done is closed once the link stops reading.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the link closed, nil while it is open or after Close.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.closeErr
	default:
		return nil
	}
}

func (c *Client) Close() error {
	if !c.closed.CAS(false, true) {
		return nil
	}
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return errors.Wrap(err, "close wallet link")
}

func (c *Client) call(ctx context.Context, method, path string, input, out interface{}) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.callTimeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
			defer cancel()
		}
	}
	if err := c.limiter.AddContext(ctx); err != nil {
		return errors.Wrapf(err, "wait for %s %s", method, path)
	}
	defer c.limiter.Done()

	id := c.nextID.Inc()
	ch := make(chan response, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.send(newRequest(id, method, path, input)); err != nil {
		return err
	}

	select {
	case resp := <-ch:
		if resp.err != nil {
			if remote, ok := resp.err.(*RemoteError); ok {
				remote.Path = path
			}
			return resp.err
		}
		if out == nil || len(resp.data) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.data, out); err != nil {
			return errors.Wrapf(err, "decode %s %s result", method, path)
		}
		return nil
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "%s %s", method, path)
	case <-c.done:
		return ErrClosed
	}
}

func (c *Client) send(req *request) error {
	payload, err := req.Marshal()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed.Load() {
		return ErrClosed
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return errors.WrapfAndReport(err, "write %s request to wallet link", req.Method)
	}
	return nil
}

func (c *Client) readLoop() {
	var cause error
	defer func() { c.shutdown(cause) }()
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				cause = errors.WrapAndReport(err, "read wallet link message")
				log.Error(cause)
			}
			return
		}
		if msgType != websocket.TextMessage {
			log.Warnf("wallet link %s - unsupported message type %d", c.clientID, msgType)
			continue
		}
		c.handleMessage(data)
	}
}

func (c *Client) handleMessage(data []byte) {
	id := gjson.GetBytes(data, "id")
	if !id.Exists() {
		log.Warnf("wallet link %s - message without id: %s", c.clientID, string(data))
		return
	}
	var (
		resp      response
		resultTyp = gjson.GetBytes(data, "result.type").String()
	)
	if e := gjson.GetBytes(data, "error"); e.Exists() {
		remote := &RemoteError{}
		if err := json.Unmarshal([]byte(e.Raw), remote); err != nil {
			remote.Message = e.String()
		}
		resp.err = remote
	} else if d := gjson.GetBytes(data, "result.data"); d.Exists() {
		resp.data = json.RawMessage(d.Raw)
	}

	c.mu.Lock()
	pending, isCall := c.pending[id.Int()]
	sub, isSub := c.subs[id.Int()]
	c.mu.Unlock()

	switch {
	case isCall:
		select {
		case pending <- resp:
		default:
			log.Warnf("wallet link %s - duplicate response for id %d", c.clientID, id.Int())
		}
	case isSub:
		c.handleSubscriptionMessage(sub, resultTyp, resp)
	default:
		log.Debugf("wallet link %s - dropping message for unknown id %d", c.clientID, id.Int())
	}
}

func (c *Client) handleSubscriptionMessage(sub *subscription, resultTyp string, resp response) {
	if resp.err != nil {
		log.Error(errors.Wrapf(resp.err, "subscription %s", sub.path))
		c.removeSubscription(sub.id)
		sub.stop()
		return
	}
	switch resultTyp {
	case resultStarted:
		log.Debugf("wallet link %s - subscription %s started", c.clientID, sub.path)
	case resultStopped:
		c.removeSubscription(sub.id)
		sub.stop()
	case resultData, "":
		sub.deliver(resp.data)
	default:
		log.Warnf("wallet link %s - unknown result type %q on %s", c.clientID, resultTyp, sub.path)
	}
}

func (c *Client) removeSubscription(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, id)
}

func (c *Client) shutdown(cause error) {
	c.closed.Store(true)
	c.closeErr = cause
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[int64]*subscription)
	c.mu.Unlock()
	for _, sub := range subs {
		sub.stop()
	}
	close(c.done)
	log.Debugf("wallet link %s - closed", c.clientID)
}

type subscription struct {
	client   *Client
	id       int64
	path     string
	onData   func(json.RawMessage)
	events   chan json.RawMessage
	stopped  chan struct{}
	stopOnce sync.Once
	// disposed is set by Unsubscribe; events still buffered are then dropped
	disposed atomic.Bool
}

// Unsubscribe stops delivery and tells the remote side to stop pushing.
func (s *subscription) Unsubscribe() {
	c := s.client
	c.mu.Lock()
	_, active := c.subs[s.id]
	delete(c.subs, s.id)
	c.mu.Unlock()
	s.disposed.Store(true)
	s.stop()
	if !active || c.closed.Load() {
		return
	}
	if err := c.send(newRequest(s.id, methodSubscriptionStop, "", nil)); err != nil && !errors.Is(err, ErrClosed) {
		log.Error(err)
	}
}

func (s *subscription) stop() {
	s.stopOnce.Do(func() { close(s.stopped) })
}

// deliver never blocks the read loop: when onData falls a full buffer behind,
// the event is dropped.
func (s *subscription) deliver(data json.RawMessage) {
	select {
	case s.events <- data:
	case <-s.stopped:
	default:
		log.Warnf("wallet link %s - subscription %d on %s is full, dropping event", s.client.clientID, s.id, s.path)
	}
}

func (s *subscription) dispatch() {
	for {
		select {
		case data := <-s.events:
			if s.onData != nil {
				s.onData(data)
			}
		case <-s.stopped:
			if !s.disposed.Load() {
				s.drain()
			}
			return
		}
	}
}

// drain hands over what the remote side pushed before it stopped the subscription.
func (s *subscription) drain() {
	for {
		select {
		case data := <-s.events:
			if s.onData != nil && !s.disposed.Load() {
				s.onData(data)
			}
		default:
			return
		}
	}
}
