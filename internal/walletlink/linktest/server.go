// Package linktest runs an in-process wallet link endpoint for tests.
package linktest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

// Handler answers a query or mutation. Returning an *Error sends a remote error.
type Handler func(input json.RawMessage) (interface{}, error)

// Error is sent back as the error member of a response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

type activeSubscription struct {
	conn *conn
	id   int64
	path string
}

type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// Server is a tRPC style websocket endpoint with scripted procedures.
type Server struct {
	*httptest.Server

	upgrader websocket.Upgrader

	mu       sync.Mutex
	handlers map[string]Handler
	subs     map[int64]*activeSubscription
	stops    []string
	origins  []string
	conns    []*conn
	changed  chan struct{}
}

func NewServer() *Server {
	s := &Server{
		handlers: make(map[string]Handler),
		subs:     make(map[int64]*activeSubscription),
		changed:  make(chan struct{}, 1),
	}
	s.upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveWS))
	return s
}

// URL returns the ws:// url of the endpoint.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.Server.URL, "http")
}

// Handle registers the handler of a query or mutation path.
func (s *Server) Handle(path string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[path] = h
}

// Origins lists the Origin headers of accepted connections.
func (s *Server) Origins() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.origins...)
}

// Stops lists the paths whose subscriptions were stopped by clients.
func (s *Server) Stops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.stops...)
}

// Subscribed reports how many subscriptions on path are active.
func (s *Server) Subscribed(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sub := range s.subs {
		if sub.path == path {
			n++
		}
	}
	return n
}

// WaitSubscribed blocks until n subscriptions on path are active or the timeout elapses.
func (s *Server) WaitSubscribed(path string, n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if s.Subscribed(path) >= n {
			return true
		}
		select {
		case <-s.changed:
		case <-deadline:
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Publish pushes data to every active subscription on path.
func (s *Server) Publish(path string, data interface{}) {
	for _, sub := range s.subscriptions(path) {
		_ = sub.conn.write(map[string]interface{}{
			"id":      sub.id,
			"jsonrpc": "2.0",
			"result":  map[string]interface{}{"type": "data", "data": data},
		})
	}
}

// StopAll ends every subscription on path from the server side.
func (s *Server) StopAll(path string) {
	for _, sub := range s.subscriptions(path) {
		s.mu.Lock()
		delete(s.subs, sub.id)
		s.mu.Unlock()
		_ = sub.conn.write(map[string]interface{}{
			"id":      sub.id,
			"jsonrpc": "2.0",
			"result":  map[string]interface{}{"type": "stopped"},
		})
	}
}

// Drop closes every client connection without a close handshake.
func (s *Server) Drop() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.ws.Close()
	}
}

func (s *Server) subscriptions(path string) []*activeSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*activeSubscription
	for _, sub := range s.subs {
		if sub.path == path {
			out = append(out, sub)
		}
	}
	return out
}

func (s *Server) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &conn{ws: ws}
	s.mu.Lock()
	s.origins = append(s.origins, r.Header.Get("Origin"))
	s.conns = append(s.conns, c)
	s.mu.Unlock()
	defer ws.Close()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		s.handle(c, data)
	}
}

func (s *Server) handle(c *conn, data []byte) {
	id := gjson.GetBytes(data, "id").Int()
	method := gjson.GetBytes(data, "method").String()
	path := gjson.GetBytes(data, "params.path").String()
	input := json.RawMessage(gjson.GetBytes(data, "params.input").Raw)

	switch method {
	case "subscription":
		s.mu.Lock()
		s.subs[id] = &activeSubscription{conn: c, id: id, path: path}
		s.mu.Unlock()
		_ = c.write(map[string]interface{}{
			"id": id, "jsonrpc": "2.0", "result": map[string]interface{}{"type": "started"},
		})
		s.notify()
	case "subscription.stop":
		s.mu.Lock()
		if sub, ok := s.subs[id]; ok {
			s.stops = append(s.stops, sub.path)
			delete(s.subs, id)
		}
		s.mu.Unlock()
		s.notify()
	case "query", "mutation":
		s.mu.Lock()
		h := s.handlers[path]
		s.mu.Unlock()
		if h == nil {
			_ = c.write(map[string]interface{}{
				"id": id, "jsonrpc": "2.0",
				"error": &Error{Code: -32004, Message: "no procedure on path " + path},
			})
			return
		}
		result, err := h(input)
		if err != nil {
			remote, ok := err.(*Error)
			if !ok {
				remote = &Error{Code: -32603, Message: err.Error()}
			}
			_ = c.write(map[string]interface{}{"id": id, "jsonrpc": "2.0", "error": remote})
			return
		}
		_ = c.write(map[string]interface{}{
			"id": id, "jsonrpc": "2.0",
			"result": map[string]interface{}{"type": "data", "data": result},
		})
	}
}
