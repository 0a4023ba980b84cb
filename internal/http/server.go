package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"moff.io/moff-connect/internal/connector"
	"moff.io/moff-connect/internal/session"
	"moff.io/moff-connect/internal/webwallet"
	"moff.io/moff-connect/pkg/errors"
	"moff.io/moff-connect/pkg/log"
	"moff.io/moff-connect/pkg/log/meta"
	"moff.io/moff-connect/pkg/log/middleware"
)

// Limiter limits connect attempts per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// ModalSource exposes the current web wallet modal state.
type ModalSource interface {
	Snapshot() webwallet.ModalSnapshot
}

type Option func(*Server)

func WithLimiter(l Limiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

func WithModal(m ModalSource) Option {
	return func(s *Server) {
		s.modal = m
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// Server is the HTTP control surface of a session.
type Server struct {
	address string
	manager *session.Manager
	limiter Limiter
	modal   ModalSource
	timeout time.Duration

	engine *gin.Engine
	srv    *http.Server
}

func NewServer(address string, manager *session.Manager, opts ...Option) *Server {
	s := &Server{address: address, manager: manager}
	for _, opt := range opts {
		opt(s)
	}
	router := gin.New()
	router.Use(middleware.RecoveredHTTPLog(), middleware.TimeoutHTTP(s.timeout))
	router.GET("/connectors", s.listConnectors)
	router.POST("/connectors/:id/connect", s.connect)
	router.POST("/session/disconnect", s.disconnect)
	router.GET("/session/account", s.account)
	router.GET("/webwallet/modal", s.modalState)
	s.engine = router
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves in the background until Stop.
func (s *Server) Start(ctx context.Context) {
	s.srv = &http.Server{
		Addr:    s.address,
		Handler: s.engine,
	}
	go func() {
		log.Infof("http server listening on %s", s.address)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(errors.WrapAndReport(err, "http server"))
		}
	}()
}

func (s *Server) Stop() {
	if s.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Error(errors.Wrap(err, "shutdown http server"))
	}
}

func (s *Server) listConnectors(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"session":    s.manager.Name(),
		"connectors": s.manager.Status(ctx.Request.Context()),
	})
}

func (s *Server) connect(ctx *gin.Context) {
	rctx := ctx.Request.Context()
	id := ctx.Param("id")
	meta.WithValue(rctx, meta.ConnectorIDKey, id)

	if s.limiter != nil {
		allowed, retryAfter, err := s.limiter.Allow(rctx, ctx.ClientIP()+":"+id)
		if err != nil {
			// 限流不可用时放行
			log.Warnf("connect rate limit unavailable: %v", err)
		} else if !allowed {
			ctx.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds()+0.5)))
			ctx.JSON(http.StatusTooManyRequests, gin.H{"code": 4029, "msg": "too many connect attempts"})
			return
		}
	}

	account, err := s.manager.Connect(rctx, id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"connector": id, "account": address(account)})
}

func (s *Server) disconnect(ctx *gin.Context) {
	if active := s.manager.Active(); active != nil {
		meta.WithValue(ctx.Request.Context(), meta.ConnectorIDKey, active.ID())
	}
	if err := s.manager.Disconnect(ctx.Request.Context()); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) account(ctx *gin.Context) {
	account, err := s.manager.Account(ctx.Request.Context())
	if err != nil {
		writeError(ctx, err)
		return
	}
	var id string
	if active := s.manager.Active(); active != nil {
		id = active.ID()
	}
	ctx.JSON(http.StatusOK, gin.H{"connector": id, "account": address(account)})
}

func (s *Server) modalState(ctx *gin.Context) {
	if s.modal == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"code": 4004, "msg": "web wallet modal not configured"})
		return
	}
	ctx.JSON(http.StatusOK, s.modal.Snapshot())
}

func address(account connector.Account) interface{} {
	if account == nil {
		return nil
	}
	return account.Address()
}

func writeError(ctx *gin.Context, err error) {
	status, code := http.StatusInternalServerError, 5000
	switch {
	case errors.Is(err, connector.ErrConnectorNotFound):
		status, code = http.StatusNotFound, 4004
	case errors.Is(err, connector.ErrConnectorNotConnected),
		errors.Is(err, connector.ErrUserNotConnected),
		errors.Is(err, session.ErrNoActiveConnector):
		status, code = http.StatusConflict, 4009
	case errors.Is(err, connector.ErrUserRejectedRequest):
		status, code = http.StatusForbidden, 4003
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, 5004
	default:
		log.Error(err)
	}
	ctx.JSON(status, gin.H{"code": code, "msg": err.Error()})
}
