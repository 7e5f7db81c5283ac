package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"primenumbers/core"
	"primenumbers/indexer"
	"primenumbers/observability"
)

const (
	defaultMaxRequestBytes = 1 << 20 // 1 MiB
	shutdownTimeout        = 10 * time.Second
)

// EventStore is the read side of the event index.
type EventStore interface {
	Query(ctx context.Context, filter indexer.Filter) ([]indexer.EventRecord, error)
}

// Config tunes the JSON-RPC server.
type Config struct {
	RequestsPerMinute float64
	Burst             int
	MaxRequestBytes   int64
	JWTSecret         string
	JWTIssuer         string

	// Devnet exposes the clock and faucet methods.
	Devnet bool

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

type access int

const (
	accessPublic access = iota
	accessUser
	accessAdmin
	accessDevnet
)

type call struct {
	req    *RPCRequest
	caller common.Address
}

type handlerFunc func(ctx context.Context, c *call) (interface{}, *RPCError)

type method struct {
	module string
	access access
	handle handlerFunc
}

// Server exposes a protocol instance over JSON-RPC 2.0.
type Server struct {
	protocol *core.Protocol
	events   EventStore
	cfg      Config
	logger   *slog.Logger
	auth     *Authenticator
	limiter  *RateLimiter
	hub      *Hub
	methods  map[string]method
}

// NewServer builds a server for protocol. events may be nil when indexing is
// disabled.
func NewServer(protocol *core.Protocol, events EventStore, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = defaultMaxRequestBytes
	}
	s := &Server{
		protocol: protocol,
		events:   events,
		cfg:      cfg,
		logger:   logger,
		auth:     NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer),
		limiter:  NewRateLimiter(cfg.RequestsPerMinute, cfg.Burst),
	}
	s.methods = s.routes()
	return s
}

// WithSubscriptions serves the websocket event stream from hub. The hub must
// also be registered with the protocol as an event sink.
func (s *Server) WithSubscriptions(hub *Hub) *Server {
	s.hub = hub
	return s
}

// Handler returns the HTTP surface: JSON-RPC on POST /, the prnt_subscribe
// websocket on /ws, plus health and Prometheus endpoints.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.With(s.limiter.Middleware).Post("/", s.handle)
	r.With(s.limiter.Middleware).Get("/ws", s.handleSubscribe)
	return otelhttp.NewHandler(r, "prntd-rpc")
}

// Serve listens on addr until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("json-rpc listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("rpc shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reader := http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()
	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxRequestBytes)
		}
		writeError(w, nil, newError(status, codeInvalidRequest, message, err.Error()))
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, nil, newError(http.StatusBadRequest, codeInvalidRequest, "request body required", nil))
		return
	}
	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, nil, newError(http.StatusBadRequest, codeParseError, "invalid JSON payload", err.Error()))
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, req.ID, newError(http.StatusBadRequest, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC))
		return
	}
	m, ok := s.methods[strings.TrimSpace(req.Method)]
	if !ok || (m.access == accessDevnet && !s.cfg.Devnet) {
		writeError(w, req.ID, newError(http.StatusNotFound, codeMethodNotFound, "method not found", req.Method))
		return
	}

	status := http.StatusOK
	defer func() {
		observability.ModuleMetrics().Observe(m.module, req.Method, status, time.Since(start))
	}()

	c := &call{req: req}
	if m.access != accessPublic {
		principal, rpcErr := s.authorize(r, m.access)
		if rpcErr != nil {
			status = rpcErr.status
			writeError(w, req.ID, rpcErr)
			return
		}
		c.caller = principal.Address
	}

	result, rpcErr := m.handle(r.Context(), c)
	if rpcErr != nil {
		status = rpcErr.status
		s.logger.Warn("rpc call failed",
			slog.String("method", req.Method),
			slog.String("request_id", requestIDFrom(r.Context())),
			slog.Int("code", rpcErr.Code),
			slog.String("error", rpcErr.Message))
		writeError(w, req.ID, rpcErr)
		return
	}
	writeResult(w, req.ID, result)
}

// authorize authenticates the bearer token. Admin and devnet methods act as
// the operator and need the admin scope.
func (s *Server) authorize(r *http.Request, level access) (*Principal, *RPCError) {
	principal, err := s.auth.Authenticate(r)
	if err != nil {
		return nil, newError(http.StatusUnauthorized, codeUnauthorized, err.Error(), nil)
	}
	if level == accessUser {
		return principal, nil
	}
	if !principal.HasScope(ScopeAdmin) || principal.Address != s.protocol.Owner() {
		return nil, newError(http.StatusForbidden, codeForbidden, "admin scope required", nil)
	}
	return principal, nil
}
