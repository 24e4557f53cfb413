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
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"escrowsc/core/types"
	"escrowsc/native/offers"
	"escrowsc/observability"
	"escrowsc/services/indexer"
)

const maxRequestBytes = 1 << 20 // 1 MiB

// Node is the contract host served over JSON-RPC.
type Node interface {
	Execute(ctx context.Context, call *types.Call) (*types.Receipt, error)
	Offer(id uint64) (*offers.Offer, error)
	LastOfferID() (uint64, error)
	Balance(addr [20]byte, token string, nonce uint64) (*types.Payment, error)
	Nonce(addr [20]byte) (uint64, error)
	Height() uint64
}

// History serves the lifecycle events of resolved and open offers.
type History interface {
	History(offerID uint64) ([]indexer.OfferEvent, error)
}

type ServerConfig struct {
	RateLimit         RateLimit
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	ShutdownTimeout   time.Duration
}

type Server struct {
	node    Node
	history History
	cfg     ServerConfig
	logger  *slog.Logger
	tracer  trace.Tracer
	limiter *RateLimiter
	metrics interface {
		Observe(method string, code int, duration time.Duration)
	}
}

type methodHandler func(ctx context.Context, req *RPCRequest) (interface{}, error)

func NewServer(node Node, cfg ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		node:    node,
		cfg:     cfg,
		logger:  logger,
		tracer:  otel.Tracer("escrow/rpc"),
		limiter: NewRateLimiter(cfg.RateLimit),
		metrics: observability.RPCMetrics(),
	}
}

// SetHistory enables escrow_getOfferHistory.
func (s *Server) SetHistory(h History) { s.history = h }

// Handler returns the HTTP handler serving JSON-RPC at "/", health checks and
// Prometheus metrics.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(RequestID)
	router.Get("/healthz", s.handleHealth)
	router.Handle("/metrics", promhttp.Handler())
	router.With(s.limiter.Middleware).Post("/", s.handle)
	return otelhttp.NewHandler(router, "escrow.rpc")
}

// Serve listens on addr until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("JSON-RPC server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("rpc: shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"height": s.node.Height(),
	})
}

func (s *Server) methods() map[string]methodHandler {
	methods := map[string]methodHandler{
		"escrow_submitCall":  s.handleSubmitCall,
		"escrow_getOffer":    s.handleGetOffer,
		"escrow_lastOfferId": s.handleLastOfferID,
		"escrow_getBalance":  s.handleGetBalance,
		"escrow_getNonce":    s.handleGetNonce,
	}
	if s.history != nil {
		methods["escrow_getOfferHistory"] = s.handleGetOfferHistory
	}
	return methods
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
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
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}
	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}

	start := time.Now()
	ctx, span := s.tracer.Start(r.Context(), req.Method, trace.WithAttributes(
		attribute.String("rpc.system", "jsonrpc"),
		attribute.String("rpc.method", req.Method),
		attribute.String("request.id", requestIDFrom(r.Context())),
	))
	defer span.End()

	result, err := handler(ctx, req)
	if err != nil {
		status, rpcErr := toRPCError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, rpcErr.Message)
		span.SetAttributes(attribute.Int("rpc.jsonrpc.error_code", rpcErr.Code))
		s.metrics.Observe(req.Method, rpcErr.Code, time.Since(start))
		s.logger.Debug("rpc request failed", "method", req.Method, "requestId", requestIDFrom(r.Context()), "error", err)
		writeError(w, status, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	s.metrics.Observe(req.Method, 0, time.Since(start))
	writeResult(w, req.ID, result)
}
