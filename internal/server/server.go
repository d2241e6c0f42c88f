package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/krisalay/memocache/internal/balance"
	"github.com/krisalay/memocache/internal/errs"
	"github.com/krisalay/memocache/internal/logging"
)

// Lookup is the memoized balance query served over HTTP.
type Lookup func(ctx context.Context, address string) (uint64, error)

// TTLFunc reports the remaining cache lifetime of the entry Lookup used for
// address. Anything not positive means nothing fresh is cached.
type TTLFunc func(address string) time.Duration

// noTTL is reported when the value was not served from a fresh entry.
const noTTL = -2

type balanceResponse struct {
	Address    string  `json:"address"`
	Balance    uint64  `json:"balance"`
	TTLSeconds float64 `json:"ttl_seconds"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter builds the HTTP surface:
//
//	GET /balances/{address}  memoized balance as JSON
//	GET /metrics             Prometheus exposition of reg
//	GET /healthz             liveness
func NewRouter(ctx context.Context, lookup Lookup, ttl TTLFunc, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	r.Get("/balances/{address}", func(w http.ResponseWriter, req *http.Request) {
		address := chi.URLParam(req, "address")
		reqCtx := logging.WithLogger(req.Context(), logging.Logger(ctx))
		reqCtx = logging.WithAttrs(reqCtx, append(logging.Attrs(ctx),
			slog.String("request_id", middleware.GetReqID(req.Context())),
		)...)

		v, err := lookup(reqCtx, address)
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, balance.ErrUnknownAddress) {
				status = http.StatusNotFound
			}
			logging.Warn(reqCtx, "balance lookup failed",
				slog.String("address", address),
				slog.Int("status", status),
				slog.Any("err", errs.Loggable(err)),
			)
			writeJSON(w, status, errorResponse{Error: err.Error()})
			return
		}

		resp := balanceResponse{Address: address, Balance: v, TTLSeconds: noTTL}
		if ttl != nil {
			if remaining := ttl(address); remaining > 0 {
				resp.TTLSeconds = remaining.Seconds()
			}
		}
		writeJSON(w, http.StatusOK, resp)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Server runs the router until its context is cancelled.
type Server struct {
	server *http.Server
}

func New(addr string, handler http.Handler) *Server {
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	logging.Info(ctx, "http server listening", slog.String("addr", s.server.Addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errs.Wrap(err, "listen and serve")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return errs.Wrap(err, "shutdown http server")
	}
	logging.Info(ctx, "http server stopped")
	return nil
}
