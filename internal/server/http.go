package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/geo-challenges/internal/config"
	"github.com/gokatarajesh/geo-challenges/internal/logging"
	httperrors "github.com/gokatarajesh/geo-challenges/pkg/http/errors"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouteRegistrar mounts a feature's routes.
type RouteRegistrar interface {
	Register(mux *http.ServeMux)
}

// NewHTTPServer wires base routes (health, metrics, ping) plus the feature
// routes. wsHandler may be nil.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, store Pinger, routes RouteRegistrar, wsHandler http.HandlerFunc) *http.Server {
	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: NewMux(logger, store, routes, wsHandler),
	}
}

// NewMux builds the handler tree served by NewHTTPServer.
func NewMux(logger zerolog.Logger, store Pinger, routes RouteRegistrar, wsHandler http.HandlerFunc) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/ping", func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.IntoContext(r.Context(), logger)
		if err := store.Ping(ctx); err != nil {
			l := logging.FromContext(ctx)
			l.Error().Err(err).Msg("dependency ping failed")
			httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeServiceUnavailable, "store unreachable")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	if routes != nil {
		routes.Register(mux)
	}

	if wsHandler != nil {
		mux.HandleFunc("GET /ws/imports", wsHandler)
	} else {
		mux.HandleFunc("GET /ws/imports", func(w http.ResponseWriter, r *http.Request) {
			httperrors.RespondError(w, http.StatusNotImplemented, httperrors.ErrCodeServiceUnavailable, "progress stream disabled")
		})
	}

	return mux
}
