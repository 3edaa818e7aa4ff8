// Package socialservice wires the HTTP action layer into a runnable service.
package socialservice

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/loveneesh1804/Instagram-server/internal/api"
	"github.com/loveneesh1804/Instagram-server/internal/middleware"
	"github.com/loveneesh1804/Instagram-server/internal/platform/mail"
	"github.com/loveneesh1804/Instagram-server/internal/platform/media"
	"github.com/loveneesh1804/Instagram-server/pkg/social"
	"github.com/loveneesh1804/Instagram-server/socialservice/config"
)

// Wrapper runs the API handlers behind a managed HTTP server.
type Wrapper struct {
	server        *http.Server
	apiHandler    *api.API
	logger        zerolog.Logger
	httpReadyChan chan struct{}

	mu   sync.Mutex
	addr string
}

// New creates and wires up the HTTP service.
func New(
	cfg *config.AppConfig,
	stores *social.Stores,
	emitter api.Emitter,
	tokens *middleware.TokenManager,
	mediaStore media.Store,
	mailSender mail.Sender,
	logger zerolog.Logger,
) (*Wrapper, error) {
	if stores == nil {
		return nil, errors.New("stores cannot be nil")
	}
	if emitter == nil {
		return nil, errors.New("emitter cannot be nil")
	}

	apiHandler := api.NewAPI(stores, emitter, tokens, mediaStore, mailSender, logger)

	// Middleware must be registered before routes, so the API router is
	// mounted under an outer one.
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.CORS(cfg.CorsAllowedOrigins))
	router.Mount("/", apiHandler.Routes())

	return &Wrapper{
		server: &http.Server{
			Addr:    ":" + cfg.APIPort,
			Handler: router,
		},
		apiHandler:    apiHandler,
		logger:        logger.With().Str("component", "ApiService").Logger(),
		httpReadyChan: make(chan struct{}),
	}, nil
}

// Ready is closed once the listener is accepting connections.
func (w *Wrapper) Ready() <-chan struct{} {
	return w.httpReadyChan
}

// Addr reports the bound listener address. Empty until Ready is closed.
func (w *Wrapper) Addr() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.addr
}

// Start binds the listener, signals readiness, and serves until Shutdown.
func (w *Wrapper) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", w.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind HTTP listener on %s: %w", w.server.Addr, err)
	}

	w.mu.Lock()
	w.addr = listener.Addr().String()
	w.mu.Unlock()

	w.logger.Info().Str("addr", w.addr).Msg("HTTP listener is active.")
	close(w.httpReadyChan)

	if err := w.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info().Msg("Shutting down HTTP service...")
	if err := w.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}
	w.logger.Info().Msg("HTTP service shut down.")
	return nil
}
