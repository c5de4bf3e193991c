package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"classlink/internal/api"
	"classlink/internal/audit"
	"classlink/internal/config"
	"classlink/internal/hub"
	"classlink/internal/identity"
	"classlink/internal/relay"
	"classlink/internal/room"
	"classlink/internal/signaling"
)

// Application coordinates all server components. Initialization follows
// strict dependency order: Audit → Identity → Registry → Relay → Hub →
// Handler → API → HTTP.
type Application struct {
	config     *config.Config
	auditStore *audit.Store
	resolver   *identity.Resolver
	registry   *room.Registry
	signalHub  *hub.Hub
	apiServer  *api.Server
	httpServer *http.Server
}

// NewApplication creates an application instance with all components wired.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	auditStore, err := audit.NewStore(cfg.Audit.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit journal: %w", err)
	}

	resolver := identity.NewResolver(cfg.Auth.JWTSecret, auditStore)
	registry := room.NewRegistry()
	signalRelay := relay.NewRelay(registry, auditStore)
	signalHub := hub.NewHub(registry, signalRelay)

	wsHandler := signaling.NewHandler(signalHub, resolver, auditStore, signaling.Options{
		PingInterval: cfg.WebSocket.PingInterval,
		ReadTimeout:  cfg.WebSocket.ReadTimeout,
	})

	apiServer := api.NewServer(registry)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		auditStore: auditStore,
		resolver:   resolver,
		registry:   registry,
		signalHub:  signalHub,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// Start begins application execution: hub first so signaling events have a
// consumer, then the HTTP server.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting classlink signaling server on %s", app.httpServer.Addr)

	if err := app.signalHub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hub: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		_ = app.signalHub.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("classlink signaling server started")
		return nil
	case <-ctx.Done():
		_ = app.signalHub.Stop()
		return ctx.Err()
	}
}

// Stop shuts the application down in reverse dependency order:
// HTTP → Hub → Audit.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down classlink signaling server")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if err := app.signalHub.Stop(); err != nil {
		log.Printf("Hub shutdown error: %v", err)
	}

	if err := app.auditStore.Close(); err != nil {
		log.Printf("Audit journal shutdown error: %v", err)
	}

	log.Printf("classlink shutdown complete")
	return nil
}

// GetAddr returns the server address for external connections.
func (app *Application) GetAddr() string {
	return app.httpServer.Addr
}
