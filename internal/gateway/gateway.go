// ABOUTME: Gateway orchestrator wiring the store, registry, resolver, and HTTP server
// ABOUTME: Manages startup, the reaper loop, and graceful shutdown

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/innovexlabs/quickfix-gateway/internal/config"
	"github.com/innovexlabs/quickfix-gateway/internal/dispatch"
	"github.com/innovexlabs/quickfix-gateway/internal/identity"
	"github.com/innovexlabs/quickfix-gateway/internal/realtime"
	"github.com/innovexlabs/quickfix-gateway/internal/registry"
	"github.com/innovexlabs/quickfix-gateway/internal/store"
	"github.com/innovexlabs/quickfix-gateway/internal/ticket"
)

// Gateway orchestrates the quickfix-gateway server components.
// It owns the connection registry, the reaper, and the HTTP server carrying
// the websocket, API, health, and metrics endpoints.
type Gateway struct {
	config     *config.Config
	store      store.Store
	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher
	reaper     *registry.Reaper
	tickets    *ticket.Service
	httpServer *http.Server
	metrics    *Metrics
	logger     *slog.Logger

	// serverID identifies this gateway instance
	serverID string

	reaperCancel context.CancelFunc
}

// initStore creates and returns a store based on config and environment.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("QUICKFIX_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	reg := registry.New(logger.With("component", "registry"))

	verifier := identity.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	resolver := identity.NewResolver(verifier, s, cfg.Auth.LookupTimeout, logger)

	dispatcher := dispatch.New(reg, logger)
	tickets := ticket.NewService(s, dispatcher, logger)

	gw := &Gateway{
		config:     cfg,
		store:      s,
		registry:   reg,
		dispatcher: dispatcher,
		tickets:    tickets,
		logger:     logger.With("component", "gateway"),
		serverID:   generateServerID(),
	}

	mux := http.NewServeMux()

	var rejects realtime.RejectRecorder
	var recorder registry.StatsRecorder
	if cfg.Metrics.Enabled {
		promReg := prometheus.NewRegistry()
		gw.metrics = NewMetrics(promReg)
		rejects = gw.metrics
		recorder = gw.metrics
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
		logger.Info("metrics endpoint enabled", "path", cfg.Metrics.Path)
	}

	gw.reaper = registry.NewReaper(reg, cfg.Realtime.SweepInterval, cfg.Realtime.MaxIdle, recorder, logger)

	wsHandler := realtime.NewHandler(reg, resolver, realtime.Options{
		RateWindow:    cfg.Realtime.RateWindow,
		RateThreshold: cfg.Realtime.RateThreshold,
		ExemptPaths:   cfg.Realtime.ExemptPaths,
		ServerID:      gw.serverID,
	}, rejects, logger)
	mux.Handle("/ws", wsHandler)

	// Health endpoints - no auth required
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)

	gw.registerAPIRoutes(mux)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Run starts the gateway and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	httpLn, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	reaperCtx, cancel := context.WithCancel(context.Background())
	g.reaperCancel = cancel
	go g.reaper.Run(reaperCtx)

	errCh := g.startServer(httpLn)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// startServer starts the HTTP server in a goroutine, returning an error channel.
func (g *Gateway) startServer(httpLn net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening",
			"addr", httpLn.Addr().String(),
			"server_id", g.serverID,
		)
		if err := g.httpServer.Serve(httpLn); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or a server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown gracefully stops the gateway and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	if g.reaperCancel != nil {
		g.reaperCancel()
	}

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	// Close any remaining connections so clients reconnect elsewhere.
	for _, e := range g.registry.Snapshot() {
		if e.Link != nil {
			e.Link.Close("server_shutdown")
		}
		g.registry.Remove(e.ID)
	}

	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// generateServerID creates a unique identifier for this gateway instance.
func generateServerID() string {
	return fmt.Sprintf("quickfix-gateway-%d", time.Now().UnixNano()%1000000)
}
