package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/compose-network/pvgateway/gateway-app/config"
	"github.com/compose-network/pvgateway/pkg/metrics"
	apisrv "github.com/compose-network/pvgateway/server/api"
	apimw "github.com/compose-network/pvgateway/server/api/middleware"
	"github.com/compose-network/pvgateway/x/gateway"
	gatewayhttp "github.com/compose-network/pvgateway/x/gateway/http"
	pvmemory "github.com/compose-network/pvgateway/x/pv/memory"
	"github.com/compose-network/pvgateway/x/transport"
	"github.com/compose-network/pvgateway/x/transport/memory"
	"github.com/compose-network/pvgateway/x/transport/mqtt"
	"github.com/compose-network/pvgateway/x/transport/nats"
)

const (
	shutdownTimeout = 30 * time.Second
	reportInterval  = 30 * time.Second
)

// App represents the gateway application
type App struct {
	cfg *config.Config
	log zerolog.Logger

	registry   *prometheus.Registry
	transport  transport.Transport
	ioc        *pvmemory.IOC
	generators []*pvmemory.Generator
	gateway    *gateway.Gateway

	apiServer *apisrv.Server

	startedAt time.Time
	cancel    context.CancelFunc
}

// NewApp creates a new application instance
func NewApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	app := &App{
		cfg:      cfg,
		log:      log.With().Str("component", "app").Logger(),
		registry: metrics.NewRegistry(),
	}

	if err := app.initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize app: %w", err)
	}

	return app, nil
}

func (a *App) initialize(_ context.Context) error {
	tr, err := a.newTransport()
	if err != nil {
		return err
	}
	a.transport = tr

	a.ioc = pvmemory.NewIOC(a.cfg.PVNames()...)

	for _, sc := range a.cfg.Simulate {
		g, err := pvmemory.NewGenerator(sc, a.ioc, a.log)
		if err != nil {
			return fmt.Errorf("simulate %s: %w", sc.PV, err)
		}
		a.generators = append(a.generators, g)
	}

	var gwMetrics *gateway.Metrics
	if a.cfg.Metrics.Enabled {
		gwMetrics = gateway.NewMetrics(a.registry)
	}
	gw, err := gateway.New(a.cfg.GatewayConfig(), a.transport, a.ioc, a.log, gateway.WithMetrics(gwMetrics))
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}
	a.gateway = gw

	if a.cfg.API.Enabled {
		a.initializeAPIServer()
	}
	return nil
}

// newTransport builds the client selected by transport.kind
func (a *App) newTransport() (transport.Transport, error) {
	switch a.cfg.Transport.Kind {
	case transport.KindMQTT:
		return mqtt.New(a.cfg.Transport, a.log), nil
	case transport.KindNATS:
		return nats.New(a.cfg.Transport, a.log), nil
	case transport.KindMemory:
		return memory.NewBroker(a.cfg.Transport.MaxPayload).Client(), nil
	default:
		return nil, fmt.Errorf("unsupported transport kind %q", a.cfg.Transport.Kind)
	}
}

// initializeAPIServer sets up the HTTP API server with all endpoints
func (a *App) initializeAPIServer() {
	s := apisrv.NewServer(a.cfg.API, a.log)
	s.Use(apimw.Recover(a.log))
	s.Use(apimw.RequestID())
	s.Use(apimw.Logger(a.log))

	s.Router.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	s.Router.HandleFunc("/ready", a.handleReady).Methods(http.MethodGet)

	if a.cfg.Metrics.Enabled {
		s.Router.Handle(a.cfg.Metrics.Path, promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})).
			Methods(http.MethodGet)
	}

	gatewayhttp.NewHandler(a.gateway, a.log).RegisterMux(s.Router)

	a.apiServer = s
}

// Run starts the application and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.startedAt = time.Now()

	if err := a.connect(runCtx); err != nil {
		cancel()
		return fmt.Errorf("failed to connect transport: %w", err)
	}

	if err := a.gateway.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	for _, g := range a.generators {
		if err := g.Start(runCtx); err != nil {
			a.log.Error().Err(err).Msg("Generator start failed")
		}
	}

	go a.statsReporter(runCtx)

	if a.apiServer != nil {
		go func() {
			if err := a.apiServer.Start(runCtx); err != nil {
				a.log.Error().Err(err).Msg("API server error")
			}
		}()
	}

	return a.runWithGracefulShutdown(runCtx)
}

func (a *App) connect(ctx context.Context) error {
	if a.cfg.Transport.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Transport.ConnectTimeout)
		defer cancel()
	}
	if err := a.transport.Connect(ctx); err != nil {
		return err
	}
	a.log.Info().
		Str("kind", a.cfg.Transport.Kind).
		Int("max_payload", a.transport.MaxPayload()).
		Msg("Transport connected")
	return nil
}

// runWithGracefulShutdown handles shutdown signals.
func (a *App) runWithGracefulShutdown(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	a.log.Info().Msg("PV gateway started successfully")

	select {
	case <-ctx.Done():
		a.log.Info().Msg("Context canceled, initiating shutdown")
	case sig := <-sigCh:
		a.log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	if a.cancel != nil {
		a.cancel()
	}

	return a.shutdown()
}

// shutdown stops the generators first so no new values reach the gateway, then the
// gateway workers, and closes the transport last.
func (a *App) shutdown() error {
	a.log.Info().Msg("Initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, g := range a.generators {
		if err := g.Stop(shutdownCtx); err != nil {
			a.log.Error().Err(err).Msg("Generator shutdown error")
		}
	}

	var firstErr error
	if err := a.gateway.Stop(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("Gateway shutdown error")
		firstErr = err
	}

	if err := a.transport.Close(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("Transport shutdown error")
		if firstErr == nil {
			firstErr = err
		}
	}

	if err := a.ioc.Close(); err != nil {
		a.log.Error().Err(err).Msg("IOC shutdown error")
	}

	a.log.Info().Msg("Graceful shutdown complete")
	return firstErr
}

func (a *App) handleHealth(w http.ResponseWriter, _ *http.Request) {
	apisrv.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"version":   Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady reports ready only while the transport is connected
func (a *App) handleReady(w http.ResponseWriter, _ *http.Request) {
	status := a.transport.Status()

	code := http.StatusOK
	state := "ready"
	if status != transport.StatusConnected {
		code = http.StatusServiceUnavailable
		state = "not_connected"
	}

	apisrv.WriteJSON(w, code, map[string]any{
		"status":    state,
		"transport": status.String(),
	})
}

// statsReporter periodically logs gateway totals.
func (a *App) statsReporter(ctx context.Context) {
	ticker := time.NewTicker(reportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.reportStats()
		}
	}
}

func (a *App) reportStats() {
	stats := a.gateway.Stats()

	var sent, published, received, delivered, dropped, errs uint64
	for _, ch := range stats.Channels {
		sent += ch.Sent
		published += ch.Published
		received += ch.Received
		delivered += ch.Delivered
		dropped += ch.Dropped
		errs += ch.Errors
	}

	a.log.Info().
		Str("transport", stats.Transport).
		Int("channels", len(stats.Channels)).
		Uint64("values_sent", sent).
		Uint64("messages_published", published).
		Uint64("messages_received", received).
		Uint64("values_delivered", delivered).
		Uint64("dropped", dropped).
		Uint64("errors", errs).
		Uint64("unrouted", stats.Unrouted).
		Int("held_off", len(stats.HeldOff)).
		Float64("uptime_seconds", time.Since(a.startedAt).Seconds()).
		Msg("Gateway statistics")
}
