// loranetd -- LoRa mesh networking daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/loranet/loranet/internal/config"
	"github.com/loranet/loranet/internal/mesh"
	meshmetrics "github.com/loranet/loranet/internal/metrics"
	"github.com/loranet/loranet/internal/radio"
	appversion "github.com/loranet/loranet/internal/version"
)

// shutdownTimeout is the maximum time to wait for the metrics server to
// drain active connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

// tickInterval is the rate at which the mesh engine's Process loop polls
// the radio and advances the reset scheduler and duty-cycle governor.
// The original firmware polls on every main-loop iteration; a fixed tick
// is the daemon's equivalent.
const tickInterval = 20 * time.Millisecond

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, gen, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("loranetd starting",
		slog.String("version", appversion.Version),
		slog.String("generation", gen.String()),
		slog.String("metrics_addr", cfg.Metrics.Addr),
		slog.String("radio_mode", cfg.Radio.Mode),
	)

	reg := prometheus.NewRegistry()
	collector := meshmetrics.NewCollector(reg)

	r, closeRadio, err := newRadio(cfg.Radio, logger)
	if err != nil {
		logger.Error("failed to initialize radio transport", slog.String("error", err.Error()))
		return 1
	}
	defer closeRadio()

	engine, err := newEngine(cfg, r, logger, collector)
	if err != nil {
		logger.Error("failed to initialize mesh engine", slog.String("error", err.Error()))
		return 1
	}

	if err := runServers(cfg, engine, collector, reg, logger); err != nil {
		logger.Error("loranetd exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("loranetd stopped")
	return 0
}

// newRadio constructs the configured radio transport. closeFn is always
// non-nil and safe to call even when the transport has no resources to
// release (mock mode).
func newRadio(cfg config.RadioConfig, logger *slog.Logger) (mesh.Radio, func(), error) {
	switch cfg.Mode {
	case "udp":
		r, err := radio.NewUDPRadio(cfg.LocalUDPAddr, cfg.RemoteUDPAddr, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("create udp radio: %w", err)
		}
		return r, func() { _ = r.Close() }, nil
	default:
		// Mock mode drives one side of an in-process pair. The other
		// side is not driven by anything, so frames the daemon sends
		// go unanswered and nothing is ever received. Demo/single-node
		// use only.
		a, _ := radio.NewMockPair(2 * time.Millisecond)
		return a, func() {}, nil
	}
}

// newEngine builds and configures the mesh engine from cfg.
func newEngine(cfg *config.Config, r mesh.Radio, logger *slog.Logger, collector *meshmetrics.Collector) (*mesh.Engine, error) {
	engine := mesh.NewEngine(r,
		mesh.WithLogger(logger),
		mesh.WithMetrics(collector),
	)

	siteID, err := cfg.SiteID()
	if err != nil {
		return nil, fmt.Errorf("decode site id: %w", err)
	}
	siteKey, err := cfg.SiteKey()
	if err != nil {
		return nil, fmt.Errorf("decode site key: %w", err)
	}
	if err := engine.Init(siteID, siteKey); err != nil {
		return nil, fmt.Errorf("init engine: %w", err)
	}

	if err := engine.SetLocalAddr(cfg.Mesh.LocalAddr); err != nil {
		return nil, fmt.Errorf("set local addr: %w", err)
	}

	if cfg.Discovery.Enabled {
		if err := engine.EnableDiscovery(cfg.Discovery.Capacity); err != nil {
			return nil, fmt.Errorf("enable discovery: %w", err)
		}
	} else {
		if err := engine.SetNodes(cfg.Discovery.Roster); err != nil {
			return nil, fmt.Errorf("set nodes: %w", err)
		}
	}

	engine.SetDutyCycle(cfg.Mesh.DutyCycleWindow, cfg.Mesh.DutyCyclePermillage)

	return engine, nil
}

// runServers runs the engine process loop and the metrics HTTP server
// under an errgroup with a signal-aware context for graceful shutdown.
func runServers(
	cfg *config.Config,
	engine *mesh.Engine,
	collector *meshmetrics.Collector,
	reg *prometheus.Registry,
	logger *slog.Logger,
) error {
	metricsSrv := newMetricsServer(cfg.Metrics, reg)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	lc := net.ListenConfig{}
	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr),
			slog.String("path", cfg.Metrics.Path),
		)
		return listenAndServe(gCtx, &lc, metricsSrv, cfg.Metrics.Addr)
	})

	g.Go(func() error {
		return runEngineLoop(gCtx, engine, collector)
	})

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, logger, metricsSrv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run servers: %w", err)
	}
	return nil
}

// runEngineLoop ticks the mesh engine's Process method until ctx is
// cancelled, updating the peer table size gauge after each tick.
func runEngineLoop(ctx context.Context, engine *mesh.Engine, collector *meshmetrics.Collector) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			engine.Process(now)
			collector.SetPeerTableSize(engine.Table().Len())
		}
	}
}

// gracefulShutdown drains the metrics server within shutdownTimeout.
func gracefulShutdown(ctx context.Context, logger *slog.Logger, servers ...*http.Server) error {
	logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown server: %w", err))
		}
	}
	return shutdownErr
}

// listenAndServe creates a TCP listener and serves HTTP requests until
// the server is shut down.
func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

// newMetricsServer creates an HTTP server for the Prometheus metrics endpoint.
func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// loadConfig loads from path, or returns DefaultConfig (with a fresh
// generation id) if path is empty.
func loadConfig(path string) (*config.Config, config.GenerationID, error) {
	if path != "" {
		result, err := config.Load(path)
		if err != nil {
			return nil, config.GenerationID{}, fmt.Errorf("load config from %s: %w", path, err)
		}
		return result.Config, result.Gen, nil
	}
	return config.DefaultConfig(), uuid.New(), nil
}

// newLoggerWithLevel creates a structured logger using a shared LevelVar.
func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
