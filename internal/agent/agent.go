// Package agent wires the frequency dispatch subsystem into a runnable
// node-local service: table registry, sysfs clock, dispatch manager,
// control API, prometheus endpoint and the table config watcher.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/corefreq/cpu-freq-manager/internal/api"
	"github.com/corefreq/cpu-freq-manager/internal/clock"
	"github.com/corefreq/cpu-freq-manager/internal/dispatch"
	"github.com/corefreq/cpu-freq-manager/internal/freqtable"
	"github.com/corefreq/cpu-freq-manager/internal/monitoring"
	"github.com/corefreq/cpu-freq-manager/internal/notify"
)

// NewLogger builds the zap-backed logr root logger. Negative zap levels map
// to logr V-levels, so verbosity 5 enables log.V(5) output.
func NewLogger(verbosity int) (logr.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-verbosity))

	zapLog, err := cfg.Build()
	if err != nil {
		return logr.Logger{}, err
	}
	return zapr.NewLogger(zapLog), nil
}

// Run starts the agent and blocks until ctx is canceled or a component
// fails to come up.
func Run(ctx context.Context, cfg *Config, log logr.Logger) error {
	registry := freqtable.NewRegistry(log.WithName("freqtable"))
	if err := registry.LoadDir(cfg.TableDir); err != nil {
		return fmt.Errorf("frequency tables could not be loaded: %w", err)
	}

	cores := registry.Cores()
	if len(cores) == 0 {
		return errors.New("no cores configured")
	}
	slices.Sort(cores)

	clk, err := clock.NewSysfsClock(cores[0], log.WithName("clock"))
	if err != nil {
		return err
	}

	notifier := notify.NewRegistry()
	mgr := dispatch.NewManager(clk, clk, registry, notifier, log.WithName("dispatch"))
	defer mgr.Stop()

	for _, core := range cores {
		if !clk.IsActive(core) {
			log.V(4).Info("core offline at attach, deferring init to the online hook", "core", core)
			continue
		}
		if err := mgr.InitializeCore(core); err != nil {
			return fmt.Errorf("core %d initialization failed: %w", core, err)
		}
	}

	promRegistry := prometheus.NewRegistry()
	if err := monitoring.RegisterAll(promRegistry, mgr, clk, notifier,
		log.WithName(monitoring.LogTopName)); err != nil {
		return err
	}

	if cfg.WatchTables {
		watcher, err := freqtable.NewWatcher(registry, cfg.TableDir, log.WithName("tablewatch"))
		if err != nil {
			return fmt.Errorf("table watcher could not be started: %w", err)
		}
		defer watcher.Stop()
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	controlServer := api.NewServer(mgr, clk, log.WithName("api"))

	errCh := make(chan error, 2)
	go func() {
		log.V(4).Info("metrics listening", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	go func() {
		if err := controlServer.ListenAndServe(cfg.ListenAddr); err != nil {
			errCh <- fmt.Errorf("control API server: %w", err)
		}
	}()

	log.Info("agent started", "cores", len(cores),
		"listenAddr", cfg.ListenAddr, "metricsAddr", cfg.MetricsAddr)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := controlServer.Shutdown(); err != nil {
		log.Error(err, "control API shutdown failed")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "metrics server shutdown failed")
	}

	return runErr
}
