// Command meshsim boots a simulated overlay mesh from a TOML topology file
// and serves its controller's REST/WebSocket/metrics surface until
// interrupted.
//
// Grounded in original_source/codice/network_init/src/main.rs's bootstrap
// flow (load config, validate, hand off to the simulation), adapted to
// start one Go process instead of spawning a thread per node directly in
// main — that responsibility belongs to simulation.Mesh.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/natefinch/lumberjack"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dronemesh/overlay/config"
	"github.com/dronemesh/overlay/controller"
	"github.com/dronemesh/overlay/controller/httpapi"
	"github.com/dronemesh/overlay/simulation"
)

func main() {
	configPath := flag.String("config", "topology.toml", "path to the TOML topology file")
	httpAddr := flag.String("http-addr", ":8080", "address the controller's REST/WebSocket surface listens on")
	metricsAddr := flag.String("metrics-addr", ":9090", "address the Prometheus /metrics endpoint listens on")
	logPath := flag.String("log-file", "meshsim.log", "rotating log file for the controller process")
	flag.Parse()

	procLog := newProcessLogger(*logPath)
	defer procLog.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		procLog.Fatal("failed to load topology", zap.Error(err))
	}

	mesh, err := simulation.Build(cfg, slog.Default())
	if err != nil {
		procLog.Fatal("failed to build mesh", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	metrics := controller.NewMetrics(registry)
	go metrics.Run(mesh.Controller().Events())

	api := httpapi.New(mesh.Controller())
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			procLog.Warn("metrics listener stopped", zap.Error(err))
		}
	}()
	go func() {
		if err := api.Listen(*httpAddr); err != nil {
			procLog.Warn("httpapi listener stopped", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	procLog.Info("mesh starting",
		zap.Int("drones", len(cfg.Drone)),
		zap.Int("clients", len(cfg.Client)),
		zap.Int("servers", len(cfg.Server)),
	)
	if err := mesh.Run(ctx); err != nil {
		procLog.Error("mesh exited with error", zap.Error(err))
		os.Exit(1)
	}
	procLog.Info("mesh stopped")
}

// newProcessLogger builds the controller process's own ops logger: JSON
// lines to a rotating file, matching the teacher pack's zap+lumberjack
// idiom (cppla-moto's utils.Logger) rather than the per-node slog loggers
// used inside the simulated mesh itself.
func newProcessLogger(path string) *zap.Logger {
	hook := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    64,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(hook),
		zapcore.InfoLevel,
	)
	return zap.New(core, zap.AddCaller())
}
