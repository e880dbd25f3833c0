package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/securemon/internal/config"
	"github.com/hamed0406/securemon/internal/feed"
	"github.com/hamed0406/securemon/internal/httpapi"
	"github.com/hamed0406/securemon/internal/logging"
	"github.com/hamed0406/securemon/internal/probe"
	"github.com/hamed0406/securemon/internal/repo/backend"
	"github.com/hamed0406/securemon/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.NewLogger(logging.Options{Dir: cfg.LogDir, Level: cfg.LogLevel, Console: true})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("monitor_failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	inner, err := backend.Open(ctx, cfg.DatabaseURL, cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := inner.Close(); err != nil {
			logger.Warn("store_close_error", zap.Error(err))
		}
	}()

	hub := feed.NewHub(logger)
	defer hub.Close()
	store := feed.NewStore(inner, hub)

	client, err := probe.NewHTTPClient(cfg.ProbeTimeout)
	if err != nil {
		return err
	}
	mtbfClient, err := probe.NewHTTPClient(cfg.MTBFTimeout())
	if err != nil {
		return err
	}

	fs := probe.NewForwardSecrecyProbe(logger, store, cfg.Hostname, cfg.TLSPort, cfg.ProbeTimeout)
	fs.TLS12Only = !cfg.AllowTLS13

	orch := scheduler.NewOrchestrator(logger, store, cfg.Rounds,
		scheduler.Job{
			Probe: probe.NewPingProbe(logger, store, probe.NewCommandEchoer(cfg.PingTimeout), cfg.PingHosts),
			Delay: cfg.PingDelay,
		},
		scheduler.Job{
			Probe: probe.NewHSTSProbe(logger, store, probe.NewHTTPChecker(client), cfg.URL),
			Delay: cfg.ProbeDelay,
		},
		scheduler.Job{Probe: fs, Delay: cfg.ProbeDelay},
		scheduler.Job{
			Probe: probe.NewMTBFSampler(logger, store, probe.NewHTTPChecker(mtbfClient), cfg.URL, cfg.MTBFWindow, cfg.MTBFInterval),
			Delay: cfg.MTBFCooldown,
		},
	)

	if cfg.APIAddr != "" {
		api := httpapi.NewServer(logger, store, hub)
		srv := &http.Server{
			Addr:              cfg.APIAddr,
			Handler:           api.Router(httpapi.Options{Keys: cfg.APIKeys, RPM: cfg.APIRPM, Burst: cfg.APIBurst}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("api_listen", zap.String("addr", cfg.APIAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("api_listen_error", zap.Error(err))
			}
		}()
		defer func() {
			// live streams only end once the hub is closed
			hub.Close()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	return orch.Run(ctx)
}
