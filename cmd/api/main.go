// Command api serves the read-only report API over an existing database
// without running any probes.
package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/securemon/internal/config"
	"github.com/hamed0406/securemon/internal/httpapi"
	"github.com/hamed0406/securemon/internal/logging"
	"github.com/hamed0406/securemon/internal/repo/backend"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.NewLogger(logging.Options{Dir: cfg.LogDir, Level: cfg.LogLevel})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	addr := cfg.APIAddr
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	store, err := backend.Open(context.Background(), cfg.DatabaseURL, cfg.DBPath, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	// no hub: nothing is appended by this process, so /api/live is not served
	api := httpapi.NewServer(logger, store, nil)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Router(httpapi.Options{Keys: cfg.APIKeys, RPM: cfg.APIRPM, Burst: cfg.APIBurst}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("api_listen", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
