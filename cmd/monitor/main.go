// Command monitor is the engine's process entrypoint: it opens the SQLite
// store, applies pending migrations, seeds setting defaults, exposes
// Prometheus metrics over HTTP, and runs the periodic loop (C7) until an
// interrupt or SIGTERM arrives. Sequential component construction plus
// signal-driven graceful shutdown is grounded on cmd/server/main.go's own
// wiring shape, trimmed to this engine's much smaller dependency set.
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/technosupport/nvrmonitor/internal/config"
	"github.com/technosupport/nvrmonitor/internal/engine"
	"github.com/technosupport/nvrmonitor/internal/settings"
	"github.com/technosupport/nvrmonitor/internal/store"
)

func main() {
	cfg := config.Load()

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer db.Close()

	if err := store.Migrate(db); err != nil {
		log.Fatalf("migrate store: %v", err)
	}

	s := store.New(db)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.SeedDefaults(ctx, settings.Defaults); err != nil {
		log.Fatalf("seed settings: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	e := engine.New(s, cfg.CameraNamesCSV)
	e.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Print("shutdown requested, stopping engine")
	e.Stop(context.Background())

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown: %v", err)
	}
}
