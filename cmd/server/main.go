package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	"github.com/dgallion1/hl7gest/internal/api"
	"github.com/dgallion1/hl7gest/internal/config"
	"github.com/dgallion1/hl7gest/internal/extract"
	"github.com/dgallion1/hl7gest/internal/lint"
	"github.com/dgallion1/hl7gest/internal/metrics"
	"github.com/dgallion1/hl7gest/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	linter := lint.Builtin()
	if cfg.LintRulesFile != "" {
		linter, err = lint.LoadFile(cfg.LintRulesFile)
		if err != nil {
			log.Error("failed to load lint rules", "file", cfg.LintRulesFile, "error", err)
			os.Exit(1)
		}
	}
	log.Info("lint rules loaded", "rules", len(linter.Rules()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	stats := extract.NewParseStats(time.Hour)

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, linter, stats, m, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, linter, m, log, cfg)

	httpServer := &http.Server{
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		log.Error("listen failed", "port", cfg.Port, "error", err)
		os.Exit(1)
	}
	ln = netutil.LimitListener(ln, cfg.MaxConnections)

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
	}()

	log.Info("starting hl7gest",
		"port", cfg.Port,
		"workers", cfg.WorkerCount,
		"max_connections", cfg.MaxConnections,
		"auth", cfg.APIKey != "",
	)
	if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
