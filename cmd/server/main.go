package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docxref/internal/api"
	"github.com/dgallion1/docxref/internal/archive"
	"github.com/dgallion1/docxref/internal/config"
	"github.com/dgallion1/docxref/internal/pathstore"
	"github.com/dgallion1/docxref/internal/pipeline"
	"github.com/dgallion1/docxref/internal/xref"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	hints, err := xref.LoadHints(cfg.HintsFile)
	if err != nil {
		log.Error("invalid hints file", "path", cfg.HintsFile, "error", err)
		os.Exit(1)
	}
	hints.MinParagraphLength = cfg.MinParagraphLength

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Status publishing is optional.
	var ps *pathstore.Client
	if cfg.PublishEnabled() {
		ps = pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)
		log.Info("publishing build status", "pathstore", cfg.PathstoreURL)
	}

	var store *archive.Store
	if cfg.ArchiveEnabled() {
		store, err = archive.Open(cfg.ArchiveDir, cfg.ArchiveTTL, log)
		if err != nil {
			log.Error("archive unavailable", "dir", cfg.ArchiveDir, "error", err)
			os.Exit(1)
		}
		log.Info("archiving finished builds", "dir", cfg.ArchiveDir, "ttl", cfg.ArchiveTTL)
	}

	orch := pipeline.NewOrchestrator(cfg, hints, ps, store, log)
	orch.Start(ctx)

	srv := api.NewServer(orch, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

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
		if ps != nil {
			ps.Close()
		}
		if err := store.Close(); err != nil {
			log.Error("archive close failed", "error", err)
		}
	}()

	log.Info("starting docxref", "port", cfg.Port, "workers", cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
