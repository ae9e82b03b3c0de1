package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/projpack/internal/api"
	"github.com/dgallion1/projpack/internal/config"
	"github.com/dgallion1/projpack/internal/fetch"
	"github.com/dgallion1/projpack/internal/pipeline"
	"github.com/dgallion1/projpack/internal/transcode"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	fetcher := fetch.NewClient(fetch.Options{
		Timeout:   cfg.FetchTimeout,
		MaxBytes:  cfg.MaxFetchBytes,
		UserAgent: cfg.UserAgent,
	})
	packer := pipeline.NewPacker(fetcher, transcode.NewWASMCodec(), pipeline.PackerOptions{
		FetchWorkers:       cfg.FetchWorkers,
		TranscodeWorkers:   cfg.TranscodeWorkers,
		MaxConcurrentCrawl: cfg.MaxConcurrentCrawl,
	}, log)

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, packer, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, fetcher, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		fetcher.Close()
	}()

	log.Info("starting projpack", "port", cfg.Port, "workers", cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
