package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yourname/shortreg/internal/audit"
	"github.com/yourname/shortreg/internal/config"
	"github.com/yourname/shortreg/internal/core"
	httpapi "github.com/yourname/shortreg/internal/http"
	"github.com/yourname/shortreg/internal/shortid"
	"github.com/yourname/shortreg/internal/store"
)

func main() {
	// Fast JSON logs by default; pretty if running in a TTY/dev
	if isatty() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	cfg := config.Load()

	var baseFlag string
	flag.StringVar(&baseFlag, "base-url", "", "public base URL for short links (overrides env BASE_URL)")
	flag.Parse()
	if baseFlag != "" {
		cfg.BaseURL = baseFlag
	}

	// Registry + ledger over the process-lifetime in-memory store
	gen := shortid.New(cfg.CodeLength)
	registry := store.NewRegistry(gen, nil)
	ledger := store.NewLedger(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Audit sink: remote collector when configured, otherwise a no-op
	var sink core.AuditSink = audit.Nop{}
	if cfg.AuditURL != "" {
		remote := audit.NewRemote(cfg.AuditURL, audit.Credentials{
			ClientID:     cfg.AuditClientID,
			ClientSecret: cfg.AuditSecret,
		})
		go remote.Run(ctx)
		sink = remote
	}

	svc := core.NewService(registry, ledger, sink)

	// HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           httpapi.NewRouter(cfg, svc),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal")
	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("bye")
}

func isatty() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
