package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/event-notifier/internal/config"
	"github.com/example/event-notifier/internal/delivery"
	"github.com/example/event-notifier/internal/logger"
	"github.com/example/event-notifier/internal/notify"
	"github.com/example/event-notifier/internal/providers/factory"
	"github.com/example/event-notifier/internal/server"
	"github.com/example/event-notifier/internal/template"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}
	log := baseLogger.With().Str("service", "event-notifier").Logger()

	filter, err := notify.ParseFilter(cfg.Filter.Spec, cfg.Filter.Mode)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse event filter")
	}

	renderer, err := template.FromSettings(cfg.Template)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load template sources")
	}

	provider, err := factory.Email(cfg, log.With().Str("component", "email-provider").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise email provider")
	}

	client, err := delivery.NewEmailClient(
		provider,
		log.With().Str("component", "delivery").Logger(),
		delivery.WithTimeout(time.Duration(cfg.Provider.TimeoutSeconds)*time.Second),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise delivery client")
	}

	sender := cfg.Email.From
	if sender == "" {
		// Only reachable with the mock backend; smtp requires a sender.
		sender = "notifier@localhost"
	}

	pipeline, err := notify.NewPipeline(notify.Config{
		Sender:     sender,
		DefaultTo:  cfg.Email.To,
		DefaultCc:  cfg.Email.Cc,
		DefaultBcc: cfg.Email.Bcc,
		DryRun:     cfg.Email.DryRun,
	}, notify.Dependencies{
		Filter:    filter,
		Renderer:  renderer,
		Deliverer: client,
		Logger:    log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise pipeline")
	}

	handler, err := server.New(pipeline, cfg.App.LogLevel, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise http handler")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info().Int("port", cfg.App.Port).Bool("dry_run", cfg.Email.DryRun).Msg("event notifier started (ready to receive events)")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server terminated with error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("event notifier init failed")
}
