package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/sales-assistant/internal/adapters/http"
	"github.com/kirillkom/sales-assistant/internal/bootstrap"
	"github.com/kirillkom/sales-assistant/internal/config"
	"github.com/kirillkom/sales-assistant/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.New("salesbot-api", cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("bootstrap_failed")
	}
	defer app.Close()

	if app.Bus != nil {
		go func() {
			logger.Info().Str("subject", cfg.CorpusEventsSubject).Msg("corpus_events_subscribed")
			if err := app.Bus.SubscribeCorpusChanged(ctx, app.InvalidateCorpus); err != nil {
				logger.Error().Err(err).Msg("corpus_events_subscription_failed")
			}
		}()
	}

	router := httpadapter.NewRouter(cfg, app.Service, app.HTTPMetrics, logger).Handler()
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.APIPort).Str("llm_provider", cfg.LLMProvider).Msg("api_listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api_server_failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api_shutdown_failed")
	}
}
