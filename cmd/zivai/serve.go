package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"zivai/internal/adapters/gemini"
	"zivai/internal/adapters/httpapi"
	"zivai/internal/adapters/paynow"
	"zivai/internal/adapters/qdrant"
	redisstore "zivai/internal/adapters/redis"
	"zivai/internal/adapters/twilio"
	"zivai/internal/config"
	"zivai/internal/engine"
	"zivai/internal/logging"
	"zivai/internal/tree"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long:  `Starts the WhatsApp webhook server, wiring the conversation engine to Redis, Twilio, Gemini and Paynow.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(parseLevel(cfg.LogLevel))

	t, err := tree.Load(cfg.TreePath)
	if err != nil {
		return fmt.Errorf("failed to load conversation tree: %w", err)
	}
	logger.Info("conversation tree loaded", "nodes", t.Len(), "path", cfg.TreePath)

	store := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
		redisstore.WithTTL(cfg.SessionTTL))
	defer store.Close()

	messenger := twilio.New(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)

	generator, err := gemini.New(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return fmt.Errorf("failed to create gemini client: %w", err)
	}

	payments := paynow.New(cfg.PaynowIntegrationID, cfg.PaynowIntegrationKey,
		cfg.PaynowReturnURL, cfg.PaynowResultURL)

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithAmount(cfg.SubscriptionAmount),
	}

	// Retrieval context is optional; without Qdrant the bot still answers
	// from conversation history alone.
	if cfg.QdrantURL != "" {
		retriever, err := qdrant.New(qdrant.Config{
			URL:            cfg.QdrantURL,
			Collection:     cfg.QdrantCollection,
			APIKey:         cfg.QdrantAPIKey,
			EmbeddingModel: cfg.EmbeddingModel,
		}, generator)
		if err != nil {
			return fmt.Errorf("failed to create qdrant retriever: %w", err)
		}
		defer retriever.Close()
		opts = append(opts, engine.WithRetriever(retriever))
	}

	eng := engine.New(t, store, messenger, generator, payments, opts...)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpapi.NewHandler(eng, logger),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting webhook server", "addr", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info("shutting down", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown did not complete", "error", err)
			if err := srv.Close(); err != nil {
				logger.Error("failed to close server", "error", err)
			}
		}

		// Stop in-flight settlement polls before exit.
		eng.Poller().Drain()
		logger.Info("server stopped")
	}

	return nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
