package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"abzellie.com/storefront/internal/api"
	"abzellie.com/storefront/internal/auth"
	"abzellie.com/storefront/internal/catalog"
	"abzellie.com/storefront/internal/config"
	"abzellie.com/storefront/internal/core"
	"abzellie.com/storefront/internal/logging"
	"abzellie.com/storefront/internal/ratelimit"
	"abzellie.com/storefront/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(config.RequireChat | config.RequireAuth); err != nil {
		return err
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Debug("service starting in debug mode")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	kv, err := store.Open(ctx, store.StoreType(cfg.StoreDriver), cfg.DatabaseURL, cfg.RedisAddr, cfg.RedisTTL)
	if err != nil {
		return fmt.Errorf("failed to initialize %s store: %w", cfg.StoreDriver, err)
	}
	defer kv.Close()

	llmService, err := core.NewLLMService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, core.SystemInstruction(cat))
	if err != nil {
		return fmt.Errorf("failed to initialize LLM service: %w", err)
	}
	defer llmService.Close()

	signer, err := auth.NewSigner(cfg.JWTSecret)
	if err != nil {
		return err
	}

	limiterFor := func(ctx context.Context, visitorID string) (core.Admission, error) {
		return ratelimit.New(ctx, store.Scoped(kv, visitorID),
			ratelimit.WithLimit(cfg.ChatDailyLimit),
			ratelimit.WithLogger(logger),
		)
	}
	chatService := core.NewChatService(llmService, limiterFor,
		core.WithSessionTTL(cfg.ChatSessionTTL),
		core.WithServiceLogger(logger),
		core.WithSessionOptions(
			core.WithSessionLogger(logger),
			core.WithFallbackPhone(cat.Company().PrimaryPhone()),
		),
	)

	apiHandler := api.NewAPIHandler(cat, kv, signer, chatService, logger)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // model replies can be slow
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", serverAddr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("could not listen on %s: %w", serverAddr, err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exiting gracefully")
	return nil
}
