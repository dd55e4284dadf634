// Command shell is a terminal front end for the storefront. It keeps the
// cart and chat budget of one visitor in the configured store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"abzellie.com/storefront/internal/cart"
	"abzellie.com/storefront/internal/catalog"
	"abzellie.com/storefront/internal/config"
	"abzellie.com/storefront/internal/core"
	"abzellie.com/storefront/internal/logging"
	"abzellie.com/storefront/internal/ratelimit"
	"abzellie.com/storefront/internal/store"
)

func main() {
	visitor := flag.String("visitor", "local", "visitor namespace for the cart and chat limit")
	flag.Parse()

	if err := run(*visitor); err != nil {
		fmt.Fprintf(os.Stderr, "shell: %v\n", err)
		os.Exit(1)
	}
}

func run(visitorID string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

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
	visitorStore := store.Scoped(kv, visitorID)

	crt, err := cart.New(ctx, visitorStore, cart.WithLogger(logger))
	if err != nil {
		return err
	}

	var chat *core.ChatSession
	if err := cfg.Validate(config.RequireChat); err != nil {
		logger.Warn("chat disabled", "error", err)
	} else {
		llmService, err := core.NewLLMService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, core.SystemInstruction(cat))
		if err != nil {
			return fmt.Errorf("failed to initialize LLM service: %w", err)
		}
		defer llmService.Close()

		limiter, err := ratelimit.New(ctx, visitorStore,
			ratelimit.WithLimit(cfg.ChatDailyLimit),
			ratelimit.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		chat = core.NewChatSession(llmService, limiter,
			core.WithSessionLogger(logger),
			core.WithFallbackPhone(cat.Company().PrimaryPhone()),
		)
	}

	sh := newShell(os.Stdout, cat, crt, chat)
	defer sh.Close()

	slog.Debug("shell ready", "visitor", visitorID, "store", cfg.StoreDriver)
	return sh.Run(ctx, os.Stdin)
}
