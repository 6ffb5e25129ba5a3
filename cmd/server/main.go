package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/walletscope/service/config"
	"github.com/brojonat/walletscope/service/metrics"
	"github.com/brojonat/walletscope/service/server"
	"github.com/brojonat/walletscope/service/solana"
	"github.com/brojonat/walletscope/service/wallet"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Prometheus metrics shared by the RPC client, aggregator, and HTTP layer
	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// Initialize Solana RPC client: retry policy over single-exchange transport
	// Note: For premium RPC endpoints, include API key in the URL
	transport := solana.NewTransport(cfg.SolanaRPCURL,
		solana.WithTimeout(cfg.RPCTimeout),
		solana.WithLogger(logger),
	)
	rpcClient := solana.NewClient(transport, retryPolicy(cfg), cfg.SolanaRPCURL, m, logger)

	// Verify upstream connectivity before accepting traffic
	probeCtx, probeCancel := context.WithTimeout(ctx, cfg.RPCTimeout)
	slot, err := rpcClient.GetSlot(probeCtx)
	probeCancel()
	if err != nil {
		logger.Error("failed to reach solana rpc node", "url", cfg.SolanaRPCURL, "error", err)
		os.Exit(1)
	}
	logger.Info("connected to solana rpc node", "url", cfg.SolanaRPCURL, "slot", slot)

	// Initialize the wallet aggregation service
	walletSvc := wallet.NewService(rpcClient, wallet.Options{
		RequestTimeout:    cfg.RequestTimeout,
		CountPageLimit:    cfg.CountPageLimit,
		DetailConcurrency: cfg.DetailConcurrency,
	}, m, logger)

	// Initialize HTTP server
	httpServer := server.New(cfg.ServerAddr, cfg, walletSvc, m, logger)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// retryPolicy builds the transport retry policy from config. MAX_RETRIES is
// the total attempt count per upstream call, first try included; a value of
// zero still performs one attempt.
func retryPolicy(cfg *config.Config) solana.Policy {
	return solana.Policy{
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
