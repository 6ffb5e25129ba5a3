package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/walletscope/service/config"
	"github.com/brojonat/walletscope/service/metrics"
	"github.com/brojonat/walletscope/service/wallet"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WalletReader is the aggregation API the HTTP handlers expose. *wallet.Service
// is the production implementation; tests substitute canned responses.
type WalletReader interface {
	Summary(ctx context.Context, address string) (*wallet.Summary, error)
	Transactions(ctx context.Context, address string, limit int) (*wallet.TransactionPage, error)
}

// Server represents the HTTP server for the wallet activity service.
type Server struct {
	addr    string
	cfg     *config.Config
	wallet  WalletReader
	metrics *metrics.Metrics
	logger  *slog.Logger
	server  *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, cfg *config.Config, walletReader WalletReader, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:    addr,
		cfg:     cfg,
		wallet:  walletReader,
		metrics: m,
		logger:  logger,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Wallet activity routes
	summaryMW := metrics.HTTPMetricsMiddleware(s.metrics, "wallet_summary")
	transactionsMW := metrics.HTTPMetricsMiddleware(s.metrics, "wallet_transactions")
	mux.Handle("GET /api/v1/wallets/{address}/summary", summaryMW(handleWalletSummary(s.wallet, s.logger)))
	mux.Handle("GET /api/v1/wallets/{address}/transactions", transactionsMW(handleWalletTransactions(s.wallet, s.logger)))

	// Service info at the exact root only
	mux.Handle("GET /{$}", handleServiceInfo())

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	// Wrap mux with CORS middleware
	handler := corsMiddleware(mux)

	// The write timeout must outlast the composite request deadline or slow
	// aggregations get cut off mid-response.
	writeTimeout := s.cfg.RequestTimeout + 5*time.Second

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set CORS headers for all requests
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Pass through to next handler
		next.ServeHTTP(w, r)
	})
}
