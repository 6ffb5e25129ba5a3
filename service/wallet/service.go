package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brojonat/walletscope/service/metrics"
	"github.com/brojonat/walletscope/service/solana"
)

// Defaults applied by NewService when an Options field is zero.
const (
	defaultRequestTimeout    = 55 * time.Second
	defaultCountPageLimit    = MaxPageLimit
	defaultDetailConcurrency = 10
)

// RPC is the method-level Solana API the service aggregates over.
type RPC interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
	GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]solana.SignatureInfo, error)
	GetTransaction(ctx context.Context, signature string) (*solana.TransactionDetail, error)
}

// Options tunes aggregation behavior. Zero values fall back to defaults.
type Options struct {
	// RequestTimeout is the overall wall-clock deadline for one composite
	// request, spanning every upstream call and retry it makes.
	RequestTimeout time.Duration

	// CountPageLimit is the signature page size used for the activity
	// estimate in summaries, at most MaxPageLimit.
	CountPageLimit int

	// DetailConcurrency caps the number of in-flight getTransaction calls
	// while building a history page.
	DetailConcurrency int
}

// Service builds composite wallet views out of individual RPC calls.
type Service struct {
	rpc               RPC
	requestTimeout    time.Duration
	countPageLimit    int
	detailConcurrency int
	metrics           *metrics.Metrics
	logger            *slog.Logger
}

// NewService creates a Service. If m is nil, no metrics are recorded.
func NewService(rpc RPC, opts Options, m *metrics.Metrics, logger *slog.Logger) *Service {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.CountPageLimit < 1 || opts.CountPageLimit > MaxPageLimit {
		opts.CountPageLimit = defaultCountPageLimit
	}
	if opts.DetailConcurrency < 1 {
		opts.DetailConcurrency = defaultDetailConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		rpc:               rpc,
		requestTimeout:    opts.RequestTimeout,
		countPageLimit:    opts.CountPageLimit,
		detailConcurrency: opts.DetailConcurrency,
		metrics:           m,
		logger:            logger,
	}
}

// Summary builds the composite activity view for one wallet. The balance
// and signature lookups run concurrently. The balance is mandatory; if the
// signature lookup fails, the summary degrades to balance-only with zeroed
// activity fields rather than failing the request.
func (s *Service) Summary(ctx context.Context, address string) (*Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	start := time.Now()

	var (
		lamports uint64
		sigs     []solana.SignatureInfo
		sigsErr  error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lamports, err = s.rpc.GetBalance(gctx, address)
		return err
	})
	g.Go(func() error {
		// Best effort: a failure here degrades the summary instead of
		// failing it, so it never cancels the balance call.
		sigs, sigsErr = s.rpc.GetSignaturesForAddress(gctx, address, s.countPageLimit)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, mapErr("summary", err)
	}

	summary := &Summary{
		Address:         address,
		Balance:         LamportsToSOL(lamports),
		BalanceLamports: lamports,
	}

	status := "ok"
	switch {
	case sigsErr == nil:
		if len(sigs) > 0 {
			summary.TxCount = len(sigs)
			summary.TxCountCapped = len(sigs) == s.countPageLimit
			summary.LastActive = UnixToUTC(sigs[0].BlockTime)
		}
	case errors.Is(sigsErr, context.DeadlineExceeded), errors.Is(sigsErr, context.Canceled):
		// The overall deadline ended the signature call; the balance we
		// already hold is a partial result and is discarded.
		return nil, mapErr("summary", sigsErr)
	default:
		status = "degraded"
		s.logger.WarnContext(ctx, "signature lookup failed, returning degraded summary",
			"address", address,
			"error", sigsErr,
		)
	}

	if s.metrics != nil {
		s.metrics.RecordSummaryBuilt(status, time.Since(start).Seconds())
	}
	s.logger.DebugContext(ctx, "built wallet summary",
		"address", address,
		"tx_count", summary.TxCount,
		"degraded", status == "degraded",
	)
	return summary, nil
}

// Transactions builds one page of transaction history, newest first. The
// signature list is the page spine: detail lookups fan out concurrently
// under the configured cap, and each record lands at its signature's
// position, so output order never depends on completion order. A failed
// detail lookup downgrades its record to unknown status instead of failing
// the page.
func (s *Service) Transactions(ctx context.Context, address string, limit int) (*TransactionPage, error) {
	if limit < 1 || limit > MaxPageLimit {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidLimit, limit, MaxPageLimit)
	}

	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	start := time.Now()

	sigs, err := s.rpc.GetSignaturesForAddress(ctx, address, limit)
	if err != nil {
		return nil, mapErr("transactions", err)
	}

	records := make([]Transaction, len(sigs))
	var fallbacks atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.detailConcurrency)
	for i, sig := range sigs {
		g.Go(func() error {
			detail, err := s.rpc.GetTransaction(gctx, sig.Signature)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					return err
				}
				fallbacks.Add(1)
				if s.metrics != nil {
					s.metrics.RecordDetailFallback()
				}
				s.logger.WarnContext(gctx, "transaction detail fetch failed, emitting unknown status",
					"address", address,
					"signature", sig.Signature,
					"error", err,
				)
				records[i] = fallbackRecord(sig)
				return nil
			}
			if detail == nil {
				// Not found upstream, typically pruned past the node's
				// retention window.
				s.logger.DebugContext(gctx, "transaction not found upstream",
					"address", address,
					"signature", sig.Signature,
				)
				records[i] = fallbackRecord(sig)
				return nil
			}
			records[i] = Transaction{
				Signature: sig.Signature,
				BlockTime: UnixToUTC(sig.BlockTime),
				Slot:      sig.Slot,
				Status:    statusFromFailed(detail.Failed),
				Fee:       detail.Fee,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, mapErr("transactions", err)
	}

	status := "ok"
	if fallbacks.Load() > 0 {
		status = "degraded"
	}
	if s.metrics != nil {
		s.metrics.RecordTransactionPageBuilt(status, time.Since(start).Seconds())
	}
	s.logger.DebugContext(ctx, "built transaction page",
		"address", address,
		"count", len(records),
		"fallbacks", fallbacks.Load(),
	)
	return &TransactionPage{
		Address:      address,
		Transactions: records,
		Count:        len(records),
	}, nil
}

// fallbackRecord keeps the list position for a signature whose detail could
// not be fetched. Slot and block time come from the signature entry; status
// and fee cannot be determined.
func fallbackRecord(sig solana.SignatureInfo) Transaction {
	return Transaction{
		Signature: sig.Signature,
		BlockTime: UnixToUTC(sig.BlockTime),
		Slot:      sig.Slot,
		Status:    TxStatusUnknown,
		Fee:       0,
	}
}

// mapErr converts an expired overall deadline into ErrUpstreamTimeout.
// Cancellation and already-classified upstream failures pass through.
func mapErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrUpstreamTimeout)
	}
	return err
}
