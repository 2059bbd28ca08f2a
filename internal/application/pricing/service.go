package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/seatswap/escrow/internal/domain/money"
	"github.com/seatswap/escrow/internal/domain/pricing"
	"github.com/shopspring/decimal"
)

// Service issues time-boxed price quotes and consumes them exactly once.
type Service struct {
	snapshotRepo  pricing.Repository
	methodCatalog PaymentMethodCatalog
	platformCfg   PlatformConfig
	locker        Locker
	snapshotTTL   time.Duration
	logger        zerolog.Logger
}

// NewService creates a new pricing quote service.
func NewService(
	snapshotRepo pricing.Repository,
	methodCatalog PaymentMethodCatalog,
	platformCfg PlatformConfig,
	locker Locker,
	snapshotTTL time.Duration,
	logger zerolog.Logger,
) *Service {
	return &Service{
		snapshotRepo:  snapshotRepo,
		methodCatalog: methodCatalog,
		platformCfg:   platformCfg,
		locker:        locker,
		snapshotTTL:   snapshotTTL,
		logger:        logger,
	}
}

// ConsumeResult is what a successful consumption hands back to the purchase
// flow: the frozen snapshot plus the selected method's terms.
type ConsumeResult struct {
	Snapshot          *pricing.Snapshot
	CommissionPercent decimal.Decimal
	ManualPayment     bool
}

// CreateSnapshot quotes a listing at the given per-ticket price. Platform
// fees and enabled payment methods are read now and copied into the
// snapshot; the listing's existence is the caller's concern.
func (s *Service) CreateSnapshot(ctx context.Context, listingID uuid.UUID, pricePerTicket money.Money) (*pricing.Snapshot, error) {
	buyerPct, err := s.platformCfg.BuyerFeePercent(ctx)
	if err != nil {
		return nil, fmt.Errorf("read buyer fee percent: %w", err)
	}
	sellerPct, err := s.platformCfg.SellerFeePercent(ctx)
	if err != nil {
		return nil, fmt.Errorf("read seller fee percent: %w", err)
	}
	enabled, err := s.methodCatalog.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list enabled payment methods: %w", err)
	}

	methods := make([]pricing.MethodCommission, 0, len(enabled))
	for _, m := range enabled {
		methods = append(methods, pricing.MethodCommission{
			PaymentMethodID:   m.ID,
			PaymentMethodName: m.Name,
			CommissionPercent: m.CommissionPercent,
			Manual:            m.Manual,
		})
	}

	snapshot, err := pricing.NewSnapshot(listingID, pricePerTicket, buyerPct, sellerPct, methods, s.snapshotTTL)
	if err != nil {
		return nil, err
	}

	if err := s.snapshotRepo.Create(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}

	s.logger.Debug().
		Str("snapshot_id", snapshot.ID.String()).
		Str("listing_id", listingID.String()).
		Time("expires_at", snapshot.ExpiresAt).
		Msg("pricing snapshot created")

	return snapshot, nil
}

// GetSnapshot retrieves a snapshot by ID.
func (s *Service) GetSnapshot(ctx context.Context, id uuid.UUID) (*pricing.Snapshot, error) {
	return s.snapshotRepo.GetByID(ctx, id)
}

// ValidateAndConsume atomically spends a snapshot on behalf of the given
// transaction. Checks run in order, each failure a distinct error: not
// found, already consumed, expired, listing mismatch, method unavailable.
// Work is serialized per snapshot ID and the repository write is itself
// conditional, so at most one of N racing purchases can win.
func (s *Service) ValidateAndConsume(
	ctx context.Context,
	snapshotID uuid.UUID,
	listingID uuid.UUID,
	paymentMethodID uuid.UUID,
	transactionID uuid.UUID,
) (*ConsumeResult, error) {
	var result *ConsumeResult

	err := s.locker.WithLock(ctx, "pricing_snapshot:"+snapshotID.String(), func(ctx context.Context) error {
		snapshot, err := s.snapshotRepo.GetByID(ctx, snapshotID)
		if err != nil {
			return err
		}

		if err := snapshot.CanConsume(listingID, paymentMethodID, time.Now()); err != nil {
			return err
		}

		commission, err := snapshot.Consume(transactionID, paymentMethodID, time.Now())
		if err != nil {
			return err
		}

		if err := s.snapshotRepo.Consume(ctx, snapshot); err != nil {
			return err
		}

		method, _ := snapshot.MethodByID(paymentMethodID)
		result = &ConsumeResult{
			Snapshot:          snapshot,
			CommissionPercent: commission,
			ManualPayment:     method.Manual,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("snapshot_id", snapshotID.String()).
		Str("transaction_id", transactionID.String()).
		Msg("pricing snapshot consumed")

	return result, nil
}

// ReopenSnapshot reverts a consumption. It exists only as the compensation
// step of a purchase that failed after consuming its quote.
func (s *Service) ReopenSnapshot(ctx context.Context, snapshotID uuid.UUID) error {
	return s.snapshotRepo.Reopen(ctx, snapshotID)
}

// SweepExpired deletes snapshots that expired without ever being consumed.
// Consumed snapshots are kept as the audit trail of their transaction.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	removed, err := s.snapshotRepo.DeleteExpiredUnconsumed(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info().Int64("removed", removed).Msg("expired pricing snapshots swept")
	}
	return removed, nil
}
