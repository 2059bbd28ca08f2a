package escrow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	pricingApp "github.com/seatswap/escrow/internal/application/pricing"
	"github.com/seatswap/escrow/internal/domain/catalog"
	domainErrors "github.com/seatswap/escrow/internal/domain/errors"
	"github.com/seatswap/escrow/internal/domain/escrow"
	"github.com/seatswap/escrow/internal/domain/outbox"
	"github.com/seatswap/escrow/pkg/saga"
)

// Service owns the escrow transaction state machine.
type Service struct {
	txRepo           escrow.Repository
	outboxRepo       outbox.Repository
	quotes           PricingQuotes
	listings         ListingCatalog
	txManager        TransactionManager
	locker           Locker
	autoReleaseDelay time.Duration
	logger           zerolog.Logger
}

// NewService creates a new escrow transaction service.
func NewService(
	txRepo escrow.Repository,
	outboxRepo outbox.Repository,
	quotes PricingQuotes,
	listings ListingCatalog,
	txManager TransactionManager,
	locker Locker,
	autoReleaseDelay time.Duration,
	logger zerolog.Logger,
) *Service {
	return &Service{
		txRepo:           txRepo,
		outboxRepo:       outboxRepo,
		quotes:           quotes,
		listings:         listings,
		txManager:        txManager,
		locker:           locker,
		autoReleaseDelay: autoReleaseDelay,
		logger:           logger,
	}
}

// InitiatePurchaseRequest holds the input for starting a purchase.
type InitiatePurchaseRequest struct {
	ListingID       uuid.UUID
	TicketUnitIDs   []uuid.UUID
	BuyerID         string
	SnapshotID      uuid.UUID
	PaymentMethodID uuid.UUID
}

// InitiatePurchase consumes the pricing snapshot, reserves the requested
// units and creates the transaction in PendingPayment. The three writes run
// as a saga: a failure anywhere unwinds everything already done, so no
// orphan transaction or half-spent quote survives a failed purchase.
func (s *Service) InitiatePurchase(ctx context.Context, req InitiatePurchaseRequest) (*escrow.Transaction, error) {
	if len(req.TicketUnitIDs) == 0 {
		return nil, domainErrors.NewValidationError("ticket_unit_ids", "cannot be empty")
	}
	if req.BuyerID == "" {
		return nil, domainErrors.ErrUnauthorized
	}

	listing, err := s.listings.GetListingByID(ctx, req.ListingID)
	if err != nil {
		return nil, err
	}

	// Pre-check unit ownership and availability for an early, descriptive
	// failure. The reservation write below remains the authority.
	for _, unitID := range req.TicketUnitIDs {
		unit, ok := listing.Unit(unitID)
		if !ok {
			return nil, domainErrors.ErrUnitsNotOnListing
		}
		if unit.Status != catalog.UnitAvailable {
			return nil, domainErrors.ErrUnitsUnavailable
		}
	}

	// The transaction ID exists before the snapshot is consumed: consumption
	// records it, tying quote and purchase together.
	transactionID := uuid.New()

	var (
		quote *pricingApp.ConsumeResult
		tx    *escrow.Transaction
	)

	purchase := saga.New("initiate_purchase").
		AddStep(saga.Step{
			Name: "reserve_units",
			Execute: func(ctx context.Context) error {
				return s.listings.ReserveUnits(ctx, req.ListingID, req.TicketUnitIDs)
			},
			Compensate: func(ctx context.Context) error {
				return s.listings.ReleaseUnits(ctx, req.ListingID, req.TicketUnitIDs)
			},
		}).
		AddStep(saga.Step{
			Name: "consume_quote",
			Execute: func(ctx context.Context) error {
				var err error
				quote, err = s.quotes.ValidateAndConsume(ctx, req.SnapshotID, req.ListingID, req.PaymentMethodID, transactionID)
				return err
			},
			Compensate: func(ctx context.Context) error {
				return s.quotes.ReopenSnapshot(ctx, req.SnapshotID)
			},
		}).
		AddStep(saga.Step{
			Name: "create_transaction",
			Execute: func(ctx context.Context) error {
				breakdown, err := escrow.NewBreakdown(
					quote.Snapshot.PricePerTicket,
					len(req.TicketUnitIDs),
					quote.Snapshot.BuyerFeePercent,
					quote.Snapshot.SellerFeePercent,
					quote.CommissionPercent,
				)
				if err != nil {
					return err
				}

				tx, err = escrow.NewTransaction(
					transactionID,
					req.ListingID,
					req.BuyerID,
					listing.SellerID,
					req.TicketUnitIDs,
					breakdown,
					quote.Snapshot.ID,
					req.PaymentMethodID,
					quote.ManualPayment,
					listing.EventStartsAt,
				)
				if err != nil {
					return err
				}

				return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
					if err := s.txRepo.Create(txCtx, tx); err != nil {
						return err
					}
					return s.outboxRepo.Insert(txCtx, outbox.NewEntry(
						outbox.AggregateTransaction, tx.ID, outbox.EventTransactionCreated,
						map[string]any{
							"transaction_id": tx.ID.String(),
							"listing_id":     tx.ListingID.String(),
							"buyer_id":       tx.BuyerID,
							"seller_id":      tx.SellerID,
							"quantity":       tx.Quantity,
							"total_paid":     tx.Breakdown.TotalPaid.Amount,
							"currency":       tx.Breakdown.TotalPaid.Currency,
							"manual_payment": tx.ManualPayment,
						},
					))
				})
			},
		})

	if _, err := purchase.Execute(ctx); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("transaction_id", tx.ID.String()).
		Str("listing_id", req.ListingID.String()).
		Int("quantity", tx.Quantity).
		Msg("purchase initiated")

	return tx, nil
}

// GetTransaction retrieves a transaction, restricted to its buyer, its
// seller, or an admin.
func (s *Service) GetTransaction(ctx context.Context, transactionID uuid.UUID, requesterID string, isAdmin bool) (*escrow.Transaction, error) {
	tx, err := s.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && requesterID != tx.BuyerID && requesterID != tx.SellerID {
		return nil, domainErrors.ErrForbidden
	}
	return tx, nil
}

// ListTransactions lists transactions with filters.
func (s *Service) ListTransactions(ctx context.Context, filter escrow.ListFilter) ([]*escrow.Transaction, error) {
	return s.txRepo.List(ctx, filter)
}

// MarkPaymentReceived settles a gateway payment (webhook path). Manual
// transactions never settle here; they go through confirmation review.
func (s *Service) MarkPaymentReceived(ctx context.Context, transactionID uuid.UUID) (*escrow.Transaction, error) {
	return s.mutate(ctx, transactionID, func(tx *escrow.Transaction) ([]*outbox.Entry, error) {
		if tx.ManualPayment {
			return nil, domainErrors.ErrManualSettlementRequired
		}
		if err := tx.MarkPaymentReceived(""); err != nil {
			return nil, err
		}
		return []*outbox.Entry{outbox.NewEntry(
			outbox.AggregateTransaction, tx.ID, outbox.EventPaymentReceived,
			map[string]any{
				"transaction_id": tx.ID.String(),
				"total_paid":     tx.Breakdown.TotalPaid.Amount,
				"currency":       tx.Breakdown.TotalPaid.Currency,
			},
		)}, nil
	})
}

// ApproveManualPayment is the sole settlement path for manual methods,
// reached through confirmation review. Approval advances the transaction to
// PaymentReceived and stamps the approving admin; rejection fails the
// purchase terminally (money never entered escrow, so this is a cancel, not
// a refund) and frees the reserved units.
func (s *Service) ApproveManualPayment(ctx context.Context, transactionID uuid.UUID, adminID string, approved bool, rejectionNote string) (*escrow.Transaction, error) {
	if adminID == "" {
		return nil, domainErrors.ErrUnauthorized
	}

	tx, err := s.mutate(ctx, transactionID, func(tx *escrow.Transaction) ([]*outbox.Entry, error) {
		if !tx.ManualPayment {
			return nil, domainErrors.ErrNotManualPaymentMethod
		}
		if approved {
			if err := tx.MarkPaymentReceived(adminID); err != nil {
				return nil, err
			}
			return []*outbox.Entry{outbox.NewEntry(
				outbox.AggregateTransaction, tx.ID, outbox.EventPaymentReceived,
				map[string]any{
					"transaction_id": tx.ID.String(),
					"approved_by":    adminID,
					"total_paid":     tx.Breakdown.TotalPaid.Amount,
					"currency":       tx.Breakdown.TotalPaid.Currency,
				},
			)}, nil
		}

		if err := tx.MarkCancelled(); err != nil {
			return nil, err
		}
		return []*outbox.Entry{outbox.NewEntry(
			outbox.AggregateTransaction, tx.ID, outbox.EventTransactionCancelled,
			map[string]any{
				"transaction_id": tx.ID.String(),
				"rejected_by":    adminID,
				"reason":         rejectionNote,
			},
		)}, nil
	})
	if err != nil {
		return nil, err
	}

	if !approved {
		s.releaseUnits(ctx, tx)
	}
	return tx, nil
}

// AttachConfirmation links the active payment confirmation to its
// transaction without moving the state machine.
func (s *Service) AttachConfirmation(ctx context.Context, transactionID, confirmationID uuid.UUID) error {
	_, err := s.mutate(ctx, transactionID, func(tx *escrow.Transaction) ([]*outbox.Entry, error) {
		tx.AttachConfirmation(confirmationID)
		return nil, nil
	})
	return err
}

// ConfirmTransfer records the seller handing the tickets over and arms the
// deemed-accepted deadline.
func (s *Service) ConfirmTransfer(ctx context.Context, transactionID uuid.UUID, sellerID string) (*escrow.Transaction, error) {
	return s.mutate(ctx, transactionID, func(tx *escrow.Transaction) ([]*outbox.Entry, error) {
		if sellerID != tx.SellerID {
			return nil, domainErrors.ErrForbidden
		}
		autoReleaseAt := tx.EventStartsAt.Add(s.autoReleaseDelay)
		if err := tx.MarkTransferred(&autoReleaseAt); err != nil {
			return nil, err
		}
		return []*outbox.Entry{outbox.NewEntry(
			outbox.AggregateTransaction, tx.ID, outbox.EventTicketTransferred,
			map[string]any{
				"transaction_id":  tx.ID.String(),
				"auto_release_at": autoReleaseAt,
			},
		)}, nil
	})
}

// ConfirmReceipt completes the escrow on the buyer's confirmation and
// releases sellerReceives to the seller's ledger.
func (s *Service) ConfirmReceipt(ctx context.Context, transactionID uuid.UUID, buyerID string) (*escrow.Transaction, error) {
	tx, err := s.mutate(ctx, transactionID, func(tx *escrow.Transaction) ([]*outbox.Entry, error) {
		if buyerID != tx.BuyerID {
			return nil, domainErrors.ErrForbidden
		}
		if err := tx.MarkCompleted(); err != nil {
			return nil, err
		}
		return []*outbox.Entry{s.releasedEntry(tx)}, nil
	})
	if err != nil {
		return nil, err
	}

	s.markUnitsSold(ctx, tx)
	return tx, nil
}

// CancelTransaction voids an unpaid purchase and frees its units. Anything
// past PendingPayment must go through dispute/refund instead.
func (s *Service) CancelTransaction(ctx context.Context, transactionID uuid.UUID, requesterID string) (*escrow.Transaction, error) {
	tx, err := s.mutate(ctx, transactionID, func(tx *escrow.Transaction) ([]*outbox.Entry, error) {
		if requesterID != tx.BuyerID && requesterID != tx.SellerID {
			return nil, domainErrors.ErrForbidden
		}
		if err := tx.MarkCancelled(); err != nil {
			return nil, err
		}
		return []*outbox.Entry{outbox.NewEntry(
			outbox.AggregateTransaction, tx.ID, outbox.EventTransactionCancelled,
			map[string]any{
				"transaction_id": tx.ID.String(),
				"cancelled_by":   requesterID,
			},
		)}, nil
	})
	if err != nil {
		return nil, err
	}

	s.releaseUnits(ctx, tx)
	return tx, nil
}

// MarkDisputed flags the transaction for an opened dispute. Callers enforce
// dispute uniqueness; this only guards the state machine.
func (s *Service) MarkDisputed(ctx context.Context, transactionID uuid.UUID, disputeID uuid.UUID) (*escrow.Transaction, error) {
	return s.mutate(ctx, transactionID, func(tx *escrow.Transaction) ([]*outbox.Entry, error) {
		if err := tx.MarkDisputed(disputeID); err != nil {
			return nil, err
		}
		return []*outbox.Entry{outbox.NewEntry(
			outbox.AggregateTransaction, tx.ID, outbox.EventTransactionDisputed,
			map[string]any{
				"transaction_id": tx.ID.String(),
				"dispute_id":     disputeID.String(),
			},
		)}, nil
	})
}

// RefundTransaction reverses the full totalPaid to the buyer, from a
// dispute or as a direct admin action on a received payment.
func (s *Service) RefundTransaction(ctx context.Context, transactionID uuid.UUID, adminID string) (*escrow.Transaction, error) {
	if adminID == "" {
		return nil, domainErrors.ErrUnauthorized
	}

	tx, err := s.mutate(ctx, transactionID, func(tx *escrow.Transaction) ([]*outbox.Entry, error) {
		if err := tx.MarkRefunded(); err != nil {
			return nil, err
		}
		return []*outbox.Entry{outbox.NewEntry(
			outbox.AggregateTransaction, tx.ID, outbox.EventEscrowRefunded,
			map[string]any{
				"transaction_id": tx.ID.String(),
				"refunded_by":    adminID,
				"amount":         tx.Breakdown.TotalPaid.Amount,
				"currency":       tx.Breakdown.TotalPaid.Currency,
				"recipient":      tx.BuyerID,
			},
		)}, nil
	})
	if err != nil {
		return nil, err
	}

	s.releaseUnits(ctx, tx)
	return tx, nil
}

// ReleaseToSeller completes a disputed transaction in the seller's favour.
func (s *Service) ReleaseToSeller(ctx context.Context, transactionID uuid.UUID, adminID string) (*escrow.Transaction, error) {
	if adminID == "" {
		return nil, domainErrors.ErrUnauthorized
	}

	tx, err := s.mutate(ctx, transactionID, func(tx *escrow.Transaction) ([]*outbox.Entry, error) {
		if err := tx.MarkCompleted(); err != nil {
			return nil, err
		}
		return []*outbox.Entry{s.releasedEntry(tx)}, nil
	})
	if err != nil {
		return nil, err
	}

	s.markUnitsSold(ctx, tx)
	return tx, nil
}

// AutoReleaseDue completes transferred transactions whose deemed-accepted
// deadline has passed. Run periodically by the worker.
func (s *Service) AutoReleaseDue(ctx context.Context, limit int) (int, error) {
	due, err := s.txRepo.ListDueForAutoRelease(ctx, time.Now(), limit)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, candidate := range due {
		tx, err := s.mutate(ctx, candidate.ID, func(tx *escrow.Transaction) ([]*outbox.Entry, error) {
			if !tx.DueForAutoRelease(time.Now()) {
				// Lost a race with an explicit confirmation; nothing to do.
				return nil, domainErrors.ErrInvalidStateTransition
			}
			if err := tx.MarkCompleted(); err != nil {
				return nil, err
			}
			return []*outbox.Entry{s.releasedEntry(tx)}, nil
		})
		if err != nil {
			if !isBenignAutoReleaseError(err) {
				s.logger.Error().Err(err).
					Str("transaction_id", candidate.ID.String()).
					Msg("auto-release failed")
			}
			continue
		}

		s.markUnitsSold(ctx, tx)
		released++
	}

	if released > 0 {
		s.logger.Info().Int("released", released).Msg("auto-released transferred transactions")
	}
	return released, nil
}

// mutate applies a transition under the per-transaction lock, persisting the
// transaction and its outbox entries in one database transaction. The
// repository's versioned update rejects any concurrent writer that slipped
// past the lock.
func (s *Service) mutate(
	ctx context.Context,
	transactionID uuid.UUID,
	fn func(tx *escrow.Transaction) ([]*outbox.Entry, error),
) (*escrow.Transaction, error) {
	var result *escrow.Transaction

	err := s.locker.WithLock(ctx, "transaction:"+transactionID.String(), func(ctx context.Context) error {
		tx, err := s.txRepo.GetByID(ctx, transactionID)
		if err != nil {
			return err
		}

		entries, err := fn(tx)
		if err != nil {
			return err
		}

		return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := s.txRepo.Update(txCtx, tx); err != nil {
				return err
			}
			for _, entry := range entries {
				if err := s.outboxRepo.Insert(txCtx, entry); err != nil {
					return err
				}
			}
			result = tx
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("transaction_id", transactionID.String()).
		Str("status", string(result.Status)).
		Msg("transaction transitioned")

	return result, nil
}

func (s *Service) releasedEntry(tx *escrow.Transaction) *outbox.Entry {
	return outbox.NewEntry(
		outbox.AggregateTransaction, tx.ID, outbox.EventEscrowReleased,
		map[string]any{
			"transaction_id": tx.ID.String(),
			"amount":         tx.Breakdown.SellerReceives.Amount,
			"currency":       tx.Breakdown.SellerReceives.Currency,
			"recipient":      tx.SellerID,
		},
	)
}

// releaseUnits and markUnitsSold run after the transaction's own state is
// committed; the listing catalog reconciles independently, so a failure
// here is logged rather than unwinding an already-effective transition.
func (s *Service) releaseUnits(ctx context.Context, tx *escrow.Transaction) {
	if err := s.listings.ReleaseUnits(ctx, tx.ListingID, tx.TicketUnitIDs); err != nil {
		s.logger.Error().Err(err).
			Str("transaction_id", tx.ID.String()).
			Msg("failed to release ticket units")
	}
}

func (s *Service) markUnitsSold(ctx context.Context, tx *escrow.Transaction) {
	if err := s.listings.MarkUnitsSold(ctx, tx.ListingID, tx.TicketUnitIDs); err != nil {
		s.logger.Error().Err(err).
			Str("transaction_id", tx.ID.String()).
			Msg("failed to mark ticket units sold")
	}
}

// isBenignAutoReleaseError filters races the sweep expects to lose: the
// buyer confirmed first, or another worker instance got there.
func isBenignAutoReleaseError(err error) bool {
	return errors.Is(err, domainErrors.ErrInvalidStateTransition) ||
		errors.Is(err, domainErrors.ErrOptimisticLockFailed)
}
