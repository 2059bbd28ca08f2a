package dispute

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/seatswap/escrow/internal/domain/dispute"
	domainErrors "github.com/seatswap/escrow/internal/domain/errors"
	escrowDomain "github.com/seatswap/escrow/internal/domain/escrow"
	"github.com/seatswap/escrow/internal/domain/outbox"
	"github.com/seatswap/escrow/pkg/saga"
)

// Service opens disputes against escrow transactions and resolves them by
// driving the transaction to its terminal state.
type Service struct {
	disputeRepo dispute.Repository
	txRepo      escrowDomain.Repository
	outboxRepo  outbox.Repository
	escrowSvc   EscrowTransactions
	locker      Locker
	logger      zerolog.Logger
}

// NewService creates a new dispute coordinator.
func NewService(
	disputeRepo dispute.Repository,
	txRepo escrowDomain.Repository,
	outboxRepo outbox.Repository,
	escrowSvc EscrowTransactions,
	locker Locker,
	logger zerolog.Logger,
) *Service {
	return &Service{
		disputeRepo: disputeRepo,
		txRepo:      txRepo,
		outboxRepo:  outboxRepo,
		escrowSvc:   escrowSvc,
		locker:      locker,
		logger:      logger,
	}
}

// Open raises a dispute on a transaction. Only a party to the transaction
// may open one, and only one dispute may be open per transaction at a time.
func (s *Service) Open(ctx context.Context, transactionID uuid.UUID, userID, reason string) (*dispute.Dispute, error) {
	if userID == "" {
		return nil, domainErrors.ErrUnauthorized
	}

	tx, err := s.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if userID != tx.BuyerID && userID != tx.SellerID {
		return nil, domainErrors.ErrForbidden
	}

	var opened *dispute.Dispute

	err = s.locker.WithLock(ctx, "dispute:"+transactionID.String(), func(ctx context.Context) error {
		existing, err := s.disputeRepo.GetOpenByTransaction(ctx, transactionID)
		if err != nil && !errors.Is(err, domainErrors.ErrDisputeNotFound) {
			return err
		}
		if existing != nil {
			return domainErrors.ErrOpenDisputeExists
		}

		opened, err = dispute.New(transactionID, userID, reason)
		if err != nil {
			return err
		}

		open := saga.New("open_dispute").
			AddStep(saga.Step{
				Name: "create_dispute",
				Execute: func(ctx context.Context) error {
					return s.disputeRepo.Create(ctx, opened)
				},
				Compensate: func(ctx context.Context) error {
					return s.disputeRepo.Close(ctx, opened.ID)
				},
			}).
			AddStep(saga.Step{
				Name: "flag_transaction",
				Execute: func(ctx context.Context) error {
					_, err := s.escrowSvc.MarkDisputed(ctx, transactionID, opened.ID)
					return err
				},
			})

		_, err = open.Execute(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("dispute_id", opened.ID.String()).
		Str("transaction_id", transactionID.String()).
		Msg("dispute opened")

	return opened, nil
}

// Resolve records the admin verdict and applies its money movement:
// BuyerWins refunds the buyer in full, SellerWins releases the escrow to
// the seller, Split and NoResolution record the verdict and leave any
// money movement to admin follow-up. The ticket always ends Resolved with
// resolution, resolver and timestamp stamped, even for the no-movement
// verdicts.
func (s *Service) Resolve(ctx context.Context, disputeID uuid.UUID, adminID string, resolution dispute.Resolution, notes string) (*dispute.Dispute, error) {
	if adminID == "" {
		return nil, domainErrors.ErrUnauthorized
	}

	d, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	if err := d.Resolve(adminID, resolution, notes); err != nil {
		return nil, err
	}

	resolve := saga.New("resolve_dispute").
		AddStep(saga.Step{
			Name: "record_resolution",
			Execute: func(ctx context.Context) error {
				return s.disputeRepo.UpdateResolution(ctx, d)
			},
			Compensate: func(ctx context.Context) error {
				return s.disputeRepo.RevertResolution(ctx, d.ID)
			},
		}).
		AddStep(saga.Step{
			Name: "settle_transaction",
			Execute: func(ctx context.Context) error {
				switch resolution {
				case dispute.ResolutionBuyerWins:
					_, err := s.escrowSvc.RefundTransaction(ctx, d.TransactionID, adminID)
					return err
				case dispute.ResolutionSellerWins:
					_, err := s.escrowSvc.ReleaseToSeller(ctx, d.TransactionID, adminID)
					return err
				default:
					// Split and NoResolution move no money automatically.
					return nil
				}
			},
		}).
		AddStep(saga.Step{
			Name: "announce",
			Execute: func(ctx context.Context) error {
				return s.outboxRepo.Insert(ctx, outbox.NewEntry(
					outbox.AggregateDispute, d.ID, outbox.EventDisputeResolved,
					map[string]any{
						"dispute_id":     d.ID.String(),
						"transaction_id": d.TransactionID.String(),
						"resolution":     string(resolution),
						"resolved_by":    adminID,
					},
				))
			},
		})

	if _, err := resolve.Execute(ctx); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("dispute_id", d.ID.String()).
		Str("resolution", string(resolution)).
		Msg("dispute resolved")

	return d, nil
}

// Get retrieves a dispute, restricted to the transaction's parties and
// admins.
func (s *Service) Get(ctx context.Context, disputeID uuid.UUID, requesterID string, isAdmin bool) (*dispute.Dispute, error) {
	d, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if isAdmin {
		return d, nil
	}
	tx, err := s.txRepo.GetByID(ctx, d.TransactionID)
	if err != nil {
		return nil, err
	}
	if requesterID != tx.BuyerID && requesterID != tx.SellerID {
		return nil, domainErrors.ErrForbidden
	}
	return d, nil
}

// ListOpen returns the admin work queue, oldest first.
func (s *Service) ListOpen(ctx context.Context, limit, offset int) ([]*dispute.Dispute, error) {
	return s.disputeRepo.ListOpen(ctx, limit, offset)
}
