package confirmation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/seatswap/escrow/internal/domain/confirmation"
	domainErrors "github.com/seatswap/escrow/internal/domain/errors"
	"github.com/seatswap/escrow/internal/domain/escrow"
	"github.com/seatswap/escrow/pkg/saga"
)

// Service manages the upload/review lifecycle of manual-payment proofs and
// coordinates admin decisions back into the escrow state machine.
type Service struct {
	confirmationRepo confirmation.Repository
	txRepo           escrow.Repository
	escrowSvc        EscrowTransactions
	storage          BlobStorage
	directory        UserDirectory
	locker           Locker
	logger           zerolog.Logger
}

// NewService creates a new payment confirmation service.
func NewService(
	confirmationRepo confirmation.Repository,
	txRepo escrow.Repository,
	escrowSvc EscrowTransactions,
	storage BlobStorage,
	directory UserDirectory,
	locker Locker,
	logger zerolog.Logger,
) *Service {
	return &Service{
		confirmationRepo: confirmationRepo,
		txRepo:           txRepo,
		escrowSvc:        escrowSvc,
		storage:          storage,
		directory:        directory,
		locker:           locker,
		logger:           logger,
	}
}

// UploadRequest holds an uploaded proof-of-payment file.
type UploadRequest struct {
	TransactionID uuid.UUID
	UploaderID    string
	Filename      string
	ContentType   string
	Content       []byte
}

// Upload validates and stores a proof of payment for a manual-method
// transaction, creating a pending confirmation. Guards run in order:
// transaction exists, uploader is its buyer, status is PendingPayment, the
// method is manual, no active confirmation exists, then file checks.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*confirmation.Confirmation, error) {
	if req.UploaderID == "" {
		return nil, domainErrors.ErrUnauthorized
	}

	var created *confirmation.Confirmation

	err := s.locker.WithLock(ctx, "confirmation_upload:"+req.TransactionID.String(), func(ctx context.Context) error {
		tx, err := s.txRepo.GetByID(ctx, req.TransactionID)
		if err != nil {
			return err
		}
		if req.UploaderID != tx.BuyerID {
			return domainErrors.ErrForbidden
		}
		if tx.Status != escrow.StatusPendingPayment {
			return domainErrors.NewDomainError(
				"invalid_transition",
				"confirmation can only be uploaded while payment is pending",
				domainErrors.ErrInvalidStateTransition,
			)
		}
		if !tx.ManualPayment {
			return domainErrors.ErrNotManualPaymentMethod
		}

		// A rejected proof does not block a retry; pending or accepted does.
		if existing, err := s.confirmationRepo.GetActiveByTransaction(ctx, tx.ID); err == nil && existing != nil {
			return domainErrors.ErrConfirmationExists
		} else if err != nil && !errors.Is(err, domainErrors.ErrConfirmationNotFound) {
			return err
		}

		ext, ok := confirmation.AllowedContentType(req.ContentType)
		if !ok {
			return domainErrors.NewValidationError("content_type", "must be PNG, JPEG or PDF")
		}
		if len(req.Content) == 0 {
			return domainErrors.NewValidationError("file", "cannot be empty")
		}
		if int64(len(req.Content)) > confirmation.MaxFileSize {
			return domainErrors.NewValidationError("file", "exceeds 10 MiB limit")
		}

		key := storageKey(tx.ID, ext)
		if err := s.storage.Store(ctx, key, req.Content, map[string]string{
			"transaction_id":    tx.ID.String(),
			"uploaded_by":       req.UploaderID,
			"original_filename": req.Filename,
			"content_type":      req.ContentType,
		}); err != nil {
			return fmt.Errorf("store payment proof: %w", err)
		}

		created, err = confirmation.New(tx.ID, req.UploaderID, key, req.Filename, req.ContentType, int64(len(req.Content)))
		if err != nil {
			return err
		}

		if err := s.confirmationRepo.Create(ctx, created); err != nil {
			// Don't leave an orphan blob behind the failed row.
			if delErr := s.storage.Delete(ctx, key); delErr != nil {
				s.logger.Error().Err(delErr).Str("key", key).Msg("failed to delete orphan payment proof")
			}
			return err
		}

		if err := s.escrowSvc.AttachConfirmation(ctx, tx.ID, created.ID); err != nil {
			s.logger.Error().Err(err).
				Str("transaction_id", tx.ID.String()).
				Msg("failed to link confirmation to transaction")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("confirmation_id", created.ID.String()).
		Str("transaction_id", req.TransactionID.String()).
		Msg("payment confirmation uploaded")

	return created, nil
}

// ReviewRequest holds an admin decision on a pending confirmation.
type ReviewRequest struct {
	ConfirmationID uuid.UUID
	AdminID        string
	Accept         bool
	Notes          string
	// UpdateTransaction bridges the decision into the escrow service; it is
	// on for every caller except backfills.
	UpdateTransaction bool
}

// Review records the decision exactly once and, unless disabled, advances
// or terminally rejects the transaction as one logical operation. The
// confirmation write runs first and is compensated if the transaction
// update fails, so an Accepted proof never sits beside an unadvanced
// transaction.
func (s *Service) Review(ctx context.Context, req ReviewRequest) (*confirmation.Confirmation, error) {
	if req.AdminID == "" {
		return nil, domainErrors.ErrUnauthorized
	}

	conf, err := s.confirmationRepo.GetByID(ctx, req.ConfirmationID)
	if err != nil {
		return nil, err
	}

	if err := conf.Review(req.AdminID, req.Accept, req.Notes); err != nil {
		return nil, err
	}

	review := saga.New("review_confirmation").
		AddStep(saga.Step{
			Name: "record_review",
			Execute: func(ctx context.Context) error {
				return s.confirmationRepo.UpdateReview(ctx, conf)
			},
			Compensate: func(ctx context.Context) error {
				return s.confirmationRepo.RevertReview(ctx, conf.ID)
			},
		})

	if req.UpdateTransaction {
		review.AddStep(saga.Step{
			Name: "advance_transaction",
			Execute: func(ctx context.Context) error {
				_, err := s.escrowSvc.ApproveManualPayment(ctx, conf.TransactionID, req.AdminID, req.Accept, req.Notes)
				return err
			},
		})
	}

	if _, err := review.Execute(ctx); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("confirmation_id", conf.ID.String()).
		Str("transaction_id", conf.TransactionID.String()).
		Bool("accepted", req.Accept).
		Msg("payment confirmation reviewed")

	return conf, nil
}

// PendingConfirmation is a queue entry enriched with the uploader's name.
type PendingConfirmation struct {
	Confirmation *confirmation.Confirmation
	UploaderName string
}

// ListPending returns the review queue, oldest first, with uploader names
// resolved best-effort through the user directory.
func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]*PendingConfirmation, error) {
	pending, err := s.confirmationRepo.ListPending(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	result := make([]*PendingConfirmation, 0, len(pending))
	for _, c := range pending {
		entry := &PendingConfirmation{Confirmation: c}
		if user, err := s.directory.FindByID(ctx, c.UploadedBy); err == nil && user != nil {
			entry.UploaderName = user.DisplayName
		}
		result = append(result, entry)
	}
	return result, nil
}

// GetByTransaction returns the active confirmation for a transaction. Only
// the buyer, the seller, or an admin may see it: the object is financial
// evidence, so the check lives here rather than in the transport layer.
func (s *Service) GetByTransaction(ctx context.Context, transactionID uuid.UUID, requesterID string, isAdmin bool) (*confirmation.Confirmation, error) {
	tx, err := s.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && requesterID != tx.BuyerID && requesterID != tx.SellerID {
		return nil, domainErrors.ErrForbidden
	}
	return s.confirmationRepo.GetActiveByTransaction(ctx, transactionID)
}

// RetrieveProof streams the stored file for an authorized viewer.
func (s *Service) RetrieveProof(ctx context.Context, transactionID uuid.UUID, requesterID string, isAdmin bool) ([]byte, *confirmation.Confirmation, error) {
	conf, err := s.GetByTransaction(ctx, transactionID, requesterID, isAdmin)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.storage.Retrieve(ctx, conf.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return data, conf, nil
}

// storageKey builds a collision-resistant key from the transaction, upload
// time and a random suffix, keeping the canonical extension.
func storageKey(transactionID uuid.UUID, ext string) string {
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("confirmations/%s/%d_%s%s", transactionID, time.Now().UnixNano(), suffix, ext)
}
