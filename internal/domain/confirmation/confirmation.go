package confirmation

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/seatswap/escrow/internal/domain/errors"
)

// Status represents the review status of an uploaded payment proof.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// MaxFileSize is the upload cap for proof-of-payment files.
const MaxFileSize = 10 << 20 // 10 MiB

// allowedContentTypes is the proof-of-payment upload allow-list.
var allowedContentTypes = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/jpg":       ".jpg",
	"application/pdf": ".pdf",
}

// AllowedContentType reports whether the content type may be uploaded and
// returns the canonical file extension for it.
func AllowedContentType(contentType string) (string, bool) {
	ext, ok := allowedContentTypes[strings.ToLower(strings.TrimSpace(contentType))]
	return ext, ok
}

// Confirmation is a buyer-submitted proof of a manual bank transfer. It is
// reviewed exactly once; adminNotes typically carry the reason on rejection.
type Confirmation struct {
	ID               uuid.UUID
	TransactionID    uuid.UUID
	UploadedBy       string
	StorageKey       string
	OriginalFilename string
	ContentType      string
	SizeBytes        int64
	Status           Status
	AdminNotes       *string
	ReviewedBy       *string
	CreatedAt        time.Time
	ReviewedAt       *time.Time
}

// New creates a pending confirmation for an uploaded file.
func New(
	transactionID uuid.UUID,
	uploadedBy string,
	storageKey string,
	originalFilename string,
	contentType string,
	sizeBytes int64,
) (*Confirmation, error) {
	if uploadedBy == "" {
		return nil, errors.NewValidationError("uploaded_by", "cannot be empty")
	}
	if storageKey == "" {
		return nil, errors.NewValidationError("storage_key", "cannot be empty")
	}
	if _, ok := AllowedContentType(contentType); !ok {
		return nil, errors.NewValidationError("content_type", "must be PNG, JPEG or PDF")
	}
	if sizeBytes <= 0 {
		return nil, errors.NewValidationError("size_bytes", "must be greater than 0")
	}
	if sizeBytes > MaxFileSize {
		return nil, errors.NewValidationError("size_bytes", "exceeds 10 MiB limit")
	}

	return &Confirmation{
		ID:               uuid.New(),
		TransactionID:    transactionID,
		UploadedBy:       uploadedBy,
		StorageKey:       storageKey,
		OriginalFilename: originalFilename,
		ContentType:      contentType,
		SizeBytes:        sizeBytes,
		Status:           StatusPending,
		CreatedAt:        time.Now(),
	}, nil
}

// IsActive reports whether the confirmation still blocks further uploads
// for its transaction. Rejected proofs do not; the buyer may try again.
func (c *Confirmation) IsActive() bool {
	return c.Status == StatusPending || c.Status == StatusAccepted
}

// Review records the admin decision. A confirmation may be reviewed at most
// once; the repository additionally guards the write on status = pending.
func (c *Confirmation) Review(reviewedBy string, accepted bool, notes string) error {
	if c.Status != StatusPending {
		return errors.ErrConfirmationAlreadyReviewed
	}
	if reviewedBy == "" {
		return errors.NewValidationError("reviewed_by", "cannot be empty")
	}

	now := time.Now()
	if accepted {
		c.Status = StatusAccepted
	} else {
		c.Status = StatusRejected
	}
	if notes != "" {
		c.AdminNotes = &notes
	}
	c.ReviewedBy = &reviewedBy
	c.ReviewedAt = &now
	return nil
}
