package confirmation

import (
	"testing"

	"github.com/google/uuid"
	domainErrors "github.com/seatswap/escrow/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedContentType(t *testing.T) {
	tests := []struct {
		contentType string
		wantExt     string
		wantOK      bool
	}{
		{"image/png", ".png", true},
		{"image/jpeg", ".jpg", true},
		{"image/jpg", ".jpg", true},
		{"application/pdf", ".pdf", true},
		{"IMAGE/PNG", ".png", true},
		{" application/pdf ", ".pdf", true},
		{"image/gif", "", false},
		{"text/html", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			ext, ok := AllowedContentType(tt.contentType)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantExt, ext)
		})
	}
}

func TestNew(t *testing.T) {
	txID := uuid.New()
	c, err := New(txID, "buyer-1", "proofs/abc.png", "receipt.png", "image/png", 2048)
	require.NoError(t, err)

	assert.Equal(t, txID, c.TransactionID)
	assert.Equal(t, StatusPending, c.Status)
	assert.True(t, c.IsActive())
	assert.Nil(t, c.ReviewedBy)
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		uploadedBy  string
		storageKey  string
		contentType string
		size        int64
	}{
		{"empty uploader", "", "proofs/a.png", "image/png", 100},
		{"empty storage key", "buyer-1", "", "image/png", 100},
		{"bad content type", "buyer-1", "proofs/a.gif", "image/gif", 100},
		{"zero size", "buyer-1", "proofs/a.png", "image/png", 0},
		{"over size cap", "buyer-1", "proofs/a.png", "image/png", MaxFileSize + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(uuid.New(), tt.uploadedBy, tt.storageKey, "f", tt.contentType, tt.size)
			require.Error(t, err)

			var ve *domainErrors.ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestReview_Accept(t *testing.T) {
	c, err := New(uuid.New(), "buyer-1", "proofs/a.png", "a.png", "image/png", 100)
	require.NoError(t, err)

	require.NoError(t, c.Review("admin-1", true, ""))
	assert.Equal(t, StatusAccepted, c.Status)
	require.NotNil(t, c.ReviewedBy)
	assert.Equal(t, "admin-1", *c.ReviewedBy)
	assert.NotNil(t, c.ReviewedAt)
	assert.Nil(t, c.AdminNotes)
	assert.True(t, c.IsActive())
}

func TestReview_Reject(t *testing.T) {
	c, err := New(uuid.New(), "buyer-1", "proofs/a.png", "a.png", "image/png", 100)
	require.NoError(t, err)

	require.NoError(t, c.Review("admin-1", false, "amount does not match"))
	assert.Equal(t, StatusRejected, c.Status)
	require.NotNil(t, c.AdminNotes)
	assert.Equal(t, "amount does not match", *c.AdminNotes)

	// A rejected proof no longer blocks a replacement upload.
	assert.False(t, c.IsActive())
}

func TestReview_Twice(t *testing.T) {
	c, err := New(uuid.New(), "buyer-1", "proofs/a.png", "a.png", "image/png", 100)
	require.NoError(t, err)

	require.NoError(t, c.Review("admin-1", false, ""))
	err = c.Review("admin-2", true, "")
	assert.ErrorIs(t, err, domainErrors.ErrConfirmationAlreadyReviewed)
	assert.Equal(t, StatusRejected, c.Status)
}

func TestReview_EmptyReviewer(t *testing.T) {
	c, err := New(uuid.New(), "buyer-1", "proofs/a.png", "a.png", "image/png", 100)
	require.NoError(t, err)

	err = c.Review("", true, "")
	require.Error(t, err)
	assert.Equal(t, StatusPending, c.Status)
}
