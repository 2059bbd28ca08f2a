package dispute

import (
	"testing"

	"github.com/google/uuid"
	domainErrors "github.com/seatswap/escrow/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	txID := uuid.New()
	d, err := New(txID, "buyer-1", "tickets never arrived")
	require.NoError(t, err)

	assert.Equal(t, txID, d.TransactionID)
	assert.Equal(t, StatusOpen, d.Status)
	assert.True(t, d.IsOpen())
	assert.Nil(t, d.Resolution)
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(uuid.New(), "", "reason")
	assert.Error(t, err)

	_, err = New(uuid.New(), "buyer-1", "")
	assert.Error(t, err)
}

func TestValidResolution(t *testing.T) {
	for _, r := range []Resolution{ResolutionBuyerWins, ResolutionSellerWins, ResolutionSplit, ResolutionNone} {
		assert.True(t, ValidResolution(r), "resolution %s", r)
	}
	assert.False(t, ValidResolution("buyer_wins_partially"))
	assert.False(t, ValidResolution(""))
}

func TestResolve(t *testing.T) {
	d, err := New(uuid.New(), "buyer-1", "wrong seats")
	require.NoError(t, err)

	require.NoError(t, d.Resolve("admin-1", ResolutionBuyerWins, "refund issued"))

	assert.Equal(t, StatusResolved, d.Status)
	assert.False(t, d.IsOpen())
	require.NotNil(t, d.Resolution)
	assert.Equal(t, ResolutionBuyerWins, *d.Resolution)
	require.NotNil(t, d.ResolvedBy)
	assert.Equal(t, "admin-1", *d.ResolvedBy)
	require.NotNil(t, d.AdminNotes)
	assert.Equal(t, "refund issued", *d.AdminNotes)
	assert.NotNil(t, d.ResolvedAt)
}

func TestResolve_UnderReview(t *testing.T) {
	d, err := New(uuid.New(), "buyer-1", "wrong seats")
	require.NoError(t, err)
	d.Status = StatusUnderReview

	assert.True(t, d.IsOpen())
	assert.NoError(t, d.Resolve("admin-1", ResolutionSellerWins, ""))
}

func TestResolve_Guards(t *testing.T) {
	d, err := New(uuid.New(), "buyer-1", "wrong seats")
	require.NoError(t, err)

	err = d.Resolve("admin-1", "partial_refund", "")
	assert.ErrorIs(t, err, domainErrors.ErrInvalidResolution)
	assert.Equal(t, StatusOpen, d.Status)

	err = d.Resolve("", ResolutionSplit, "")
	assert.Error(t, err)
	assert.Equal(t, StatusOpen, d.Status)

	require.NoError(t, d.Resolve("admin-1", ResolutionSplit, ""))
	err = d.Resolve("admin-2", ResolutionBuyerWins, "")
	assert.ErrorIs(t, err, domainErrors.ErrDisputeNotOpen)
}
