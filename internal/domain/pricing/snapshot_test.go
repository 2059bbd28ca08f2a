package pricing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	domainErrors "github.com/seatswap/escrow/internal/domain/errors"
	"github.com/seatswap/escrow/internal/domain/money"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMethods() []MethodCommission {
	pct := decimal.NewFromFloat(2.5)
	return []MethodCommission{
		{PaymentMethodID: uuid.New(), PaymentMethodName: "pix"},
		{PaymentMethodID: uuid.New(), PaymentMethodName: "bank_transfer", CommissionPercent: &pct, Manual: true},
	}
}

func TestNewSnapshot(t *testing.T) {
	listingID := uuid.New()
	snap, err := NewSnapshot(
		listingID,
		money.New(10000, "BRL"),
		decimal.NewFromInt(10),
		decimal.NewFromInt(5),
		testMethods(),
		15*time.Minute,
	)
	require.NoError(t, err)

	assert.Equal(t, listingID, snap.ListingID)
	assert.Equal(t, ModelFixed, snap.Model)
	assert.False(t, snap.IsConsumed())
	assert.False(t, snap.IsExpired(time.Now()))
	assert.True(t, snap.IsExpired(time.Now().Add(16*time.Minute)))
}

func TestNewSnapshot_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		price money.Money
		buyer decimal.Decimal
	}{
		{"zero price", money.Zero("BRL"), decimal.NewFromInt(10)},
		{"negative price", money.New(-100, "BRL"), decimal.NewFromInt(10)},
		{"bad currency", money.New(100, "R$"), decimal.NewFromInt(10)},
		{"negative fee", money.New(100, "BRL"), decimal.NewFromInt(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSnapshot(uuid.New(), tt.price, tt.buyer, decimal.NewFromInt(5), nil, time.Minute)
			assert.Error(t, err)
		})
	}
}

func TestConsume(t *testing.T) {
	methods := testMethods()
	snap, err := NewSnapshot(uuid.New(), money.New(10000, "BRL"),
		decimal.NewFromInt(10), decimal.NewFromInt(5), methods, 15*time.Minute)
	require.NoError(t, err)

	txID := uuid.New()
	commission, err := snap.Consume(txID, methods[1].PaymentMethodID, time.Now())
	require.NoError(t, err)

	assert.True(t, commission.Equal(decimal.NewFromFloat(2.5)))
	assert.True(t, snap.IsConsumed())
	require.NotNil(t, snap.ConsumedByTransactionID)
	assert.Equal(t, txID, *snap.ConsumedByTransactionID)
	require.NotNil(t, snap.SelectedPaymentMethodID)
	assert.Equal(t, methods[1].PaymentMethodID, *snap.SelectedPaymentMethodID)
}

func TestConsume_NoCommissionMethod(t *testing.T) {
	methods := testMethods()
	snap, err := NewSnapshot(uuid.New(), money.New(10000, "BRL"),
		decimal.NewFromInt(10), decimal.NewFromInt(5), methods, 15*time.Minute)
	require.NoError(t, err)

	commission, err := snap.Consume(uuid.New(), methods[0].PaymentMethodID, time.Now())
	require.NoError(t, err)
	assert.True(t, commission.IsZero())
}

func TestConsume_Twice(t *testing.T) {
	methods := testMethods()
	snap, err := NewSnapshot(uuid.New(), money.New(10000, "BRL"),
		decimal.NewFromInt(10), decimal.NewFromInt(5), methods, 15*time.Minute)
	require.NoError(t, err)

	_, err = snap.Consume(uuid.New(), methods[0].PaymentMethodID, time.Now())
	require.NoError(t, err)

	_, err = snap.Consume(uuid.New(), methods[0].PaymentMethodID, time.Now())
	assert.ErrorIs(t, err, domainErrors.ErrSnapshotAlreadyConsumed)
}

func TestCanConsume_CheckOrder(t *testing.T) {
	methods := testMethods()
	snap, err := NewSnapshot(uuid.New(), money.New(10000, "BRL"),
		decimal.NewFromInt(10), decimal.NewFromInt(5), methods, 15*time.Minute)
	require.NoError(t, err)

	// Expired only.
	err = snap.CanConsume(snap.ListingID, methods[0].PaymentMethodID, time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, domainErrors.ErrSnapshotExpired)

	// Consumed beats expired: a spent quote reports already-consumed even
	// after its window has passed.
	_, err = snap.Consume(uuid.New(), methods[0].PaymentMethodID, time.Now())
	require.NoError(t, err)
	err = snap.CanConsume(snap.ListingID, methods[0].PaymentMethodID, time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, domainErrors.ErrSnapshotAlreadyConsumed)
}

func TestCanConsume_ListingAndMethod(t *testing.T) {
	methods := testMethods()
	snap, err := NewSnapshot(uuid.New(), money.New(10000, "BRL"),
		decimal.NewFromInt(10), decimal.NewFromInt(5), methods, 15*time.Minute)
	require.NoError(t, err)

	err = snap.CanConsume(uuid.New(), methods[0].PaymentMethodID, time.Now())
	assert.ErrorIs(t, err, domainErrors.ErrListingMismatch)

	err = snap.CanConsume(snap.ListingID, uuid.New(), time.Now())
	assert.ErrorIs(t, err, domainErrors.ErrPaymentMethodNotAvailable)
}

func TestMethodByID(t *testing.T) {
	methods := testMethods()
	snap, err := NewSnapshot(uuid.New(), money.New(10000, "BRL"),
		decimal.NewFromInt(10), decimal.NewFromInt(5), methods, 15*time.Minute)
	require.NoError(t, err)

	m, ok := snap.MethodByID(methods[1].PaymentMethodID)
	require.True(t, ok)
	assert.Equal(t, "bank_transfer", m.PaymentMethodName)
	assert.True(t, m.Manual)

	_, ok = snap.MethodByID(uuid.New())
	assert.False(t, ok)
}
