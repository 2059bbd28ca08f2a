package escrow

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	pricingApp "github.com/seatswap/escrow/internal/application/pricing"
	"github.com/seatswap/escrow/internal/domain/catalog"
	domainErrors "github.com/seatswap/escrow/internal/domain/errors"
	"github.com/seatswap/escrow/internal/domain/escrow"
	"github.com/seatswap/escrow/internal/domain/outbox"
	"github.com/seatswap/escrow/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	txRepo   *testutil.MockTransactionRepository
	outbox   *testutil.MockOutboxRepository
	listings *testutil.MockListingCatalog
	snapRepo *testutil.MockSnapshotRepository
	quotes   *pricingApp.Service
	svc      *Service

	listing  *catalog.Listing
	method   catalog.PaymentMethod
	snapshot uuid.UUID
}

// newHarness wires the escrow service against the real pricing service (on
// mock storage), a three-unit listing and one quoted snapshot.
func newHarness(t *testing.T, manual bool) *harness {
	t.Helper()

	h := &harness{
		txRepo:   testutil.NewMockTransactionRepository(),
		outbox:   testutil.NewMockOutboxRepository(),
		listings: testutil.NewMockListingCatalog(),
		snapRepo: testutil.NewMockSnapshotRepository(),
	}

	if manual {
		h.method = testutil.NewTestMethod("bank_transfer", testutil.FloatPtr(2.5), true)
	} else {
		h.method = testutil.NewTestMethod("pix", nil, false)
	}

	h.quotes = pricingApp.NewService(
		h.snapRepo,
		&testutil.MockMethodCatalog{Methods: []catalog.PaymentMethod{h.method}},
		&testutil.MockPlatformConfig{BuyerPct: decimal.NewFromInt(10), SellerPct: decimal.NewFromInt(5)},
		&testutil.MockLocker{},
		15*time.Minute,
		zerolog.Nop(),
	)
	h.svc = NewService(
		h.txRepo, h.outbox, h.quotes, h.listings,
		&testutil.MockTxManager{}, &testutil.MockLocker{},
		48*time.Hour, zerolog.Nop(),
	)

	h.listing = testutil.NewTestListing("seller-1", 3, 10000)
	h.listings.AddListing(h.listing)

	snap, err := h.quotes.CreateSnapshot(context.Background(), h.listing.ID, h.listing.PricePerTicket)
	require.NoError(t, err)
	h.snapshot = snap.ID
	return h
}

func (h *harness) newSnapshot(t *testing.T) uuid.UUID {
	t.Helper()
	snap, err := h.quotes.CreateSnapshot(context.Background(), h.listing.ID, h.listing.PricePerTicket)
	require.NoError(t, err)
	return snap.ID
}

func (h *harness) initiate(t *testing.T) *escrow.Transaction {
	t.Helper()
	tx, err := h.svc.InitiatePurchase(context.Background(), InitiatePurchaseRequest{
		ListingID:       h.listing.ID,
		TicketUnitIDs:   testutil.UnitIDs(h.listing, 2),
		BuyerID:         "buyer-1",
		SnapshotID:      h.snapshot,
		PaymentMethodID: h.method.ID,
	})
	require.NoError(t, err)
	return tx
}

func (h *harness) unitStatus(t *testing.T, unitID uuid.UUID) catalog.UnitStatus {
	t.Helper()
	listing, err := h.listings.GetListingByID(context.Background(), h.listing.ID)
	require.NoError(t, err)
	u, ok := listing.Unit(unitID)
	require.True(t, ok)
	return u.Status
}

func (h *harness) stored(t *testing.T, id uuid.UUID) *escrow.Transaction {
	t.Helper()
	tx, err := h.txRepo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return tx
}

func TestInitiatePurchase(t *testing.T) {
	h := newHarness(t, true)
	tx := h.initiate(t)

	assert.Equal(t, escrow.StatusPendingPayment, tx.Status)
	assert.Equal(t, "buyer-1", tx.BuyerID)
	assert.Equal(t, "seller-1", tx.SellerID)
	assert.Equal(t, 2, tx.Quantity)
	assert.True(t, tx.ManualPayment)

	// Amounts come from the frozen quote: 2 x 100.00, 10% buyer fee, 5%
	// seller fee, 2.5% method commission.
	assert.Equal(t, int64(20000), tx.Breakdown.TicketPrice.Amount)
	assert.Equal(t, int64(22500), tx.Breakdown.TotalPaid.Amount)
	assert.Equal(t, int64(19000), tx.Breakdown.SellerReceives.Amount)

	// The requested units are held and the quote is spent by this purchase.
	for _, unitID := range tx.TicketUnitIDs {
		assert.Equal(t, catalog.UnitReserved, h.unitStatus(t, unitID))
	}
	snap, err := h.snapRepo.GetByID(context.Background(), h.snapshot)
	require.NoError(t, err)
	require.NotNil(t, snap.ConsumedByTransactionID)
	assert.Equal(t, tx.ID, *snap.ConsumedByTransactionID)

	assert.Contains(t, h.outbox.EventTypes(), outbox.EventTransactionCreated)
}

func TestInitiatePurchase_Validation(t *testing.T) {
	h := newHarness(t, false)

	_, err := h.svc.InitiatePurchase(context.Background(), InitiatePurchaseRequest{
		ListingID: h.listing.ID, BuyerID: "buyer-1",
		SnapshotID: h.snapshot, PaymentMethodID: h.method.ID,
	})
	var ve *domainErrors.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = h.svc.InitiatePurchase(context.Background(), InitiatePurchaseRequest{
		ListingID: h.listing.ID, TicketUnitIDs: testutil.UnitIDs(h.listing, 1),
		SnapshotID: h.snapshot, PaymentMethodID: h.method.ID,
	})
	assert.ErrorIs(t, err, domainErrors.ErrUnauthorized)

	_, err = h.svc.InitiatePurchase(context.Background(), InitiatePurchaseRequest{
		ListingID: h.listing.ID, TicketUnitIDs: []uuid.UUID{uuid.New()},
		BuyerID: "buyer-1", SnapshotID: h.snapshot, PaymentMethodID: h.method.ID,
	})
	assert.ErrorIs(t, err, domainErrors.ErrUnitsNotOnListing)
}

func TestInitiatePurchase_UnitsAlreadyTaken(t *testing.T) {
	h := newHarness(t, false)
	h.initiate(t)

	// A second buyer wants one of the reserved units.
	_, err := h.svc.InitiatePurchase(context.Background(), InitiatePurchaseRequest{
		ListingID:       h.listing.ID,
		TicketUnitIDs:   testutil.UnitIDs(h.listing, 1),
		BuyerID:         "buyer-2",
		SnapshotID:      h.newSnapshot(t),
		PaymentMethodID: h.method.ID,
	})
	assert.ErrorIs(t, err, domainErrors.ErrUnitsUnavailable)
}

func TestInitiatePurchase_ConsumeFails_ReleasesUnits(t *testing.T) {
	h := newHarness(t, false)

	// Spend the quote out from under the purchase.
	_, err := h.quotes.ValidateAndConsume(context.Background(), h.snapshot, h.listing.ID, h.method.ID, uuid.New())
	require.NoError(t, err)

	_, err = h.svc.InitiatePurchase(context.Background(), InitiatePurchaseRequest{
		ListingID:       h.listing.ID,
		TicketUnitIDs:   testutil.UnitIDs(h.listing, 2),
		BuyerID:         "buyer-1",
		SnapshotID:      h.snapshot,
		PaymentMethodID: h.method.ID,
	})
	assert.ErrorIs(t, err, domainErrors.ErrSnapshotAlreadyConsumed)

	// The reservation was unwound.
	for _, unitID := range testutil.UnitIDs(h.listing, 2) {
		assert.Equal(t, catalog.UnitAvailable, h.unitStatus(t, unitID))
	}
}

func TestInitiatePurchase_CreateFails_UnwindsEverything(t *testing.T) {
	h := newHarness(t, false)
	h.txRepo.CreateFunc = func(ctx context.Context, tx *escrow.Transaction) error {
		return stderrors.New("database down")
	}

	_, err := h.svc.InitiatePurchase(context.Background(), InitiatePurchaseRequest{
		ListingID:       h.listing.ID,
		TicketUnitIDs:   testutil.UnitIDs(h.listing, 2),
		BuyerID:         "buyer-1",
		SnapshotID:      h.snapshot,
		PaymentMethodID: h.method.ID,
	})
	require.Error(t, err)

	// The quote is open again and the units are back on the market.
	snap, err := h.snapRepo.GetByID(context.Background(), h.snapshot)
	require.NoError(t, err)
	assert.Nil(t, snap.ConsumedByTransactionID)
	for _, unitID := range testutil.UnitIDs(h.listing, 2) {
		assert.Equal(t, catalog.UnitAvailable, h.unitStatus(t, unitID))
	}
}

func TestMarkPaymentReceived(t *testing.T) {
	h := newHarness(t, false)
	tx := h.initiate(t)

	updated, err := h.svc.MarkPaymentReceived(context.Background(), tx.ID)
	require.NoError(t, err)

	assert.Equal(t, escrow.StatusPaymentReceived, updated.Status)
	assert.NotNil(t, updated.PaymentReceivedAt)
	assert.Contains(t, h.outbox.EventTypes(), outbox.EventPaymentReceived)
}

func TestMarkPaymentReceived_ManualMethod(t *testing.T) {
	h := newHarness(t, true)
	tx := h.initiate(t)

	_, err := h.svc.MarkPaymentReceived(context.Background(), tx.ID)
	assert.ErrorIs(t, err, domainErrors.ErrManualSettlementRequired)
	assert.Equal(t, escrow.StatusPendingPayment, h.stored(t, tx.ID).Status)
}

func TestApproveManualPayment(t *testing.T) {
	h := newHarness(t, true)
	tx := h.initiate(t)

	updated, err := h.svc.ApproveManualPayment(context.Background(), tx.ID, "admin-1", true, "")
	require.NoError(t, err)

	assert.Equal(t, escrow.StatusPaymentReceived, updated.Status)
	require.NotNil(t, updated.PaymentApprovedBy)
	assert.Equal(t, "admin-1", *updated.PaymentApprovedBy)
	assert.Contains(t, h.outbox.EventTypes(), outbox.EventPaymentReceived)
}

func TestApproveManualPayment_Reject(t *testing.T) {
	h := newHarness(t, true)
	tx := h.initiate(t)

	updated, err := h.svc.ApproveManualPayment(context.Background(), tx.ID, "admin-1", false, "amount mismatch")
	require.NoError(t, err)

	assert.Equal(t, escrow.StatusCancelled, updated.Status)
	assert.Contains(t, h.outbox.EventTypes(), outbox.EventTransactionCancelled)

	// Rejection frees the held units.
	for _, unitID := range tx.TicketUnitIDs {
		assert.Equal(t, catalog.UnitAvailable, h.unitStatus(t, unitID))
	}
}

func TestApproveManualPayment_Guards(t *testing.T) {
	manual := newHarness(t, true)
	tx := manual.initiate(t)
	_, err := manual.svc.ApproveManualPayment(context.Background(), tx.ID, "", true, "")
	assert.ErrorIs(t, err, domainErrors.ErrUnauthorized)

	gateway := newHarness(t, false)
	tx = gateway.initiate(t)
	_, err = gateway.svc.ApproveManualPayment(context.Background(), tx.ID, "admin-1", true, "")
	assert.ErrorIs(t, err, domainErrors.ErrNotManualPaymentMethod)
}

func TestConfirmTransfer(t *testing.T) {
	h := newHarness(t, false)
	tx := h.initiate(t)
	_, err := h.svc.MarkPaymentReceived(context.Background(), tx.ID)
	require.NoError(t, err)

	updated, err := h.svc.ConfirmTransfer(context.Background(), tx.ID, "seller-1")
	require.NoError(t, err)

	assert.Equal(t, escrow.StatusTicketTransferred, updated.Status)
	require.NotNil(t, updated.AutoReleaseAt)
	assert.True(t, updated.AutoReleaseAt.Equal(tx.EventStartsAt.Add(48*time.Hour)))
	assert.Contains(t, h.outbox.EventTypes(), outbox.EventTicketTransferred)
}

func TestConfirmTransfer_NotSeller(t *testing.T) {
	h := newHarness(t, false)
	tx := h.initiate(t)
	_, err := h.svc.MarkPaymentReceived(context.Background(), tx.ID)
	require.NoError(t, err)

	_, err = h.svc.ConfirmTransfer(context.Background(), tx.ID, "buyer-1")
	assert.ErrorIs(t, err, domainErrors.ErrForbidden)
}

func TestConfirmReceipt(t *testing.T) {
	h := newHarness(t, false)
	tx := h.initiate(t)
	_, err := h.svc.MarkPaymentReceived(context.Background(), tx.ID)
	require.NoError(t, err)
	_, err = h.svc.ConfirmTransfer(context.Background(), tx.ID, "seller-1")
	require.NoError(t, err)

	updated, err := h.svc.ConfirmReceipt(context.Background(), tx.ID, "buyer-1")
	require.NoError(t, err)

	assert.Equal(t, escrow.StatusCompleted, updated.Status)
	assert.Contains(t, h.outbox.EventTypes(), outbox.EventEscrowReleased)
	for _, unitID := range tx.TicketUnitIDs {
		assert.Equal(t, catalog.UnitSold, h.unitStatus(t, unitID))
	}
}

func TestConfirmReceipt_NotBuyer(t *testing.T) {
	h := newHarness(t, false)
	tx := h.initiate(t)
	_, err := h.svc.MarkPaymentReceived(context.Background(), tx.ID)
	require.NoError(t, err)
	_, err = h.svc.ConfirmTransfer(context.Background(), tx.ID, "seller-1")
	require.NoError(t, err)

	_, err = h.svc.ConfirmReceipt(context.Background(), tx.ID, "seller-1")
	assert.ErrorIs(t, err, domainErrors.ErrForbidden)
}

func TestCancelTransaction(t *testing.T) {
	h := newHarness(t, false)
	tx := h.initiate(t)

	updated, err := h.svc.CancelTransaction(context.Background(), tx.ID, "buyer-1")
	require.NoError(t, err)

	assert.Equal(t, escrow.StatusCancelled, updated.Status)
	for _, unitID := range tx.TicketUnitIDs {
		assert.Equal(t, catalog.UnitAvailable, h.unitStatus(t, unitID))
	}
}

func TestCancelTransaction_Guards(t *testing.T) {
	h := newHarness(t, false)
	tx := h.initiate(t)

	_, err := h.svc.CancelTransaction(context.Background(), tx.ID, "somebody-else")
	assert.ErrorIs(t, err, domainErrors.ErrForbidden)

	// Once the payment settled, cancellation is off the table.
	_, err = h.svc.MarkPaymentReceived(context.Background(), tx.ID)
	require.NoError(t, err)
	_, err = h.svc.CancelTransaction(context.Background(), tx.ID, "buyer-1")
	assert.ErrorIs(t, err, domainErrors.ErrInvalidStateTransition)
}

func TestRefundTransaction(t *testing.T) {
	h := newHarness(t, false)
	tx := h.initiate(t)
	_, err := h.svc.MarkPaymentReceived(context.Background(), tx.ID)
	require.NoError(t, err)

	_, err = h.svc.RefundTransaction(context.Background(), tx.ID, "")
	assert.ErrorIs(t, err, domainErrors.ErrUnauthorized)

	updated, err := h.svc.RefundTransaction(context.Background(), tx.ID, "admin-1")
	require.NoError(t, err)

	assert.Equal(t, escrow.StatusRefunded, updated.Status)
	assert.Contains(t, h.outbox.EventTypes(), outbox.EventEscrowRefunded)
	for _, unitID := range tx.TicketUnitIDs {
		assert.Equal(t, catalog.UnitAvailable, h.unitStatus(t, unitID))
	}
}

func TestMarkDisputedAndReleaseToSeller(t *testing.T) {
	h := newHarness(t, false)
	tx := h.initiate(t)
	_, err := h.svc.MarkPaymentReceived(context.Background(), tx.ID)
	require.NoError(t, err)

	disputeID := uuid.New()
	updated, err := h.svc.MarkDisputed(context.Background(), tx.ID, disputeID)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusDisputed, updated.Status)
	require.NotNil(t, updated.DisputeID)
	assert.Equal(t, disputeID, *updated.DisputeID)

	updated, err = h.svc.ReleaseToSeller(context.Background(), tx.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusCompleted, updated.Status)
	assert.Contains(t, h.outbox.EventTypes(), outbox.EventEscrowReleased)
}

func TestGetTransaction_Authorization(t *testing.T) {
	h := newHarness(t, false)
	tx := h.initiate(t)

	_, err := h.svc.GetTransaction(context.Background(), tx.ID, "buyer-1", false)
	assert.NoError(t, err)
	_, err = h.svc.GetTransaction(context.Background(), tx.ID, "seller-1", false)
	assert.NoError(t, err)
	_, err = h.svc.GetTransaction(context.Background(), tx.ID, "admin-1", true)
	assert.NoError(t, err)

	_, err = h.svc.GetTransaction(context.Background(), tx.ID, "stranger", false)
	assert.ErrorIs(t, err, domainErrors.ErrForbidden)
}

func TestAutoReleaseDue(t *testing.T) {
	h := newHarness(t, false)

	// One transferred transaction past its deadline, one still inside it.
	due := h.initiate(t)
	_, err := h.svc.MarkPaymentReceived(context.Background(), due.ID)
	require.NoError(t, err)
	_, err = h.svc.ConfirmTransfer(context.Background(), due.ID, "seller-1")
	require.NoError(t, err)

	stored := h.stored(t, due.ID)
	past := time.Now().Add(-time.Hour)
	stored.AutoReleaseAt = &past
	require.NoError(t, h.txRepo.Update(context.Background(), stored))

	notDue, err := h.svc.InitiatePurchase(context.Background(), InitiatePurchaseRequest{
		ListingID:       h.listing.ID,
		TicketUnitIDs:   []uuid.UUID{h.listing.Units[2].ID},
		BuyerID:         "buyer-2",
		SnapshotID:      h.newSnapshot(t),
		PaymentMethodID: h.method.ID,
	})
	require.NoError(t, err)
	_, err = h.svc.MarkPaymentReceived(context.Background(), notDue.ID)
	require.NoError(t, err)
	_, err = h.svc.ConfirmTransfer(context.Background(), notDue.ID, "seller-1")
	require.NoError(t, err)

	released, err := h.svc.AutoReleaseDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	assert.Equal(t, escrow.StatusCompleted, h.stored(t, due.ID).Status)
	assert.Equal(t, escrow.StatusTicketTransferred, h.stored(t, notDue.ID).Status)
	for _, unitID := range due.TicketUnitIDs {
		assert.Equal(t, catalog.UnitSold, h.unitStatus(t, unitID))
	}

	// Nothing left to release.
	released, err = h.svc.AutoReleaseDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, released)
}
