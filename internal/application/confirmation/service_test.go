package confirmation

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	escrowApp "github.com/seatswap/escrow/internal/application/escrow"
	"github.com/seatswap/escrow/internal/domain/catalog"
	"github.com/seatswap/escrow/internal/domain/confirmation"
	domainErrors "github.com/seatswap/escrow/internal/domain/errors"
	"github.com/seatswap/escrow/internal/domain/escrow"
	"github.com/seatswap/escrow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	confRepo *testutil.MockConfirmationRepository
	txRepo   *testutil.MockTransactionRepository
	listings *testutil.MockListingCatalog
	storage  *testutil.MockBlobStorage
	svc      *Service

	listing *catalog.Listing
}

// newHarness wires the confirmation service against the real escrow service
// so review decisions exercise the actual settlement bridge.
func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		confRepo: testutil.NewMockConfirmationRepository(),
		txRepo:   testutil.NewMockTransactionRepository(),
		listings: testutil.NewMockListingCatalog(),
		storage:  testutil.NewMockBlobStorage(),
	}
	h.listing = testutil.NewTestListing("seller-1", 3, 10000)
	h.listings.AddListing(h.listing)

	escrowSvc := escrowApp.NewService(
		h.txRepo, testutil.NewMockOutboxRepository(), nil, h.listings,
		&testutil.MockTxManager{}, &testutil.MockLocker{},
		48*time.Hour, zerolog.Nop(),
	)
	h.svc = NewService(
		h.confRepo, h.txRepo, escrowSvc, h.storage,
		&testutil.MockUserDirectory{Users: map[string]string{"buyer-1": "Ana Souza"}},
		&testutil.MockLocker{}, zerolog.Nop(),
	)
	return h
}

// seedTx stores a manual-method transaction with its units reserved, the
// state a purchase leaves behind.
func (h *harness) seedTx(t *testing.T, status escrow.Status, manual bool) *escrow.Transaction {
	t.Helper()
	tx := testutil.NewTestTransaction(h.listing, "buyer-1", 2, status, manual)
	require.NoError(t, h.txRepo.Create(context.Background(), tx))
	require.NoError(t, h.listings.ReserveUnits(context.Background(), h.listing.ID, tx.TicketUnitIDs))
	return tx
}

func uploadReq(txID uuid.UUID) UploadRequest {
	return UploadRequest{
		TransactionID: txID,
		UploaderID:    "buyer-1",
		Filename:      "receipt.png",
		ContentType:   "image/png",
		Content:       []byte("png-bytes"),
	}
}

func TestUpload(t *testing.T) {
	h := newHarness(t)
	tx := h.seedTx(t, escrow.StatusPendingPayment, true)

	conf, err := h.svc.Upload(context.Background(), uploadReq(tx.ID))
	require.NoError(t, err)

	assert.Equal(t, confirmation.StatusPending, conf.Status)
	assert.Equal(t, tx.ID, conf.TransactionID)
	assert.Equal(t, "buyer-1", conf.UploadedBy)

	// The file landed in storage under the confirmation's key.
	data, err := h.storage.Retrieve(context.Background(), conf.StorageKey)
	require.NoError(t, err)
	assert.True(t, bytes.Equal([]byte("png-bytes"), data))

	// And the transaction carries the link.
	stored, err := h.txRepo.GetByID(context.Background(), tx.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PaymentConfirmationID)
	assert.Equal(t, conf.ID, *stored.PaymentConfirmationID)
}

func TestUpload_Guards(t *testing.T) {
	h := newHarness(t)
	tx := h.seedTx(t, escrow.StatusPendingPayment, true)

	t.Run("anonymous", func(t *testing.T) {
		req := uploadReq(tx.ID)
		req.UploaderID = ""
		_, err := h.svc.Upload(context.Background(), req)
		assert.ErrorIs(t, err, domainErrors.ErrUnauthorized)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		_, err := h.svc.Upload(context.Background(), uploadReq(uuid.New()))
		assert.ErrorIs(t, err, domainErrors.ErrTransactionNotFound)
	})

	t.Run("not the buyer", func(t *testing.T) {
		req := uploadReq(tx.ID)
		req.UploaderID = "seller-1"
		_, err := h.svc.Upload(context.Background(), req)
		assert.ErrorIs(t, err, domainErrors.ErrForbidden)
	})

	t.Run("bad content type", func(t *testing.T) {
		req := uploadReq(tx.ID)
		req.ContentType = "image/gif"
		_, err := h.svc.Upload(context.Background(), req)
		var ve *domainErrors.ValidationError
		assert.ErrorAs(t, err, &ve)
	})

	t.Run("empty file", func(t *testing.T) {
		req := uploadReq(tx.ID)
		req.Content = nil
		_, err := h.svc.Upload(context.Background(), req)
		var ve *domainErrors.ValidationError
		assert.ErrorAs(t, err, &ve)
	})
}

func TestUpload_WrongTransactionState(t *testing.T) {
	h := newHarness(t)
	tx := h.seedTx(t, escrow.StatusPaymentReceived, true)

	_, err := h.svc.Upload(context.Background(), uploadReq(tx.ID))
	assert.ErrorIs(t, err, domainErrors.ErrInvalidStateTransition)
}

func TestUpload_GatewayMethod(t *testing.T) {
	h := newHarness(t)
	tx := h.seedTx(t, escrow.StatusPendingPayment, false)

	_, err := h.svc.Upload(context.Background(), uploadReq(tx.ID))
	assert.ErrorIs(t, err, domainErrors.ErrNotManualPaymentMethod)
}

func TestUpload_ActiveConfirmationBlocks(t *testing.T) {
	h := newHarness(t)
	tx := h.seedTx(t, escrow.StatusPendingPayment, true)

	_, err := h.svc.Upload(context.Background(), uploadReq(tx.ID))
	require.NoError(t, err)

	_, err = h.svc.Upload(context.Background(), uploadReq(tx.ID))
	assert.ErrorIs(t, err, domainErrors.ErrConfirmationExists)
}

func TestUpload_RetryAfterRejection(t *testing.T) {
	h := newHarness(t)
	tx := h.seedTx(t, escrow.StatusPendingPayment, true)

	first, err := h.svc.Upload(context.Background(), uploadReq(tx.ID))
	require.NoError(t, err)

	// Reject without touching the transaction, so it stays pending payment.
	_, err = h.svc.Review(context.Background(), ReviewRequest{
		ConfirmationID: first.ID,
		AdminID:        "admin-1",
		Accept:         false,
		Notes:          "illegible",
	})
	require.NoError(t, err)

	second, err := h.svc.Upload(context.Background(), uploadReq(tx.ID))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestUpload_CreateFails_DeletesBlob(t *testing.T) {
	h := newHarness(t)
	tx := h.seedTx(t, escrow.StatusPendingPayment, true)

	var key string
	h.confRepo.CreateFunc = func(ctx context.Context, c *confirmation.Confirmation) error {
		key = c.StorageKey
		return stderrors.New("database down")
	}

	_, err := h.svc.Upload(context.Background(), uploadReq(tx.ID))
	require.Error(t, err)
	require.NotEmpty(t, key)

	_, err = h.storage.Retrieve(context.Background(), key)
	assert.ErrorIs(t, err, domainErrors.ErrBlobNotFound)
}

func TestReview_Accept(t *testing.T) {
	h := newHarness(t)
	tx := h.seedTx(t, escrow.StatusPendingPayment, true)
	conf, err := h.svc.Upload(context.Background(), uploadReq(tx.ID))
	require.NoError(t, err)

	reviewed, err := h.svc.Review(context.Background(), ReviewRequest{
		ConfirmationID:    conf.ID,
		AdminID:           "admin-1",
		Accept:            true,
		UpdateTransaction: true,
	})
	require.NoError(t, err)

	assert.Equal(t, confirmation.StatusAccepted, reviewed.Status)

	// Acceptance settled the manual payment.
	stored, err := h.txRepo.GetByID(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusPaymentReceived, stored.Status)
	require.NotNil(t, stored.PaymentApprovedBy)
	assert.Equal(t, "admin-1", *stored.PaymentApprovedBy)
}

func TestReview_Reject(t *testing.T) {
	h := newHarness(t)
	tx := h.seedTx(t, escrow.StatusPendingPayment, true)
	conf, err := h.svc.Upload(context.Background(), uploadReq(tx.ID))
	require.NoError(t, err)

	reviewed, err := h.svc.Review(context.Background(), ReviewRequest{
		ConfirmationID:    conf.ID,
		AdminID:           "admin-1",
		Accept:            false,
		Notes:             "amount mismatch",
		UpdateTransaction: true,
	})
	require.NoError(t, err)

	assert.Equal(t, confirmation.StatusRejected, reviewed.Status)

	// Rejection failed the purchase and put the units back on the market.
	stored, err := h.txRepo.GetByID(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusCancelled, stored.Status)

	listing, err := h.listings.GetListingByID(context.Background(), h.listing.ID)
	require.NoError(t, err)
	for _, unitID := range tx.TicketUnitIDs {
		u, ok := listing.Unit(unitID)
		require.True(t, ok)
		assert.Equal(t, catalog.UnitAvailable, u.Status)
	}
}

func TestReview_Twice(t *testing.T) {
	h := newHarness(t)
	tx := h.seedTx(t, escrow.StatusPendingPayment, true)
	conf, err := h.svc.Upload(context.Background(), uploadReq(tx.ID))
	require.NoError(t, err)

	_, err = h.svc.Review(context.Background(), ReviewRequest{
		ConfirmationID: conf.ID, AdminID: "admin-1", Accept: true, UpdateTransaction: true,
	})
	require.NoError(t, err)

	_, err = h.svc.Review(context.Background(), ReviewRequest{
		ConfirmationID: conf.ID, AdminID: "admin-2", Accept: false, UpdateTransaction: true,
	})
	assert.ErrorIs(t, err, domainErrors.ErrConfirmationAlreadyReviewed)
}

func TestReview_Unauthorized(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Review(context.Background(), ReviewRequest{
		ConfirmationID: uuid.New(), AdminID: "", Accept: true,
	})
	assert.ErrorIs(t, err, domainErrors.ErrUnauthorized)
}

func TestReview_TransactionUpdateFails_RevertsReview(t *testing.T) {
	h := newHarness(t)
	tx := h.seedTx(t, escrow.StatusPendingPayment, true)
	conf, err := h.svc.Upload(context.Background(), uploadReq(tx.ID))
	require.NoError(t, err)

	// Somebody already cancelled the purchase; settlement cannot advance it.
	stored, err := h.txRepo.GetByID(context.Background(), tx.ID)
	require.NoError(t, err)
	require.NoError(t, stored.MarkCancelled())
	require.NoError(t, h.txRepo.Update(context.Background(), stored))

	_, err = h.svc.Review(context.Background(), ReviewRequest{
		ConfirmationID: conf.ID, AdminID: "admin-1", Accept: true, UpdateTransaction: true,
	})
	require.Error(t, err)

	// The recorded review was compensated back to pending.
	current, err := h.confRepo.GetByID(context.Background(), conf.ID)
	require.NoError(t, err)
	assert.Equal(t, confirmation.StatusPending, current.Status)
	assert.Nil(t, current.ReviewedBy)
}

func TestListPending(t *testing.T) {
	h := newHarness(t)
	tx := h.seedTx(t, escrow.StatusPendingPayment, true)
	conf, err := h.svc.Upload(context.Background(), uploadReq(tx.ID))
	require.NoError(t, err)

	pending, err := h.svc.ListPending(context.Background(), 20, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, conf.ID, pending[0].Confirmation.ID)
	assert.Equal(t, "Ana Souza", pending[0].UploaderName)
}

func TestListPending_DirectoryDown(t *testing.T) {
	h := newHarness(t)
	tx := h.seedTx(t, escrow.StatusPendingPayment, true)
	_, err := h.svc.Upload(context.Background(), uploadReq(tx.ID))
	require.NoError(t, err)

	h.svc.directory = &testutil.MockUserDirectory{Err: stderrors.New("directory unavailable")}

	pending, err := h.svc.ListPending(context.Background(), 20, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Empty(t, pending[0].UploaderName)
}

func TestGetByTransaction_Authorization(t *testing.T) {
	h := newHarness(t)
	tx := h.seedTx(t, escrow.StatusPendingPayment, true)
	_, err := h.svc.Upload(context.Background(), uploadReq(tx.ID))
	require.NoError(t, err)

	_, err = h.svc.GetByTransaction(context.Background(), tx.ID, "buyer-1", false)
	assert.NoError(t, err)
	_, err = h.svc.GetByTransaction(context.Background(), tx.ID, "seller-1", false)
	assert.NoError(t, err)
	_, err = h.svc.GetByTransaction(context.Background(), tx.ID, "admin-1", true)
	assert.NoError(t, err)

	_, err = h.svc.GetByTransaction(context.Background(), tx.ID, "stranger", false)
	assert.ErrorIs(t, err, domainErrors.ErrForbidden)
}

func TestRetrieveProof(t *testing.T) {
	h := newHarness(t)
	tx := h.seedTx(t, escrow.StatusPendingPayment, true)
	conf, err := h.svc.Upload(context.Background(), uploadReq(tx.ID))
	require.NoError(t, err)

	data, got, err := h.svc.RetrieveProof(context.Background(), tx.ID, "seller-1", false)
	require.NoError(t, err)
	assert.Equal(t, conf.ID, got.ID)
	assert.True(t, bytes.Equal([]byte("png-bytes"), data))
}
