package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/seatswap/escrow/internal/domain/catalog"
	"github.com/seatswap/escrow/internal/domain/confirmation"
	"github.com/seatswap/escrow/internal/domain/directory"
	"github.com/seatswap/escrow/internal/domain/dispute"
	domainErrors "github.com/seatswap/escrow/internal/domain/errors"
	"github.com/seatswap/escrow/internal/domain/escrow"
	"github.com/seatswap/escrow/internal/domain/outbox"
	"github.com/seatswap/escrow/internal/domain/pricing"
	"github.com/shopspring/decimal"
)

// The in-memory mocks mirror the conditional-write behaviour of the real
// postgres repositories: single snapshot consumption, version-guarded
// transaction updates, pending-only reviews and one open dispute per
// transaction. Concurrency tests rely on these checks being atomic under
// the mock's mutex.

// --- Snapshot Repository Mock ---

type MockSnapshotRepository struct {
	mu        sync.Mutex
	snapshots map[uuid.UUID]*pricing.Snapshot

	CreateFunc  func(ctx context.Context, snapshot *pricing.Snapshot) error
	GetByIDFunc func(ctx context.Context, id uuid.UUID) (*pricing.Snapshot, error)
	ConsumeFunc func(ctx context.Context, snapshot *pricing.Snapshot) error
	ReopenFunc  func(ctx context.Context, id uuid.UUID) error
}

func NewMockSnapshotRepository() *MockSnapshotRepository {
	return &MockSnapshotRepository{snapshots: make(map[uuid.UUID]*pricing.Snapshot)}
}

func (m *MockSnapshotRepository) Create(ctx context.Context, snapshot *pricing.Snapshot) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, snapshot)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *snapshot
	m.snapshots[snapshot.ID] = &cp
	return nil
}

func (m *MockSnapshotRepository) GetByID(ctx context.Context, id uuid.UUID) (*pricing.Snapshot, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[id]
	if !ok {
		return nil, domainErrors.ErrSnapshotNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSnapshotRepository) Consume(ctx context.Context, snapshot *pricing.Snapshot) error {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, snapshot)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.snapshots[snapshot.ID]
	if !ok {
		return domainErrors.ErrSnapshotNotFound
	}
	if stored.ConsumedByTransactionID != nil {
		return domainErrors.ErrSnapshotAlreadyConsumed
	}
	stored.ConsumedAt = snapshot.ConsumedAt
	stored.ConsumedByTransactionID = snapshot.ConsumedByTransactionID
	stored.SelectedPaymentMethodID = snapshot.SelectedPaymentMethodID
	return nil
}

func (m *MockSnapshotRepository) Reopen(ctx context.Context, id uuid.UUID) error {
	if m.ReopenFunc != nil {
		return m.ReopenFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.snapshots[id]
	if !ok {
		return domainErrors.ErrSnapshotNotFound
	}
	stored.ConsumedAt = nil
	stored.ConsumedByTransactionID = nil
	stored.SelectedPaymentMethodID = nil
	return nil
}

func (m *MockSnapshotRepository) DeleteExpiredUnconsumed(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, s := range m.snapshots {
		if s.ConsumedByTransactionID == nil && s.ExpiresAt.Before(before) {
			delete(m.snapshots, id)
			deleted++
		}
	}
	return deleted, nil
}

// --- Transaction Repository Mock ---

type MockTransactionRepository struct {
	mu           sync.Mutex
	transactions map[uuid.UUID]*escrow.Transaction

	CreateFunc  func(ctx context.Context, tx *escrow.Transaction) error
	GetByIDFunc func(ctx context.Context, id uuid.UUID) (*escrow.Transaction, error)
	UpdateFunc  func(ctx context.Context, tx *escrow.Transaction) error
	ListFunc    func(ctx context.Context, filter escrow.ListFilter) ([]*escrow.Transaction, error)
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{transactions: make(map[uuid.UUID]*escrow.Transaction)}
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *escrow.Transaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tx
	m.transactions[tx.ID] = &cp
	return nil
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*escrow.Transaction, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[id]
	if !ok {
		return nil, domainErrors.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (m *MockTransactionRepository) Update(ctx context.Context, tx *escrow.Transaction) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.transactions[tx.ID]
	if !ok {
		return domainErrors.ErrTransactionNotFound
	}
	if stored.Version != tx.Version {
		return domainErrors.ErrOptimisticLockFailed
	}
	cp := *tx
	cp.Version = tx.Version + 1
	m.transactions[tx.ID] = &cp
	tx.Version = cp.Version
	return nil
}

func (m *MockTransactionRepository) List(ctx context.Context, filter escrow.ListFilter) ([]*escrow.Transaction, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*escrow.Transaction
	for _, tx := range m.transactions {
		if filter.BuyerID != nil && tx.BuyerID != *filter.BuyerID {
			continue
		}
		if filter.SellerID != nil && tx.SellerID != *filter.SellerID {
			continue
		}
		if filter.ListingID != nil && tx.ListingID != *filter.ListingID {
			continue
		}
		if filter.Status != nil && tx.Status != *filter.Status {
			continue
		}
		cp := *tx
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockTransactionRepository) ListDueForAutoRelease(ctx context.Context, now time.Time, limit int) ([]*escrow.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*escrow.Transaction
	for _, tx := range m.transactions {
		if tx.Status != escrow.StatusTicketTransferred || tx.AutoReleaseAt == nil {
			continue
		}
		if tx.AutoReleaseAt.Before(now) {
			cp := *tx
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// --- Confirmation Repository Mock ---

type MockConfirmationRepository struct {
	mu            sync.Mutex
	confirmations map[uuid.UUID]*confirmation.Confirmation

	CreateFunc       func(ctx context.Context, c *confirmation.Confirmation) error
	UpdateReviewFunc func(ctx context.Context, c *confirmation.Confirmation) error
}

func NewMockConfirmationRepository() *MockConfirmationRepository {
	return &MockConfirmationRepository{confirmations: make(map[uuid.UUID]*confirmation.Confirmation)}
}

func (m *MockConfirmationRepository) Create(ctx context.Context, c *confirmation.Confirmation) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.confirmations {
		if existing.TransactionID == c.TransactionID && existing.IsActive() {
			return domainErrors.ErrConfirmationExists
		}
	}
	cp := *c
	m.confirmations[c.ID] = &cp
	return nil
}

func (m *MockConfirmationRepository) GetByID(ctx context.Context, id uuid.UUID) (*confirmation.Confirmation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.confirmations[id]
	if !ok {
		return nil, domainErrors.ErrConfirmationNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockConfirmationRepository) GetActiveByTransaction(ctx context.Context, transactionID uuid.UUID) (*confirmation.Confirmation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *confirmation.Confirmation
	for _, c := range m.confirmations {
		if c.TransactionID != transactionID || !c.IsActive() {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, domainErrors.ErrConfirmationNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *MockConfirmationRepository) UpdateReview(ctx context.Context, c *confirmation.Confirmation) error {
	if m.UpdateReviewFunc != nil {
		return m.UpdateReviewFunc(ctx, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.confirmations[c.ID]
	if !ok {
		return domainErrors.ErrConfirmationNotFound
	}
	if stored.Status != confirmation.StatusPending {
		return domainErrors.ErrConfirmationAlreadyReviewed
	}
	cp := *c
	m.confirmations[c.ID] = &cp
	return nil
}

func (m *MockConfirmationRepository) RevertReview(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.confirmations[id]
	if !ok {
		return domainErrors.ErrConfirmationNotFound
	}
	stored.Status = confirmation.StatusPending
	stored.AdminNotes = nil
	stored.ReviewedBy = nil
	stored.ReviewedAt = nil
	return nil
}

func (m *MockConfirmationRepository) ListPending(ctx context.Context, limit, offset int) ([]*confirmation.Confirmation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*confirmation.Confirmation
	for _, c := range m.confirmations {
		if c.Status == confirmation.StatusPending {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- Dispute Repository Mock ---

type MockDisputeRepository struct {
	mu       sync.Mutex
	disputes map[uuid.UUID]*dispute.Dispute

	CreateFunc           func(ctx context.Context, d *dispute.Dispute) error
	UpdateResolutionFunc func(ctx context.Context, d *dispute.Dispute) error
}

func NewMockDisputeRepository() *MockDisputeRepository {
	return &MockDisputeRepository{disputes: make(map[uuid.UUID]*dispute.Dispute)}
}

func (m *MockDisputeRepository) Create(ctx context.Context, d *dispute.Dispute) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, d)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.disputes {
		if existing.TransactionID == d.TransactionID && existing.IsOpen() {
			return domainErrors.ErrOpenDisputeExists
		}
	}
	cp := *d
	m.disputes[d.ID] = &cp
	return nil
}

func (m *MockDisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*dispute.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.disputes[id]
	if !ok {
		return nil, domainErrors.ErrDisputeNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MockDisputeRepository) GetOpenByTransaction(ctx context.Context, transactionID uuid.UUID) (*dispute.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.disputes {
		if d.TransactionID == transactionID && d.IsOpen() {
			cp := *d
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrDisputeNotFound
}

func (m *MockDisputeRepository) UpdateResolution(ctx context.Context, d *dispute.Dispute) error {
	if m.UpdateResolutionFunc != nil {
		return m.UpdateResolutionFunc(ctx, d)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.disputes[d.ID]
	if !ok {
		return domainErrors.ErrDisputeNotFound
	}
	if !stored.IsOpen() {
		return domainErrors.ErrDisputeNotOpen
	}
	cp := *d
	m.disputes[d.ID] = &cp
	return nil
}

func (m *MockDisputeRepository) RevertResolution(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.disputes[id]
	if !ok {
		return domainErrors.ErrDisputeNotFound
	}
	stored.Status = dispute.StatusOpen
	stored.Resolution = nil
	stored.AdminNotes = nil
	stored.ResolvedBy = nil
	stored.ResolvedAt = nil
	return nil
}

func (m *MockDisputeRepository) Close(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.disputes[id]
	if !ok {
		return domainErrors.ErrDisputeNotFound
	}
	stored.Status = dispute.StatusResolved
	return nil
}

func (m *MockDisputeRepository) ListOpen(ctx context.Context, limit, offset int) ([]*dispute.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*dispute.Dispute
	for _, d := range m.disputes {
		if d.IsOpen() {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- Outbox Repository Mock ---

type MockOutboxRepository struct {
	mu      sync.Mutex
	Entries []*outbox.Entry

	InsertFunc func(ctx context.Context, entry *outbox.Entry) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

func (m *MockOutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, entry)
	return nil
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*outbox.Entry
	for _, e := range m.Entries {
		if e.Status == outbox.StatusPending {
			out = append(out, e)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Entries {
		if e.ID == id {
			e.Status = outbox.StatusPublished
		}
	}
	return nil
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Entries {
		if e.ID == id {
			e.Status = outbox.StatusFailed
			e.RetryCount++
		}
	}
	return nil
}

// EventTypes returns the event types recorded so far, in insertion order.
func (m *MockOutboxRepository) EventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		types = append(types, e.EventType)
	}
	return types
}

// --- Listing Catalog Mock ---

type MockListingCatalog struct {
	mu       sync.Mutex
	listings map[uuid.UUID]*catalog.Listing

	GetListingByIDFunc func(ctx context.Context, id uuid.UUID) (*catalog.Listing, error)
	ReserveUnitsFunc   func(ctx context.Context, listingID uuid.UUID, unitIDs []uuid.UUID) error
	ReleaseUnitsFunc   func(ctx context.Context, listingID uuid.UUID, unitIDs []uuid.UUID) error
	MarkUnitsSoldFunc  func(ctx context.Context, listingID uuid.UUID, unitIDs []uuid.UUID) error
}

func NewMockListingCatalog() *MockListingCatalog {
	return &MockListingCatalog{listings: make(map[uuid.UUID]*catalog.Listing)}
}

func (m *MockListingCatalog) AddListing(l *catalog.Listing) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[l.ID] = l
}

func (m *MockListingCatalog) GetListingByID(ctx context.Context, id uuid.UUID) (*catalog.Listing, error) {
	if m.GetListingByIDFunc != nil {
		return m.GetListingByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, domainErrors.ErrListingNotFound
	}
	cp := *l
	cp.Units = append([]catalog.TicketUnit(nil), l.Units...)
	return &cp, nil
}

// flipUnits moves every requested unit from one status to another, all or
// nothing, like the conditional UPDATE in the real adapter.
func (m *MockListingCatalog) flipUnits(listingID uuid.UUID, unitIDs []uuid.UUID, from, to catalog.UnitStatus, shortfall error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[listingID]
	if !ok {
		return domainErrors.ErrListingNotFound
	}
	indexes := make([]int, 0, len(unitIDs))
	for _, unitID := range unitIDs {
		found := false
		for i, u := range l.Units {
			if u.ID == unitID && u.Status == from {
				indexes = append(indexes, i)
				found = true
				break
			}
		}
		if !found {
			return shortfall
		}
	}
	for _, i := range indexes {
		l.Units[i].Status = to
	}
	return nil
}

func (m *MockListingCatalog) ReserveUnits(ctx context.Context, listingID uuid.UUID, unitIDs []uuid.UUID) error {
	if m.ReserveUnitsFunc != nil {
		return m.ReserveUnitsFunc(ctx, listingID, unitIDs)
	}
	return m.flipUnits(listingID, unitIDs, catalog.UnitAvailable, catalog.UnitReserved, domainErrors.ErrUnitsUnavailable)
}

func (m *MockListingCatalog) ReleaseUnits(ctx context.Context, listingID uuid.UUID, unitIDs []uuid.UUID) error {
	if m.ReleaseUnitsFunc != nil {
		return m.ReleaseUnitsFunc(ctx, listingID, unitIDs)
	}
	return m.flipUnits(listingID, unitIDs, catalog.UnitReserved, catalog.UnitAvailable, domainErrors.ErrUnitsNotOnListing)
}

func (m *MockListingCatalog) MarkUnitsSold(ctx context.Context, listingID uuid.UUID, unitIDs []uuid.UUID) error {
	if m.MarkUnitsSoldFunc != nil {
		return m.MarkUnitsSoldFunc(ctx, listingID, unitIDs)
	}
	return m.flipUnits(listingID, unitIDs, catalog.UnitReserved, catalog.UnitSold, domainErrors.ErrUnitsNotOnListing)
}

// --- Method Catalog Mock ---

type MockMethodCatalog struct {
	Methods []catalog.PaymentMethod

	ListEnabledFunc func(ctx context.Context) ([]catalog.PaymentMethod, error)
}

func (m *MockMethodCatalog) ListEnabled(ctx context.Context) ([]catalog.PaymentMethod, error) {
	if m.ListEnabledFunc != nil {
		return m.ListEnabledFunc(ctx)
	}
	enabled := make([]catalog.PaymentMethod, 0, len(m.Methods))
	for _, pm := range m.Methods {
		if pm.Enabled {
			enabled = append(enabled, pm)
		}
	}
	return enabled, nil
}

// --- Platform Config Mock ---

type MockPlatformConfig struct {
	BuyerPct  decimal.Decimal
	SellerPct decimal.Decimal
	Err       error
}

func (m *MockPlatformConfig) BuyerFeePercent(ctx context.Context) (decimal.Decimal, error) {
	return m.BuyerPct, m.Err
}

func (m *MockPlatformConfig) SellerFeePercent(ctx context.Context) (decimal.Decimal, error) {
	return m.SellerPct, m.Err
}

// --- Locker Mock ---

// MockLocker serializes callers per key like the Redis locker, using local
// mutexes. Concurrency tests depend on that serialization being real.
type MockLocker struct {
	locks sync.Map

	WithLockFunc func(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

func (m *MockLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if m.WithLockFunc != nil {
		return m.WithLockFunc(ctx, key, fn)
	}
	mu, _ := m.locks.LoadOrStore(key, &sync.Mutex{})
	mtx := mu.(*sync.Mutex)
	mtx.Lock()
	defer mtx.Unlock()
	return fn(ctx)
}

// --- Transaction Manager Mock ---

type MockTxManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *MockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Blob Storage Mock ---

type MockBlobStorage struct {
	mu    sync.Mutex
	blobs map[string][]byte

	StoreFunc    func(ctx context.Context, key string, data []byte, metadata map[string]string) error
	RetrieveFunc func(ctx context.Context, key string) ([]byte, error)
}

func NewMockBlobStorage() *MockBlobStorage {
	return &MockBlobStorage{blobs: make(map[string][]byte)}
}

func (m *MockBlobStorage) Store(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	if m.StoreFunc != nil {
		return m.StoreFunc(ctx, key, data, metadata)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (m *MockBlobStorage) Retrieve(ctx context.Context, key string) ([]byte, error) {
	if m.RetrieveFunc != nil {
		return m.RetrieveFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, domainErrors.ErrBlobNotFound
	}
	return data, nil
}

func (m *MockBlobStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

// --- User Directory Mock ---

type MockUserDirectory struct {
	Users map[string]string // id -> display name
	Err   error
}

func (m *MockUserDirectory) FindByID(ctx context.Context, id string) (*directory.User, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	name, ok := m.Users[id]
	if !ok {
		return nil, nil
	}
	return &directory.User{ID: id, DisplayName: name}, nil
}
