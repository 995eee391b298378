package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/usecase"
)

// MockAccountRepository is a mock implementation of AccountRepository.
type MockAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account

	CreateFunc            func(ctx context.Context, account *domain.Account) error
	GetByIDFunc           func(ctx context.Context, id string) (*domain.Account, error)
	GetByIDsFunc          func(ctx context.Context, ids []string) ([]*domain.Account, error)
	GetByIDsForUpdateFunc func(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Account, error)
	ApplyDeltaFunc        func(ctx context.Context, tx usecase.Transaction, id string, delta int64, expectedVersion int64, updatedAt time.Time) (int64, error)
	UpdateStatusFunc      func(ctx context.Context, tx usecase.Transaction, id string, status domain.AccountStatus, updatedAt time.Time) error
	ListFunc              func(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{
		accounts: make(map[string]*domain.Account),
	}
}

// Seed installs an account directly into the backing map.
func (m *MockAccountRepository) Seed(account *domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
}

func (m *MockAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
	return nil
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if acc, ok := m.accounts[id]; ok {
		return acc, nil
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Account, error) {
	if m.GetByIDsFunc != nil {
		return m.GetByIDsFunc(ctx, ids)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var accounts []*domain.Account
	for _, id := range ids {
		if acc, ok := m.accounts[id]; ok {
			accounts = append(accounts, acc)
		}
	}
	return accounts, nil
}

func (m *MockAccountRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Account, error) {
	if m.GetByIDsForUpdateFunc != nil {
		return m.GetByIDsForUpdateFunc(ctx, tx, ids)
	}
	return m.GetByIDs(ctx, ids)
}

func (m *MockAccountRepository) ApplyDelta(ctx context.Context, tx usecase.Transaction, id string, delta int64, expectedVersion int64, updatedAt time.Time) (int64, error) {
	if m.ApplyDeltaFunc != nil {
		return m.ApplyDeltaFunc(ctx, tx, id, delta, expectedVersion, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	if acc.Version != expectedVersion {
		return 0, domain.ErrVersionConflict
	}
	acc.Balance += delta
	acc.Version++
	acc.UpdatedAt = updatedAt
	return acc.Version, nil
}

func (m *MockAccountRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.AccountStatus, updatedAt time.Time) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, tx, id, status, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc, ok := m.accounts[id]; ok {
		acc.Status = status
		acc.UpdatedAt = updatedAt
		return nil
	}
	return domain.ErrAccountNotFound
}

func (m *MockAccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var accounts []*domain.Account
	for _, acc := range m.accounts {
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

// MockJournalRepository is a mock implementation of JournalRepository.
type MockJournalRepository struct {
	mu      sync.RWMutex
	journal []*domain.Transaction
	byID    map[string]*domain.Transaction

	AppendFunc              func(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) (int64, error)
	GetByIDFunc             func(ctx context.Context, id string) (*domain.Transaction, error)
	GetByIdempotencyKeyFunc func(ctx context.Context, key string) (*domain.Transaction, error)
	MarkReversedFunc        func(ctx context.Context, tx usecase.Transaction, id string) error
	ReadFromFunc            func(ctx context.Context, fromSeq int64, limit int) ([]*domain.Transaction, error)
	GetEntriesByAccountFunc func(ctx context.Context, accountID string, limit, offset int) ([]*domain.Entry, error)
	HeadFunc                func(ctx context.Context) (int64, error)
}

func NewMockJournalRepository() *MockJournalRepository {
	return &MockJournalRepository{
		byID: make(map[string]*domain.Transaction),
	}
}

func (m *MockJournalRepository) Append(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) (int64, error) {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, tx, txn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.journal {
		if existing.IdempotencyKey == txn.IdempotencyKey && txn.IdempotencyKey != "" {
			return 0, domain.ErrDuplicateKey
		}
	}
	seq := int64(len(m.journal)) + 1
	txn.Sequence = seq
	m.journal = append(m.journal, txn)
	m.byID[txn.ID] = txn
	return seq, nil
}

func (m *MockJournalRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	if m.GetByIdempotencyKeyFunc != nil {
		return m.GetByIdempotencyKeyFunc(ctx, key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, txn := range m.journal {
		if txn.IdempotencyKey == key {
			return txn, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (m *MockJournalRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if txn, ok := m.byID[id]; ok {
		return txn, nil
	}
	return nil, domain.ErrTransactionNotFound
}

func (m *MockJournalRepository) MarkReversed(ctx context.Context, tx usecase.Transaction, id string) error {
	if m.MarkReversedFunc != nil {
		return m.MarkReversedFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.byID[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	if txn.Status == domain.TransactionStatusReversed {
		return domain.ErrAlreadyReversed
	}
	txn.Status = domain.TransactionStatusReversed
	return nil
}

func (m *MockJournalRepository) ReadFrom(ctx context.Context, fromSeq int64, limit int) ([]*domain.Transaction, error) {
	if m.ReadFromFunc != nil {
		return m.ReadFromFunc(ctx, fromSeq, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var page []*domain.Transaction
	for _, txn := range m.journal {
		if txn.Sequence < fromSeq {
			continue
		}
		page = append(page, txn)
		if limit > 0 && len(page) >= limit {
			break
		}
	}
	return page, nil
}

func (m *MockJournalRepository) GetEntriesByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Entry, error) {
	if m.GetEntriesByAccountFunc != nil {
		return m.GetEntriesByAccountFunc(ctx, accountID, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []*domain.Entry
	for i := len(m.journal) - 1; i >= 0; i-- {
		for j := range m.journal[i].Entries {
			if m.journal[i].Entries[j].AccountID == accountID {
				entries = append(entries, &m.journal[i].Entries[j])
			}
		}
	}
	return entries, nil
}

func (m *MockJournalRepository) Head(ctx context.Context) (int64, error) {
	if m.HeadFunc != nil {
		return m.HeadFunc(ctx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.journal)), nil
}

// MockIdempotencyStore is a mock implementation of IdempotencyStore.
type MockIdempotencyStore struct {
	mu        sync.Mutex
	reserved  map[string]string
	completed map[string][]byte

	CheckOrReserveFunc func(ctx context.Context, key, fingerprint string, reservationTTL time.Duration) (usecase.IdempotencyResult, error)
	GetFunc            func(ctx context.Context, key string) (usecase.IdempotencyResult, error)
	CompleteFunc       func(ctx context.Context, key string, outcome []byte, ttl time.Duration) error
	ReleaseFunc        func(ctx context.Context, key string) error
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{
		reserved:  make(map[string]string),
		completed: make(map[string][]byte),
	}
}

func (m *MockIdempotencyStore) CheckOrReserve(ctx context.Context, key, fingerprint string, reservationTTL time.Duration) (usecase.IdempotencyResult, error) {
	if m.CheckOrReserveFunc != nil {
		return m.CheckOrReserveFunc(ctx, key, fingerprint, reservationTTL)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if outcome, ok := m.completed[key]; ok {
		return usecase.IdempotencyResult{State: usecase.IdempotencyCompleted, Outcome: outcome}, nil
	}
	if _, ok := m.reserved[key]; ok {
		return usecase.IdempotencyResult{State: usecase.IdempotencyInFlight}, nil
	}
	m.reserved[key] = fingerprint
	return usecase.IdempotencyResult{State: usecase.IdempotencyFresh}, nil
}

func (m *MockIdempotencyStore) Get(ctx context.Context, key string) (usecase.IdempotencyResult, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if outcome, ok := m.completed[key]; ok {
		return usecase.IdempotencyResult{State: usecase.IdempotencyCompleted, Outcome: outcome}, nil
	}
	if _, ok := m.reserved[key]; ok {
		return usecase.IdempotencyResult{State: usecase.IdempotencyInFlight}, nil
	}
	return usecase.IdempotencyResult{State: usecase.IdempotencyFresh}, nil
}

func (m *MockIdempotencyStore) Complete(ctx context.Context, key string, outcome []byte, ttl time.Duration) error {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, key, outcome, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reserved, key)
	m.completed[key] = outcome
	return nil
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reserved, key)
	return nil
}

// MockOutboxRepository is a mock implementation of OutboxRepository.
type MockOutboxRepository struct {
	mu     sync.Mutex
	Events []*domain.OutboxEvent

	CreateFunc func(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

func (m *MockOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*domain.OutboxEvent
	for _, event := range m.Events {
		if !event.Published {
			pending = append(pending, event)
		}
		if limit > 0 && len(pending) >= limit {
			break
		}
	}
	return pending, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, event := range m.Events {
		if event.ID == id {
			event.Published = true
			at := publishedAt
			event.PublishedAt = &at
		}
	}
	return nil
}

func (m *MockOutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	return nil
}

// MockAuditRepository is a mock implementation of AuditRepository.
type MockAuditRepository struct {
	mu   sync.Mutex
	Logs []*domain.AuditLog

	CreateFunc   func(ctx context.Context, log *domain.AuditLog) error
	CreateTxFunc func(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error
}

func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{}
}

func (m *MockAuditRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, log)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, log)
	return nil
}

func (m *MockAuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	if m.CreateTxFunc != nil {
		return m.CreateTxFunc(ctx, tx, log)
	}
	return m.Create(ctx, log)
}

func (m *MockAuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.AuditLog(nil), m.Logs...), nil
}

// MockTransaction is a mock implementation of Transaction.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error

	Committed  bool
	RolledBack bool
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	m.Committed = true
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	if !m.Committed {
		m.RolledBack = true
	}
	return nil
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// MockIDGenerator is a mock implementation of IDGenerator producing
// deterministic sequential IDs.
type MockIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int

	GenerateFunc func() string
}

func NewMockIDGenerator(prefix string) *MockIDGenerator {
	return &MockIDGenerator{prefix: prefix}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	return m.prefix + "-" + itoa(m.n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
