// Package mocks provides hand-written test doubles for the usecase
// interfaces. Each mock keeps simple in-memory state and exposes
// per-method Func fields to override behavior in a test.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/retailsync/ledger/internal/domain"
	"github.com/retailsync/ledger/internal/usecase"
)

// MockTransaction is a no-op transaction that counts commits and
// rollbacks. Begin returns a nested mock sharing nothing.
type MockTransaction struct {
	mu        sync.Mutex
	Commits   int
	Rollbacks int

	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
	BeginFunc    func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransaction() *MockTransaction { return &MockTransaction{} }

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commits++
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rollbacks++
	return nil
}

func (m *MockTransaction) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return NewMockTransaction(), nil
}

// MockTransactionManager hands out MockTransactions.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
	Last      *MockTransaction
}

func NewMockTransactionManager() *MockTransactionManager { return &MockTransactionManager{} }

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	m.Last = NewMockTransaction()
	return m.Last, nil
}

// MockEventRepository is a mock implementation of EventRepository.
type MockEventRepository struct {
	mu     sync.RWMutex
	events map[string]*domain.Event

	CreateTxFunc       func(ctx context.Context, tx usecase.Transaction, event *domain.Event) (bool, error)
	GetByIDFunc        func(ctx context.Context, id string) (*domain.Event, error)
	ClaimForUpdateFunc func(ctx context.Context, tx usecase.Transaction, id string) (*domain.Event, error)
	MarkProcessedFunc  func(ctx context.Context, tx usecase.Transaction, id string, attempt int, at time.Time) error
	MarkFailedFunc     func(ctx context.Context, tx usecase.Transaction, id string, attempt int, errMsg string, nextAttempt *time.Time) error
	MarkDeadFunc       func(ctx context.Context, tx usecase.Transaction, id string, attempt int, errMsg string) error
	RequeueFunc        func(ctx context.Context, id string, resetHistory bool, at time.Time) (*domain.Event, error)
	ListFunc           func(ctx context.Context, filter domain.EventFilter) ([]*domain.Event, error)
	ListChildrenFunc   func(ctx context.Context, parentID string) ([]*domain.Event, error)
	ListDueFunc        func(ctx context.Context, now time.Time, limit int) ([]*domain.Event, error)
	CountByStatusFunc  func(ctx context.Context) (map[domain.EventStatus]int64, error)
	PruneProcessedFunc func(ctx context.Context, before time.Time, limit int) (int64, error)
}

func NewMockEventRepository() *MockEventRepository {
	return &MockEventRepository{events: make(map[string]*domain.Event)}
}

// Seed stores an event directly, bypassing the insert path.
func (m *MockEventRepository) Seed(event *domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.ID] = event
}

func (m *MockEventRepository) CreateTx(ctx context.Context, tx usecase.Transaction, event *domain.Event) (bool, error) {
	if m.CreateTxFunc != nil {
		return m.CreateTxFunc(ctx, tx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[event.ID]; ok {
		return false, nil
	}
	m.events[event.ID] = event
	return true, nil
}

func (m *MockEventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ev, ok := m.events[id]; ok {
		return ev, nil
	}
	return nil, domain.ErrEventNotFound
}

func (m *MockEventRepository) ClaimForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Event, error) {
	if m.ClaimForUpdateFunc != nil {
		return m.ClaimForUpdateFunc(ctx, tx, id)
	}
	return m.GetByID(ctx, id)
}

func (m *MockEventRepository) MarkProcessed(ctx context.Context, tx usecase.Transaction, id string, attempt int, at time.Time) error {
	if m.MarkProcessedFunc != nil {
		return m.MarkProcessedFunc(ctx, tx, id, attempt, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev, ok := m.events[id]; ok {
		ev.Status = domain.EventProcessed
		ev.AttemptCount = attempt
		ev.ProcessedAt = &at
		ev.NextAttemptAt = nil
	}
	return nil
}

func (m *MockEventRepository) MarkFailed(ctx context.Context, tx usecase.Transaction, id string, attempt int, errMsg string, nextAttempt *time.Time) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, tx, id, attempt, errMsg, nextAttempt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev, ok := m.events[id]; ok {
		ev.Status = domain.EventFailed
		ev.AttemptCount = attempt
		ev.ErrorMessage = &errMsg
		ev.NextAttemptAt = nextAttempt
	}
	return nil
}

func (m *MockEventRepository) MarkDead(ctx context.Context, tx usecase.Transaction, id string, attempt int, errMsg string) error {
	if m.MarkDeadFunc != nil {
		return m.MarkDeadFunc(ctx, tx, id, attempt, errMsg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev, ok := m.events[id]; ok {
		ev.Status = domain.EventDead
		ev.AttemptCount = attempt
		ev.ErrorMessage = &errMsg
		ev.NextAttemptAt = nil
	}
	return nil
}

func (m *MockEventRepository) Requeue(ctx context.Context, id string, resetHistory bool, at time.Time) (*domain.Event, error) {
	if m.RequeueFunc != nil {
		return m.RequeueFunc(ctx, id, resetHistory, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	ev.Status = domain.EventPending
	ev.ErrorMessage = nil
	ev.NextAttemptAt = nil
	if resetHistory {
		ev.AttemptCount = 0
	}
	return ev, nil
}

func (m *MockEventRepository) List(ctx context.Context, filter domain.EventFilter) ([]*domain.Event, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Event
	for _, ev := range m.events {
		if filter.Status != "" && ev.Status != filter.Status {
			continue
		}
		if filter.DeviceID != "" && ev.DeviceID != filter.DeviceID {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (m *MockEventRepository) ListChildren(ctx context.Context, parentID string) ([]*domain.Event, error) {
	if m.ListChildrenFunc != nil {
		return m.ListChildrenFunc(ctx, parentID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Event
	for _, ev := range m.events {
		if ev.ParentID != nil && *ev.ParentID == parentID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *MockEventRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.Event, error) {
	if m.ListDueFunc != nil {
		return m.ListDueFunc(ctx, now, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Event
	for _, ev := range m.events {
		due := ev.NextAttemptAt != nil && !ev.NextAttemptAt.After(now)
		if (ev.Status == domain.EventFailed || ev.Status == domain.EventPending) && due {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *MockEventRepository) PruneProcessed(ctx context.Context, before time.Time, limit int) (int64, error) {
	if m.PruneProcessedFunc != nil {
		return m.PruneProcessedFunc(ctx, before, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var pruned int64
	for id, ev := range m.events {
		if ev.Status == domain.EventProcessed && ev.ProcessedAt != nil && ev.ProcessedAt.Before(before) {
			delete(m.events, id)
			pruned++
		}
	}
	return pruned, nil
}

func (m *MockEventRepository) CountByStatus(ctx context.Context) (map[domain.EventStatus]int64, error) {
	if m.CountByStatusFunc != nil {
		return m.CountByStatusFunc(ctx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[domain.EventStatus]int64)
	for _, ev := range m.events {
		counts[ev.Status]++
	}
	return counts, nil
}

// MockDocumentRepository is a mock implementation of DocumentRepository.
type MockDocumentRepository struct {
	mu   sync.RWMutex
	docs map[string]*domain.Document
	seq  int

	CreateTxFunc       func(ctx context.Context, tx usecase.Transaction, doc *domain.Document, lines []domain.DocumentLine, payments []domain.DocumentPayment, taxes []domain.DocumentTax) error
	GetByIDFunc        func(ctx context.Context, id string) (*domain.Document, error)
	GetByEventIDFunc   func(ctx context.Context, eventID string) (*domain.Document, error)
	NextDocumentNoFunc func(ctx context.Context, tx usecase.Transaction, companyID string, docType domain.DocumentType, year int) (string, error)
	MarkPostedFunc     func(ctx context.Context, tx usecase.Transaction, id, journalID string, at time.Time) error
}

func NewMockDocumentRepository() *MockDocumentRepository {
	return &MockDocumentRepository{docs: make(map[string]*domain.Document)}
}

func (m *MockDocumentRepository) CreateTx(ctx context.Context, tx usecase.Transaction, doc *domain.Document, lines []domain.DocumentLine, payments []domain.DocumentPayment, taxes []domain.DocumentTax) error {
	if m.CreateTxFunc != nil {
		return m.CreateTxFunc(ctx, tx, doc, lines, payments, taxes)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
	return nil
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.docs[id]; ok {
		return d, nil
	}
	return nil, domain.ErrDocumentNotFound
}

func (m *MockDocumentRepository) GetByEventID(ctx context.Context, eventID string) (*domain.Document, error) {
	if m.GetByEventIDFunc != nil {
		return m.GetByEventIDFunc(ctx, eventID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.docs {
		if d.EventID == eventID {
			return d, nil
		}
	}
	return nil, domain.ErrDocumentNotFound
}

func (m *MockDocumentRepository) NextDocumentNo(ctx context.Context, tx usecase.Transaction, companyID string, docType domain.DocumentType, year int) (string, error) {
	if m.NextDocumentNoFunc != nil {
		return m.NextDocumentNoFunc(ctx, tx, companyID, docType, year)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return domain.FormatDocumentNo(docType, year, m.seq), nil
}

func (m *MockDocumentRepository) MarkPosted(ctx context.Context, tx usecase.Transaction, id, journalID string, at time.Time) error {
	if m.MarkPostedFunc != nil {
		return m.MarkPostedFunc(ctx, tx, id, journalID, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[id]; ok {
		d.Status = domain.DocStatusPosted
		d.JournalID = &journalID
		d.PostedAt = &at
	}
	return nil
}

// MockJournalRepository is a mock implementation of JournalRepository.
type MockJournalRepository struct {
	mu       sync.RWMutex
	journals map[string]*domain.Journal
	seq      int

	CreateTxFunc         func(ctx context.Context, tx usecase.Transaction, journal *domain.Journal) error
	GetByIDFunc          func(ctx context.Context, id string) (*domain.Journal, error)
	GetByDocumentIDFunc  func(ctx context.Context, documentID string) (*domain.Journal, error)
	NextJournalNoFunc    func(ctx context.Context, tx usecase.Transaction, companyID string, year int) (string, error)
	MarkReversedFunc     func(ctx context.Context, tx usecase.Transaction, id, reversalID string) error
	CheckConsistencyFunc func(ctx context.Context, companyID string) (*domain.ConsistencyReport, error)
}

func NewMockJournalRepository() *MockJournalRepository {
	return &MockJournalRepository{journals: make(map[string]*domain.Journal)}
}

func (m *MockJournalRepository) CreateTx(ctx context.Context, tx usecase.Transaction, journal *domain.Journal) error {
	if m.CreateTxFunc != nil {
		return m.CreateTxFunc(ctx, tx, journal)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.journals[journal.ID] = journal
	return nil
}

func (m *MockJournalRepository) GetByID(ctx context.Context, id string) (*domain.Journal, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if j, ok := m.journals[id]; ok {
		return j, nil
	}
	return nil, domain.ErrJournalNotFound
}

func (m *MockJournalRepository) GetByDocumentID(ctx context.Context, documentID string) (*domain.Journal, error) {
	if m.GetByDocumentIDFunc != nil {
		return m.GetByDocumentIDFunc(ctx, documentID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, j := range m.journals {
		if j.DocumentID != nil && *j.DocumentID == documentID {
			return j, nil
		}
	}
	return nil, domain.ErrJournalNotFound
}

func (m *MockJournalRepository) NextJournalNo(ctx context.Context, tx usecase.Transaction, companyID string, year int) (string, error) {
	if m.NextJournalNoFunc != nil {
		return m.NextJournalNoFunc(ctx, tx, companyID, year)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return domain.FormatJournalNo(year, m.seq), nil
}

func (m *MockJournalRepository) MarkReversed(ctx context.Context, tx usecase.Transaction, id, reversalID string) error {
	if m.MarkReversedFunc != nil {
		return m.MarkReversedFunc(ctx, tx, id, reversalID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.journals[id]; ok {
		j.Status = domain.JournalReversed
	}
	return nil
}

func (m *MockJournalRepository) CheckConsistency(ctx context.Context, companyID string) (*domain.ConsistencyReport, error) {
	if m.CheckConsistencyFunc != nil {
		return m.CheckConsistencyFunc(ctx, companyID)
	}
	return &domain.ConsistencyReport{CompanyID: companyID}, nil
}
