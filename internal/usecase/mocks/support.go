package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/retailsync/ledger/internal/domain"
	"github.com/retailsync/ledger/internal/usecase"
)

// MockRateRepository is a mock implementation of RateRepository.
type MockRateRepository struct {
	mu    sync.RWMutex
	rates []*domain.ExchangeRate

	GetByDateFunc       func(ctx context.Context, date time.Time, t domain.RateType) (*domain.ExchangeRate, error)
	GetLatestBeforeFunc func(ctx context.Context, date time.Time, t domain.RateType) (*domain.ExchangeRate, error)
	UpsertFunc          func(ctx context.Context, rate *domain.ExchangeRate) error
	ListFunc            func(ctx context.Context, from, to time.Time, limit int) ([]*domain.ExchangeRate, error)
}

func NewMockRateRepository() *MockRateRepository { return &MockRateRepository{} }

func (m *MockRateRepository) Seed(rate *domain.ExchangeRate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates = append(m.rates, rate)
}

func (m *MockRateRepository) GetByDate(ctx context.Context, date time.Time, t domain.RateType) (*domain.ExchangeRate, error) {
	if m.GetByDateFunc != nil {
		return m.GetByDateFunc(ctx, date, t)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rates {
		if r.Type == t && r.RateDate.Equal(date) {
			return r, nil
		}
	}
	return nil, domain.ErrMissingExchangeRate
}

func (m *MockRateRepository) GetLatestBefore(ctx context.Context, date time.Time, t domain.RateType) (*domain.ExchangeRate, error) {
	if m.GetLatestBeforeFunc != nil {
		return m.GetLatestBeforeFunc(ctx, date, t)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *domain.ExchangeRate
	for _, r := range m.rates {
		if r.Type != t || r.RateDate.After(date) {
			continue
		}
		if best == nil || r.RateDate.After(best.RateDate) {
			best = r
		}
	}
	if best == nil {
		return nil, domain.ErrMissingExchangeRate
	}
	return best, nil
}

func (m *MockRateRepository) Upsert(ctx context.Context, rate *domain.ExchangeRate) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, rate)
	}
	m.Seed(rate)
	return nil
}

func (m *MockRateRepository) List(ctx context.Context, from, to time.Time, limit int) ([]*domain.ExchangeRate, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, from, to, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.ExchangeRate
	for _, r := range m.rates {
		if !r.RateDate.Before(from) && !r.RateDate.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

// MockPeriodRepository is a mock implementation of PeriodRepository.
type MockPeriodRepository struct {
	mu    sync.RWMutex
	locks []*domain.PeriodLock

	FindCoveringFunc func(ctx context.Context, tx usecase.Transaction, companyID string, date time.Time) (*domain.PeriodLock, error)
	UpsertFunc       func(ctx context.Context, lock *domain.PeriodLock) error
	ListFunc         func(ctx context.Context, companyID string) ([]*domain.PeriodLock, error)
}

func NewMockPeriodRepository() *MockPeriodRepository { return &MockPeriodRepository{} }

func (m *MockPeriodRepository) Seed(lock *domain.PeriodLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks = append(m.locks, lock)
}

func (m *MockPeriodRepository) FindCovering(ctx context.Context, tx usecase.Transaction, companyID string, date time.Time) (*domain.PeriodLock, error) {
	if m.FindCoveringFunc != nil {
		return m.FindCoveringFunc(ctx, tx, companyID, date)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.locks {
		if l.CompanyID == companyID && l.Covers(date) {
			return l, nil
		}
	}
	return nil, nil
}

func (m *MockPeriodRepository) Upsert(ctx context.Context, lock *domain.PeriodLock) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, lock)
	}
	m.Seed(lock)
	return nil
}

func (m *MockPeriodRepository) List(ctx context.Context, companyID string) ([]*domain.PeriodLock, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, companyID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.PeriodLock
	for _, l := range m.locks {
		if l.CompanyID == companyID {
			out = append(out, l)
		}
	}
	return out, nil
}

// MockMappingRepository is a mock implementation of MappingRepository.
type MockMappingRepository struct {
	mu    sync.RWMutex
	roles map[string]domain.RoleSet

	ResolveRolesFunc func(ctx context.Context, tx usecase.Transaction, companyID string) (domain.RoleSet, error)
	UpsertFunc       func(ctx context.Context, mapping *domain.AccountMapping) error
	ListFunc         func(ctx context.Context, companyID string) ([]*domain.AccountMapping, error)
}

func NewMockMappingRepository() *MockMappingRepository {
	return &MockMappingRepository{roles: make(map[string]domain.RoleSet)}
}

// SeedFullRoleSet maps every role of a company to a synthetic account id.
func (m *MockMappingRepository) SeedFullRoleSet(companyID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(domain.RoleSet, len(domain.AllRoles))
	for _, role := range domain.AllRoles {
		set[role] = "acct-" + string(role)
	}
	m.roles[companyID] = set
}

func (m *MockMappingRepository) SeedRole(companyID string, role domain.Role, accountID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roles[companyID] == nil {
		m.roles[companyID] = make(domain.RoleSet)
	}
	m.roles[companyID][role] = accountID
}

func (m *MockMappingRepository) ResolveRoles(ctx context.Context, tx usecase.Transaction, companyID string) (domain.RoleSet, error) {
	if m.ResolveRolesFunc != nil {
		return m.ResolveRolesFunc(ctx, tx, companyID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.roles[companyID]
	if !ok {
		return domain.RoleSet{}, nil
	}
	return set, nil
}

func (m *MockMappingRepository) Upsert(ctx context.Context, mapping *domain.AccountMapping) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, mapping)
	}
	m.SeedRole(mapping.CompanyID, mapping.Role, mapping.AccountID)
	return nil
}

func (m *MockMappingRepository) List(ctx context.Context, companyID string) ([]*domain.AccountMapping, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, companyID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.AccountMapping
	for role, acct := range m.roles[companyID] {
		out = append(out, &domain.AccountMapping{CompanyID: companyID, Role: role, AccountID: acct})
	}
	return out, nil
}

// MockDeviceRepository is a mock implementation of DeviceRepository.
type MockDeviceRepository struct {
	mu      sync.RWMutex
	devices map[string]*domain.Device

	CreateFunc          func(ctx context.Context, device *domain.Device) error
	GetByIDFunc         func(ctx context.Context, id string) (*domain.Device, error)
	UpdateTokenHashFunc func(ctx context.Context, id, tokenHash string) error
	SetActiveFunc       func(ctx context.Context, id string, active bool) error
	TouchLastSeenFunc   func(ctx context.Context, id string, at time.Time) error
	RecordHeartbeatFunc func(ctx context.Context, hb *domain.Heartbeat) error
	ListFunc            func(ctx context.Context, companyID string) ([]*domain.Device, error)
}

func NewMockDeviceRepository() *MockDeviceRepository {
	return &MockDeviceRepository{devices: make(map[string]*domain.Device)}
}

func (m *MockDeviceRepository) Create(ctx context.Context, device *domain.Device) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, device)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[device.ID] = device
	return nil
}

func (m *MockDeviceRepository) GetByID(ctx context.Context, id string) (*domain.Device, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.devices[id]; ok {
		return d, nil
	}
	return nil, domain.ErrDeviceNotFound
}

func (m *MockDeviceRepository) UpdateTokenHash(ctx context.Context, id, tokenHash string) error {
	if m.UpdateTokenHashFunc != nil {
		return m.UpdateTokenHashFunc(ctx, id, tokenHash)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.devices[id]; ok {
		d.TokenHash = tokenHash
	}
	return nil
}

func (m *MockDeviceRepository) SetActive(ctx context.Context, id string, active bool) error {
	if m.SetActiveFunc != nil {
		return m.SetActiveFunc(ctx, id, active)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.devices[id]; ok {
		d.Active = active
	}
	return nil
}

func (m *MockDeviceRepository) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	if m.TouchLastSeenFunc != nil {
		return m.TouchLastSeenFunc(ctx, id, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.devices[id]; ok {
		d.LastSeenAt = &at
	}
	return nil
}

func (m *MockDeviceRepository) RecordHeartbeat(ctx context.Context, hb *domain.Heartbeat) error {
	if m.RecordHeartbeatFunc != nil {
		return m.RecordHeartbeatFunc(ctx, hb)
	}
	return nil
}

func (m *MockDeviceRepository) List(ctx context.Context, companyID string) ([]*domain.Device, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, companyID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Device
	for _, d := range m.devices {
		if companyID == "" || d.CompanyID == companyID {
			out = append(out, d)
		}
	}
	return out, nil
}

// MockUpdateRepository is a mock implementation of UpdateRepository.
type MockUpdateRepository struct {
	mu      sync.RWMutex
	updates []domain.Update

	AppendFunc    func(ctx context.Context, kind domain.UpdateKind, refID string, body []byte) (int64, error)
	ListSinceFunc func(ctx context.Context, afterSeq int64, limit int) ([]domain.Update, error)
}

func NewMockUpdateRepository() *MockUpdateRepository { return &MockUpdateRepository{} }

func (m *MockUpdateRepository) Append(ctx context.Context, kind domain.UpdateKind, refID string, body []byte) (int64, error) {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, kind, refID, body)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	seq := int64(len(m.updates) + 1)
	m.updates = append(m.updates, domain.Update{
		Seq: seq, Kind: kind, RefID: refID, Body: body, CreatedAt: time.Now().UTC(),
	})
	return seq, nil
}

func (m *MockUpdateRepository) ListSince(ctx context.Context, afterSeq int64, limit int) ([]domain.Update, error) {
	if m.ListSinceFunc != nil {
		return m.ListSinceFunc(ctx, afterSeq, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Update
	for _, u := range m.updates {
		if u.Seq > afterSeq {
			out = append(out, u)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// MockAuditRepository is a mock implementation of AuditRepository.
type MockAuditRepository struct {
	mu   sync.RWMutex
	Logs []*domain.AuditLog

	CreateFunc func(ctx context.Context, log *domain.AuditLog) error
}

func NewMockAuditRepository() *MockAuditRepository { return &MockAuditRepository{} }

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
	return m.Create(ctx, log)
}

func (m *MockAuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Logs, nil
}

func (m *MockAuditRepository) GetByResourceID(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.AuditLog
	for _, l := range m.Logs {
		if l.ResourceType == resourceType && l.ResourceID == resourceID {
			out = append(out, l)
		}
	}
	return out, nil
}

// MockCompanyLocker is a no-op lock that records acquisitions.
type MockCompanyLocker struct {
	mu       sync.Mutex
	Acquired []string

	LockFunc func(ctx context.Context, tx usecase.Transaction, companyID string) error
}

func NewMockCompanyLocker() *MockCompanyLocker { return &MockCompanyLocker{} }

func (m *MockCompanyLocker) Lock(ctx context.Context, tx usecase.Transaction, companyID string) error {
	if m.LockFunc != nil {
		return m.LockFunc(ctx, tx, companyID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Acquired = append(m.Acquired, companyID)
	return nil
}

// MockIDGenerator returns sequential ids for stable assertions.
type MockIDGenerator struct {
	mu sync.Mutex
	n  int

	GenerateFunc func() string
}

func NewMockIDGenerator() *MockIDGenerator { return &MockIDGenerator{} }

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	return fmt.Sprintf("id-%04d", m.n)
}

// MockCache is an in-memory Cache.
type MockCache struct {
	mu   sync.RWMutex
	data map[string][]byte

	GetFunc    func(ctx context.Context, key string) ([]byte, error)
	SetFunc    func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, key string) error
}

func NewMockCache() *MockCache { return &MockCache{data: make(map[string][]byte)} }

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[key], nil
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// MockIdempotencyStore is an in-memory IdempotencyStore.
type MockIdempotencyStore struct {
	mu   sync.Mutex
	data map[string][]byte

	CheckAndSetFunc func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	UpdateFunc      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{data: make(map[string][]byte)}
}

func (m *MockIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if m.CheckAndSetFunc != nil {
		return m.CheckAndSetFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[key]; ok {
		return true, existing, nil
	}
	m.data[key] = response
	return false, nil, nil
}

func (m *MockIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = response
	return nil
}

// MockTaskEnqueuer records scheduled tasks.
type MockTaskEnqueuer struct {
	mu       sync.Mutex
	Enqueued []string

	EnqueueProcessFunc func(ctx context.Context, eventID string, delay time.Duration) error
}

func NewMockTaskEnqueuer() *MockTaskEnqueuer { return &MockTaskEnqueuer{} }

func (m *MockTaskEnqueuer) EnqueueProcess(ctx context.Context, eventID string, delay time.Duration) error {
	if m.EnqueueProcessFunc != nil {
		return m.EnqueueProcessFunc(ctx, eventID, delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Enqueued = append(m.Enqueued, eventID)
	return nil
}

// MockTokenSource issues predictable tokens.
type MockTokenSource struct {
	NewTokenFunc func() (string, string, error)
	HashFunc     func(raw string) string
}

func NewMockTokenSource() *MockTokenSource { return &MockTokenSource{} }

func (m *MockTokenSource) NewToken() (string, string, error) {
	if m.NewTokenFunc != nil {
		return m.NewTokenFunc()
	}
	return "raw-token", "hash:raw-token", nil
}

func (m *MockTokenSource) Hash(raw string) string {
	if m.HashFunc != nil {
		return m.HashFunc(raw)
	}
	return "hash:" + raw
}
