package services_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
	"github.com/zatekoja/mindcare-directory/internal/domain/providers"
	"github.com/zatekoja/mindcare-directory/internal/domain/repositories"
)

// Mocks

type MockQuotaStore struct {
	mock.Mock
}

func (m *MockQuotaStore) GetUsed(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockQuotaStore) IncrementIfBelow(ctx context.Context, userID string, limit int) (int, bool, error) {
	args := m.Called(ctx, userID, limit)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *MockQuotaStore) Reset(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type MockPatientRoster struct {
	mock.Mock
}

func (m *MockPatientRoster) ListDependents(ctx context.Context, userID string) ([]entities.DependentPatient, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.DependentPatient), args.Error(1)
}

type MockContactRevealer struct {
	mock.Mock
}

func (m *MockContactRevealer) RevealContact(ctx context.Context, providerID string) (*entities.ContactDetails, error) {
	args := m.Called(ctx, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ContactDetails), args.Error(1)
}

type MockContactRequestRepository struct {
	mock.Mock
}

func (m *MockContactRequestRepository) Create(ctx context.Context, record *entities.ContactRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockContactRequestRepository) UpdateStatus(ctx context.Context, id string, status entities.ContactRequestStatus, resolvedAt time.Time) error {
	args := m.Called(ctx, id, status, resolvedAt)
	return args.Error(0)
}

func (m *MockContactRequestRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.ContactRecord, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.ContactRecord), args.Error(1)
}

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Create(ctx context.Context, record *entities.BookingRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockBookingRepository) ListByUser(ctx context.Context, userID string, filter repositories.BookingFilter) ([]*entities.BookingRecord, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.BookingRecord), args.Error(1)
}

type MockProviderDataLoader struct {
	mock.Mock
}

func (m *MockProviderDataLoader) LoadAvailability(ctx context.Context, providerIDs []string) ([]*entities.ProviderAvailability, error) {
	args := m.Called(ctx, providerIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.ProviderAvailability), args.Error(1)
}

type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.DomainEvent) error {
	args := m.Called(ctx, channel, event)
	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.DomainEvent, error) {
	args := m.Called(ctx, channel)
	return args.Get(0).(<-chan *entities.DomainEvent), args.Error(1)
}

func (m *MockEventBus) Close() error {
	return m.Called().Error(0)
}

// memoryCache is a CacheProvider backed by a map; TTLs are ignored
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	return v, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memoryCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok, nil
}

func (c *memoryCache) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.data))
	for k := range c.data {
		out = append(out, k)
	}
	return out
}

// steppingClock is a Clock that only moves when told to
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *steppingClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// gatedCache holds the next Set until release is closed
type gatedCache struct {
	*memoryCache
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newGatedCache() *gatedCache {
	return &gatedCache{
		memoryCache: newMemoryCache(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
}

func (c *gatedCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	if c.armed.CompareAndSwap(true, false) {
		close(c.entered)
		<-c.release
	}
	return c.memoryCache.Set(ctx, key, value, ttl)
}

// Fixtures

var (
	// Thursday
	testNow   = time.Date(2024, time.March, 14, 10, 0, 0, 0, time.UTC)
	testToday = entities.CalendarDate{Year: 2024, Month: time.March, Day: 14}
	march15   = entities.CalendarDate{Year: 2024, Month: time.March, Day: 15}
	march18   = entities.CalendarDate{Year: 2024, Month: time.March, Day: 18}
)

func testAvailability() *entities.ProviderAvailability {
	return &entities.ProviderAvailability{
		ProviderID: "prov-1",
		Locations: []entities.Location{
			{ID: "L1", DisplayName: "Consultorio Privado"},
			{ID: "L2", DisplayName: "Telemedicina"},
		},
		Days: map[string]map[string]entities.DaySlots{
			"L1": {
				"2024-03-15": {Morning: []string{"09:30", "09:00"}, Afternoon: []string{"14:00"}},
				"2024-03-18": {Evening: []string{"19:00"}},
			},
			"L2": {
				"2024-03-15": {Morning: []string{"10:00"}},
			},
		},
	}
}
