package tests

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"carpool/internal/domain"
	"carpool/internal/repository"
	"carpool/internal/repository/memory"
	"carpool/internal/service"
)

// ──────────────────────────────────────────────
// MOCK EVENT PUBLISHER
// ──────────────────────────────────────────────

// PublishedEvent is one recorded Publish call.
type PublishedEvent struct {
	RoutingKey string
	Payload    any
}

// MockEventPublisher records published events.
type MockEventPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent

	// Error injection
	PublishError error
}

// NewMockEventPublisher creates a new mock publisher.
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

func (m *MockEventPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, PublishedEvent{RoutingKey: routingKey, Payload: payload})
	return m.PublishError
}

// RoutingKeys returns the routing keys in publish order.
func (m *MockEventPublisher) RoutingKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.events))
	for _, e := range m.events {
		keys = append(keys, e.RoutingKey)
	}
	return keys
}

// Recipients returns the recipients of notifications published with routingKey.
func (m *MockEventPublisher) Recipients(routingKey string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, e := range m.events {
		if n, ok := e.Payload.(service.Notification); ok && e.RoutingKey == routingKey {
			ids = append(ids, n.RecipientID)
		}
	}
	return ids
}

// ──────────────────────────────────────────────
// COUNTING RIDE LOCKER
// ──────────────────────────────────────────────

// CountingLocker wraps a LocalRideLocker and records how many holders were
// inside the same ride's critical section at once.
type CountingLocker struct {
	inner *service.LocalRideLocker

	mu        sync.Mutex
	holders   map[string]int
	maxHeld   int32
	LockCalls int32
}

// NewCountingLocker creates a new CountingLocker.
func NewCountingLocker() *CountingLocker {
	return &CountingLocker{
		inner:   service.NewLocalRideLocker(),
		holders: make(map[string]int),
	}
}

func (l *CountingLocker) LockRide(ctx context.Context, rideID string) (func(), error) {
	atomic.AddInt32(&l.LockCalls, 1)
	unlock, err := l.inner.LockRide(ctx, rideID)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.holders[rideID]++
	if n := int32(l.holders[rideID]); n > atomic.LoadInt32(&l.maxHeld) {
		atomic.StoreInt32(&l.maxHeld, n)
	}
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		l.holders[rideID]--
		l.mu.Unlock()
		unlock()
	}, nil
}

// MaxConcurrentHolders returns the largest number of simultaneous holders seen for any ride.
func (l *CountingLocker) MaxConcurrentHolders() int {
	return int(atomic.LoadInt32(&l.maxHeld))
}

// ──────────────────────────────────────────────
// MOCK RIDE CACHE
// ──────────────────────────────────────────────

// MockRideCache is an in-memory service.RideCache.
type MockRideCache struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride

	// Counters for verification
	HitCount        int32
	InvalidateCount int32

	// Error injection
	GetError error
}

// NewMockRideCache creates a new mock ride cache.
func NewMockRideCache() *MockRideCache {
	return &MockRideCache{rides: make(map[string]*domain.Ride)}
}

func (m *MockRideCache) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return nil, nil
	}
	atomic.AddInt32(&m.HitCount, 1)
	c := *ride
	return &c, nil
}

func (m *MockRideCache) SetRide(ctx context.Context, ride *domain.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *ride
	m.rides[ride.ID] = &c
	return nil
}

func (m *MockRideCache) InvalidateRide(ctx context.Context, rideID string) error {
	atomic.AddInt32(&m.InvalidateCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rides, rideID)
	return nil
}

// Has reports whether rideID is cached.
func (m *MockRideCache) Has(rideID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rides[rideID]
	return ok
}

// ──────────────────────────────────────────────
// FAULTY STORE
// ──────────────────────────────────────────────

// FaultyStore wraps a Store and injects failures into units of work.
type FaultyStore struct {
	repository.Store

	// Error injection
	PaymentCreateError error
}

func (s *FaultyStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if s.PaymentCreateError != nil {
			repos.Payments = &failingPayments{PaymentRepository: repos.Payments, err: s.PaymentCreateError}
		}
		return fn(ctx, repos)
	})
}

type failingPayments struct {
	repository.PaymentRepository
	err error
}

func (p *failingPayments) Create(ctx context.Context, payment *domain.Payment) error {
	return p.err
}

// ──────────────────────────────────────────────
// MOCK CREDENTIALS
// ──────────────────────────────────────────────

// MockHasher "hashes" by prefixing, so tests do not pay for bcrypt.
type MockHasher struct{}

func (MockHasher) Hash(secret string) (string, error) { return "hashed:" + secret, nil }

func (MockHasher) Verify(secret, hash string) bool { return hash == "hashed:"+secret }

// MockTokenIssuer issues predictable tokens.
type MockTokenIssuer struct {
	IssueError error
}

func (m *MockTokenIssuer) Issue(userID string, userType domain.UserType) (string, time.Time, error) {
	if m.IssueError != nil {
		return "", time.Time{}, m.IssueError
	}
	return "token-" + userID + "-" + string(userType), time.Now().Add(time.Hour), nil
}

// ──────────────────────────────────────────────
// FIXTURES
// ──────────────────────────────────────────────

// testEnv is a fully wired service graph over the memory store.
type testEnv struct {
	Store     *memory.Store
	Locker    *CountingLocker
	Cache     *MockRideCache
	Publisher *MockEventPublisher

	Rides    *service.RideService
	Bookings *service.BookingService
	Payments *service.PaymentService
}

type envOption func(*envConfig)

type envConfig struct {
	store   repository.Store
	rideCfg service.RideConfig
}

func withStore(wrap func(*memory.Store) repository.Store) envOption {
	return func(c *envConfig) { c.store = wrap(c.store.(*memory.Store)) }
}

func withRideConfig(cfg service.RideConfig) envOption {
	return func(c *envConfig) { c.rideCfg = cfg }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	mem := memory.NewStore()
	cfg := &envConfig{store: mem}
	for _, opt := range opts {
		opt(cfg)
	}

	env := &testEnv{
		Store:     mem,
		Locker:    NewCountingLocker(),
		Cache:     NewMockRideCache(),
		Publisher: NewMockEventPublisher(),
	}

	notifications := service.NewNotificationService(env.Publisher)
	env.Rides = service.NewRideService(cfg.store, env.Locker, env.Cache, notifications, cfg.rideCfg)
	env.Payments = service.NewPaymentService(cfg.store)
	env.Bookings = service.NewBookingService(cfg.store, env.Rides, env.Payments, notifications)
	return env
}

// tomorrow returns a departure safely in the future.
func tomorrow() time.Time {
	return time.Now().Add(24 * time.Hour).Truncate(time.Minute)
}

// rideDetails returns valid ride details: 10 km, 20 min, priced at 180.
func rideDetails(seats int) service.RideDetails {
	return service.RideDetails{
		StartLocation:  "Manila City",
		EndLocation:    "Quezon City",
		DepartureTime:  tomorrow(),
		AvailableSeats: seats,
		Distance:       10,
		Duration:       20,
	}
}

// mustCreateRide publishes a ride for driverID or fails the test.
func (e *testEnv) mustCreateRide(t *testing.T, driverID string, seats int) *domain.Ride {
	t.Helper()
	ride, err := e.Rides.CreateRide(context.Background(), service.CreateRideRequest{
		DriverID:    driverID,
		RideDetails: rideDetails(seats),
	})
	if err != nil {
		t.Fatalf("create ride: %v", err)
	}
	return ride
}

// mustBook books seats on rideID for passengerID or fails the test.
func (e *testEnv) mustBook(t *testing.T, rideID, passengerID string, seats int) *service.CreateBookingResponse {
	t.Helper()
	resp, err := e.Bookings.CreateBooking(context.Background(), service.CreateBookingRequest{
		RideID:        rideID,
		PassengerID:   passengerID,
		NumberOfSeats: seats,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return resp
}

// ride reads the committed ride straight from the store.
func (e *testEnv) ride(t *testing.T, id string) *domain.Ride {
	t.Helper()
	ride, err := e.Store.Repositories().Rides.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load ride %s: %v", id, err)
	}
	return ride
}

// booking reads the committed booking straight from the store.
func (e *testEnv) booking(t *testing.T, id string) *domain.Booking {
	t.Helper()
	booking, err := e.Store.Repositories().Bookings.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load booking %s: %v", id, err)
	}
	return booking
}

// payment reads the committed payment for a booking straight from the store.
func (e *testEnv) payment(t *testing.T, bookingID string) *domain.Payment {
	t.Helper()
	payment, err := e.Store.Repositories().Payments.GetByBookingID(context.Background(), bookingID)
	if err != nil {
		t.Fatalf("load payment for booking %s: %v", bookingID, err)
	}
	return payment
}

// assertSeatBounds checks 0 <= AvailableSeats <= TotalSeats.
func assertSeatBounds(t *testing.T, ride *domain.Ride) {
	t.Helper()
	if ride.AvailableSeats < 0 || ride.AvailableSeats > ride.TotalSeats {
		t.Errorf("ride %s seats out of bounds: available=%d total=%d", ride.ID, ride.AvailableSeats, ride.TotalSeats)
	}
}

// expectKind fails unless err matches the kind sentinel.
func expectKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v error, got %v", kind, err)
	}
}
