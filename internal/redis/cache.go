package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"carpool/internal/domain"
)

// DefaultRideCacheTTL keeps ride snapshots short-lived; seat counts change often.
const DefaultRideCacheTTL = 10 * time.Second

const rideCachePrefix = "cache:ride:"

// CacheStore caches ride snapshots in Redis.
type CacheStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client, ttl time.Duration) *CacheStore {
	if ttl <= 0 {
		ttl = DefaultRideCacheTTL
	}
	return &CacheStore{client: client, ttl: ttl}
}

// CachedRide is the cached form of a ride.
type CachedRide struct {
	ID             string    `json:"id"`
	DriverID       string    `json:"driver_id"`
	StartLocation  string    `json:"start_location"`
	EndLocation    string    `json:"end_location"`
	DepartureTime  time.Time `json:"departure_time"`
	TotalSeats     int       `json:"total_seats"`
	AvailableSeats int       `json:"available_seats"`
	Distance       float64   `json:"distance"`
	Duration       int       `json:"duration"`
	Notes          string    `json:"notes,omitempty"`
	Price          float64   `json:"price"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
	CancelledAt    time.Time `json:"cancelled_at,omitempty"`
}

func toCachedRide(r *domain.Ride) *CachedRide {
	return &CachedRide{
		ID:             r.ID,
		DriverID:       r.DriverID,
		StartLocation:  r.StartLocation,
		EndLocation:    r.EndLocation,
		DepartureTime:  r.DepartureTime,
		TotalSeats:     r.TotalSeats,
		AvailableSeats: r.AvailableSeats,
		Distance:       r.Distance,
		Duration:       r.Duration,
		Notes:          r.Notes,
		Price:          r.Price,
		Status:         string(r.Status),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		CancelledAt:    r.CancelledAt,
	}
}

func (c *CachedRide) toDomain() *domain.Ride {
	return &domain.Ride{
		ID:             c.ID,
		DriverID:       c.DriverID,
		StartLocation:  c.StartLocation,
		EndLocation:    c.EndLocation,
		DepartureTime:  c.DepartureTime,
		TotalSeats:     c.TotalSeats,
		AvailableSeats: c.AvailableSeats,
		Distance:       c.Distance,
		Duration:       c.Duration,
		Notes:          c.Notes,
		Price:          c.Price,
		Status:         domain.RideStatus(c.Status),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
		CancelledAt:    c.CancelledAt,
	}
}

// GetRide retrieves a ride from cache. A miss returns nil, nil.
func (s *CacheStore) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	data, err := s.client.Get(ctx, rideCachePrefix+rideID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var cached CachedRide
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return cached.toDomain(), nil
}

// SetRide stores a ride in cache.
func (s *CacheStore) SetRide(ctx context.Context, ride *domain.Ride) error {
	data, err := json.Marshal(toCachedRide(ride))
	if err != nil {
		return err
	}
	return s.client.Set(ctx, rideCachePrefix+ride.ID, data, s.ttl).Err()
}

// InvalidateRide removes a ride from cache.
func (s *CacheStore) InvalidateRide(ctx context.Context, rideID string) error {
	return s.client.Del(ctx, rideCachePrefix+rideID).Err()
}
