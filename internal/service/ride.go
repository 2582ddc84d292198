package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"carpool/internal/domain"
	"carpool/internal/pricing"
	"carpool/internal/repository"
)

// RideCache caches ride snapshots for reads.
type RideCache interface {
	// GetRide returns nil, nil on a cache miss.
	GetRide(ctx context.Context, rideID string) (*domain.Ride, error)
	SetRide(ctx context.Context, ride *domain.Ride) error
	InvalidateRide(ctx context.Context, rideID string) error
}

// RideConfig tunes the ride inventory.
type RideConfig struct {
	// LockWait bounds how long a ride mutation waits for the ride lock.
	LockWait time.Duration

	// ResetSeatsOnEdit makes an edit set AvailableSeats to the new seat count,
	// discarding seats held by existing bookings. When false, held seats are kept.
	ResetSeatsOnEdit bool
}

// RideService owns ride records and is the only writer of seat counts.
type RideService struct {
	store               repository.Store
	locker              RideLocker
	cache               RideCache
	notificationService *NotificationService
	cfg                 RideConfig
}

// NewRideService creates a new RideService. locker, cache and notificationService may be nil.
func NewRideService(
	store repository.Store,
	locker RideLocker,
	cache RideCache,
	notificationService *NotificationService,
	cfg RideConfig,
) *RideService {
	return &RideService{
		store:               store,
		locker:              locker,
		cache:               cache,
		notificationService: notificationService,
		cfg:                 cfg,
	}
}

// RideDetails are the driver-editable attributes of a ride.
type RideDetails struct {
	StartLocation  string `validate:"required"`
	EndLocation    string `validate:"required"`
	DepartureTime  time.Time
	AvailableSeats int     `validate:"seats"`
	Distance       float64 `validate:"gt=0"`
	Duration       int     `validate:"gt=0"`
	Notes          string
}

func (d RideDetails) trimmed() RideDetails {
	d.StartLocation = strings.TrimSpace(d.StartLocation)
	d.EndLocation = strings.TrimSpace(d.EndLocation)
	d.Notes = strings.TrimSpace(d.Notes)
	return d
}

func (d RideDetails) validate(now time.Time) error {
	if err := validateStruct(d); err != nil {
		return err
	}
	return validateDeparture(d.DepartureTime, now)
}

// CreateRideRequest contains the parameters for publishing a ride.
type CreateRideRequest struct {
	DriverID string
	RideDetails
}

// UpdateRideRequest contains the parameters for editing a ride.
type UpdateRideRequest struct {
	RideID   string
	DriverID string
	RideDetails
}

// SearchRidesRequest contains the optional search filters. Zero values do not filter.
type SearchRidesRequest struct {
	From     string
	To       string
	Date     *time.Time
	MinPrice *float64
	MaxPrice *float64
}

// CreateRide validates and persists a new ACTIVE ride.
func (s *RideService) CreateRide(ctx context.Context, req CreateRideRequest) (*domain.Ride, error) {
	if err := requireID("driverId", req.DriverID); err != nil {
		return nil, err
	}

	now := time.Now()
	details := req.RideDetails.trimmed()
	if err := details.validate(now); err != nil {
		return nil, err
	}

	ride := &domain.Ride{
		ID:             uuid.New().String(),
		DriverID:       req.DriverID,
		StartLocation:  details.StartLocation,
		EndLocation:    details.EndLocation,
		DepartureTime:  details.DepartureTime,
		TotalSeats:     details.AvailableSeats,
		AvailableSeats: details.AvailableSeats,
		Distance:       details.Distance,
		Duration:       details.Duration,
		Notes:          details.Notes,
		Price:          pricing.CalculatePrice(details.Distance, details.Duration),
		Status:         domain.RideStatusActive,
		CreatedAt:      now,
	}

	if err := s.store.Repositories().Rides.Create(ctx, ride); err != nil {
		return nil, fmt.Errorf("create ride: %w", err)
	}

	log.Printf("[RIDE] created ride=%s driver=%s seats=%d price=%.2f", ride.ID, ride.DriverID, ride.TotalSeats, ride.Price)
	return ride, nil
}

// UpdateRide applies a driver's edit and recomputes the price and seat counts.
func (s *RideService) UpdateRide(ctx context.Context, req UpdateRideRequest) (*domain.Ride, error) {
	if err := requireID("rideId", req.RideID); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, req.RideID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var updated *domain.Ride
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		ride, err := repos.Rides.GetByIDForUpdate(ctx, req.RideID)
		if err != nil {
			return notFound(err, "ride", req.RideID)
		}

		if ride.DriverID != req.DriverID {
			return &AuthorizationError{Entity: "ride", ID: ride.ID, ActorID: req.DriverID, Message: "you can only edit your own rides"}
		}

		now := time.Now()
		details := req.RideDetails.trimmed()
		if err := details.validate(now); err != nil {
			return err
		}

		available := details.AvailableSeats
		if !s.cfg.ResetSeatsOnEdit {
			held := ride.ConsumedSeats()
			if details.AvailableSeats < held {
				return &CapacityError{
					RideID:    ride.ID,
					Available: ride.AvailableSeats,
					Total:     ride.TotalSeats,
					Requested: details.AvailableSeats - ride.TotalSeats,
					Message:   fmt.Sprintf("cannot reduce seats to %d: %d seat(s) already booked", details.AvailableSeats, held),
				}
			}
			available = details.AvailableSeats - held
		}

		ride.StartLocation = details.StartLocation
		ride.EndLocation = details.EndLocation
		ride.DepartureTime = details.DepartureTime
		ride.TotalSeats = details.AvailableSeats
		ride.AvailableSeats = available
		ride.Distance = details.Distance
		ride.Duration = details.Duration
		ride.Notes = details.Notes
		ride.Price = pricing.CalculatePrice(details.Distance, details.Duration)
		ride.UpdatedAt = now

		if err := repos.Rides.Update(ctx, ride); err != nil {
			return fmt.Errorf("update ride %s: %w", ride.ID, err)
		}
		updated = ride
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, updated.ID)
	log.Printf("[RIDE] updated ride=%s seats=%d/%d price=%.2f", updated.ID, updated.AvailableSeats, updated.TotalSeats, updated.Price)
	return updated, nil
}

// DeleteRide soft-cancels a ride. Calling it again re-stamps CancelledAt.
func (s *RideService) DeleteRide(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	if err := requireID("rideId", rideID); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, rideID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var cancelled *domain.Ride
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		ride, err := repos.Rides.GetByIDForUpdate(ctx, rideID)
		if err != nil {
			return notFound(err, "ride", rideID)
		}

		if ride.DriverID != driverID {
			return &AuthorizationError{Entity: "ride", ID: ride.ID, ActorID: driverID, Message: "you can only delete your own rides"}
		}

		ride.Status = domain.RideStatusCancelled
		ride.CancelledAt = time.Now()

		if err := repos.Rides.Update(ctx, ride); err != nil {
			return fmt.Errorf("cancel ride %s: %w", ride.ID, err)
		}
		cancelled = ride
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, rideID)
	log.Printf("[RIDE] cancelled ride=%s driver=%s", rideID, driverID)

	if s.notificationService != nil {
		s.notifyRideCancelled(ctx, cancelled)
	}

	return cancelled, nil
}

// GetRideByID retrieves a ride, consulting the cache first when one is configured.
func (s *RideService) GetRideByID(ctx context.Context, rideID string) (*domain.Ride, error) {
	if err := requireID("rideId", rideID); err != nil {
		return nil, err
	}

	if s.cache != nil {
		cached, err := s.cache.GetRide(ctx, rideID)
		if err != nil {
			log.Printf("[RIDE] cache read failed for ride=%s: %v", rideID, err)
		} else if cached != nil {
			return cached, nil
		}
	}

	ride, err := s.store.Repositories().Rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, notFound(err, "ride", rideID)
	}

	if s.cache != nil {
		if err := s.cache.SetRide(ctx, ride); err != nil {
			log.Printf("[RIDE] cache write failed for ride=%s: %v", rideID, err)
		}
	}

	return ride, nil
}

// GetRidesByDriver retrieves every ride a driver has published, cancelled ones included.
func (s *RideService) GetRidesByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	if err := requireID("driverId", driverID); err != nil {
		return nil, err
	}

	rides, err := s.store.Repositories().Rides.GetByDriver(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("list rides for driver %s: %w", driverID, err)
	}
	return rides, nil
}

// SearchRides returns ACTIVE future rides with free seats matching the filters,
// earliest departure first.
func (s *RideService) SearchRides(ctx context.Context, req SearchRidesRequest) ([]*domain.Ride, error) {
	if err := validatePrice("minPrice", req.MinPrice); err != nil {
		return nil, err
	}
	if err := validatePrice("maxPrice", req.MaxPrice); err != nil {
		return nil, err
	}
	if req.MinPrice != nil && req.MaxPrice != nil && *req.MinPrice > *req.MaxPrice {
		return nil, &ValidationError{Field: "minPrice", Reason: "minPrice cannot exceed maxPrice"}
	}

	rides, err := s.store.Repositories().Rides.Search(ctx, repository.RideFilter{
		From:           strings.TrimSpace(req.From),
		To:             strings.TrimSpace(req.To),
		Date:           req.Date,
		MinPrice:       req.MinPrice,
		MaxPrice:       req.MaxPrice,
		DepartingAfter: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("search rides: %w", err)
	}
	return rides, nil
}

// QuoteRequest contains the inputs of a price preview. Seats defaults to 1.
type QuoteRequest struct {
	Distance float64 `validate:"gt=0"`
	Duration int     `validate:"gt=0"`
	Seats    int     `validate:"seats"`
}

// Quote previews the price of a ride before it is published, using the same
// bounds CreateRide enforces.
func (s *RideService) Quote(req QuoteRequest) (pricing.Breakdown, error) {
	if req.Seats == 0 {
		req.Seats = 1
	}
	if err := validateStruct(req); err != nil {
		return pricing.Breakdown{}, err
	}

	quote, err := pricing.Quote(req.Distance, req.Duration, req.Seats)
	if err != nil {
		return pricing.Breakdown{}, &ValidationError{Field: "seats", Reason: err.Error()}
	}
	return quote, nil
}

// UpdateAvailableSeats adds delta to a ride's available seats under the ride lock.
func (s *RideService) UpdateAvailableSeats(ctx context.Context, rideID string, delta int) (*domain.Ride, error) {
	if err := requireID("rideId", rideID); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, rideID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var ride *domain.Ride
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		ride, err = s.adjustSeats(ctx, repos.Rides, rideID, delta)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, rideID)
	return ride, nil
}

// adjustSeats is the single write path for AvailableSeats. Callers hold the ride
// lock and pass repositories bound to their unit of work.
func (s *RideService) adjustSeats(ctx context.Context, rides repository.RideRepository, rideID string, delta int) (*domain.Ride, error) {
	ride, err := rides.GetByIDForUpdate(ctx, rideID)
	if err != nil {
		return nil, notFound(err, "ride", rideID)
	}

	next := ride.AvailableSeats + delta
	if next < 0 || next > ride.TotalSeats {
		return nil, &CapacityError{
			RideID:    ride.ID,
			Available: ride.AvailableSeats,
			Total:     ride.TotalSeats,
			Requested: delta,
		}
	}

	ride.AvailableSeats = next
	if err := rides.Update(ctx, ride); err != nil {
		return nil, fmt.Errorf("update seats for ride %s: %w", rideID, err)
	}

	return ride, nil
}

func (s *RideService) lock(ctx context.Context, rideID string) (func(), error) {
	return acquireRideLock(ctx, s.locker, s.cfg.LockWait, rideID)
}

// invalidate drops a ride from the cache after a committed write.
func (s *RideService) invalidate(ctx context.Context, rideID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateRide(ctx, rideID); err != nil {
		log.Printf("[RIDE] cache invalidation failed for ride=%s: %v", rideID, err)
	}
}

func (s *RideService) notifyRideCancelled(ctx context.Context, ride *domain.Ride) {
	bookings, err := s.store.Repositories().Bookings.GetByRide(ctx, ride.ID)
	if err != nil {
		log.Printf("[RIDE] could not load bookings for cancelled ride=%s: %v", ride.ID, err)
		return
	}

	var passengerIDs []string
	for _, b := range bookings {
		if b.Status == domain.BookingStatusPending || b.Status == domain.BookingStatusConfirmed {
			passengerIDs = append(passengerIDs, b.PassengerID)
		}
	}

	_ = s.notificationService.NotifyRideCancelled(ctx, ride, passengerIDs)
}
