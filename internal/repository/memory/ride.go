package memory

import (
	"context"
	"sort"
	"strings"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// RideRepository is an in-memory implementation of repository.RideRepository.
type RideRepository struct {
	s  *Store
	tx *staging
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	r.put(ride)
	return nil
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	if r.tx != nil {
		if ride, ok := r.tx.rides[id]; ok {
			c := *ride
			return &c, nil
		}
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ride, ok := r.s.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *ride
	return &c, nil
}

// GetByIDForUpdate retrieves a ride by ID. Units of work are already serialized.
func (r *RideRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error) {
	return r.GetByID(ctx, id)
}

// GetByDriver retrieves all rides published by a driver, newest first.
func (r *RideRepository) GetByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	rides := r.filter(func(ride *domain.Ride) bool { return ride.DriverID == driverID })
	sort.SliceStable(rides, func(i, j int) bool { return rides[i].CreatedAt.After(rides[j].CreatedAt) })
	return rides, nil
}

// Search retrieves bookable rides matching the filter, earliest departure first.
func (r *RideRepository) Search(ctx context.Context, filter repository.RideFilter) ([]*domain.Ride, error) {
	from := strings.ToLower(filter.From)
	to := strings.ToLower(filter.To)

	rides := r.filter(func(ride *domain.Ride) bool {
		if ride.Status != domain.RideStatusActive || ride.AvailableSeats <= 0 || !ride.DepartureTime.After(filter.DepartingAfter) {
			return false
		}
		if from != "" && !strings.Contains(strings.ToLower(ride.StartLocation), from) {
			return false
		}
		if to != "" && !strings.Contains(strings.ToLower(ride.EndLocation), to) {
			return false
		}
		if filter.Date != nil {
			start, end := filter.DayBounds()
			if ride.DepartureTime.Before(start) || !ride.DepartureTime.Before(end) {
				return false
			}
		}
		if filter.MinPrice != nil && ride.Price < *filter.MinPrice {
			return false
		}
		if filter.MaxPrice != nil && ride.Price > *filter.MaxPrice {
			return false
		}
		return true
	})

	sort.SliceStable(rides, func(i, j int) bool { return rides[i].DepartureTime.Before(rides[j].DepartureTime) })
	return rides, nil
}

// Update updates an existing ride.
func (r *RideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	if _, err := r.GetByID(ctx, ride.ID); err != nil {
		return err
	}
	r.put(ride)
	return nil
}

func (r *RideRepository) put(ride *domain.Ride) {
	c := *ride
	if r.tx != nil {
		r.tx.rides[c.ID] = &c
		return
	}
	r.s.commit(func() { r.s.rides[c.ID] = &c })
}

// filter returns copies of the rides visible to this repository that satisfy keep.
func (r *RideRepository) filter(keep func(*domain.Ride) bool) []*domain.Ride {
	r.s.mu.RLock()
	visible := make(map[string]*domain.Ride, len(r.s.rides))
	for id, ride := range r.s.rides {
		visible[id] = ride
	}
	r.s.mu.RUnlock()

	if r.tx != nil {
		for id, ride := range r.tx.rides {
			visible[id] = ride
		}
	}

	var result []*domain.Ride
	for _, ride := range visible {
		if keep(ride) {
			c := *ride
			result = append(result, &c)
		}
	}
	return result
}

var _ repository.RideRepository = (*RideRepository)(nil)
