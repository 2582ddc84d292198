package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"carpool/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationBookingRequested NotificationType = "BOOKING_REQUESTED"
	NotificationBookingConfirmed NotificationType = "BOOKING_CONFIRMED"
	NotificationBookingRejected  NotificationType = "BOOKING_REJECTED"
	NotificationBookingCancelled NotificationType = "BOOKING_CANCELLED"
	NotificationRideCancelled    NotificationType = "RIDE_CANCELLED"
)

// Notification represents a notification to be sent.
type Notification struct {
	ID          string                 `json:"id,omitempty"`
	Type        NotificationType       `json:"type"`
	RecipientID string                 `json:"recipient_id"`
	Title       string                 `json:"title"`
	Message     string                 `json:"message"`
	Data        map[string]interface{} `json:"data,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// EventPublisher mirrors notifications onto a message broker.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// NotificationService delivers notifications after a unit of work commits.
// Delivery failures are logged and never surface to the caller.
type NotificationService struct {
	publisher EventPublisher
}

// NewNotificationService creates a new NotificationService. publisher may be nil.
func NewNotificationService(publisher EventPublisher) *NotificationService {
	return &NotificationService{publisher: publisher}
}

// NotifyBookingRequested tells the driver that a passenger booked seats on their ride.
func (s *NotificationService) NotifyBookingRequested(ctx context.Context, ride *domain.Ride, booking *domain.Booking) error {
	return s.send(ctx, Notification{
		Type:        NotificationBookingRequested,
		RecipientID: ride.DriverID,
		Title:       "New Booking Request",
		Message: fmt.Sprintf("%d seat(s) requested on your ride from %s to %s",
			booking.NumberOfSeats, ride.StartLocation, ride.EndLocation),
		Data: map[string]interface{}{
			"ride_id":    ride.ID,
			"booking_id": booking.ID,
			"seats":      booking.NumberOfSeats,
			"fare":       booking.Fare,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyBookingConfirmed tells the passenger the driver accepted the booking.
func (s *NotificationService) NotifyBookingConfirmed(ctx context.Context, booking *domain.Booking) error {
	return s.send(ctx, Notification{
		Type:        NotificationBookingConfirmed,
		RecipientID: booking.PassengerID,
		Title:       "Booking Confirmed",
		Message:     "The driver confirmed your booking",
		Data: map[string]interface{}{
			"ride_id":    booking.RideID,
			"booking_id": booking.ID,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyBookingRejected tells the passenger the driver declined the booking.
func (s *NotificationService) NotifyBookingRejected(ctx context.Context, booking *domain.Booking) error {
	return s.send(ctx, Notification{
		Type:        NotificationBookingRejected,
		RecipientID: booking.PassengerID,
		Title:       "Booking Rejected",
		Message:     fmt.Sprintf("The driver declined your booking. $%.2f will be refunded", booking.Fare),
		Data: map[string]interface{}{
			"ride_id":    booking.RideID,
			"booking_id": booking.ID,
			"refund":     booking.Fare,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyBookingCancelled tells the driver a passenger cancelled.
func (s *NotificationService) NotifyBookingCancelled(ctx context.Context, ride *domain.Ride, booking *domain.Booking) error {
	return s.send(ctx, Notification{
		Type:        NotificationBookingCancelled,
		RecipientID: ride.DriverID,
		Title:       "Booking Cancelled",
		Message:     fmt.Sprintf("A passenger cancelled %d seat(s) on your ride", booking.NumberOfSeats),
		Data: map[string]interface{}{
			"ride_id":    ride.ID,
			"booking_id": booking.ID,
			"seats":      booking.NumberOfSeats,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyRideCancelled tells every listed passenger that the ride was cancelled.
func (s *NotificationService) NotifyRideCancelled(ctx context.Context, ride *domain.Ride, passengerIDs []string) error {
	for _, passengerID := range passengerIDs {
		_ = s.send(ctx, Notification{
			Type:        NotificationRideCancelled,
			RecipientID: passengerID,
			Title:       "Ride Cancelled",
			Message: fmt.Sprintf("Your ride from %s to %s on %s was cancelled by the driver",
				ride.StartLocation, ride.EndLocation, ride.DepartureTime.Format("Jan 2 15:04")),
			Data: map[string]interface{}{
				"ride_id": ride.ID,
			},
			CreatedAt: time.Now(),
		})
	}
	return nil
}

// send logs the notification and mirrors it to the publisher when one is set.
func (s *NotificationService) send(ctx context.Context, notification Notification) error {
	log.Printf("[NOTIFICATION] Type=%s, Recipient=%s, Title=%s, Message=%s",
		notification.Type, notification.RecipientID, notification.Title, notification.Message)

	if s.publisher == nil {
		return nil
	}

	if err := s.publisher.Publish(ctx, routingKey(notification.Type), notification); err != nil {
		log.Printf("[NOTIFICATION] publish %s failed: %v", notification.Type, err)
		return err
	}
	return nil
}

// routingKey maps BOOKING_CONFIRMED to "booking.confirmed".
func routingKey(t NotificationType) string {
	return strings.ReplaceAll(strings.ToLower(string(t)), "_", ".")
}
