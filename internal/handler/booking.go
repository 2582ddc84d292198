package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"carpool/internal/domain"
	"carpool/internal/pricing"
	"carpool/internal/service"
)

// BookingHandler handles HTTP requests for bookings.
type BookingHandler struct {
	bookingService *service.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookingService *service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

// CreateBookingRequest is the HTTP request body for booking seats.
type CreateBookingRequest struct {
	RideID        string `json:"ride_id"`
	NumberOfSeats int    `json:"number_of_seats"`
	Notes         string `json:"notes,omitempty"`
}

// BookingResponse is the HTTP response for booking data.
type BookingResponse struct {
	ID               string  `json:"id"`
	RideID           string  `json:"ride_id"`
	PassengerID      string  `json:"passenger_id"`
	NumberOfSeats    int     `json:"number_of_seats"`
	Notes            string  `json:"notes,omitempty"`
	Fare             float64 `json:"fare"`
	Status           string  `json:"status"`
	RejectedByDriver bool    `json:"rejected_by_driver"`
	BookedAt         string  `json:"booked_at"`
	ConfirmedAt      string  `json:"confirmed_at,omitempty"`
	CancelledAt      string  `json:"cancelled_at,omitempty"`
}

// CreateBookingResponse is the HTTP response for a new booking.
type CreateBookingResponse struct {
	Booking BookingResponse `json:"booking"`
	Payment PaymentResponse `json:"payment"`
}

func toBookingResponse(b *domain.Booking) BookingResponse {
	return BookingResponse{
		ID:               b.ID,
		RideID:           b.RideID,
		PassengerID:      b.PassengerID,
		NumberOfSeats:    b.NumberOfSeats,
		Notes:            b.Notes,
		Fare:             b.Fare,
		Status:           string(b.Status),
		RejectedByDriver: b.RejectedByDriver,
		BookedAt:         formatTime(b.BookedAt),
		ConfirmedAt:      formatTime(b.ConfirmedAt),
		CancelledAt:      formatTime(b.CancelledAt),
	}
}

func toBookingResponses(bookings []*domain.Booking) []BookingResponse {
	response := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		response = append(response, toBookingResponse(b))
	}
	return response
}

// CreateBooking handles POST /v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	result, err := h.bookingService.CreateBooking(c.Request.Context(), service.CreateBookingRequest{
		RideID:        req.RideID,
		PassengerID:   currentUser(c),
		NumberOfSeats: req.NumberOfSeats,
		Notes:         req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, CreateBookingResponse{
		Booking: toBookingResponse(result.Booking),
		Payment: toPaymentResponse(result.Payment),
	})
}

// GetBooking handles GET /v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	booking, err := h.bookingService.GetBookingForUser(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// ConfirmBooking handles POST /v1/bookings/:id/confirm
func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	h.transition(c, h.bookingService.ConfirmBooking)
}

// RejectBooking handles POST /v1/bookings/:id/reject
func (h *BookingHandler) RejectBooking(c *gin.Context) {
	h.transition(c, h.bookingService.RejectBooking)
}

// CancelBooking handles POST /v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	h.transition(c, h.bookingService.CancelBooking)
}

func (h *BookingHandler) transition(c *gin.Context, op func(ctx context.Context, bookingID, actorID string) (*domain.Booking, error)) {
	booking, err := op(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// GetMyBookings handles GET /v1/passengers/me/bookings
func (h *BookingHandler) GetMyBookings(c *gin.Context) {
	bookings, err := h.bookingService.GetBookingsByPassenger(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponses(bookings))
}

// GetDriverBookings handles GET /v1/drivers/me/bookings
func (h *BookingHandler) GetDriverBookings(c *gin.Context) {
	bookings, err := h.bookingService.GetBookingsForDriver(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponses(bookings))
}

// DriverSummaryResponse is the HTTP response for a driver's dashboard figures.
type DriverSummaryResponse struct {
	ActiveRides     int     `json:"active_rides"`
	TotalEarnings   float64 `json:"total_earnings"`
	TotalPassengers int     `json:"total_passengers"`
}

// GetDriverSummary handles GET /v1/drivers/me/summary
func (h *BookingHandler) GetDriverSummary(c *gin.Context) {
	summary, err := h.bookingService.GetDriverSummary(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, DriverSummaryResponse{
		ActiveRides:     summary.ActiveRides,
		TotalEarnings:   pricing.Round2(summary.TotalEarnings),
		TotalPassengers: summary.TotalPassengers,
	})
}

// GetRideBookings handles GET /v1/rides/:id/bookings
func (h *BookingHandler) GetRideBookings(c *gin.Context) {
	bookings, err := h.bookingService.GetBookingsForRideOwner(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponses(bookings))
}
