package handler

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"carpool/internal/domain"
	"carpool/internal/service"
)

const searchDateLayout = "2006-01-02"

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService *service.RideService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService) *RideHandler {
	return &RideHandler{rideService: rideService}
}

// RideRequest is the HTTP request body for creating or editing a ride.
type RideRequest struct {
	StartLocation  string    `json:"start_location"`
	EndLocation    string    `json:"end_location"`
	DepartureTime  time.Time `json:"departure_time"`
	AvailableSeats int       `json:"available_seats"`
	Distance       float64   `json:"distance"`
	Duration       int       `json:"duration"`
	Notes          string    `json:"notes,omitempty"`
}

func (r RideRequest) details() service.RideDetails {
	return service.RideDetails{
		StartLocation:  r.StartLocation,
		EndLocation:    r.EndLocation,
		DepartureTime:  r.DepartureTime,
		AvailableSeats: r.AvailableSeats,
		Distance:       r.Distance,
		Duration:       r.Duration,
		Notes:          r.Notes,
	}
}

// QuoteRequest is the HTTP request body for a fare preview.
type QuoteRequest struct {
	Distance float64 `json:"distance"`
	Duration int     `json:"duration"`
	Seats    int     `json:"seats"`
}

// QuoteResponse is the HTTP response for a fare preview.
type QuoteResponse struct {
	BaseFare       float64 `json:"base_fare"`
	DistanceCharge float64 `json:"distance_charge"`
	DurationCharge float64 `json:"duration_charge"`
	Total          float64 `json:"total"`
	PerSeat        float64 `json:"per_seat"`
	Seats          int     `json:"seats"`
}

// RideResponse is the HTTP response for ride data.
type RideResponse struct {
	ID             string  `json:"id"`
	DriverID       string  `json:"driver_id"`
	StartLocation  string  `json:"start_location"`
	EndLocation    string  `json:"end_location"`
	DepartureTime  string  `json:"departure_time"`
	TotalSeats     int     `json:"total_seats"`
	AvailableSeats int     `json:"available_seats"`
	Distance       float64 `json:"distance"`
	Duration       int     `json:"duration"`
	Notes          string  `json:"notes,omitempty"`
	Price          float64 `json:"price"`
	Status         string  `json:"status"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at,omitempty"`
	CancelledAt    string  `json:"cancelled_at,omitempty"`
}

func toRideResponse(r *domain.Ride) RideResponse {
	return RideResponse{
		ID:             r.ID,
		DriverID:       r.DriverID,
		StartLocation:  r.StartLocation,
		EndLocation:    r.EndLocation,
		DepartureTime:  formatTime(r.DepartureTime),
		TotalSeats:     r.TotalSeats,
		AvailableSeats: r.AvailableSeats,
		Distance:       r.Distance,
		Duration:       r.Duration,
		Notes:          r.Notes,
		Price:          r.Price,
		Status:         string(r.Status),
		CreatedAt:      formatTime(r.CreatedAt),
		UpdatedAt:      formatTime(r.UpdatedAt),
		CancelledAt:    formatTime(r.CancelledAt),
	}
}

func toRideResponses(rides []*domain.Ride) []RideResponse {
	response := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		response = append(response, toRideResponse(r))
	}
	return response
}

// Quote handles POST /v1/rides/quote
func (h *RideHandler) Quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	quote, err := h.rideService.Quote(service.QuoteRequest{
		Distance: req.Distance,
		Duration: req.Duration,
		Seats:    req.Seats,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, QuoteResponse{
		BaseFare:       quote.BaseFare,
		DistanceCharge: quote.DistanceCharge,
		DurationCharge: quote.DurationCharge,
		Total:          quote.Total,
		PerSeat:        quote.PerSeat,
		Seats:          quote.Seats,
	})
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req RideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	ride, err := h.rideService.CreateRide(c.Request.Context(), service.CreateRideRequest{
		DriverID:    currentUser(c),
		RideDetails: req.details(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRideResponse(ride))
}

// UpdateRide handles PUT /v1/rides/:id
func (h *RideHandler) UpdateRide(c *gin.Context) {
	var req RideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	ride, err := h.rideService.UpdateRide(c.Request.Context(), service.UpdateRideRequest{
		RideID:      c.Param("id"),
		DriverID:    currentUser(c),
		RideDetails: req.details(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// DeleteRide handles DELETE /v1/rides/:id
func (h *RideHandler) DeleteRide(c *gin.Context) {
	ride, err := h.rideService.DeleteRide(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideService.GetRideByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// SearchRides handles GET /v1/rides?from=&to=&date=YYYY-MM-DD&min_price=&max_price=
func (h *RideHandler) SearchRides(c *gin.Context) {
	req := service.SearchRidesRequest{
		From: c.Query("from"),
		To:   c.Query("to"),
	}

	if raw := c.Query("date"); raw != "" {
		date, err := time.ParseInLocation(searchDateLayout, raw, time.Local)
		if err != nil {
			badRequest(c, "date must be formatted as YYYY-MM-DD")
			return
		}
		req.Date = &date
	}

	var ok bool
	if req.MinPrice, ok = parsePrice(c, "min_price"); !ok {
		return
	}
	if req.MaxPrice, ok = parsePrice(c, "max_price"); !ok {
		return
	}

	rides, err := h.rideService.SearchRides(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponses(rides))
}

// GetMyRides handles GET /v1/drivers/me/rides
func (h *RideHandler) GetMyRides(c *gin.Context) {
	rides, err := h.rideService.GetRidesByDriver(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponses(rides))
}

// parsePrice reads an optional non-negative price query parameter. It writes a
// 400 response and returns false when the value is malformed.
func parsePrice(c *gin.Context, name string) (*float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		badRequest(c, name+" must be a non-negative number")
		return nil, false
	}
	return &v, true
}
