package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carpool/internal/domain"
	"carpool/internal/pricing"
	"carpool/internal/service"
)

// ReceiptHandler handles HTTP requests for booking receipts.
type ReceiptHandler struct {
	receiptService *service.ReceiptService
}

// NewReceiptHandler creates a new ReceiptHandler.
func NewReceiptHandler(receiptService *service.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{receiptService: receiptService}
}

// ReceiptResponse is the HTTP response for a booking receipt.
type ReceiptResponse struct {
	BookingID      string  `json:"booking_id"`
	RideID         string  `json:"ride_id"`
	DriverID       string  `json:"driver_id"`
	PassengerID    string  `json:"passenger_id"`
	StartLocation  string  `json:"start_location"`
	EndLocation    string  `json:"end_location"`
	DepartureTime  string  `json:"departure_time"`
	Distance       float64 `json:"distance"`
	Duration       int     `json:"duration"`
	BaseFare       float64 `json:"base_fare"`
	DistanceCharge float64 `json:"distance_charge"`
	DurationCharge float64 `json:"duration_charge"`
	RidePrice      float64 `json:"ride_price"`
	TotalSeats     int     `json:"total_seats"`
	PerSeat        float64 `json:"per_seat"`
	Seats          int     `json:"seats"`
	Fare           float64 `json:"fare"`
	BookingStatus  string  `json:"booking_status"`
	PaymentStatus  string  `json:"payment_status"`
	RefundedAt     string  `json:"refunded_at,omitempty"`
	IssuedAt       string  `json:"issued_at"`
}

func toReceiptResponse(r *domain.Receipt) ReceiptResponse {
	return ReceiptResponse{
		BookingID:      r.BookingID,
		RideID:         r.RideID,
		DriverID:       r.DriverID,
		PassengerID:    r.PassengerID,
		StartLocation:  r.StartLocation,
		EndLocation:    r.EndLocation,
		DepartureTime:  formatTime(r.DepartureTime),
		Distance:       r.Distance,
		Duration:       r.Duration,
		BaseFare:       r.BaseFare,
		DistanceCharge: r.DistanceCharge,
		DurationCharge: r.DurationCharge,
		RidePrice:      r.RidePrice,
		TotalSeats:     r.TotalSeats,
		PerSeat:        pricing.Round2(r.PerSeat),
		Seats:          r.Seats,
		Fare:           pricing.Round2(r.Fare),
		BookingStatus:  string(r.BookingStatus),
		PaymentStatus:  string(r.PaymentStatus),
		RefundedAt:     formatTime(r.RefundedAt),
		IssuedAt:       formatTime(r.IssuedAt),
	}
}

// GetReceipt handles GET /v1/bookings/:id/receipt
// Pass ?format=text for a printable receipt.
func (h *ReceiptHandler) GetReceipt(c *gin.Context) {
	receipt, err := h.receiptService.GetReceipt(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("format") == "text" {
		c.String(http.StatusOK, service.FormatReceipt(receipt))
		return
	}

	respondJSON(c, http.StatusOK, toReceiptResponse(receipt))
}
