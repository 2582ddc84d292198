package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carpool/internal/domain"
	"carpool/internal/service"
)

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	paymentService *service.PaymentService
	bookingService *service.BookingService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService, bookingService *service.BookingService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		bookingService: bookingService,
	}
}

// PaymentResponse is the HTTP response for payment data.
type PaymentResponse struct {
	ID          string  `json:"id"`
	BookingID   string  `json:"booking_id"`
	RideID      string  `json:"ride_id"`
	PassengerID string  `json:"passenger_id"`
	Amount      float64 `json:"amount"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	RefundedAt  string  `json:"refunded_at,omitempty"`
}

func toPaymentResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:          p.ID,
		BookingID:   p.BookingID,
		RideID:      p.RideID,
		PassengerID: p.PassengerID,
		Amount:      p.Amount,
		Status:      string(p.Status),
		CreatedAt:   formatTime(p.CreatedAt),
		RefundedAt:  formatTime(p.RefundedAt),
	}
}

// GetPayment handles GET /v1/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.paymentService.GetPaymentForUser(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}

// GetBookingPayment handles GET /v1/bookings/:id/payment
func (h *PaymentHandler) GetBookingPayment(c *gin.Context) {
	booking, err := h.bookingService.GetBookingForUser(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	payment, err := h.paymentService.GetPaymentByBooking(c.Request.Context(), booking.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}
