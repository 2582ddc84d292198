package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"carpool/internal/domain"
	"carpool/internal/handler"
	"carpool/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideHandler    *handler.RideHandler
	BookingHandler *handler.BookingHandler
	UserHandler    *handler.UserHandler
	PaymentHandler *handler.PaymentHandler
	ReceiptHandler *handler.ReceiptHandler
	Tokens         middleware.TokenParser
	RedisClient    *redis.Client // optional; enables Idempotency-Key replay
	NewRelicApp    *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
		router.Use(middleware.NoticeErrors())
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Idempotency keys are scoped per caller, so replay runs after authentication.
	authed := []gin.HandlerFunc{middleware.Authenticate(deps.Tokens)}
	if deps.RedisClient != nil {
		authed = append(authed, middleware.IdempotencyMiddleware(deps.RedisClient))
	}
	withAuth := func(extra ...gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, authed...), extra...)
	}
	driverOnly := middleware.RequireUserType(domain.UserTypeDriver)
	passengerOnly := middleware.RequireUserType(domain.UserTypePassenger)

	v1 := router.Group("/v1")
	{
		users := v1.Group("/users")
		{
			users.POST("/register", deps.UserHandler.Register)
			users.POST("/login", deps.UserHandler.Login)
			users.GET("/me", withAuth(deps.UserHandler.Me)...)
		}

		rides := v1.Group("/rides")
		{
			rides.POST("/quote", deps.RideHandler.Quote)
			rides.GET("", deps.RideHandler.SearchRides)
			rides.GET("/:id", deps.RideHandler.GetRide)

			owned := rides.Group("", withAuth(driverOnly)...)
			owned.POST("", deps.RideHandler.CreateRide)
			owned.PUT("/:id", deps.RideHandler.UpdateRide)
			owned.DELETE("/:id", deps.RideHandler.DeleteRide)
			owned.GET("/:id/bookings", deps.BookingHandler.GetRideBookings)
		}

		drivers := v1.Group("/drivers/me", withAuth(driverOnly)...)
		{
			drivers.GET("/rides", deps.RideHandler.GetMyRides)
			drivers.GET("/bookings", deps.BookingHandler.GetDriverBookings)
			drivers.GET("/summary", deps.BookingHandler.GetDriverSummary)
		}

		passengers := v1.Group("/passengers/me", withAuth(passengerOnly)...)
		{
			passengers.GET("/bookings", deps.BookingHandler.GetMyBookings)
		}

		bookings := v1.Group("/bookings", withAuth()...)
		{
			bookings.POST("", passengerOnly, deps.BookingHandler.CreateBooking)
			bookings.GET("/:id", deps.BookingHandler.GetBooking)
			bookings.GET("/:id/payment", deps.PaymentHandler.GetBookingPayment)
			bookings.GET("/:id/receipt", deps.ReceiptHandler.GetReceipt)
			bookings.POST("/:id/confirm", driverOnly, deps.BookingHandler.ConfirmBooking)
			bookings.POST("/:id/reject", driverOnly, deps.BookingHandler.RejectBooking)
			bookings.POST("/:id/cancel", passengerOnly, deps.BookingHandler.CancelBooking)
		}

		payments := v1.Group("/payments", withAuth()...)
		{
			payments.GET("/:id", deps.PaymentHandler.GetPayment)
		}
	}

	return router
}
