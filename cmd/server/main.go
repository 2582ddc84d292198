package main

import (
	"context"
	"database/sql"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"carpool/internal/app"
	"carpool/internal/auth"
	"carpool/internal/config"
	"carpool/internal/events"
	"carpool/internal/handler"
	internalRedis "carpool/internal/redis"
	"carpool/internal/repository"
	"carpool/internal/repository/memory"
	"carpool/internal/repository/postgres"
	"carpool/internal/service"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	gin.SetMode(cfg.Server.GinMode)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic first so the database and Redis clients are instrumented.
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s", cfg.NewRelic.AppName)
		}
	}

	var closers []io.Closer

	var (
		store    repository.Store
		userRepo repository.UserRepository
	)
	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		store = memory.NewStore()
		userRepo = memory.NewUserRepository()
		log.Println("Using in-memory store")
	default:
		db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		closers = append(closers, db)
		log.Printf("Connected to PostgreSQL (driver=%s)", cfg.Database.Driver)

		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				log.Fatalf("failed to apply schema: %v", err)
			}
		}
		store, userRepo = postgresStore(db)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		closers = append(closers, redisClient)
		log.Println("Connected to Redis")
	}

	var publisher service.EventPublisher
	if cfg.Events.Enabled {
		p, err := events.Dial(cfg.Events.URL, cfg.Events.Exchange)
		if err != nil {
			log.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		closers = append(closers, p)
		publisher = p
	}

	server := wireServer(store, userRepo, redisClient, publisher, nrApp, cfg)

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Println("Server exited")
}

func postgresStore(db *sql.DB) (repository.Store, repository.UserRepository) {
	return postgres.NewStore(db), postgres.NewUserRepository(db)
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	store repository.Store,
	userRepo repository.UserRepository,
	redisClient *redis.Client,
	publisher service.EventPublisher,
	nrApp *newrelic.Application,
	cfg *config.Config,
) *http.Server {
	// Ride locks must be shared across instances when Redis is available.
	var (
		locker service.RideLocker = service.NewLocalRideLocker()
		cache  service.RideCache
	)
	if redisClient != nil {
		locker = internalRedis.NewRideLocker(redisClient, cfg.Booking.RideLockTTL)
		cache = internalRedis.NewCacheStore(redisClient, cfg.Booking.RideCacheTTL)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL)
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)

	notificationService := service.NewNotificationService(publisher)
	rideService := service.NewRideService(store, locker, cache, notificationService, service.RideConfig{
		LockWait:         cfg.Booking.LockWaitTimeout,
		ResetSeatsOnEdit: cfg.Booking.RideEditResetsSeats,
	})
	paymentService := service.NewPaymentService(store)
	bookingService := service.NewBookingService(store, rideService, paymentService, notificationService)
	userService := service.NewUserService(userRepo, hasher, tokens)
	receiptService := service.NewReceiptService(store, bookingService)

	router := app.NewRouter(app.RouterDeps{
		RideHandler:    handler.NewRideHandler(rideService),
		BookingHandler: handler.NewBookingHandler(bookingService),
		UserHandler:    handler.NewUserHandler(userService),
		PaymentHandler: handler.NewPaymentHandler(paymentService, bookingService),
		ReceiptHandler: handler.NewReceiptHandler(receiptService),
		Tokens:         tokens,
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
