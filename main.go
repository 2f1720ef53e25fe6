package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stayhub-backend/config"
	"stayhub-backend/controllers"
	"stayhub-backend/routes"
	"stayhub-backend/services"
	"stayhub-backend/utils"
)

func main() {
	// Load .env (optional)
	if err := godotenv.Load(); err != nil {
		log.Println(".env not found or couldn't load it; continuing with environment variables")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("ERROR: JWT_SECRET environment variable is not set")
	}

	stripeKey := os.Getenv("STRIPE_SECRET_KEY")
	if stripeKey == "" {
		log.Println("warning: STRIPE_SECRET_KEY not set; payment endpoints will fail at the gateway")
	}

	if err := config.ConnectDatabase(); err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	db := config.DB
	if db == nil {
		log.Fatal("config.DB is nil after ConnectDatabase()")
	}
	log.Println("database connection established, migrations applied")

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis not reachable; rate limiting and webhook dedupe disabled")
	}

	var events *services.EventPublisher
	if amqpURL := os.Getenv("AMQP_URL"); amqpURL != "" {
		var err error
		events, err = services.NewEventPublisher(amqpURL, utils.EnvOrDefault("AMQP_EXCHANGE", "stayhub.bookings"))
		if err != nil {
			log.Printf("warning: event publisher disabled: %v", err)
			events = nil
		} else {
			defer events.Close()
		}
	}

	// Services
	calendarSvc := services.NewCalendarService(db)
	bookingSvc := services.NewBookingService(db, calendarSvc, events)
	availabilitySvc := services.NewAvailabilityService(db, calendarSvc)
	roomSvc := services.NewRoomService(db)
	paymentSvc := services.NewPaymentService(db, services.NewStripeGateway(stripeKey), bookingSvc, calendarSvc, events, rdb)

	// Controllers
	bookingController := controllers.NewBookingController(bookingSvc)
	availabilityController := controllers.NewAvailabilityController(availabilitySvc, calendarSvc)
	roomController := controllers.NewRoomController(roomSvc)
	paymentController := controllers.NewPaymentController(paymentSvc)
	authController := controllers.NewAuthController(db, jwtSecret)

	router := routes.SetupRouter(
		bookingController,
		availabilityController,
		roomController,
		paymentController,
		authController,
		rdb,
		jwtSecret,
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	addr := ":" + port

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("shutdown signal received, shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server stopped gracefully")
}
