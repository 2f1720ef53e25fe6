package routes

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"stayhub-backend/controllers"
	"stayhub-backend/middleware"
)

func parseCorsOrigins() []string {
	raw := strings.TrimSpace(os.Getenv("CORS_ORIGINS"))
	if raw == "" {
		return []string{"*"}
	}

	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// SetupRouter wires the public booking/payment surface and the JWT-guarded
// admin surface.
func SetupRouter(
	bc *controllers.BookingController,
	avc *controllers.AvailabilityController,
	rc *controllers.RoomController,
	pc *controllers.PaymentController,
	ac *controllers.AuthController,
	rdb *redis.Client,
	jwtSecret string,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger())

	origins := parseCorsOrigins()
	allowCredentials := true
	for _, origin := range origins {
		if origin == "*" {
			allowCredentials = false
			break
		}
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "Stripe-Signature"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: allowCredentials,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/auth/login", ac.Login)

		public := api.Group("")
		public.Use(middleware.RateLimit(rdb, 60, time.Minute))
		{
			public.POST("/bookings", bc.CreateBooking)
			public.GET("/bookings/:ref", bc.GetBookingDetails)
			public.POST("/bookings/:ref/cancel", bc.CancelBooking)

			public.POST("/payments/intent", pc.CreatePaymentIntent)
			public.POST("/payments/confirm", pc.ConfirmBooking)
		}

		// Gateway callbacks carry their own signature; never rate-limited.
		api.POST("/payments/webhook", pc.Webhook)

		admin := api.Group("/admin")
		admin.Use(middleware.RequireAuth(jwtSecret))
		{
			admin.GET("/bookings", bc.GetBookings)
			admin.POST("/bookings/:ref/checkin", bc.CheckInBooking)
			admin.POST("/bookings/:ref/checkout", bc.CheckoutBooking)

			admin.GET("/rooms", rc.GetRooms)
			admin.POST("/rooms", rc.CreateRoom)
			admin.GET("/rooms/:id", rc.GetRoom)
			admin.PUT("/rooms/:id", rc.UpdateRoom)
			admin.DELETE("/rooms/:id", rc.DeleteRoom)

			admin.GET("/rooms/:id/calendar/:year", avc.GetCalendar)
			admin.POST("/rooms/:id/availability/validate", avc.ValidateChange)
			admin.POST("/rooms/:id/availability", avc.UpdateAvailability)
		}
	}

	return r
}
