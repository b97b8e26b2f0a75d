package routes

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"raceday-api/config"
	"raceday-api/controllers"
	"raceday-api/metrics"
	"raceday-api/middleware"
	"raceday-api/services"
)

// Dependencies are the wired services the route table hands to controllers.
type Dependencies struct {
	DB            *gorm.DB
	Config        *config.Config
	Auth          *services.AuthService
	Events        *services.EventService
	Registrations *services.RegistrationService
	Metrics       *metrics.Metrics
	RateLimiter   *middleware.RateLimiter
}

// NewRouter builds the engine with the global middleware chain and routes.
// Only the configured proxies may set the client IP the rate limiter keys on;
// with none configured the peer address is used.
func NewRouter(d Dependencies) (*gin.Engine, error) {
	r := gin.New()
	r.MaxMultipartMemory = d.Config.MaxUploadBytes
	if err := r.SetTrustedProxies(d.Config.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	r.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.RequestLogger(),
		middleware.Metrics(d.Metrics),
		middleware.SecurityHeaders(),
		middleware.CORS(d.Config.AllowedOrigins),
	)

	SetupRoutes(r, d)
	return r, nil
}

func SetupRoutes(r *gin.Engine, d Dependencies) {
	authController := controllers.NewAuthController(d.Auth)
	eventController := controllers.NewEventController(d.Events, d.Config.MaxUploadBytes)
	registrationController := controllers.NewRegistrationController(d.Registrations)
	healthController := controllers.NewHealthController(d.DB)

	r.GET("/health", healthController.Health)
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	limited := middleware.RateLimit(d.RateLimiter)
	admin := middleware.AdminAuth(d.Auth)

	r.POST("/auth/login", limited, authController.Login)

	events := r.Group("/events")
	{
		events.GET("", eventController.GetEvents)
		events.GET("/:id", eventController.GetEvent)
		events.POST("", admin, eventController.CreateEvent)
		events.PUT("/:id", admin, eventController.UpdateEvent)
		events.DELETE("/:id", admin, eventController.DeleteEvent)
		events.GET("/:id/registrations", admin, registrationController.GetEventRegistrations)
	}

	r.POST("/registrations", limited, registrationController.CreateRegistration)
}
