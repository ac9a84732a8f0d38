package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/hospital-api/internal/handler"
	adminHandler "github.com/jwalitptl/hospital-api/internal/handler/admin"
	appointmentHandler "github.com/jwalitptl/hospital-api/internal/handler/appointment"
	authHandler "github.com/jwalitptl/hospital-api/internal/handler/auth"
	doctorHandler "github.com/jwalitptl/hospital-api/internal/handler/doctor"
	"github.com/jwalitptl/hospital-api/internal/handler/health"
	patientHandler "github.com/jwalitptl/hospital-api/internal/handler/patient"
	"github.com/jwalitptl/hospital-api/internal/handler/prometheus"
	reportHandler "github.com/jwalitptl/hospital-api/internal/handler/report"
	"github.com/jwalitptl/hospital-api/internal/middleware"
	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/pkg/event"
)

type RouterConfig struct {
	RateLimit      rate.Limit
	RateBurst      int
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	CORSConfig     middleware.CORSConfig
}

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth        *authHandler.Handler
	Appointment *appointmentHandler.Handler
	Doctor      *doctorHandler.Handler
	Patient     *patientHandler.Handler
	Report      *reportHandler.Handler
	Admin       *adminHandler.Handler
	Health      *health.Handler
	Metrics     *prometheus.Handler
}

type Router struct {
	engine       *gin.Engine
	auth         *middleware.AuthMiddleware
	handlers     Handlers
	eventTracker *event.EventTrackerMiddleware
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	handlers Handlers,
	eventTracker *event.EventTrackerMiddleware,
	config RouterConfig,
) *Router {
	engine := gin.New()

	r := &Router{
		engine:       engine,
		auth:         auth,
		handlers:     handlers,
		eventTracker: eventTracker,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
	)
	if handlers.Metrics != nil {
		engine.Use(handlers.Metrics.Middleware())
	}
	engine.Use(
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.CORSConfig),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
	)

	sizeLimit := middleware.DefaultSizeLimitConfig()
	if config.MaxBodyBytes > 0 {
		sizeLimit.MaxBodySize = config.MaxBodyBytes
	}
	engine.Use(middleware.SizeLimit(sizeLimit))

	if config.RateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	r.handlers.Health.RegisterRoutes(r.engine)
	if r.handlers.Metrics != nil {
		r.engine.GET("/metrics", r.handlers.Metrics.Handler())
	}

	api := r.engine.Group("/api/v1")
	r.setupPublicRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.setupPatientRoutes(protected)
	r.setupDoctorRoutes(protected)
	r.setupStaffRoutes(protected)
	r.setupAdminRoutes(protected)
}

func (r *Router) setupPublicRoutes(rg *gin.RouterGroup) {
	r.handlers.Auth.RegisterRoutes(rg, r.auth.Authenticate())
	r.handlers.Doctor.RegisterPublicRoutes(rg.Group("/public"))
}

func (r *Router) setupPatientRoutes(rg *gin.RouterGroup) {
	patient := rg.Group("/patient", r.auth.RequireRole(model.RolePatient))
	r.handlers.Appointment.RegisterPatientRoutes(patient, r.eventTracker)
}

func (r *Router) setupDoctorRoutes(rg *gin.RouterGroup) {
	doctor := rg.Group("/doctor", r.auth.RequireRole(model.RoleDoctor))
	r.handlers.Appointment.RegisterDoctorRoutes(doctor, r.eventTracker)
}

// setupStaffRoutes mounts the front desk surface shared by admins and receptionists.
func (r *Router) setupStaffRoutes(rg *gin.RouterGroup) {
	staff := rg.Group("", r.auth.RequireRole(model.RoleAdmin, model.RoleReceptionist))
	r.handlers.Appointment.RegisterRoutesWithEvents(staff, r.eventTracker)
	r.handlers.Doctor.RegisterRoutesWithEvents(staff, r.eventTracker)
	r.handlers.Patient.RegisterRoutesWithEvents(staff, r.eventTracker)
	r.handlers.Report.RegisterRoutes(staff)
}

func (r *Router) setupAdminRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("/admin", r.auth.RequireRole(model.RoleAdmin))
	r.handlers.Admin.RegisterRoutes(admin)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// NewEventTracker records outbox events attributed to the authenticated caller.
func NewEventTracker(svc event.EventService) *event.EventTrackerMiddleware {
	return event.NewEventTrackerMiddleware(svc, handler.EventActor)
}
