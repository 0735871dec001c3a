package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	appointmenthandler "github.com/vidaplus/hospital-api/internal/handler/appointment"
	authhandler "github.com/vidaplus/hospital-api/internal/handler/auth"
	"github.com/vidaplus/hospital-api/internal/handler/health"
	patienthandler "github.com/vidaplus/hospital-api/internal/handler/patient"
	promhandler "github.com/vidaplus/hospital-api/internal/handler/prometheus"
	"github.com/vidaplus/hospital-api/internal/middleware"
	"github.com/vidaplus/hospital-api/internal/model"
	"github.com/vidaplus/hospital-api/internal/service/audit"
	apperrors "github.com/vidaplus/hospital-api/pkg/errors"
	"github.com/vidaplus/hospital-api/pkg/httputil"
	"github.com/vidaplus/hospital-api/pkg/logger"
)

// Handlers groups the HTTP handlers the router mounts
type Handlers struct {
	Auth         *authhandler.Handler
	Appointments *appointmenthandler.Handler
	Patients     *patienthandler.Handler
	Health       *health.Handler
	Metrics      *promhandler.Handler
}

type RouterConfig struct {
	AuthRateLimit  rate.Limit
	AuthRateBurst  int
	CORSConfig     middleware.CORSConfig
	RequestTimeout time.Duration
	MaxBodySize    int64
	ReleaseMode    bool
}

type Router struct {
	engine      *gin.Engine
	auth        *middleware.AuthMiddleware
	recorder    audit.Recorder
	handlers    Handlers
	authLimiter *middleware.RateLimiter
}

func NewRouter(
	log *logger.Logger,
	auth *middleware.AuthMiddleware,
	recorder audit.Recorder,
	handlers Handlers,
	config RouterConfig,
) *Router {
	if config.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	if config.MaxBodySize <= 0 {
		config.MaxBodySize = middleware.DefaultMaxBodySize
	}

	r := &Router{
		engine:   engine,
		auth:     auth,
		recorder: recorder,
		handlers: handlers,
		authLimiter: middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.AuthRateLimit,
			Burst: config.AuthRateBurst,
		}),
	}

	// Add core middlewares
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.Logger(log),
	)
	if handlers.Metrics != nil {
		engine.Use(handlers.Metrics.Middleware())
	}
	engine.Use(
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.CORSConfig),
		middleware.Compress(middleware.DefaultCompressConfig()),
		middleware.SizeLimit(config.MaxBodySize),
		middleware.Timeout(config.RequestTimeout),
		middleware.ErrorHandler(log),
	)

	engine.NoRoute(func(c *gin.Context) {
		httputil.RespondWithError(c, apperrors.NotFound("route", nil))
	})

	return r
}

// Setup mounts every route
func (r *Router) Setup() {
	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(r.engine)
	}
	if r.handlers.Metrics != nil {
		r.engine.GET("/metrics", r.handlers.Metrics.Handler())
	}

	api := r.engine.Group("/api")
	r.setupAuthRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.setupAppointmentRoutes(protected)
	r.setupPatientRoutes(protected)
}

func (r *Router) setupAuthRoutes(api *gin.RouterGroup) {
	h := r.handlers.Auth
	auth := api.Group("/auth")
	{
		auth.POST("/register", r.authLimiter.RateLimit(), r.audit(model.AuditActionRegister), h.Register)
		auth.POST("/login", r.authLimiter.RateLimit(), r.audit(model.AuditActionLogin), h.Login)
		auth.GET("/me", r.auth.Authenticate(), h.Me)
		auth.PUT("/change-password", r.auth.Authenticate(), r.audit(model.AuditActionChangePassword), h.ChangePassword)
	}
}

func (r *Router) setupAppointmentRoutes(api *gin.RouterGroup) {
	h := r.handlers.Appointments
	appointments := api.Group("/consultas")
	{
		appointments.POST("",
			r.audit(model.AuditActionBook),
			middleware.RequireRoles(model.RolePatient, model.RoleDoctor, model.RoleNurse, model.RoleAdmin),
			h.Book)
		appointments.GET("", h.List)
		appointments.GET("/disponibilidade/:profissional_id", h.Availability)
		appointments.GET("/:id", h.Get)
		appointments.PUT("/:id/status",
			r.audit(model.AuditActionUpdateStatus),
			middleware.RequireRoles(model.RoleDoctor, model.RoleNurse, model.RoleAdmin),
			h.UpdateStatus)
		appointments.DELETE("/:id",
			r.audit(model.AuditActionCancel),
			middleware.RequireRoles(model.RolePatient, model.RoleDoctor, model.RoleAdmin),
			h.Cancel)
	}
}

func (r *Router) setupPatientRoutes(api *gin.RouterGroup) {
	h := r.handlers.Patients
	patients := api.Group("/pacientes")
	{
		patients.GET("",
			middleware.RequireRoles(model.RoleAdmin, model.RoleDoctor, model.RoleNurse),
			h.List)
		patients.GET("/:id",
			middleware.RequireRoles(model.RolePatient, model.RoleAdmin, model.RoleDoctor, model.RoleNurse),
			h.Get)
		patients.PUT("/:id",
			r.audit(model.AuditActionUpdatePatient),
			middleware.RequireRoles(model.RolePatient, model.RoleAdmin),
			h.Update)
		patients.GET("/:id/historico",
			middleware.RequireRoles(model.RolePatient, model.RoleAdmin, model.RoleDoctor, model.RoleNurse),
			h.History)
		patients.DELETE("/:id",
			r.audit(model.AuditActionDeactivate),
			middleware.RequireRoles(model.RoleAdmin),
			h.Deactivate)
	}
}

// audit sits before role checks so denied attempts are recorded too
func (r *Router) audit(action string) gin.HandlerFunc {
	return middleware.Audit(r.recorder, action)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
