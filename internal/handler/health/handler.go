package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is satisfied by *sqlx.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	db          Pinger
	environment string
	version     string
	started     time.Time
}

func NewHandler(db Pinger, environment, version string) *Handler {
	return &Handler{
		db:          db,
		environment: environment,
		version:     version,
		started:     time.Now(),
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.LivenessCheck)
	r.GET("/health/ready", h.ReadinessCheck)
	r.GET("/api", h.Info)
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "OK",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"uptime":      time.Since(h.started).Seconds(),
		"environment": h.environment,
	})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "DOWN",
			"reason": "Database connection failed",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

func (h *Handler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"name":    "hospital-api",
			"version": h.version,
			"endpoints": gin.H{
				"auth":         "/api/auth",
				"appointments": "/api/consultas",
				"patients":     "/api/pacientes",
				"health":       "/health",
				"metrics":      "/metrics",
			},
		},
	})
}
