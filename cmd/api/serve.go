package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/vidaplus/hospital-api/internal/config"
	appointmenthandler "github.com/vidaplus/hospital-api/internal/handler/appointment"
	authhandler "github.com/vidaplus/hospital-api/internal/handler/auth"
	"github.com/vidaplus/hospital-api/internal/handler/health"
	patienthandler "github.com/vidaplus/hospital-api/internal/handler/patient"
	promhandler "github.com/vidaplus/hospital-api/internal/handler/prometheus"
	"github.com/vidaplus/hospital-api/internal/middleware"
	"github.com/vidaplus/hospital-api/internal/redisclient"
	"github.com/vidaplus/hospital-api/internal/repository/postgres"
	"github.com/vidaplus/hospital-api/internal/router"
	appointmentservice "github.com/vidaplus/hospital-api/internal/service/appointment"
	auditservice "github.com/vidaplus/hospital-api/internal/service/audit"
	authservice "github.com/vidaplus/hospital-api/internal/service/auth"
	patientservice "github.com/vidaplus/hospital-api/internal/service/patient"
	"github.com/vidaplus/hospital-api/pkg/auth"
	"github.com/vidaplus/hospital-api/pkg/logger"
	"github.com/vidaplus/hospital-api/pkg/metrics"
	"github.com/vidaplus/hospital-api/pkg/security"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(cfg *config.Config) *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Console:    cfg.Log.Console,
	})
}

func runServer() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := newLogger(cfg)

	ctx := context.Background()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		log.Error(err, "failed to connect to database")
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Error(err, "failed to apply schema")
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry, cfg.Server.MetricsPrefix)

	locker := redisclient.NewNoopLocker()
	if cfg.Redis.URL != "" {
		client, err := redisclient.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			// the unique slot index still prevents double booking
			log.Warn("redis unavailable, booking without slot locks", "error", err.Error())
		} else {
			defer client.Close()
			locker = redisclient.NewRedisSlotLocker(client, cfg.Redis.SlotLockTTL)
		}
	}

	repos := postgres.NewRepositories(postgres.NewBaseRepository(db, cfg.Database.QueryTimeout))

	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)
	hasher := security.NewBcryptHasher(cfg.Security.BcryptCost)

	authSvc := authservice.NewService(repos.Identities, repos.Patients, repos.Professionals, hasher, jwtSvc, m, log)
	appointmentSvc := appointmentservice.NewService(repos.Appointments, repos.Patients, repos.Professionals, locker, m, log)
	patientSvc := patientservice.NewService(repos.Patients, repos.History, log)
	auditLogger := auditservice.NewAsyncLogger(auditservice.NewService(repos.Audit, m), cfg.Audit.WriteTimeout, log)

	if err := middleware.RegisterValidators(); err != nil {
		return fmt.Errorf("failed to register validators: %w", err)
	}

	r := router.NewRouter(
		log,
		middleware.NewAuthMiddleware(jwtSvc),
		auditLogger,
		router.Handlers{
			Auth:         authhandler.NewHandler(authSvc),
			Appointments: appointmenthandler.NewHandler(appointmentSvc),
			Patients:     patienthandler.NewHandler(patientSvc),
			Health:       health.NewHandler(db, cfg.Environment, version),
			Metrics:      promhandler.New(registry, cfg.Server.MetricsPrefix),
		},
		router.RouterConfig{
			AuthRateLimit:  rate.Limit(cfg.Server.AuthRateLimit),
			AuthRateBurst:  cfg.Server.AuthRateBurst,
			CORSConfig:     middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins),
			RequestTimeout: cfg.Server.RequestTimeout,
			MaxBodySize:    middleware.DefaultMaxBodySize,
			ReleaseMode:    !cfg.IsDevelopment(),
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "port", cfg.Server.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		if err != nil {
			log.Error(err, "server failed")
			return err
		}
	case <-quit:
	}
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "server forced to shutdown")
	}
	if err := auditLogger.Drain(shutdownCtx); err != nil {
		log.Warn("audit records still pending at exit", "error", err.Error())
	}

	log.Info("server exited properly")
	return nil
}
