package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/avahealth/scheduling-api/internal/config"
	"github.com/avahealth/scheduling-api/internal/email"
	"github.com/avahealth/scheduling-api/internal/handler/agent"
	appointmentHandler "github.com/avahealth/scheduling-api/internal/handler/appointment"
	authHandler "github.com/avahealth/scheduling-api/internal/handler/auth"
	"github.com/avahealth/scheduling-api/internal/handler/health"
	patientHandler "github.com/avahealth/scheduling-api/internal/handler/patient"
	"github.com/avahealth/scheduling-api/internal/middleware"
	"github.com/avahealth/scheduling-api/internal/repository/postgres"
	"github.com/avahealth/scheduling-api/internal/router"
	authService "github.com/avahealth/scheduling-api/internal/service/auth"
	patientService "github.com/avahealth/scheduling-api/internal/service/patient"
	scheduleService "github.com/avahealth/scheduling-api/internal/service/schedule"
	"github.com/avahealth/scheduling-api/pkg/auth"
	"github.com/avahealth/scheduling-api/pkg/calendar"
	"github.com/avahealth/scheduling-api/pkg/logger"
	"github.com/avahealth/scheduling-api/pkg/messaging"
	redisbroker "github.com/avahealth/scheduling-api/pkg/messaging/redis"
	"github.com/avahealth/scheduling-api/pkg/metrics"
	"github.com/avahealth/scheduling-api/pkg/security"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Logger = logger.New(cfg.Logging.Level, cfg.Logging.Pretty)

	loc, err := calendar.LoadLocation(cfg.Clinic.Timezone)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load business timezone")
	}

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Initialize repositories
	appointmentRepo := postgres.NewAppointmentRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	userRepo := postgres.NewUserRepository(db)

	// Optional collaborators
	var broker messaging.Broker
	var agentLimiter gin.HandlerFunc
	if cfg.Redis.URL != "" {
		logger := log.Logger
		broker, err = redisbroker.NewRedisBroker(redisbroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, &logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer broker.Close()
	}

	if cfg.RateLimit.Enabled {
		if rb, ok := broker.(*redisbroker.RedisBroker); ok {
			agentLimiter = middleware.NewRedisRateLimiter(
				rb.Client(), cfg.RateLimit.Requests, cfg.RateLimit.Window, "scheduling-api",
			).RateLimit()
		} else {
			rps := float64(cfg.RateLimit.Requests) / cfg.RateLimit.Window.Seconds()
			agentLimiter = middleware.NewLocalRateLimiter(rps, cfg.RateLimit.Requests).RateLimit()
		}
	}

	var mailer email.Service
	if cfg.SMTP.Enabled {
		mailer = email.NewService(email.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}

	appMetrics := metrics.NewMetrics("scheduling_api", "core")

	// Initialize services
	tokenSvc := auth.NewTokenService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	hasher := security.NewBcryptHasher(bcrypt.DefaultCost)
	authSvc := authService.NewService(userRepo, hasher, tokenSvc)
	patientSvc := patientService.NewService(patientRepo, appointmentRepo, loc)
	scheduleSvc := scheduleService.NewService(
		appointmentRepo, patientRepo, userRepo,
		mailer, broker, appMetrics, log.Logger, loc,
	)

	// Initialize middleware and handlers
	authMiddleware := middleware.NewAuthMiddleware(authSvc)
	agentH := agent.NewHandler(scheduleSvc, patientSvc)
	authH := authHandler.NewHandler(authSvc)
	patientH := patientHandler.NewHandler(patientSvc)
	appointmentH := appointmentHandler.NewHandler(scheduleSvc, loc)
	healthH := health.NewHandler(db)

	// Setup router
	r := router.NewRouter(
		authMiddleware,
		agentLimiter,
		agentH,
		authH,
		patientH,
		appointmentH,
		healthH,
		router.Config{
			AgentAPIKey:   cfg.Agent.APIKey,
			MetricsPrefix: "scheduling_api",
			Timeout:       cfg.Server.RequestTimeout,
			CORSConfig:    middleware.DefaultCORSConfig(),
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("timezone", loc.String()).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
