package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clinicore/clinic-api/internal/config"
	"github.com/clinicore/clinic-api/internal/email"
	"github.com/clinicore/clinic-api/internal/handler"
	appointmentHandler "github.com/clinicore/clinic-api/internal/handler/appointment"
	authHandler "github.com/clinicore/clinic-api/internal/handler/auth"
	chatHandler "github.com/clinicore/clinic-api/internal/handler/chat"
	consultationHandler "github.com/clinicore/clinic-api/internal/handler/consultation"
	notificationHandler "github.com/clinicore/clinic-api/internal/handler/notification"
	prescriptionHandler "github.com/clinicore/clinic-api/internal/handler/prescription"
	userHandler "github.com/clinicore/clinic-api/internal/handler/user"
	"github.com/clinicore/clinic-api/internal/middleware"
	"github.com/clinicore/clinic-api/internal/repository/postgres"
	"github.com/clinicore/clinic-api/internal/router"
	authService "github.com/clinicore/clinic-api/internal/service/auth"
	chatService "github.com/clinicore/clinic-api/internal/service/chat"
	consultationService "github.com/clinicore/clinic-api/internal/service/consultation"
	"github.com/clinicore/clinic-api/internal/service/directory"
	notificationService "github.com/clinicore/clinic-api/internal/service/notification"
	prescriptionService "github.com/clinicore/clinic-api/internal/service/prescription"
	schedulerService "github.com/clinicore/clinic-api/internal/service/scheduler"
	pkgauth "github.com/clinicore/clinic-api/pkg/auth"
	"github.com/clinicore/clinic-api/pkg/logger"
	"github.com/clinicore/clinic-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := parseLevel(cfg.Logging.Level)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid log level")
	}
	appLogger := logger.NewLogger(&logger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Pretty:     cfg.Logging.Pretty,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	consultationRepo := postgres.NewConsultationRepository(db)
	prescriptionRepo := postgres.NewPrescriptionRepository(db)
	chatRepo := postgres.NewChatRepository(db)
	tokenRepo := postgres.NewTokenRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	// Services
	m := metrics.NewMetrics("clinic")
	jwtSvc := pkgauth.NewJWTService(pkgauth.Config{
		Secret:        cfg.JWT.Secret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		Expiry:        time.Duration(cfg.JWT.ExpiryHours) * time.Hour,
		RefreshExpiry: time.Duration(cfg.JWT.RefreshExpiryHours) * time.Hour,
	})
	emailSvc := email.NewService(cfg.SMTP)
	dirSvc := directory.NewService(userRepo)
	authSvc := authService.NewService(dirSvc, jwtSvc, tokenRepo, outboxRepo, emailSvc, appLogger)
	schedulerSvc := schedulerService.NewService(appointmentRepo, dirSvc, outboxRepo, appLogger, m)
	notificationSvc := notificationService.NewService(notificationRepo)
	consultationSvc := consultationService.NewService(consultationRepo, dirSvc)
	prescriptionSvc := prescriptionService.NewService(prescriptionRepo, dirSvc)
	chatSvc := chatService.NewService(chatRepo, dirSvc)

	// Middleware and handlers
	authMiddleware := middleware.NewAuthMiddleware(authSvc)

	h := handler.NewHandler(db)
	authH := authHandler.NewHandler(authSvc)
	userH := userHandler.NewHandler(dirSvc)
	appointmentH := appointmentHandler.NewHandler(schedulerSvc)
	consultationH := consultationHandler.NewHandler(consultationSvc)
	prescriptionH := prescriptionHandler.NewHandler(prescriptionSvc)
	notificationH := notificationHandler.NewHandler(notificationSvc)
	chatH := chatHandler.NewHandler(chatSvc)

	r := router.NewRouter(
		authMiddleware,
		h,
		authH,
		userH,
		appointmentH,
		consultationH,
		prescriptionH,
		notificationH,
		chatH,
		router.Config{
			RateLimitRPS:   cfg.Server.RateLimitRPS,
			RateLimitBurst: cfg.Server.RateLimitBurst,
			Timeout:        time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
			CORS:           middleware.DefaultCORSConfig(),
			MetricsPrefix:  "clinic_http",
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		appLogger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info("server exited properly")
}

func parseLevel(s string) (logger.Level, error) {
	switch s {
	case "debug":
		return logger.DebugLevel, nil
	case "", "info":
		return logger.InfoLevel, nil
	case "warn":
		return logger.WarnLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	default:
		return logger.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}
