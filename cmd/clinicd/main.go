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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicd/clinicd/internal/config"
	"github.com/clinicd/clinicd/internal/domain/billing"
	"github.com/clinicd/clinicd/internal/domain/clinical"
	"github.com/clinicd/clinicd/internal/domain/content"
	"github.com/clinicd/clinicd/internal/domain/dispense"
	"github.com/clinicd/clinicd/internal/domain/identity"
	"github.com/clinicd/clinicd/internal/domain/queue"
	"github.com/clinicd/clinicd/internal/domain/visit"
	"github.com/clinicd/clinicd/internal/platform/apperror"
	"github.com/clinicd/clinicd/internal/platform/auth"
	"github.com/clinicd/clinicd/internal/platform/db"
	"github.com/clinicd/clinicd/internal/platform/middleware"
	"github.com/clinicd/clinicd/internal/platform/notification"
	"github.com/clinicd/clinicd/internal/platform/reporting"
	"github.com/clinicd/clinicd/internal/platform/websocket"
)

const version = "0.1.0"

const requestTimeout = 30 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinicd",
		Short: "Clinic information system API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// logSender writes outbound messages to the log. It stands in for real
// email/SMS providers in environments where none are configured.
type logSender struct {
	logger zerolog.Logger
}

func (s *logSender) SendEmail(_ context.Context, to, subject, _ string) error {
	s.logger.Info().Str("to", to).Str("subject", subject).Msg("email (log sender)")
	return nil
}

func (s *logSender) SendSMS(_ context.Context, to, body string) error {
	s.logger.Info().Str("to", to).Str("body", body).Msg("sms (log sender)")
	return nil
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(logger, cfg.IsProduction())

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}))
	}

	e.Use(middleware.RequestTimeout(requestTimeout))
	e.Use(middleware.Audit(logger))

	// Repositories.
	patientRepo := identity.NewPatientRepoPG(pool)
	userRepo := identity.NewUserRepoPG(pool)
	visitRepo := visit.NewRepoPG(pool)
	queueRepo := queue.NewRepoPG(pool)
	billingRepo := billing.NewRepoPG(pool)
	diagnosisRepo := clinical.NewDiagnosisRepoPG(pool)
	allergyRepo := clinical.NewAllergyRepoPG(pool)
	contentRepo := content.NewRepoPG(pool)

	// Live queue fan-out and patient SMS.
	hub := websocket.NewHub(logger)
	templates := notification.NewTemplateEngine()
	sender := &logSender{logger: logger}
	notifyManager := notification.NewManager(sender, sender, templates, logger)

	// Services.
	identitySvc := identity.NewService(patientRepo, userRepo)
	visitSvc := visit.NewService(visitRepo)
	queueSvc := queue.NewService(queueRepo, userRepo, hub,
		notification.NewQueueNotifier(notifyManager, identitySvc),
		cfg.QueueWaitingCap, logger)
	billingSvc := billing.NewService(billingRepo)
	dispenseSvc := dispense.NewService(billingRepo, patientRepo, userRepo, logger)
	clinicalSvc := clinical.NewService(diagnosisRepo, allergyRepo)
	generator := content.NewOpenAIGenerator(content.GeneratorConfig{
		BaseURL: cfg.ContentAPIURL,
		APIKey:  cfg.ContentAPIKey,
		Model:   cfg.ContentModel,
		Timeout: time.Duration(cfg.ContentTimeoutSec) * time.Second,
	})
	contentSvc := content.NewService(contentRepo, generator, cfg.ContentModel, logger)

	gate := visit.NewGate(visitSvc, logger)

	// Routes.
	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)
	visit.NewHandler(visitSvc).RegisterRoutes(apiV1)
	queue.NewHandler(queueSvc).RegisterRoutes(apiV1)
	billing.NewHandler(billingSvc).RegisterRoutes(apiV1)
	dispense.NewHandler(dispenseSvc).RegisterRoutes(apiV1)
	clinical.NewHandler(clinicalSvc).RegisterRoutes(apiV1, gate)
	content.NewHandler(contentSvc).RegisterRoutes(apiV1)
	reporting.NewHandler(pool).RegisterRoutes(apiV1)

	websocket.NewHandler(hub).RegisterRoutes(e.Group(""))

	e.GET("/health", db.HealthHandler(pool, version))

	// Serve with graceful shutdown.
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
		errCh <- e.Start(":" + cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}

	logger.Info().Msg("server stopped")
	return nil
}
