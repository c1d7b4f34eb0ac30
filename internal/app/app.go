package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "hospitalrecords/docs"
	"hospitalrecords/internal/config"
	"hospitalrecords/internal/handlers"
	"hospitalrecords/internal/logging"
	"hospitalrecords/internal/middleware"
	"hospitalrecords/internal/pdf"
	"hospitalrecords/internal/repositories"
	"hospitalrecords/internal/routes"
	"hospitalrecords/internal/services"
	"hospitalrecords/internal/utils"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	log    logging.Logger
	db     *sql.DB
	server *http.Server
}

// New connects to the database, applies migrations and wires the HTTP stack.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	// === DB ===
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := repositories.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	store := repositories.NewPostgresStore(db)

	// === Services ===
	notifier, err := newNotifier(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	hasher := services.NewBcryptHasher(cfg.Auth.BcryptCost)
	tokens, err := services.NewTokenService([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	otp := services.NewOTPService(hasher, notifier, log)
	sessions := services.NewSessionService(log)

	authService := services.NewAuthService(store, hasher, otp, tokens, sessions, log)
	authService.ConcealUnknownAccounts = cfg.Auth.ConcealUnknownAccounts

	reports := pdf.NewDocumentGenerator(cfg.Files.RootDir, cfg.Files.FontPath)
	auditService := services.NewAuditService(store, reports, log)

	// === Handlers ===
	authHandler := handlers.NewAuthHandler(authService)
	adminHandler := handlers.NewAdminHandler(authService, auditService)
	healthHandler := handlers.NewHealthHandler(db)

	// === Gin ===
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	limiter := middleware.NewIPRateLimiter(cfg.Auth.RateLimitRPS, cfg.Auth.RateLimitBurst)
	routes.SetupRoutes(router, authHandler, adminHandler, healthHandler, authService, limiter)

	log.Info(ctx, "[app] wired", "otp_channel", notifier.Channel(), "port", cfg.Server.Port)

	return &App{
		log: log,
		db:  db,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		if err := a.db.Close(); err != nil {
			a.log.Warn(context.Background(), "[app] close db", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		a.log.Info(ctx, "[app] listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info(context.Background(), "[app] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newNotifier(cfg *config.Config) (services.Notifier, error) {
	switch cfg.Auth.OTPChannel {
	case "sms":
		client := utils.NewClientWithOptions(cfg.Mobizon.APIKey, cfg.Mobizon.SenderID, cfg.Mobizon.DryRun)
		return services.NewSMSNotifier(client), nil
	case "telegram":
		return services.NewTelegramNotifier(cfg.Telegram.BotToken)
	case "email":
		return services.NewEmailService(
			cfg.Email.SMTPHost,
			cfg.Email.SMTPPort,
			cfg.Email.SMTPUser,
			cfg.Email.SMTPPassword,
			cfg.Email.FromEmail,
		), nil
	default:
		return nil, fmt.Errorf("unknown otp channel %q", cfg.Auth.OTPChannel)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
