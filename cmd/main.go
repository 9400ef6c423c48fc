package main

import (
	"context"
	"encoding/base64"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tickwise/api/handler"
	apiMiddleware "tickwise/api/middleware"
	"tickwise/api/routes"
	"tickwise/config"
	"tickwise/internal/repository"
	"tickwise/internal/service"
	"tickwise/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("configuration invalid")
	}

	db, err := config.OpenDatabase(cfg)
	if err != nil {
		logger.WithError(err).Fatal("database unavailable")
	}
	redisClient, err := config.OpenRedis(cfg)
	if err != nil {
		logger.WithError(err).Fatal("redis configuration invalid")
	}

	cipherKey, err := base64.RawURLEncoding.DecodeString(cfg.MFASecretKey)
	if err != nil {
		logger.WithError(err).Fatal("MFA_SECRET_KEY must be base64url")
	}
	secretCipher, err := service.NewXChaChaSecretCipher(cipherKey)
	if err != nil {
		logger.WithError(err).Fatal("MFA_SECRET_KEY invalid")
	}

	accessManager := utils.JWTManager{
		Secret:         []byte(cfg.JWTSecret),
		Issuer:         cfg.JWTIssuer,
		AccessTokenTTL: cfg.AccessTokenTTL,
	}
	mfaIssuer := service.MFATokenIssuerJWT{
		Secret: []byte(cfg.MFAJWTSecret),
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.MFATokenTTL,
	}

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	verificationRepo := repository.NewVerificationTokenRepository(db)
	backupCodeRepo := repository.NewBackupCodeRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	billingRepo := repository.NewBillingRepository(db)

	var emailSender service.EmailSender
	if cfg.ResendAPIKey != "" {
		emailSender = service.NewResendEmailSender(cfg.ResendAPIKey, cfg.EmailFrom, cfg.AppBaseURL)
	}

	authService := service.NewAuthService(
		userRepo,
		sessionRepo,
		verificationRepo,
		backupCodeRepo,
		auditRepo,
		emailSender,
		service.BcryptPasswordHasher{},
		accessManager,
		mfaIssuer,
		service.NewTOTPProvider(cfg.JWTIssuer),
		secretCipher,
		service.NewMFALimiter(rate.Every(6*time.Second), 5, 30*time.Minute),
		service.RealClock{},
		logger,
		service.AuthConfig{
			AccessTokenTTL:       cfg.AccessTokenTTL,
			RefreshTokenTTL:      cfg.RefreshTokenTTL,
			VerificationTokenTTL: 24 * time.Hour,
			ResetTokenTTL:        time.Hour,
			MFATokenTTL:          cfg.MFATokenTTL,
			MFAIssuer:            cfg.JWTIssuer,
			MaxFailedLogins:      cfg.MaxFailedLogins,
			LockoutDuration:      cfg.LockoutDuration,
		},
	)
	entitlementService := service.NewEntitlementService(billingRepo, redisClient, logger)

	validate := validator.New()
	authHandler := handler.NewAuthHandler(authService, validate)
	authHandler.CookieDomain = cfg.CookieDomain
	authHandler.SecureCookies = cfg.SecureCookies
	entitlementHandler := handler.NewEntitlementHandler(entitlementService)

	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	app.Use(echoMiddleware.Recover())
	app.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"status": v.Status,
				"method": v.Method,
				"uri":    v.URI,
				"ip":     v.RemoteIP,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))

	authMiddleware := apiMiddleware.AuthMiddleware{JWT: &accessManager}
	router := routes.NewRouter(app, authHandler, entitlementHandler, authMiddleware)
	router.RegisterRoutes()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("server started")
		if err := app.StartServer(server); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("shutdown incomplete")
	}
	logger.Info("server stopped")
}
