package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicepro-api/config"
	"github.com/kendall-kelly/servicepro-api/middleware"
	"github.com/kendall-kelly/servicepro-api/services"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// application holds the wired services behind the HTTP API
type application struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB

	tokens     *services.TokenIssuer
	userInfo   services.UserInfoFetcher
	users      *services.UserService
	customers  *services.CustomerService
	jobs       *services.JobService
	billing    *services.BillingService
	images     services.ImageService
	reports    *services.ReportService
	dispatcher *services.NotificationDispatcher
	redis      *redis.Client

	// authChain authenticates /api/v1 routes that need a session
	authChain []gin.HandlerFunc
	// externalAuth validates identity provider tokens for /users/external
	externalAuth gin.HandlerFunc
}

func newApplication(ctx context.Context, cfg *config.Config, logger *zap.Logger, db *gorm.DB) (*application, error) {
	app := &application{cfg: cfg, logger: logger, db: db}

	var locker services.Locker = services.NewLocalLocker()
	if cfg.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := app.redis.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		locker = services.NewRedisLocker(app.redis)
		logger.Info("Using redis locks", zap.String("addr", cfg.RedisAddr))
	}

	var mailer services.Mailer = services.NewLogMailer(logger)
	if cfg.ResendAPIKey != "" {
		mailer = services.NewResendMailer(cfg.ResendAPIKey, cfg.MailFrom)
	}
	app.dispatcher = services.NewNotificationDispatcher(mailer, cfg.NotifyWorkers, logger.Named("notifications"))

	if cfg.StripeSecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY is not set, payment intents will fail")
	}

	if cfg.AuthProvider == config.AuthProviderLocal {
		app.tokens = services.NewTokenIssuer(cfg.SigningSecret())
	}
	app.users = services.NewUserService(db, app.tokens, logger)
	app.customers = services.NewCustomerService(db, locker, logger)
	app.jobs = services.NewJobService(db, app.customers, app.dispatcher, logger,
		services.WithStatusEnforcement(cfg.EnforceStatusTransitions))
	app.billing = services.NewBillingService(db, services.NewStripeProvider(cfg.StripeSecretKey), cfg.PaymentCurrency, logger)
	app.reports = services.NewReportService(cfg.AppURL)

	if cfg.AWSS3Bucket != "" {
		store, err := services.NewS3Service(ctx, cfg)
		if err != nil {
			return nil, err
		}
		app.images = services.NewS3ImageService(store)
	} else {
		logger.Warn("AWS_S3_BUCKET is not set, image uploads are disabled")
	}

	switch cfg.AuthProvider {
	case config.AuthProviderAuth0:
		validate, err := middleware.EnsureValidToken(cfg, logger)
		if err != nil {
			return nil, err
		}
		app.userInfo = services.NewAuth0Service(cfg.Auth0Domain)
		app.externalAuth = validate
		app.authChain = []gin.HandlerFunc{validate, middleware.ExternalSession(app.users, logger)}
	default:
		app.authChain = []gin.HandlerFunc{middleware.LocalAuth(app.users)}
	}

	return app, nil
}

// close stops background work; it is called after the HTTP server stopped
func (app *application) close() {
	app.dispatcher.Shutdown()
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
}
