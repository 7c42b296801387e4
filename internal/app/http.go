package app

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"gradeauth/internal/auth"
	"gradeauth/internal/auth/credentials"
	"gradeauth/internal/auth/provider"
	"gradeauth/internal/auth/provider/google"
	"gradeauth/internal/auth/validate"
	"gradeauth/internal/config"
	"gradeauth/internal/handler"
	"gradeauth/internal/mailer"
	"gradeauth/internal/middleware"
	"gradeauth/internal/ratelimit"
	"gradeauth/internal/reset"
	"gradeauth/internal/session"
	"gradeauth/internal/token"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	tokens := token.NewGenerator()
	tracker := ratelimit.NewTracker()

	sessions := session.NewRegistry(
		tokens,
		session.WithTimeout(cfg.SessionTimeout),
		session.WithSink(session.NewRedisSink(infra.Redis.Client)),
	)

	resets, err := reset.NewStore(tokens, reset.NewFileSink(cfg.ResetSnapshotPath))
	if err != nil {
		return nil, nil, err
	}

	creds := credentials.NewService(infra.DB, tracker)

	smtp := mailer.NewSMTP(
		cfg.SMTPHost,
		cfg.SMTPPort,
		cfg.SMTPFrom,
		cfg.SMTPUser,
		cfg.SMTPPass,
	)

	svc := auth.NewService(
		creds,
		tracker,
		sessions,
		resets,
		smtp,
		nil, // browser OAuth goes through the HTTP callback
		validate.NewRules(),
	)

	var providerList []provider.OAuthProvider
	if cfg.GoogleClientID != "" {
		googleProvider, err := google.New(
			ctx,
			cfg.GoogleClientID,
			cfg.GoogleClientSecret,
			cfg.GoogleRedirectURL,
		)
		if err != nil {
			return nil, nil, err
		}
		providerList = append(providerList, googleProvider)
	}
	registry := provider.NewRegistry(providerList...)

	authHandler := handler.NewHandler(svc, registry, cfg.SessionTimeout)

	// 10 req/min per IP on the credential endpoints
	loginLimiter := middleware.NewLoginLimiter(rate.Limit(10.0/60.0), 10)

	// Periodic expiry sweep; ValidateAndExtend is correct without it,
	// this just reclaims memory for abandoned sessions.
	stopSweep := startSweeper(cfg.SessionSweep, svc.CleanupExpiredSessions)

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery())

	authHandler.RegisterRoutes(router, loginLimiter.Middleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(middleware.RequireAuth(svc))
	authHandler.RegisterProtectedRoutes(api)

	// ----------------------------
	// Cleanup
	// ----------------------------

	return router, func() error {
		stopSweep()
		loginLimiter.Stop()
		tracker.Stop()
		if err := infra.Redis.Close(); err != nil {
			slog.Warn("redis close failed", slog.String("error", err.Error()))
		}
		return infra.DB.Close()
	}, nil
}
