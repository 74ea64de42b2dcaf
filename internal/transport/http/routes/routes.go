package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/library-staff-auth/internal/infra/config"
	"github.com/arklim/library-staff-auth/internal/transport/http/handlers"
	"github.com/arklim/library-staff-auth/internal/transport/http/middleware"
	"github.com/arklim/library-staff-auth/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Login          *usecase.LoginService
	Sessions       *usecase.SessionService
	PasswordChange *usecase.PasswordChangeService
	Accounts       *usecase.StaffAccountService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config         *config.AppConfig
	Logger         *zap.Logger
	RateLimiter    *middleware.RateLimiter
	Services       ServiceSet
	Tokens         middleware.TokenHasher
	Metrics        middleware.HTTPObserver
	MetricsHandler http.Handler
	TracerProvider trace.TracerProvider
	Database       DatabaseChecker
	Cache          CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Tracing(middleware.TracingOptions{TracerProvider: deps.TracerProvider}))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Metrics(deps.Metrics))
	if len(deps.Config.App.CORSOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.App.CORSOrigins))
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(metricsHandler))

	requireSession := middleware.RequireSession(deps.Services.Login, deps.Tokens, middleware.SessionAuthOptions{
		CookieName: deps.Config.Session.CookieName,
	})

	api := r.Group("/api/v1")
	{
		authHandler := handlers.NewAuthHandler(deps.Services.Login, handlers.CookieSettings{
			Name:   deps.Config.Session.CookieName,
			Domain: deps.Config.Session.CookieDomain,
			Secure: deps.Config.Session.CookieSecure,
			MaxAge: deps.Config.Session.AbsoluteTimeout,
		})
		authHandler.RegisterRoutes(api.Group("/auth"), requireSession, buildLoginMiddlewares(deps)...)

		staffGroup := api.Group("/staff")
		staffGroup.Use(requireSession)

		passwordHandler := handlers.NewPasswordHandler(deps.Services.PasswordChange)
		staffGroup.PUT("/password", passwordHandler.ChangePassword)

		sessionHandler := handlers.NewSessionHandler(deps.Services.Sessions)
		sessionHandler.RegisterRoutes(staffGroup.Group("/sessions"))

		accountsGroup := staffGroup.Group("/accounts")
		accountsGroup.Use(middleware.RequireAdmin())
		handlers.NewStaffAccountHandler(deps.Services.Accounts).RegisterRoutes(accountsGroup)
	}

	return r
}

func buildLoginMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.LoginMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       "auth_login_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
