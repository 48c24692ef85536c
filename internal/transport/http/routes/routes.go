package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/infra/config"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/transport/http/handlers"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/transport/http/middleware"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Access   *usecase.AccessService
	Visits   *usecase.VisitService
	History  *usecase.HistoryService
	Programs *usecase.ProgramService
	Users    *usecase.UserService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
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
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))

	if len(deps.Config.App.CORSAllowedOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.App.CORSAllowedOrigins))
	}

	if metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{}); err == nil {
		r.Use(metrics.Handler())
	} else if deps.Logger != nil {
		deps.Logger.Warn("http metrics disabled", zap.Error(err))
	}

	authMiddleware := middleware.Authenticate(deps.Services.Access, middleware.AuthenticateOptions{
		SubjectClaim: deps.Config.Auth.SubjectClaim,
	}, deps.Logger)

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

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	sessionHandler := handlers.NewSessionHandler(deps.Services.Visits)
	observationHandler := handlers.NewObservationHandler(deps.Services.Visits)
	historyHandler := handlers.NewHistoryHandler(deps.Services.History)
	programHandler := handlers.NewProgramHandler(deps.Services.Access, deps.Services.Programs)
	userHandler := handlers.NewUserHandler(deps.Services.Users)
	adminHandler := handlers.NewAdminHandler(deps.Services.Visits, deps.Services.Programs)

	api := r.Group("/api/v1")
	api.Use(authMiddleware)
	{
		accessGroup := api.Group("/access")
		programHandler.RegisterAccessRoutes(accessGroup)

		sessionGroup := api.Group("/sessions")
		sessionHandler.RegisterRoutes(sessionGroup, buildSessionCreateMiddlewares(deps)...)

		observationGroup := api.Group("/observations")
		observationHandler.RegisterRoutes(observationGroup)

		programGroup := api.Group("/programs")
		programHandler.RegisterRoutes(programGroup)
		historyHandler.RegisterProgramRoutes(programGroup)

		userGroup := api.Group("/users")
		userHandler.RegisterRoutes(userGroup)
		historyHandler.RegisterUserRoutes(userGroup)
	}

	internal := r.Group("/internal")
	internal.Use(authMiddleware, middleware.RequireSuperAdmin())
	adminHandler.RegisterRoutes(internal)

	return r
}

func buildSessionCreateMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.SessionCreateMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       "session_create_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
