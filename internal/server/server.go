package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mealforge/mealforge-api/internal/circuitbreaker"
	"github.com/mealforge/mealforge-api/internal/config"
	"github.com/mealforge/mealforge-api/internal/handler"
	"github.com/mealforge/mealforge-api/internal/healthcheck"
	"github.com/mealforge/mealforge-api/internal/middleware"
	"github.com/mealforge/mealforge-api/internal/obs"
	"github.com/mealforge/mealforge-api/internal/quota"
	"github.com/mealforge/mealforge-api/internal/repository"
	"github.com/mealforge/mealforge-api/internal/service"
	"github.com/mealforge/mealforge-api/internal/storage"
)

type Server struct {
	router   *gin.Engine
	config   *config.Config
	log      zerolog.Logger
	metrics  *obs.Metrics
	redis    *storage.RedisClient
	postgres *storage.Postgres

	checker   *healthcheck.Checker
	logWriter *middleware.RequestLogWriter

	apiKeyService    *service.APIKeyService
	authService      *service.AuthService
	nutritionService *service.NutritionService

	httpServer *http.Server
}

type Deps struct {
	Config   *config.Config
	Profiles *quota.Profiles
	Redis    *storage.RedisClient
	Postgres *storage.Postgres
	Logger   zerolog.Logger

	// Analyzer and Generator default to the built-in development stand-ins.
	Analyzer  service.Analyzer
	Generator service.PlanGenerator
}

func New(d Deps) *Server {
	if d.Config.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if d.Analyzer == nil {
		d.Analyzer = service.StaticAnalyzer{}
	}
	if d.Generator == nil {
		d.Generator = service.TemplateGenerator{}
	}

	metrics := obs.NewMetrics()

	quotaRepo := repository.NewQuotaRepository(d.Postgres)
	apiKeyRepo := repository.NewAPIKeyRepository(d.Postgres)
	adminRepo := repository.NewAdminUserRepository(d.Postgres)
	logRepo := repository.NewRequestLogRepository(d.Postgres)
	ingredientRepo := repository.NewIngredientRepository(d.Postgres)

	apiKeyService := service.NewAPIKeyService(apiKeyRepo, quotaRepo, d.Redis)
	authService := service.NewAuthService(adminRepo, d.Config.Auth.JWTSecret, d.Config.Auth.JWTExpiryHours)
	analyticsService := service.NewAnalyticsService(logRepo)
	nutritionService := service.NewNutritionService(
		d.Analyzer,
		d.Generator,
		circuitbreaker.New(circuitbreaker.Config{}),
	)

	resolver := quota.NewResolver(quotaRepo, d.Profiles, d.Logger)
	gate := quota.NewGate(quotaRepo, quota.NewRedisWindow(d.Redis), d.Logger)

	logWriter := middleware.NewRequestLogWriter(logRepo, d.Logger, 1000)

	checker := healthcheck.NewChecker(healthcheck.Config{
		Dependencies: []healthcheck.Dependency{
			{Name: "postgres", Ping: d.Postgres.Ping},
			{Name: "redis", Ping: d.Redis.Ping},
		},
	}, d.Logger)

	s := &Server{
		router:           gin.New(),
		config:           d.Config,
		log:              d.Logger.With().Str("component", "server").Logger(),
		metrics:          metrics,
		redis:            d.Redis,
		postgres:         d.Postgres,
		checker:          checker,
		logWriter:        logWriter,
		apiKeyService:    apiKeyService,
		authService:      authService,
		nutritionService: nutritionService,
	}

	s.setupMiddleware()
	s.setupRoutes(resolver, gate, handlers{
		auth:        handler.NewAuthHandler(authService),
		apiKeys:     handler.NewAPIKeyHandler(apiKeyService),
		quotas:      handler.NewQuotaHandler(quotaRepo, d.Profiles),
		nutrition:   handler.NewNutritionHandler(nutritionService),
		ingredients: handler.NewIngredientHandler(ingredientRepo),
		analytics:   handler.NewAnalyticsHandler(analyticsService),
	})

	return s
}

type handlers struct {
	auth        *handler.AuthHandler
	apiKeys     *handler.APIKeyHandler
	quotas      *handler.QuotaHandler
	nutrition   *handler.NutritionHandler
	ingredients *handler.IngredientHandler
	analytics   *handler.AnalyticsHandler
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery(s.log))
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger(s.log, s.metrics))
	s.router.Use(middleware.CORS())
	s.router.Use(s.logWriter.Middleware())
}

func (s *Server) setupRoutes(resolver *quota.Resolver, gate *quota.Gate, h handlers) {
	s.router.GET("/health", s.healthCheck)
	s.router.GET(s.config.Observability.PrometheusPath, s.metrics.Handler())

	auth := s.router.Group("/auth")
	{
		auth.POST("/register", h.auth.Register)
		auth.POST("/login", h.auth.Login)
	}

	// Metered product surface: every route below passes the tier resolver
	// and the gate.
	v1 := s.router.Group("/v1")
	v1.Use(middleware.APIKeyValidator(s.apiKeyService))
	v1.Use(middleware.Identity())
	v1.Use(middleware.SubscriptionTier(resolver))
	v1.Use(middleware.RateLimiter(gate, s.metrics))
	{
		v1.POST("/analyze", middleware.RequireFeature("image_analysis"), h.nutrition.AnalyzePlate)
		v1.POST("/plans/workout", middleware.RequireFeature("workout_plans"), h.nutrition.GeneratePlan("workout"))
		v1.POST("/plans/meal", middleware.RequireFeature("meal_plans"), h.nutrition.GeneratePlan("meal"))
		v1.GET("/ingredients/search", h.ingredients.Search)
	}

	admin := s.router.Group("/admin")
	admin.Use(middleware.RequireAuth(s.authService))
	{
		admin.GET("/status", s.adminStatus)
		admin.POST("/keys", h.apiKeys.Create)
		admin.GET("/keys", h.apiKeys.List)
		admin.GET("/keys/:id", h.apiKeys.Get)
		admin.PUT("/keys/:id", h.apiKeys.Update)
		admin.DELETE("/keys/:id", h.apiKeys.Delete)
		admin.GET("/quotas/:identity", h.quotas.Get)
		admin.PUT("/quotas/:identity/tier", h.quotas.SetTier)
		admin.GET("/analytics", h.analytics.GetSummary)
		admin.GET("/analytics/timeseries", h.analytics.GetTimeSeries)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	statuses, allHealthy := s.checker.Snapshot()

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "mealforge-api",
		"timestamp": time.Now().Unix(),
		"checks":    statuses,
	})
}

func (s *Server) adminStatus(c *gin.Context) {
	ctx := c.Request.Context()
	keys, _ := s.apiKeyService.List(ctx)

	c.JSON(http.StatusOK, gin.H{
		"service":          "running",
		"api_keys":         len(keys),
		"analysis_breaker": s.nutritionService.BreakerSnapshot(),
		"uptime_seconds":   time.Since(startTime).Seconds(),
		"timestamp":        time.Now().Unix(),
	})
}

func (s *Server) Run(addr string) error {
	s.checker.Start()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout(),
		WriteTimeout: s.config.Server.WriteTimeout(),
		IdleTimeout:  s.config.Server.IdleTimeout(),
	}

	s.log.Info().
		Str("addr", addr).
		Str("environment", s.config.Server.Environment).
		Msg("starting server")

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.checker.Stop()
	s.logWriter.Close()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

var startTime = time.Now()
