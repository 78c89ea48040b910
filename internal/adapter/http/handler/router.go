package handler

import (
	"association-treasury/internal/adapter/http/middleware"
	redisStore "association-treasury/internal/adapter/storage/redis"
	"association-treasury/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AccountSvc     ports.AccountService
	DepositSvc     ports.DepositService
	WithdrawalSvc  ports.WithdrawalService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.TokenSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/session", rl("auth_session"), authHandler.CreateSession)
	}

	accountHandler := NewAccountHandler(deps.AccountSvc)
	accounts := v1.Group("/accounts")
	{
		accounts.POST("", rl("accounts_create"), accountHandler.Create)
		accounts.GET("", rl("accounts_read"), accountHandler.List)
		accounts.GET("/:id", rl("accounts_read"), accountHandler.Get)
	}

	// --- JWT-authenticated routes (member and executive API) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	depositHandler := NewDepositHandler(deps.DepositSvc)

	member := v1.Group("/accounts/:id", jwtAuth)
	{
		member.POST("/summary", rl("accounts_read"), accountHandler.Summary)
		member.POST("/deposits", rl("deposits"), depositHandler.Deposit)
		member.POST("/deposits/me", rl("deposits"), depositHandler.DepositedBy)
	}

	withdrawalHandler := NewWithdrawalHandler(deps.WithdrawalSvc)
	withdrawals := v1.Group("/accounts/:id/withdrawals", jwtAuth)
	{
		withdrawals.POST("", rl("withdrawals"), withdrawalHandler.Initiate)
		withdrawals.GET("/:order_no", rl("accounts_read"), withdrawalHandler.Status)
		withdrawals.POST("/:order_no/approve", rl("withdrawals"), withdrawalHandler.Approve)
		withdrawals.POST("/:order_no/revert", rl("withdrawals"), withdrawalHandler.Revert)
		withdrawals.POST("/:order_no/execute", rl("withdrawals"), withdrawalHandler.Execute)
	}

	return r
}
