package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yacqub6996/Apex-v2-sub000/internal/api/handlers"
	"github.com/yacqub6996/Apex-v2-sub000/internal/api/middleware"
	"github.com/yacqub6996/Apex-v2-sub000/internal/infrastructure/cache"
	"github.com/yacqub6996/Apex-v2-sub000/internal/infrastructure/config"
	"github.com/yacqub6996/Apex-v2-sub000/internal/infrastructure/database"
	"github.com/yacqub6996/Apex-v2-sub000/pkg/metrics"
	"github.com/yacqub6996/Apex-v2-sub000/pkg/ratelimit"
)

// Dependencies carries everything the router needs
type Dependencies struct {
	Config      *config.Config
	Logger      *zap.Logger
	DB          *sqlx.DB
	Redis       cache.RedisClient
	RateLimiter *ratelimit.RedisLimiter

	Ledger       *handlers.LedgerHandler
	CopyTrading  *handlers.CopyTradingHandler
	Investments  *handlers.InvestmentHandler
	Withdrawals  *handlers.WithdrawalHandler
	Admin        *handlers.AdminHandler
}

// Setup builds the gin engine with all routes and middleware
func Setup(deps *Dependencies) *gin.Engine {
	if deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(deps.Config.Server.AllowedOrigins))
	router.Use(middleware.RequestSizeLimit())
	router.Use(metrics.GinMiddleware())

	router.GET("/health", healthCheck(deps))
	router.GET("/metrics", metrics.Handler())

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Authentication(&deps.Config.JWT))
	if deps.RateLimiter != nil {
		v1.Use(middleware.RateLimit(deps.RateLimiter))
	}

	ledger := v1.Group("/ledger")
	{
		ledger.GET("", deps.Ledger.Snapshot)
		ledger.GET("/lines", deps.Ledger.Lines)
		ledger.GET("/settlements", deps.Ledger.Settlements)
	}

	copyGroup := v1.Group("/copy")
	{
		copyGroup.GET("/traders", deps.CopyTrading.ListTraders)
		copyGroup.GET("/relationships", deps.CopyTrading.ListRelationships)
		copyGroup.POST("/relationships", deps.CopyTrading.Start)
		copyGroup.POST("/relationships/:id/pause", deps.CopyTrading.Pause)
		copyGroup.POST("/relationships/:id/resume", deps.CopyTrading.Resume)
		copyGroup.POST("/relationships/:id/stop", deps.CopyTrading.Stop)
		copyGroup.POST("/relationships/:id/reduce", deps.CopyTrading.Reduce)
	}

	plans := v1.Group("/plans")
	{
		plans.GET("", deps.Investments.ListPlans)
		plans.GET("/:id/capacity", deps.Investments.PlanCapacity)
	}

	investments := v1.Group("/investments")
	{
		investments.GET("", deps.Investments.ListInvestments)
		investments.POST("", deps.Investments.Subscribe)
		investments.POST("/:id/equity", deps.Investments.IncreaseEquity)
		investments.POST("/:id/withdrawals", middleware.RequireKYC(), deps.Investments.RequestWithdrawal)
	}

	withdrawals := v1.Group("/withdrawals")
	{
		withdrawals.POST("", middleware.RequireKYC(), deps.Withdrawals.Request)
		withdrawals.GET("", deps.Withdrawals.List)
		withdrawals.POST("/:id/cancel", deps.Withdrawals.Cancel)
	}

	admin := v1.Group("/admin")
	admin.Use(middleware.AdminOnly())
	{
		admin.POST("/profit-events", deps.Admin.Distribute)
		admin.GET("/withdrawals", deps.Admin.ListPendingWithdrawals)
		admin.POST("/withdrawals/:id/approve", deps.Admin.ApproveWithdrawal)
		admin.POST("/withdrawals/:id/reject", deps.Admin.RejectWithdrawal)
		admin.POST("/investments/mature-due", deps.Admin.MatureDue)
		admin.POST("/investments/:id/mature", deps.Admin.MatureInvestment)
		admin.POST("/traders", deps.Admin.CreateTrader)
		admin.POST("/plans", deps.Admin.CreatePlan)
		admin.POST("/accounts/:user_id", deps.Admin.CreateAccount)
		admin.POST("/accounts/:user_id/deposit", deps.Admin.Deposit)
		admin.GET("/accounts/:user_id/conservation", deps.Admin.VerifyConservation)
	}

	return router
}

func healthCheck(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}
		healthy := true

		if err := database.HealthCheck(deps.DB); err != nil {
			checks["database"] = "unreachable"
			healthy = false
		} else {
			checks["database"] = "ok"
		}

		if deps.Redis != nil {
			if err := deps.Redis.Ping(c.Request.Context()); err != nil {
				checks["redis"] = "unreachable"
				healthy = false
			} else {
				checks["redis"] = "ok"
			}
		}

		status := http.StatusOK
		label := "healthy"
		if !healthy {
			status = http.StatusServiceUnavailable
			label = "degraded"
		}
		c.JSON(status, gin.H{
			"status":    label,
			"checks":    checks,
			"timestamp": time.Now().UTC(),
		})
	}
}
