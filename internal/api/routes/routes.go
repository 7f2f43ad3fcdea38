package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/folio-service/folio_service/internal/api/handlers"
	"github.com/folio-service/folio_service/internal/api/middleware"
	"github.com/folio-service/folio_service/internal/infrastructure/di"
)

// SetupRoutes configures all application routes
func SetupRoutes(container *di.Container) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(middleware.Logger(container.Logger))
	router.Use(middleware.Recovery(container.Logger))
	router.Use(middleware.CORS(container.Config.Server.AllowedOrigins))

	healthHandlers := handlers.NewHealthHandlers()
	portfolioHandlers := handlers.NewPortfolioHandlers(
		container.PortfolioService,
		container.TradeRepo,
		container.SyncWorker,
		container.Logger.Zap(),
	)

	router.GET("/", healthHandlers.Health)
	router.GET("/health", healthHandlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/portfolio", portfolioHandlers.Positions)
		api.GET("/portfolio/trades", portfolioHandlers.Trades)
		api.GET("/portfolio/history", portfolioHandlers.History)
		api.POST("/portfolio/sync", portfolioHandlers.Sync)
	}

	return router
}
