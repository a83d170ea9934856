package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rehive/adapter-framework/internal/api_gateway/handler"
	"github.com/rehive/adapter-framework/internal/api_gateway/middleware"
	"github.com/rehive/adapter-framework/internal/api_gateway/service"
	"github.com/rehive/adapter-framework/internal/config"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	auth config.AuthConfig,
	authService service.AuthService,
	transactionHandler *handler.TransactionHandler,
	operatingHandler *handler.OperatingHandler,
	webhookHandler *handler.WebhookHandler,
) {
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())

	adminOnly := middleware.AdminAuth(auth.AdminSecret)
	userOnly := middleware.UserAuth(logger, authService)

	v1 := r.Group("/api/1")
	{
		v1.POST("/deposit/", userOnly, transactionHandler.Deposit)
		v1.POST("/withdraw/", userOnly, transactionHandler.Withdraw)
		v1.POST("/send/", adminOnly, transactionHandler.Send)

		v1.POST("/hooks/:webhook_type/", middleware.WebhookSecret(auth.WebhookSecret), webhookHandler.Receive)

		operating := v1.Group("/operating", adminOnly)
		{
			operating.GET("/account/", operatingHandler.AccountReference)
			operating.GET("/balance/", operatingHandler.Balance)
		}

		v1.GET("/user/account/", userOnly, operatingHandler.UserAccount)

		transactions := v1.Group("/transactions", adminOnly)
		{
			transactions.GET("/:id", transactionHandler.GetByID)
			transactions.GET("/:id/events", transactionHandler.GetEvents)
			transactions.POST("/:id/cancel/", transactionHandler.Cancel)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
