package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	v1 "github.com/forgia-ai/bank-convert-billing/internal/api/v1"
	"github.com/forgia-ai/bank-convert-billing/internal/rest/middleware"
)

type Handlers struct {
	Health       *v1.HealthHandler
	Webhook      *v1.WebhookHandler
	Usage        *v1.UsageHandler
	Subscription *v1.SubscriptionHandler
}

func NewRouter(handlers Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.ErrorHandler())

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", handlers.Health.Health)

	// v1 routes
	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	// Webhook routes authenticate by signature, not by user header
	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/stripe", handlers.Webhook.StripeWebhook)
		webhooks.POST("/polar", handlers.Webhook.PolarWebhook)
	}

	// User-facing routes expect the gateway-authenticated user header
	authed := router.Group("")
	authed.Use(middleware.UserContextMiddleware)
	{
		authed.GET("/usage/limit", handlers.Usage.CheckLimit)
		authed.POST("/usage", handlers.Usage.RecordUsage)
		authed.GET("/usage/history", handlers.Usage.GetUsageHistory)

		authed.GET("/subscription", handlers.Subscription.GetSubscription)
		authed.POST("/subscription/refresh", handlers.Subscription.RefreshSubscription)
		authed.POST("/checkout", handlers.Subscription.CreateCheckout)
	}
}
