package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/forgia-ai/bank-convert-billing/internal/api"
	v1 "github.com/forgia-ai/bank-convert-billing/internal/api/v1"
	"github.com/forgia-ai/bank-convert-billing/internal/cache"
	"github.com/forgia-ai/bank-convert-billing/internal/config"
	"github.com/forgia-ai/bank-convert-billing/internal/integration/polar"
	polarwebhook "github.com/forgia-ai/bank-convert-billing/internal/integration/polar/webhook"
	"github.com/forgia-ai/bank-convert-billing/internal/integration/stripe"
	stripewebhook "github.com/forgia-ai/bank-convert-billing/internal/integration/stripe/webhook"
	"github.com/forgia-ai/bank-convert-billing/internal/logger"
	"github.com/forgia-ai/bank-convert-billing/internal/plan"
	"github.com/forgia-ai/bank-convert-billing/internal/postgres"
	"github.com/forgia-ai/bank-convert-billing/internal/repository"
	"github.com/forgia-ai/bank-convert-billing/internal/service"
	"github.com/forgia-ai/bank-convert-billing/internal/validator"

	_ "github.com/forgia-ai/bank-convert-billing/docs/swagger"
)

// @title Bank Convert Billing API
// @version 1.0
// @description Subscription and usage reconciliation service
// @BasePath /v1
// @schemes http https

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	app := fx.New(
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Cache
			cache.NewInMemoryCache,

			// Postgres
			postgres.NewDB,

			// Plan catalog
			plan.NewRegistry,

			// Repositories
			repository.NewSubscriptionRepository,
			repository.NewUsageRepository,

			// Provider integrations
			stripe.NewClient,
			polar.NewClient,
			stripewebhook.NewHandler,
			polarwebhook.NewHandler,

			// Services
			service.NewServiceParams,
			service.NewSubscriptionService,
			service.NewUsageTrackingService,
			service.NewCheckoutService,
		),
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(startServer),
	)

	app.Run()
}

func provideHandlers(
	cfg *config.Configuration,
	logger *logger.Logger,
	stripeHandler *stripewebhook.Handler,
	polarHandler *polarwebhook.Handler,
	subscriptionService service.SubscriptionService,
	usageService service.UsageTrackingService,
	checkoutService service.CheckoutService,
) api.Handlers {
	return api.Handlers{
		Health:       v1.NewHealthHandler(logger),
		Webhook:      v1.NewWebhookHandler(cfg, logger, stripeHandler, polarHandler, subscriptionService),
		Usage:        v1.NewUsageHandler(usageService, logger),
		Subscription: v1.NewSubscriptionHandler(subscriptionService, checkoutService, logger),
	}
}

func provideRouter(handlers api.Handlers) *gin.Engine {
	return api.NewRouter(handlers)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infof("Starting API server on %s", cfg.Server.Address)
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return nil
		},
	})
}
