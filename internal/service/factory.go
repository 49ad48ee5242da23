package service

import (
	"github.com/forgia-ai/bank-convert-billing/internal/cache"
	"github.com/forgia-ai/bank-convert-billing/internal/config"
	"github.com/forgia-ai/bank-convert-billing/internal/domain/subscription"
	"github.com/forgia-ai/bank-convert-billing/internal/domain/usage"
	"github.com/forgia-ai/bank-convert-billing/internal/logger"
	"github.com/forgia-ai/bank-convert-billing/internal/plan"
)

// ServiceParams bundles the dependencies shared by all services
type ServiceParams struct {
	Logger   *logger.Logger
	Config   *config.Configuration
	Registry *plan.Registry
	Cache    cache.Cache

	// Repositories
	SubRepo   subscription.Repository
	UsageRepo usage.Repository
}

func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	registry *plan.Registry,
	cache cache.Cache,
	subRepo subscription.Repository,
	usageRepo usage.Repository,
) ServiceParams {
	return ServiceParams{
		Logger:    logger,
		Config:    config,
		Registry:  registry,
		Cache:     cache,
		SubRepo:   subRepo,
		UsageRepo: usageRepo,
	}
}
