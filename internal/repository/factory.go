package repository

import (
	"github.com/forgia-ai/bank-convert-billing/internal/domain/subscription"
	"github.com/forgia-ai/bank-convert-billing/internal/domain/usage"
	"github.com/forgia-ai/bank-convert-billing/internal/logger"
	"github.com/forgia-ai/bank-convert-billing/internal/postgres"
	pgRepo "github.com/forgia-ai/bank-convert-billing/internal/repository/postgres"
)

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return pgRepo.NewSubscriptionRepository(db, logger)
}

func NewUsageRepository(db *postgres.DB, logger *logger.Logger) usage.Repository {
	return pgRepo.NewUsageRepository(db, logger)
}
