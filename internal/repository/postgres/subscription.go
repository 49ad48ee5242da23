package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/forgia-ai/bank-convert-billing/internal/domain/subscription"
	ierr "github.com/forgia-ai/bank-convert-billing/internal/errors"
	"github.com/forgia-ai/bank-convert-billing/internal/logger"
	"github.com/forgia-ai/bank-convert-billing/internal/postgres"
	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

type subscriptionRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return &subscriptionRepository{db: db, logger: logger}
}

// Upsert writes the full subscription state keyed by the natural key.
// Replaying the same webhook lands on the same row with the same values.
func (r *subscriptionRepository) Upsert(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id,
			user_id,
			provider,
			provider_customer_id,
			provider_subscription_id,
			plan_tier,
			subscription_status,
			start_date,
			current_period_start,
			current_period_end,
			cancelled_at,
			status,
			created_at,
			updated_at
		) VALUES (
			:id,
			:user_id,
			:provider,
			:provider_customer_id,
			:provider_subscription_id,
			:plan_tier,
			:subscription_status,
			:start_date,
			:current_period_start,
			:current_period_end,
			:cancelled_at,
			:status,
			:created_at,
			:updated_at
		)
		ON CONFLICT (provider, provider_customer_id) DO UPDATE SET
			user_id                  = EXCLUDED.user_id,
			provider_subscription_id = EXCLUDED.provider_subscription_id,
			plan_tier                = EXCLUDED.plan_tier,
			subscription_status      = EXCLUDED.subscription_status,
			current_period_start     = EXCLUDED.current_period_start,
			current_period_end       = EXCLUDED.current_period_end,
			cancelled_at             = EXCLUDED.cancelled_at,
			updated_at               = EXCLUDED.updated_at
	`

	_, err := r.db.NamedExecContext(ctx, query, sub)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to upsert subscription").
			WithReportableDetails(map[string]any{
				"provider":    sub.Provider,
				"customer_id": sub.ProviderCustomerID,
			}).
			Mark(ierr.ErrDatabase)
	}

	return nil
}

func (r *subscriptionRepository) GetByUserID(ctx context.Context, userID string) (*subscription.Subscription, error) {
	query := `
		SELECT * FROM subscriptions
		WHERE user_id = $1 AND status = $2
		ORDER BY updated_at DESC
		LIMIT 1
	`

	var sub subscription.Subscription
	err := r.db.GetQuerier(ctx).GetContext(ctx, &sub, query, userID, types.StatusPublished)
	if err != nil {
		return nil, r.wrapGetErr(err, "user_id", userID)
	}

	return &sub, nil
}

func (r *subscriptionRepository) GetByProviderCustomer(ctx context.Context, provider types.PaymentProvider, customerID string) (*subscription.Subscription, error) {
	query := `
		SELECT * FROM subscriptions
		WHERE provider = $1 AND provider_customer_id = $2
	`

	var sub subscription.Subscription
	err := r.db.GetQuerier(ctx).GetContext(ctx, &sub, query, provider, customerID)
	if err != nil {
		return nil, r.wrapGetErr(err, "provider_customer_id", customerID)
	}

	return &sub, nil
}

func (r *subscriptionRepository) GetByProviderSubscription(ctx context.Context, provider types.PaymentProvider, subscriptionID string) (*subscription.Subscription, error) {
	query := `
		SELECT * FROM subscriptions
		WHERE provider = $1 AND provider_subscription_id = $2
	`

	var sub subscription.Subscription
	err := r.db.GetQuerier(ctx).GetContext(ctx, &sub, query, provider, subscriptionID)
	if err != nil {
		return nil, r.wrapGetErr(err, "provider_subscription_id", subscriptionID)
	}

	return &sub, nil
}

func (r *subscriptionRepository) wrapGetErr(err error, key, value string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ierr.NewError("subscription not found").
			WithHint("No subscription exists for the given identifier").
			WithReportableDetails(map[string]any{key: value}).
			Mark(ierr.ErrNotFound)
	}
	return ierr.WithError(err).
		WithHint("Failed to fetch subscription").
		Mark(ierr.ErrDatabase)
}
