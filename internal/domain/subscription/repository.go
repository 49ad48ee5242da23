package subscription

import (
	"context"

	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

type Repository interface {
	// Upsert creates or replaces the subscription keyed by
	// (provider, provider_customer_id). Replaying the same state is a no-op,
	// which is what makes webhook redelivery safe.
	Upsert(ctx context.Context, subscription *Subscription) error

	// GetByUserID returns the authoritative subscription for a user, or
	// ErrNotFound when the user never subscribed
	GetByUserID(ctx context.Context, userID string) (*Subscription, error)

	// GetByProviderCustomer looks up by the natural key
	GetByProviderCustomer(ctx context.Context, provider types.PaymentProvider, customerID string) (*Subscription, error)

	// GetByProviderSubscription looks up by the provider's subscription id
	GetByProviderSubscription(ctx context.Context, provider types.PaymentProvider, subscriptionID string) (*Subscription, error)
}
