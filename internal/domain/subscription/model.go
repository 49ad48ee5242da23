package subscription

import (
	"time"

	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

// Subscription is the single canonical subscription record per user,
// reconciled from payment provider webhooks. The reconciler is the only
// writer; everything else reads the plan tier off it.
type Subscription struct {
	// ID is the unique identifier for the subscription
	ID string `db:"id" json:"id"`

	// UserID is our internal user identifier (opaque, from the auth provider)
	UserID string `db:"user_id" json:"user_id"`

	// Provider is the payment provider this subscription is reconciled from.
	// A subscription never switches provider during its lifetime.
	Provider types.PaymentProvider `db:"provider" json:"provider"`

	// ProviderCustomerID is the customer identifier on the provider side.
	// (provider, provider_customer_id) is the natural upsert key.
	ProviderCustomerID string `db:"provider_customer_id" json:"provider_customer_id"`

	// ProviderSubscriptionID is absent until the provider's first
	// subscription-level event arrives
	ProviderSubscriptionID *string `db:"provider_subscription_id" json:"provider_subscription_id"`

	// PlanTier is the plan currently in force
	PlanTier types.PlanTier `db:"plan_tier" json:"plan_tier"`

	// SubscriptionStatus is the provider-reported lifecycle status
	SubscriptionStatus types.SubscriptionStatus `db:"subscription_status" json:"subscription_status"`

	// StartDate anchors every billing window computation
	StartDate time.Time `db:"start_date" json:"start_date"`

	// CurrentPeriodStart / CurrentPeriodEnd mirror the provider's view of
	// the paid period; nullable until the provider supplies them
	CurrentPeriodStart *time.Time `db:"current_period_start" json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `db:"current_period_end" json:"current_period_end"`

	// CancelledAt is set while a cancellation is pending (access retained
	// until the period end) and on final cancellation
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelled_at"`

	types.BaseModel
}

// IsCancelPending reports whether the subscription is cancelled but the paid
// period has not run out yet, so access is retained.
func (s *Subscription) IsCancelPending(now time.Time) bool {
	return s.CancelledAt != nil &&
		s.CurrentPeriodEnd != nil &&
		s.CurrentPeriodEnd.After(now)
}

// HasAccess reports whether the user is currently entitled to the paid tier.
func (s *Subscription) HasAccess(now time.Time) bool {
	switch s.SubscriptionStatus {
	case types.SubscriptionStatusActive, types.SubscriptionStatusTrialing:
		return true
	case types.SubscriptionStatusCancelled:
		return s.IsCancelPending(now)
	default:
		return false
	}
}
