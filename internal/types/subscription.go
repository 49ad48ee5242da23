package types

import (
	"time"

	ierr "github.com/forgia-ai/bank-convert-billing/internal/errors"
	"github.com/samber/lo"
)

// SubscriptionStatus is the status of a subscription
// Taken from Stripe's subscription statuses
// https://stripe.com/docs/api/subscriptions/object#subscription_object-status
type SubscriptionStatus string

const (
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusCancelled         SubscriptionStatus = "cancelled"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) Validate() error {
	allowed := []SubscriptionStatus{
		SubscriptionStatusActive,
		SubscriptionStatusCancelled,
		SubscriptionStatusIncomplete,
		SubscriptionStatusIncompleteExpired,
		SubscriptionStatusPastDue,
		SubscriptionStatusTrialing,
		SubscriptionStatusUnpaid,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid subscription status").
			WithHint("Invalid subscription status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PaymentProvider identifies the external payment provider a subscription
// is reconciled from. Exactly one provider is the source of truth for a
// subscription's entire lifetime.
type PaymentProvider string

const (
	PaymentProviderStripe PaymentProvider = "stripe"
	PaymentProviderPolar  PaymentProvider = "polar"
)

func (p PaymentProvider) String() string {
	return string(p)
}

func (p PaymentProvider) Validate() error {
	allowed := []PaymentProvider{
		PaymentProviderStripe,
		PaymentProviderPolar,
	}
	if !lo.Contains(allowed, p) {
		return ierr.NewError("invalid payment provider").
			WithHint("Invalid payment provider").
			WithReportableDetails(map[string]any{
				"provider":          p,
				"allowed_providers": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SubscriptionEventType is the closed set of normalized event classes the
// reconciler understands. Provider webhook handlers translate their own
// event taxonomies into these before any state is touched.
type SubscriptionEventType string

const (
	// SubscriptionEventCheckoutCompleted is the first-ever activation of a
	// subscription (checkout session completed / order created)
	SubscriptionEventCheckoutCompleted SubscriptionEventType = "checkout_completed"
	// SubscriptionEventUpdated covers renewals, plan changes and provider
	// house-keeping updates
	SubscriptionEventUpdated SubscriptionEventType = "updated"
	// SubscriptionEventCancelled covers both pending (access until period
	// end) and final cancellations
	SubscriptionEventCancelled SubscriptionEventType = "cancelled"
	// SubscriptionEventUncancelled reverts a pending cancellation
	SubscriptionEventUncancelled SubscriptionEventType = "uncancelled"
)

func (t SubscriptionEventType) String() string {
	return string(t)
}

// SubscriptionEvent is the provider-neutral representation of an inbound
// payment provider webhook. Deliveries are at-least-once and unordered
// across event types, so everything downstream must be idempotent.
type SubscriptionEvent struct {
	ID       string                `json:"id"`
	Type     SubscriptionEventType `json:"type"`
	Provider PaymentProvider       `json:"provider"`

	// UserID is our internal user identifier round-tripped through provider
	// metadata. Empty means the event cannot be attributed and must be dropped.
	UserID string `json:"user_id"`

	ProviderCustomerID     string `json:"provider_customer_id"`
	ProviderSubscriptionID string `json:"provider_subscription_id,omitempty"`

	// ProductID is the provider-side product/price identifier, resolved to a
	// plan tier through the plan registry
	ProductID string `json:"product_id,omitempty"`

	Status             SubscriptionStatus `json:"status,omitempty"`
	CurrentPeriodStart *time.Time         `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time         `json:"current_period_end,omitempty"`
	CancelledAt        *time.Time         `json:"cancelled_at,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}
