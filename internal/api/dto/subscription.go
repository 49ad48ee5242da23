package dto

import (
	"time"

	"github.com/forgia-ai/bank-convert-billing/internal/domain/subscription"
	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

// SubscriptionResponse is the client-facing view of the canonical
// subscription state. The client may mutate its copy optimistically but must
// reconcile against the next authoritative read.
type SubscriptionResponse struct {
	UserID   string                   `json:"user_id"`
	PlanTier types.PlanTier           `json:"plan_tier"`
	Status   types.SubscriptionStatus `json:"status"`

	Provider types.PaymentProvider `json:"provider,omitempty"`

	// CancelAtPeriodEnd is true while a cancellation is pending; the plan
	// tier and quota stay in force until AccessUntil
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	AccessUntil       *time.Time `json:"access_until,omitempty"`

	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`

	PageLimit int `json:"page_limit"`
}

// NewFreeSubscriptionResponse is the synthesized state for a user with no
// subscription record
func NewFreeSubscriptionResponse(userID string, pageLimit int) *SubscriptionResponse {
	return &SubscriptionResponse{
		UserID:    userID,
		PlanTier:  types.PlanTierFree,
		Status:    types.SubscriptionStatusActive,
		PageLimit: pageLimit,
	}
}

// NewSubscriptionResponse maps the domain record to its API shape
func NewSubscriptionResponse(sub *subscription.Subscription, pageLimit int, now time.Time) *SubscriptionResponse {
	resp := &SubscriptionResponse{
		UserID:             sub.UserID,
		PlanTier:           sub.PlanTier,
		Status:             sub.SubscriptionStatus,
		Provider:           sub.Provider,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelledAt:        sub.CancelledAt,
		PageLimit:          pageLimit,
	}

	if sub.IsCancelPending(now) {
		resp.CancelAtPeriodEnd = true
		resp.AccessUntil = sub.CurrentPeriodEnd
	}

	return resp
}
