package dto

import (
	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

// CreateCheckoutRequest starts a provider checkout for a paid plan tier.
// The internal user id is attached as opaque metadata on every created
// object so it round-trips back on the webhook.
type CreateCheckoutRequest struct {
	Provider types.PaymentProvider `json:"provider" validate:"required"`
	PlanTier types.PlanTier        `json:"plan_tier" validate:"required"`
}

func (r *CreateCheckoutRequest) Validate() error {
	if err := r.Provider.Validate(); err != nil {
		return err
	}
	return r.PlanTier.Validate()
}

// CheckoutResponse carries the provider-hosted checkout URL
type CheckoutResponse struct {
	Provider    types.PaymentProvider `json:"provider"`
	SessionID   string                `json:"session_id"`
	CheckoutURL string                `json:"checkout_url"`
}
