package webhook

import (
	"encoding/json"
	"time"

	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	ierr "github.com/forgia-ai/bank-convert-billing/internal/errors"
	"github.com/forgia-ai/bank-convert-billing/internal/logger"
	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

// Stripe event types this subsystem reacts to
const (
	eventCheckoutSessionCompleted = "checkout.session.completed"
	eventSubscriptionUpdated      = "customer.subscription.updated"
	eventSubscriptionDeleted      = "customer.subscription.deleted"
)

// metadata keys round-tripped through checkout session creation
const (
	metadataUserID    = "user_id"
	metadataProductID = "product_id"
)

// Handler verifies and normalizes Stripe webhook events into the internal
// SubscriptionEvent variant set
type Handler struct {
	logger *logger.Logger
}

func NewHandler(logger *logger.Logger) *Handler {
	return &Handler{logger: logger}
}

// ParseEvent verifies the Stripe signature and parses the event envelope.
// Nothing is parsed before the signature checks out.
func (h *Handler) ParseEvent(payload []byte, signature string, secret string) (*stripeapi.Event, error) {
	options := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, options)
	if err != nil {
		h.logger.Errorw("stripe webhook verification failed", "error", err)
		return nil, ierr.NewError("failed to verify webhook signature").
			WithHint("Invalid webhook signature or payload").
			Mark(ierr.ErrValidation)
	}
	return &event, nil
}

// NormalizeEvent translates a verified Stripe event into the internal
// variant set. A nil result with no error means the event type is not ours.
func (h *Handler) NormalizeEvent(event *stripeapi.Event) (*types.SubscriptionEvent, error) {
	switch string(event.Type) {
	case eventCheckoutSessionCompleted:
		return h.normalizeCheckoutCompleted(event)
	case eventSubscriptionUpdated:
		return h.normalizeSubscriptionUpdated(event)
	case eventSubscriptionDeleted:
		return h.normalizeSubscriptionDeleted(event)
	default:
		h.logger.Debugw("ignoring stripe event type", "type", event.Type)
		return nil, nil
	}
}

func (h *Handler) normalizeCheckoutCompleted(event *stripeapi.Event) (*types.SubscriptionEvent, error) {
	var session stripeapi.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid checkout session data in webhook").
			Mark(ierr.ErrInconsistentPayload)
	}

	if session.Mode != stripeapi.CheckoutSessionModeSubscription {
		h.logger.Debugw("ignoring non-subscription checkout session", "session_id", session.ID)
		return nil, nil
	}

	userID := session.Metadata[metadataUserID]
	if userID == "" {
		userID = session.ClientReferenceID
	}

	normalized := &types.SubscriptionEvent{
		ID:         event.ID,
		Type:       types.SubscriptionEventCheckoutCompleted,
		Provider:   types.PaymentProviderStripe,
		UserID:     userID,
		ProductID:  session.Metadata[metadataProductID],
		Status:     types.SubscriptionStatusActive,
		OccurredAt: time.Unix(event.Created, 0).UTC(),
	}
	if session.Customer != nil {
		normalized.ProviderCustomerID = session.Customer.ID
	}
	if session.Subscription != nil {
		normalized.ProviderSubscriptionID = session.Subscription.ID
	}

	return normalized, nil
}

func (h *Handler) normalizeSubscriptionUpdated(event *stripeapi.Event) (*types.SubscriptionEvent, error) {
	sub, err := h.parseSubscription(event)
	if err != nil {
		return nil, err
	}

	normalized := h.baseSubscriptionEvent(event, sub)

	switch {
	case wasUncancelled(event, sub):
		normalized.Type = types.SubscriptionEventUncancelled
		// The provider explicitly un-set the cancellation
		normalized.CancelledAt = nil
	case sub.CancelAtPeriodEnd:
		normalized.Type = types.SubscriptionEventCancelled
		if sub.CanceledAt > 0 {
			cancelledAt := time.Unix(sub.CanceledAt, 0).UTC()
			normalized.CancelledAt = &cancelledAt
		}
	default:
		normalized.Type = types.SubscriptionEventUpdated
	}

	return normalized, nil
}

func (h *Handler) normalizeSubscriptionDeleted(event *stripeapi.Event) (*types.SubscriptionEvent, error) {
	sub, err := h.parseSubscription(event)
	if err != nil {
		return nil, err
	}

	normalized := h.baseSubscriptionEvent(event, sub)
	normalized.Type = types.SubscriptionEventCancelled
	normalized.Status = types.SubscriptionStatusCancelled

	cancelledAt := time.Unix(event.Created, 0).UTC()
	if sub.CanceledAt > 0 {
		cancelledAt = time.Unix(sub.CanceledAt, 0).UTC()
	}
	normalized.CancelledAt = &cancelledAt

	return normalized, nil
}

func (h *Handler) parseSubscription(event *stripeapi.Event) (*stripeapi.Subscription, error) {
	var sub stripeapi.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid subscription data in webhook").
			Mark(ierr.ErrInconsistentPayload)
	}
	return &sub, nil
}

func (h *Handler) baseSubscriptionEvent(event *stripeapi.Event, sub *stripeapi.Subscription) *types.SubscriptionEvent {
	normalized := &types.SubscriptionEvent{
		ID:                     event.ID,
		Provider:               types.PaymentProviderStripe,
		UserID:                 sub.Metadata[metadataUserID],
		ProviderSubscriptionID: sub.ID,
		Status:                 mapStatus(sub.Status),
		OccurredAt:             time.Unix(event.Created, 0).UTC(),
	}
	if sub.Customer != nil {
		normalized.ProviderCustomerID = sub.Customer.ID
	}

	// Price identifier and period bounds live on the subscription item
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			normalized.ProductID = item.Price.ID
		}
		if item.CurrentPeriodStart > 0 {
			start := time.Unix(item.CurrentPeriodStart, 0).UTC()
			normalized.CurrentPeriodStart = &start
		}
		if item.CurrentPeriodEnd > 0 {
			end := time.Unix(item.CurrentPeriodEnd, 0).UTC()
			normalized.CurrentPeriodEnd = &end
		}
	}

	return normalized
}

// wasUncancelled detects the provider explicitly flipping
// cancel_at_period_end back to false
func wasUncancelled(event *stripeapi.Event, sub *stripeapi.Subscription) bool {
	if sub.CancelAtPeriodEnd {
		return false
	}
	prev, ok := event.Data.PreviousAttributes["cancel_at_period_end"]
	if !ok {
		return false
	}
	prevBool, ok := prev.(bool)
	return ok && prevBool
}

func mapStatus(status stripeapi.SubscriptionStatus) types.SubscriptionStatus {
	switch status {
	case stripeapi.SubscriptionStatusActive:
		return types.SubscriptionStatusActive
	case stripeapi.SubscriptionStatusCanceled:
		return types.SubscriptionStatusCancelled
	case stripeapi.SubscriptionStatusIncomplete:
		return types.SubscriptionStatusIncomplete
	case stripeapi.SubscriptionStatusIncompleteExpired:
		return types.SubscriptionStatusIncompleteExpired
	case stripeapi.SubscriptionStatusPastDue:
		return types.SubscriptionStatusPastDue
	case stripeapi.SubscriptionStatusTrialing:
		return types.SubscriptionStatusTrialing
	case stripeapi.SubscriptionStatusUnpaid:
		return types.SubscriptionStatusUnpaid
	default:
		return types.SubscriptionStatusActive
	}
}
