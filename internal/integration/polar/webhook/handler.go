package webhook

import (
	"encoding/json"
	"net/http"
	"time"

	svix "github.com/svix/svix-webhooks/go"

	ierr "github.com/forgia-ai/bank-convert-billing/internal/errors"
	"github.com/forgia-ai/bank-convert-billing/internal/logger"
	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

// Polar event types this subsystem reacts to. Polar signs deliveries per
// the Standard Webhooks spec, so svix does the verification.
const (
	eventOrderCreated           = "order.created"
	eventSubscriptionUpdated    = "subscription.updated"
	eventSubscriptionCancelled  = "subscription.canceled"
	eventSubscriptionUncanceled = "subscription.uncanceled"
	eventSubscriptionRevoked    = "subscription.revoked"
)

const metadataUserID = "user_id"

// Event is the outer Polar webhook envelope
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// orderPayload is the subset of a Polar order we consume
type orderPayload struct {
	ID             string            `json:"id"`
	CustomerID     string            `json:"customer_id"`
	ProductID      string            `json:"product_id"`
	SubscriptionID string            `json:"subscription_id"`
	BillingReason  string            `json:"billing_reason"`
	CreatedAt      time.Time         `json:"created_at"`
	Metadata       map[string]string `json:"metadata"`
}

// subscriptionPayload is the subset of a Polar subscription we consume
type subscriptionPayload struct {
	ID                 string            `json:"id"`
	Status             string            `json:"status"`
	CustomerID         string            `json:"customer_id"`
	ProductID          string            `json:"product_id"`
	CurrentPeriodStart *time.Time        `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time        `json:"current_period_end"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CanceledAt         *time.Time        `json:"canceled_at"`
	ModifiedAt         *time.Time        `json:"modified_at"`
	Metadata           map[string]string `json:"metadata"`
}

// Handler verifies and normalizes Polar webhook events into the internal
// SubscriptionEvent variant set
type Handler struct {
	logger *logger.Logger
}

func NewHandler(logger *logger.Logger) *Handler {
	return &Handler{logger: logger}
}

// ParseEvent verifies the Standard Webhooks signature headers and parses
// the Event. Nothing is parsed before the signature checks out.
func (h *Handler) ParseEvent(payload []byte, headers http.Header, secret string) (*Event, error) {
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Polar webhook secret is not configured correctly").
			Mark(ierr.ErrConfiguration)
	}
	if err := wh.Verify(payload, headers); err != nil {
		h.logger.Errorw("polar webhook verification failed", "error", err)
		return nil, ierr.NewError("failed to verify webhook signature").
			WithHint("Invalid webhook signature or payload").
			Mark(ierr.ErrValidation)
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid webhook payload").
			Mark(ierr.ErrInconsistentPayload)
	}
	return &event, nil
}

// NormalizeEvent translates a verified Polar event into the internal
// variant set. A nil result with no error means the event type is not ours.
func (h *Handler) NormalizeEvent(event *Event) (*types.SubscriptionEvent, error) {
	switch event.Type {
	case eventOrderCreated:
		return h.normalizeOrderCreated(event)
	case eventSubscriptionUpdated:
		return h.normalizeSubscriptionUpdated(event)
	case eventSubscriptionCancelled:
		return h.normalizeSubscriptionCancelled(event, false)
	case eventSubscriptionRevoked:
		return h.normalizeSubscriptionCancelled(event, true)
	case eventSubscriptionUncanceled:
		return h.normalizeSubscriptionUncancelled(event)
	default:
		h.logger.Debugw("ignoring polar event type", "type", event.Type)
		return nil, nil
	}
}

// normalizeOrderCreated maps the first order of a subscription to the
// checkout completed variant. Renewal orders are handled through
// subscription.updated instead.
func (h *Handler) normalizeOrderCreated(event *Event) (*types.SubscriptionEvent, error) {
	var order orderPayload
	if err := json.Unmarshal(event.Data, &order); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid order data in webhook").
			Mark(ierr.ErrInconsistentPayload)
	}

	if order.SubscriptionID == "" {
		h.logger.Debugw("ignoring non-subscription order", "order_id", order.ID)
		return nil, nil
	}
	if order.BillingReason != "" && order.BillingReason != "purchase" && order.BillingReason != "subscription_create" {
		h.logger.Debugw("ignoring renewal order", "order_id", order.ID, "billing_reason", order.BillingReason)
		return nil, nil
	}

	return &types.SubscriptionEvent{
		ID:                     order.ID,
		Type:                   types.SubscriptionEventCheckoutCompleted,
		Provider:               types.PaymentProviderPolar,
		UserID:                 order.Metadata[metadataUserID],
		ProviderCustomerID:     order.CustomerID,
		ProviderSubscriptionID: order.SubscriptionID,
		ProductID:              order.ProductID,
		Status:                 types.SubscriptionStatusActive,
		OccurredAt:             order.CreatedAt.UTC(),
	}, nil
}

func (h *Handler) normalizeSubscriptionUpdated(event *Event) (*types.SubscriptionEvent, error) {
	sub, err := h.parseSubscription(event)
	if err != nil {
		return nil, err
	}

	normalized := h.baseSubscriptionEvent(sub)
	if sub.CancelAtPeriodEnd {
		normalized.Type = types.SubscriptionEventCancelled
		if sub.CanceledAt != nil {
			cancelledAt := sub.CanceledAt.UTC()
			normalized.CancelledAt = &cancelledAt
		}
	} else {
		normalized.Type = types.SubscriptionEventUpdated
	}

	return normalized, nil
}

// normalizeSubscriptionCancelled handles both subscription.canceled, which
// Polar emits when cancellation is scheduled for period end, and
// subscription.revoked, which ends access immediately.
func (h *Handler) normalizeSubscriptionCancelled(event *Event, revoked bool) (*types.SubscriptionEvent, error) {
	sub, err := h.parseSubscription(event)
	if err != nil {
		return nil, err
	}

	normalized := h.baseSubscriptionEvent(sub)
	normalized.Type = types.SubscriptionEventCancelled

	cancelledAt := time.Now().UTC()
	if sub.CanceledAt != nil {
		cancelledAt = sub.CanceledAt.UTC()
	}
	normalized.CancelledAt = &cancelledAt

	if revoked {
		normalized.Status = types.SubscriptionStatusCancelled
	}

	return normalized, nil
}

func (h *Handler) normalizeSubscriptionUncancelled(event *Event) (*types.SubscriptionEvent, error) {
	sub, err := h.parseSubscription(event)
	if err != nil {
		return nil, err
	}

	normalized := h.baseSubscriptionEvent(sub)
	normalized.Type = types.SubscriptionEventUncancelled
	normalized.CancelledAt = nil

	return normalized, nil
}

func (h *Handler) parseSubscription(event *Event) (*subscriptionPayload, error) {
	var sub subscriptionPayload
	if err := json.Unmarshal(event.Data, &sub); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid subscription data in webhook").
			Mark(ierr.ErrInconsistentPayload)
	}
	return &sub, nil
}

func (h *Handler) baseSubscriptionEvent(sub *subscriptionPayload) *types.SubscriptionEvent {
	occurredAt := time.Now().UTC()
	if sub.ModifiedAt != nil {
		occurredAt = sub.ModifiedAt.UTC()
	}

	normalized := &types.SubscriptionEvent{
		ID:                     sub.ID,
		Provider:               types.PaymentProviderPolar,
		UserID:                 sub.Metadata[metadataUserID],
		ProviderCustomerID:     sub.CustomerID,
		ProviderSubscriptionID: sub.ID,
		ProductID:              sub.ProductID,
		Status:                 mapStatus(sub.Status),
		OccurredAt:             occurredAt,
	}
	if sub.CurrentPeriodStart != nil {
		start := sub.CurrentPeriodStart.UTC()
		normalized.CurrentPeriodStart = &start
	}
	if sub.CurrentPeriodEnd != nil {
		end := sub.CurrentPeriodEnd.UTC()
		normalized.CurrentPeriodEnd = &end
	}

	return normalized
}

func mapStatus(status string) types.SubscriptionStatus {
	switch status {
	case "active":
		return types.SubscriptionStatusActive
	case "canceled", "revoked":
		return types.SubscriptionStatusCancelled
	case "incomplete":
		return types.SubscriptionStatusIncomplete
	case "incomplete_expired":
		return types.SubscriptionStatusIncompleteExpired
	case "past_due":
		return types.SubscriptionStatusPastDue
	case "trialing":
		return types.SubscriptionStatusTrialing
	case "unpaid":
		return types.SubscriptionStatusUnpaid
	default:
		return types.SubscriptionStatusActive
	}
}
