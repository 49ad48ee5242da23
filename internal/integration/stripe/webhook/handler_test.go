package webhook

import (
	"encoding/json"
	"testing"
	"time"

	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgia-ai/bank-convert-billing/internal/logger"
	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

func testEvent(t *testing.T, eventType string, raw string, prev map[string]interface{}) *stripeapi.Event {
	t.Helper()
	return &stripeapi.Event{
		ID:      "evt_test",
		Type:    stripeapi.EventType(eventType),
		Created: time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC).Unix(),
		Data: &stripeapi.EventData{
			Raw:                json.RawMessage(raw),
			PreviousAttributes: prev,
		},
	}
}

const subscriptionJSON = `{
	"id": "sub_123",
	"customer": "cus_123",
	"status": "active",
	"cancel_at_period_end": false,
	"metadata": {"user_id": "user-1"},
	"items": {
		"data": [
			{
				"price": {"id": "price_pro"},
				"current_period_start": 1772928000,
				"current_period_end": 1775606400
			}
		]
	}
}`

func TestNormalizeCheckoutSessionCompleted(t *testing.T) {
	h := NewHandler(logger.L)

	event := testEvent(t, "checkout.session.completed", `{
		"id": "cs_123",
		"mode": "subscription",
		"customer": "cus_123",
		"subscription": "sub_123",
		"client_reference_id": "user-fallback",
		"metadata": {"user_id": "user-1", "product_id": "price_lite"}
	}`, nil)

	normalized, err := h.NormalizeEvent(event)
	require.NoError(t, err)
	require.NotNil(t, normalized)

	assert.Equal(t, types.SubscriptionEventCheckoutCompleted, normalized.Type)
	assert.Equal(t, types.PaymentProviderStripe, normalized.Provider)
	assert.Equal(t, "user-1", normalized.UserID)
	assert.Equal(t, "cus_123", normalized.ProviderCustomerID)
	assert.Equal(t, "sub_123", normalized.ProviderSubscriptionID)
	assert.Equal(t, "price_lite", normalized.ProductID)
}

func TestNormalizeCheckoutFallsBackToClientReferenceID(t *testing.T) {
	h := NewHandler(logger.L)

	event := testEvent(t, "checkout.session.completed", `{
		"id": "cs_123",
		"mode": "subscription",
		"customer": "cus_123",
		"client_reference_id": "user-2",
		"metadata": {"product_id": "price_lite"}
	}`, nil)

	normalized, err := h.NormalizeEvent(event)
	require.NoError(t, err)
	require.NotNil(t, normalized)
	assert.Equal(t, "user-2", normalized.UserID)
}

func TestNormalizeCheckoutIgnoresPaymentMode(t *testing.T) {
	h := NewHandler(logger.L)

	event := testEvent(t, "checkout.session.completed", `{
		"id": "cs_123",
		"mode": "payment"
	}`, nil)

	normalized, err := h.NormalizeEvent(event)
	require.NoError(t, err)
	assert.Nil(t, normalized)
}

func TestNormalizeSubscriptionUpdatedCarriesPeriodBounds(t *testing.T) {
	h := NewHandler(logger.L)

	event := testEvent(t, "customer.subscription.updated", subscriptionJSON, nil)

	normalized, err := h.NormalizeEvent(event)
	require.NoError(t, err)
	require.NotNil(t, normalized)

	assert.Equal(t, types.SubscriptionEventUpdated, normalized.Type)
	assert.Equal(t, "price_pro", normalized.ProductID)
	assert.Equal(t, types.SubscriptionStatusActive, normalized.Status)
	require.NotNil(t, normalized.CurrentPeriodStart)
	assert.Equal(t, time.Unix(1772928000, 0).UTC(), normalized.CurrentPeriodStart.UTC())
	require.NotNil(t, normalized.CurrentPeriodEnd)
	assert.Equal(t, time.Unix(1775606400, 0).UTC(), normalized.CurrentPeriodEnd.UTC())
}

func TestNormalizeSubscriptionUpdatedWithPendingCancellation(t *testing.T) {
	h := NewHandler(logger.L)

	event := testEvent(t, "customer.subscription.updated", `{
		"id": "sub_123",
		"customer": "cus_123",
		"status": "active",
		"cancel_at_period_end": true,
		"canceled_at": 1773014400,
		"items": {"data": [{"price": {"id": "price_pro"}}]}
	}`, nil)

	normalized, err := h.NormalizeEvent(event)
	require.NoError(t, err)
	require.NotNil(t, normalized)

	assert.Equal(t, types.SubscriptionEventCancelled, normalized.Type)
	require.NotNil(t, normalized.CancelledAt)
	assert.Equal(t, time.Unix(1773014400, 0).UTC(), normalized.CancelledAt.UTC())
}

func TestNormalizeSubscriptionUpdatedDetectsUncancel(t *testing.T) {
	h := NewHandler(logger.L)

	event := testEvent(t, "customer.subscription.updated", subscriptionJSON,
		map[string]interface{}{"cancel_at_period_end": true})

	normalized, err := h.NormalizeEvent(event)
	require.NoError(t, err)
	require.NotNil(t, normalized)

	assert.Equal(t, types.SubscriptionEventUncancelled, normalized.Type)
	assert.Nil(t, normalized.CancelledAt)
}

func TestNormalizeSubscriptionDeleted(t *testing.T) {
	h := NewHandler(logger.L)

	event := testEvent(t, "customer.subscription.deleted", `{
		"id": "sub_123",
		"customer": "cus_123",
		"status": "canceled",
		"canceled_at": 1773014400,
		"items": {"data": [{"price": {"id": "price_pro"}}]}
	}`, nil)

	normalized, err := h.NormalizeEvent(event)
	require.NoError(t, err)
	require.NotNil(t, normalized)

	assert.Equal(t, types.SubscriptionEventCancelled, normalized.Type)
	assert.Equal(t, types.SubscriptionStatusCancelled, normalized.Status)
	require.NotNil(t, normalized.CancelledAt)
}

func TestNormalizeIgnoresUnhandledEventTypes(t *testing.T) {
	h := NewHandler(logger.L)

	event := testEvent(t, "invoice.paid", `{}`, nil)

	normalized, err := h.NormalizeEvent(event)
	require.NoError(t, err)
	assert.Nil(t, normalized)
}
