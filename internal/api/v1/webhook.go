package v1

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/forgia-ai/bank-convert-billing/internal/config"
	ierr "github.com/forgia-ai/bank-convert-billing/internal/errors"
	polarwebhook "github.com/forgia-ai/bank-convert-billing/internal/integration/polar/webhook"
	stripewebhook "github.com/forgia-ai/bank-convert-billing/internal/integration/stripe/webhook"
	"github.com/forgia-ai/bank-convert-billing/internal/logger"
	"github.com/forgia-ai/bank-convert-billing/internal/service"
)

// WebhookHandler terminates provider webhook deliveries. Response semantics
// drive provider retry behavior: a 2xx acknowledges the delivery even when
// the event is dropped as unusable, a 5xx asks the provider to redeliver.
type WebhookHandler struct {
	config              *config.Configuration
	logger              *logger.Logger
	stripeHandler       *stripewebhook.Handler
	polarHandler        *polarwebhook.Handler
	subscriptionService service.SubscriptionService
}

func NewWebhookHandler(
	cfg *config.Configuration,
	logger *logger.Logger,
	stripeHandler *stripewebhook.Handler,
	polarHandler *polarwebhook.Handler,
	subscriptionService service.SubscriptionService,
) *WebhookHandler {
	return &WebhookHandler{
		config:              cfg,
		logger:              logger,
		stripeHandler:       stripeHandler,
		polarHandler:        polarHandler,
		subscriptionService: subscriptionService,
	}
}

// @Summary Stripe webhook
// @Description Receives and reconciles Stripe subscription lifecycle events
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /webhooks/stripe [post]
func (h *WebhookHandler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Failed to read webhook payload").
			Mark(ierr.ErrValidation))
		return
	}

	event, err := h.stripeHandler.ParseEvent(payload, c.GetHeader("Stripe-Signature"), h.config.Stripe.WebhookSecret)
	if err != nil {
		c.Error(err)
		return
	}

	normalized, err := h.stripeHandler.NormalizeEvent(event)
	if err != nil {
		// A payload we cannot make sense of will not improve on redelivery
		h.logger.Errorw("dropping malformed stripe event", "event_id", event.ID, "error", err)
		c.JSON(http.StatusOK, gin.H{"status": "dropped"})
		return
	}
	if normalized == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err := h.subscriptionService.ProcessEvent(c.Request.Context(), normalized); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}

// @Summary Polar webhook
// @Description Receives and reconciles Polar subscription lifecycle events
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /webhooks/polar [post]
func (h *WebhookHandler) PolarWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Failed to read webhook payload").
			Mark(ierr.ErrValidation))
		return
	}

	event, err := h.polarHandler.ParseEvent(payload, c.Request.Header, h.config.Polar.WebhookSecret)
	if err != nil {
		c.Error(err)
		return
	}

	normalized, err := h.polarHandler.NormalizeEvent(event)
	if err != nil {
		h.logger.Errorw("dropping malformed polar event", "event_type", event.Type, "error", err)
		c.JSON(http.StatusOK, gin.H{"status": "dropped"})
		return
	}
	if normalized == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err := h.subscriptionService.ProcessEvent(c.Request.Context(), normalized); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}
