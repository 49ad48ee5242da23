package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/forgia-ai/bank-convert-billing/internal/api/dto"
	ierr "github.com/forgia-ai/bank-convert-billing/internal/errors"
	"github.com/forgia-ai/bank-convert-billing/internal/logger"
	"github.com/forgia-ai/bank-convert-billing/internal/service"
	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

type SubscriptionHandler struct {
	service  service.SubscriptionService
	checkout service.CheckoutService
	log      *logger.Logger
}

func NewSubscriptionHandler(
	service service.SubscriptionService,
	checkout service.CheckoutService,
	log *logger.Logger,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		service:  service,
		checkout: checkout,
		log:      log,
	}
}

// @Summary Current subscription
// @Description Returns the authoritative subscription state the client reconciles against
// @Tags Subscriptions
// @Produce json
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /subscription [get]
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	ctx := c.Request.Context()
	userID := types.GetUserID(ctx)
	if userID == "" {
		c.Error(ierr.NewError("missing user id").
			WithHint("User identification is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.GetCurrentSubscription(ctx, userID)
	if err != nil {
		h.log.Errorw("failed to get subscription", "error", err, "user_id", userID)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Refresh subscription
// @Description Busts the cached view and re-reads the authoritative subscription state
// @Tags Subscriptions
// @Produce json
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /subscription/refresh [post]
func (h *SubscriptionHandler) RefreshSubscription(c *gin.Context) {
	ctx := c.Request.Context()
	userID := types.GetUserID(ctx)
	if userID == "" {
		c.Error(ierr.NewError("missing user id").
			WithHint("User identification is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.RefreshSubscription(ctx, userID)
	if err != nil {
		h.log.Errorw("failed to refresh subscription", "error", err, "user_id", userID)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Create checkout session
// @Description Creates a provider-hosted checkout session for a paid plan tier
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param request body dto.CreateCheckoutRequest true "Checkout request"
// @Success 200 {object} dto.CheckoutResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /checkout [post]
func (h *SubscriptionHandler) CreateCheckout(c *gin.Context) {
	ctx := c.Request.Context()
	userID := types.GetUserID(ctx)
	if userID == "" {
		c.Error(ierr.NewError("missing user id").
			WithHint("User identification is required").
			Mark(ierr.ErrValidation))
		return
	}

	var req dto.CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Errorw("failed to bind request", "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.checkout.CreateCheckout(ctx, userID, &req)
	if err != nil {
		h.log.Errorw("failed to create checkout", "error", err, "user_id", userID)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
