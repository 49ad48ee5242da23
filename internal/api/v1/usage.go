package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/forgia-ai/bank-convert-billing/internal/api/dto"
	"github.com/forgia-ai/bank-convert-billing/internal/domain/usage"
	ierr "github.com/forgia-ai/bank-convert-billing/internal/errors"
	"github.com/forgia-ai/bank-convert-billing/internal/logger"
	"github.com/forgia-ai/bank-convert-billing/internal/service"
	"github.com/forgia-ai/bank-convert-billing/internal/types"
	"github.com/forgia-ai/bank-convert-billing/internal/validator"
)

type UsageHandler struct {
	service service.UsageTrackingService
	log     *logger.Logger
}

func NewUsageHandler(service service.UsageTrackingService, log *logger.Logger) *UsageHandler {
	return &UsageHandler{service: service, log: log}
}

// @Summary Check page quota
// @Description Advisory check whether processing the given number of pages would exceed the current billing period's limit
// @Tags Usage
// @Produce json
// @Param pages query int true "Number of pages about to be processed"
// @Success 200 {object} dto.LimitCheckResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /usage/limit [get]
func (h *UsageHandler) CheckLimit(c *gin.Context) {
	ctx := c.Request.Context()
	userID := types.GetUserID(ctx)
	if userID == "" {
		c.Error(ierr.NewError("missing user id").
			WithHint("User identification is required").
			Mark(ierr.ErrValidation))
		return
	}

	pages, err := strconv.Atoi(c.Query("pages"))
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Query parameter pages must be an integer").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CheckLimit(ctx, userID, pages)
	if err != nil {
		h.log.Errorw("failed to check usage limit", "error", err, "user_id", userID)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Record consumed pages
// @Description Records pages consumed by a completed extraction, even when the nominal limit is exceeded
// @Tags Usage
// @Accept json
// @Produce json
// @Param request body dto.RecordUsageRequest true "Consumption event"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /usage [post]
func (h *UsageHandler) RecordUsage(c *gin.Context) {
	ctx := c.Request.Context()
	userID := types.GetUserID(ctx)
	if userID == "" {
		c.Error(ierr.NewError("missing user id").
			WithHint("User identification is required").
			Mark(ierr.ErrValidation))
		return
	}

	var req dto.RecordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Errorw("failed to bind request", "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	if err := validator.ValidateRequest(&req); err != nil {
		c.Error(err)
		return
	}

	if err := h.service.RecordUsage(ctx, userID, req.PagesProcessed, req.Metadata()); err != nil {
		h.log.Errorw("failed to record usage", "error", err, "user_id", userID)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

// @Summary Usage history
// @Description Lists the per-period usage records for the user, newest first
// @Tags Usage
// @Produce json
// @Success 200 {array} dto.UsagePeriodResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /usage/history [get]
func (h *UsageHandler) GetUsageHistory(c *gin.Context) {
	ctx := c.Request.Context()
	userID := types.GetUserID(ctx)
	if userID == "" {
		c.Error(ierr.NewError("missing user id").
			WithHint("User identification is required").
			Mark(ierr.ErrValidation))
		return
	}

	records, err := h.service.GetUsageHistory(ctx, userID)
	if err != nil {
		h.log.Errorw("failed to list usage history", "error", err, "user_id", userID)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, lo.Map(records, func(record *usage.PeriodRecord, _ int) *dto.UsagePeriodResponse {
		return dto.NewUsagePeriodResponse(record)
	}))
}
