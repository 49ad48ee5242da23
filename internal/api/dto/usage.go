package dto

import (
	"time"

	"github.com/forgia-ai/bank-convert-billing/internal/domain/usage"
	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

// LimitCheckResponse is the advisory quota decision handed to the extraction
// pipeline before it starts work. It is not a reservation.
type LimitCheckResponse struct {
	CanProcess     bool           `json:"can_process"`
	CurrentUsage   int            `json:"current_usage"`
	Limit          int            `json:"limit"`
	RequestedPages int            `json:"requested_pages"`
	WouldExceed    bool           `json:"would_exceed"`
	PlanTier       types.PlanTier `json:"plan_tier"`
	PeriodStart    time.Time      `json:"period_start"`
	PeriodEnd      time.Time      `json:"period_end"`
}

// RecordUsageRequest records pages already consumed by a successful
// extraction
type RecordUsageRequest struct {
	PagesProcessed int    `json:"pages_processed" validate:"required,gt=0"`
	FileName       string `json:"file_name,omitempty"`
	FileSizeBytes  int64  `json:"file_size_bytes,omitempty" validate:"omitempty,gte=0"`
}

// Metadata converts the optional file context for the audit log
func (r *RecordUsageRequest) Metadata() *usage.Metadata {
	if r.FileName == "" && r.FileSizeBytes == 0 {
		return nil
	}
	return &usage.Metadata{
		FileName:      r.FileName,
		FileSizeBytes: r.FileSizeBytes,
	}
}

// UsagePeriodResponse is one row of the usage audit trail
type UsagePeriodResponse struct {
	PlanTier      types.PlanTier `json:"plan_tier"`
	PeriodStart   time.Time      `json:"period_start"`
	PeriodEnd     time.Time      `json:"period_end"`
	PagesConsumed int            `json:"pages_consumed"`
}

// NewUsagePeriodResponse maps a period record to its API shape
func NewUsagePeriodResponse(record *usage.PeriodRecord) *UsagePeriodResponse {
	return &UsagePeriodResponse{
		PlanTier:      record.PlanTier,
		PeriodStart:   record.PeriodStart,
		PeriodEnd:     record.PeriodEnd,
		PagesConsumed: record.PagesConsumed,
	}
}
