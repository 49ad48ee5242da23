package usage

import (
	"time"

	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

// PeriodRecord is one row of usage_periods: the page counter for one user
// and one billing window. Rows are created lazily on first touch and never
// deleted, so the table doubles as a billing audit trail.
type PeriodRecord struct {
	ID     string `db:"id" json:"id"`
	UserID string `db:"user_id" json:"user_id"`

	// PlanTier is a denormalized snapshot of the plan active during this
	// period, so historical rows stay meaningful after plan changes
	PlanTier types.PlanTier `db:"plan_tier" json:"plan_tier"`

	// PeriodStart / PeriodEnd bound the billing window. (user_id,
	// period_start) is unique. The free tier uses the lifetime sentinel window.
	PeriodStart time.Time `db:"period_start" json:"period_start"`
	PeriodEnd   time.Time `db:"period_end" json:"period_end"`

	// PagesConsumed only ever grows, and only through the repository's
	// atomic increment
	PagesConsumed int `db:"pages_consumed" json:"pages_consumed"`

	types.BaseModel
}

// LogEntry is one append-only audit record of a consumption event.
// Failures writing it never roll back the counter increment.
type LogEntry struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	PagesProcessed int       `db:"pages_processed" json:"pages_processed"`
	FileName       *string   `db:"file_name" json:"file_name,omitempty"`
	FileSizeBytes  *int64    `db:"file_size_bytes" json:"file_size_bytes,omitempty"`
	ProcessedAt    time.Time `db:"processed_at" json:"processed_at"`

	types.BaseModel
}

// Metadata is the optional file context attached to a consumption event.
type Metadata struct {
	FileName      string `json:"file_name,omitempty"`
	FileSizeBytes int64  `json:"file_size_bytes,omitempty"`
}
