package usage

import (
	"context"
	"time"

	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

type Repository interface {
	// GetPeriodRecord fetches the counter row for (userID, periodStart),
	// returning ErrNotFound when it does not exist yet
	GetPeriodRecord(ctx context.Context, userID string, periodStart time.Time) (*PeriodRecord, error)

	// CreatePeriodRecord inserts a fresh counter row. A concurrent first
	// touch loses with ErrAlreadyExists and must re-fetch the winner's row.
	CreatePeriodRecord(ctx context.Context, record *PeriodRecord) error

	// IncrementPagesConsumed adds pages to the counter in a single
	// conditional update round trip. Concurrent increments never lose
	// updates. ErrNotFound when the row is missing.
	IncrementPagesConsumed(ctx context.Context, userID string, periodStart time.Time, pages int) error

	// UpdatePlanTier rewrites the denormalized tier snapshot on the current
	// period row after a plan change
	UpdatePlanTier(ctx context.Context, userID string, periodStart time.Time, tier types.PlanTier) error

	// ListPeriodRecords returns all period rows for a user, newest first
	ListPeriodRecords(ctx context.Context, userID string) ([]*PeriodRecord, error)

	// InsertLogEntry appends one audit record
	InsertLogEntry(ctx context.Context, entry *LogEntry) error
}
