package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/forgia-ai/bank-convert-billing/internal/domain/usage"
	ierr "github.com/forgia-ai/bank-convert-billing/internal/errors"
	"github.com/forgia-ai/bank-convert-billing/internal/logger"
	"github.com/forgia-ai/bank-convert-billing/internal/postgres"
	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

// pqUniqueViolation is the Postgres error code for unique constraint violations
const pqUniqueViolation = "23505"

type usageRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewUsageRepository(db *postgres.DB, logger *logger.Logger) usage.Repository {
	return &usageRepository{db: db, logger: logger}
}

func (r *usageRepository) GetPeriodRecord(ctx context.Context, userID string, periodStart time.Time) (*usage.PeriodRecord, error) {
	query := `
		SELECT * FROM usage_periods
		WHERE user_id = $1 AND period_start = $2
	`

	var record usage.PeriodRecord
	err := r.db.GetQuerier(ctx).GetContext(ctx, &record, query, userID, periodStart)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("usage period record not found").
				WithHint("No usage record exists for this billing period").
				WithReportableDetails(map[string]any{
					"user_id":      userID,
					"period_start": periodStart,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to fetch usage period record").
			Mark(ierr.ErrDatabase)
	}

	return &record, nil
}

func (r *usageRepository) CreatePeriodRecord(ctx context.Context, record *usage.PeriodRecord) error {
	query := `
		INSERT INTO usage_periods (
			id,
			user_id,
			plan_tier,
			period_start,
			period_end,
			pages_consumed,
			status,
			created_at,
			updated_at
		) VALUES (
			:id,
			:user_id,
			:plan_tier,
			:period_start,
			:period_end,
			:pages_consumed,
			:status,
			:created_at,
			:updated_at
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, record)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			// A concurrent first touch won the insert race
			return ierr.NewError("usage period record already exists").
				WithHint("Another request created the period record first").
				WithReportableDetails(map[string]any{
					"user_id":      record.UserID,
					"period_start": record.PeriodStart,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create usage period record").
			Mark(ierr.ErrDatabase)
	}

	return nil
}

// IncrementPagesConsumed is the single write path for the counter. The
// increment happens inside the database so parallel requests serialize on
// the row instead of racing a read-modify-write in application code.
func (r *usageRepository) IncrementPagesConsumed(ctx context.Context, userID string, periodStart time.Time, pages int) error {
	query := `
		UPDATE usage_periods
		SET pages_consumed = pages_consumed + $1,
		    updated_at     = $2
		WHERE user_id = $3 AND period_start = $4
	`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query, pages, time.Now().UTC(), userID, periodStart)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to increment usage counter").
			Mark(ierr.ErrDatabase)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to read increment result").
			Mark(ierr.ErrDatabase)
	}
	if affected == 0 {
		return ierr.NewError("usage period record not found").
			WithHint("Cannot increment a period record that does not exist").
			WithReportableDetails(map[string]any{
				"user_id":      userID,
				"period_start": periodStart,
			}).
			Mark(ierr.ErrNotFound)
	}

	return nil
}

func (r *usageRepository) UpdatePlanTier(ctx context.Context, userID string, periodStart time.Time, tier types.PlanTier) error {
	query := `
		UPDATE usage_periods
		SET plan_tier  = $1,
		    updated_at = $2
		WHERE user_id = $3 AND period_start = $4
	`

	_, err := r.db.GetQuerier(ctx).ExecContext(ctx, query, tier, time.Now().UTC(), userID, periodStart)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update plan tier on usage period").
			Mark(ierr.ErrDatabase)
	}

	return nil
}

func (r *usageRepository) ListPeriodRecords(ctx context.Context, userID string) ([]*usage.PeriodRecord, error) {
	query := `
		SELECT * FROM usage_periods
		WHERE user_id = $1
		ORDER BY period_start DESC
	`

	records := make([]*usage.PeriodRecord, 0)
	err := r.db.GetQuerier(ctx).SelectContext(ctx, &records, query, userID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list usage period records").
			Mark(ierr.ErrDatabase)
	}

	return records, nil
}

func (r *usageRepository) InsertLogEntry(ctx context.Context, entry *usage.LogEntry) error {
	query := `
		INSERT INTO usage_log (
			id,
			user_id,
			pages_processed,
			file_name,
			file_size_bytes,
			processed_at,
			status,
			created_at,
			updated_at
		) VALUES (
			:id,
			:user_id,
			:pages_processed,
			:file_name,
			:file_size_bytes,
			:processed_at,
			:status,
			:created_at,
			:updated_at
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, entry)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to insert usage log entry").
			Mark(ierr.ErrDatabase)
	}

	return nil
}
