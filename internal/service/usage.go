package service

import (
	"context"
	"time"

	"github.com/forgia-ai/bank-convert-billing/internal/api/dto"
	"github.com/forgia-ai/bank-convert-billing/internal/domain/usage"
	ierr "github.com/forgia-ai/bank-convert-billing/internal/errors"
	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

// UsageTrackingService owns the per-period page counter: lazy creation,
// advisory limit checks, and the atomic consumption increment.
//
// CheckLimit followed by RecordUsage is deliberately not a transaction: the
// extraction work happens between the two calls and cannot be held inside a
// database transaction. Near-simultaneous requests may each pass the
// pre-check and overshoot the limit together; that overshoot is bounded by
// the number of in-flight requests and is accepted.
type UsageTrackingService interface {
	GetOrCreatePeriodRecord(ctx context.Context, userID string, tier types.PlanTier, anchor time.Time) (*usage.PeriodRecord, error)
	CheckLimit(ctx context.Context, userID string, additionalPages int) (*dto.LimitCheckResponse, error)
	RecordUsage(ctx context.Context, userID string, pagesProcessed int, metadata *usage.Metadata) error
	ApplyPlanChange(ctx context.Context, userID string, tier types.PlanTier, anchor time.Time) error
	GetUsageHistory(ctx context.Context, userID string) ([]*usage.PeriodRecord, error)
}

type usageTrackingService struct {
	ServiceParams
}

func NewUsageTrackingService(params ServiceParams) UsageTrackingService {
	return &usageTrackingService{
		ServiceParams: params,
	}
}

// planContext resolves the plan tier and billing anchor a user's quota is
// enforced against. Users without an entitling subscription are on the free
// tier's lifetime window.
func (s *usageTrackingService) planContext(ctx context.Context, userID string) (types.PlanTier, time.Time, error) {
	sub, err := s.SubRepo.GetByUserID(ctx, userID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return types.PlanTierFree, types.LifetimePeriodStart, nil
		}
		return "", time.Time{}, err
	}

	if !sub.HasAccess(time.Now().UTC()) {
		return types.PlanTierFree, types.LifetimePeriodStart, nil
	}

	return sub.PlanTier, sub.StartDate, nil
}

// currentWindow computes the billing window the quota accumulates over
func (s *usageTrackingService) currentWindow(tier types.PlanTier, anchor time.Time) (time.Time, time.Time, error) {
	rolling, err := s.Registry.IsRolling(tier)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	if !rolling {
		return types.LifetimePeriodStart, types.LifetimePeriodEnd, nil
	}

	return types.ComputeBillingPeriod(anchor, time.Now().UTC())
}

func (s *usageTrackingService) GetOrCreatePeriodRecord(ctx context.Context, userID string, tier types.PlanTier, anchor time.Time) (*usage.PeriodRecord, error) {
	periodStart, periodEnd, err := s.currentWindow(tier, anchor)
	if err != nil {
		return nil, err
	}

	record, err := s.UsageRepo.GetPeriodRecord(ctx, userID, periodStart)
	if err == nil {
		return record, nil
	}
	if !ierr.IsNotFound(err) {
		return nil, err
	}

	record = &usage.PeriodRecord{
		ID:            types.GenerateUUIDWithPrefix(types.UUIDPrefixUsagePeriod),
		UserID:        userID,
		PlanTier:      tier,
		PeriodStart:   periodStart,
		PeriodEnd:     periodEnd,
		PagesConsumed: 0,
		BaseModel:     types.GetDefaultBaseModel(),
	}

	if err := s.UsageRepo.CreatePeriodRecord(ctx, record); err != nil {
		// Lost the first-touch race; the winner's row is the record
		if ierr.IsAlreadyExists(err) {
			return s.UsageRepo.GetPeriodRecord(ctx, userID, periodStart)
		}
		return nil, err
	}

	s.Logger.Debugw("created usage period record",
		"user_id", userID,
		"plan_tier", tier,
		"period_start", periodStart,
		"period_end", periodEnd,
	)

	return record, nil
}

// CheckLimit is the advisory enforcement point used before doing the work.
// It never mutates state and never reserves quota.
func (s *usageTrackingService) CheckLimit(ctx context.Context, userID string, additionalPages int) (*dto.LimitCheckResponse, error) {
	if additionalPages <= 0 {
		return nil, ierr.NewError("additional pages must be positive").
			WithHint("Page count must be a positive integer").
			WithReportableDetails(map[string]any{
				"additional_pages": additionalPages,
			}).
			Mark(ierr.ErrValidation)
	}

	tier, anchor, err := s.planContext(ctx, userID)
	if err != nil {
		return nil, err
	}

	limit, err := s.Registry.LimitFor(tier)
	if err != nil {
		return nil, err
	}

	record, err := s.GetOrCreatePeriodRecord(ctx, userID, tier, anchor)
	if err != nil {
		return nil, err
	}

	wouldExceed := record.PagesConsumed+additionalPages > limit

	return &dto.LimitCheckResponse{
		CanProcess:     !wouldExceed,
		CurrentUsage:   record.PagesConsumed,
		Limit:          limit,
		RequestedPages: additionalPages,
		WouldExceed:    wouldExceed,
		PlanTier:       tier,
		PeriodStart:    record.PeriodStart,
		PeriodEnd:      record.PeriodEnd,
	}, nil
}

// RecordUsage unconditionally records pages already consumed, even past the
// nominal limit: a successful extraction has to be charged. Refusing to
// record here would silently under-count consumed resources.
func (s *usageTrackingService) RecordUsage(ctx context.Context, userID string, pagesProcessed int, metadata *usage.Metadata) error {
	if pagesProcessed <= 0 {
		return ierr.NewError("pages processed must be positive").
			WithHint("Page count must be a positive integer").
			WithReportableDetails(map[string]any{
				"pages_processed": pagesProcessed,
			}).
			Mark(ierr.ErrValidation)
	}

	tier, anchor, err := s.planContext(ctx, userID)
	if err != nil {
		return err
	}

	if _, err := s.GetOrCreatePeriodRecord(ctx, userID, tier, anchor); err != nil {
		return err
	}

	periodStart, _, err := s.currentWindow(tier, anchor)
	if err != nil {
		return err
	}

	if err := s.UsageRepo.IncrementPagesConsumed(ctx, userID, periodStart, pagesProcessed); err != nil {
		return err
	}

	// The increment is committed; audit completeness ranks below counter
	// correctness, so a failed log write is swallowed after logging.
	entry := &usage.LogEntry{
		ID:             types.GenerateUUIDWithPrefix(types.UUIDPrefixUsageLog),
		UserID:         userID,
		PagesProcessed: pagesProcessed,
		ProcessedAt:    time.Now().UTC(),
		BaseModel:      types.GetDefaultBaseModel(),
	}
	if metadata != nil {
		if metadata.FileName != "" {
			entry.FileName = &metadata.FileName
		}
		if metadata.FileSizeBytes > 0 {
			entry.FileSizeBytes = &metadata.FileSizeBytes
		}
	}

	if err := s.UsageRepo.InsertLogEntry(ctx, entry); err != nil {
		s.Logger.Errorw("failed to write usage audit log entry",
			"error", err,
			"user_id", userID,
			"pages_processed", pagesProcessed,
		)
	}

	return nil
}

// ApplyPlanChange pushes a reconciled plan change into the current period
// record so the new tier's limit takes effect immediately, not lazily on the
// next quota check.
func (s *usageTrackingService) ApplyPlanChange(ctx context.Context, userID string, tier types.PlanTier, anchor time.Time) error {
	record, err := s.GetOrCreatePeriodRecord(ctx, userID, tier, anchor)
	if err != nil {
		return err
	}

	if record.PlanTier == tier {
		return nil
	}

	if err := s.UsageRepo.UpdatePlanTier(ctx, userID, record.PeriodStart, tier); err != nil {
		return err
	}

	s.Logger.Infow("applied plan change to usage period",
		"user_id", userID,
		"plan_tier", tier,
		"period_start", record.PeriodStart,
	)

	return nil
}

func (s *usageTrackingService) GetUsageHistory(ctx context.Context, userID string) ([]*usage.PeriodRecord, error) {
	return s.UsageRepo.ListPeriodRecords(ctx, userID)
}
