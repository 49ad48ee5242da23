package service

import (
	"context"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/suite"

	"github.com/forgia-ai/bank-convert-billing/internal/domain/subscription"
	"github.com/forgia-ai/bank-convert-billing/internal/domain/usage"
	ierr "github.com/forgia-ai/bank-convert-billing/internal/errors"
	"github.com/forgia-ai/bank-convert-billing/internal/testutil"
	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

type UsageTrackingServiceSuite struct {
	testutil.BaseServiceSuite
	service UsageTrackingService
	ctx     context.Context
}

func TestUsageTrackingService(t *testing.T) {
	suite.Run(t, new(UsageTrackingServiceSuite))
}

func (s *UsageTrackingServiceSuite) SetupTest() {
	s.BaseServiceSuite.SetupTest()
	s.ctx = context.Background()
	s.service = NewUsageTrackingService(ServiceParams{
		Logger:    s.GetLogger(),
		Config:    s.GetConfig(),
		Registry:  s.GetRegistry(),
		Cache:     s.GetCache(),
		SubRepo:   s.GetStores().Subscriptions,
		UsageRepo: s.GetStores().Usage,
	})
}

// seedSubscription stores an active paid subscription anchored at startDate
func (s *UsageTrackingServiceSuite) seedSubscription(userID string, tier types.PlanTier, startDate time.Time) {
	subID := "polar_sub_" + userID
	err := s.GetStores().Subscriptions.Upsert(s.ctx, &subscription.Subscription{
		ID:                     types.GenerateUUIDWithPrefix(types.UUIDPrefixSubscription),
		UserID:                 userID,
		Provider:               types.PaymentProviderPolar,
		ProviderCustomerID:     "cus_" + userID,
		ProviderSubscriptionID: &subID,
		PlanTier:               tier,
		SubscriptionStatus:     types.SubscriptionStatusActive,
		StartDate:              startDate,
		BaseModel:              types.GetDefaultBaseModel(),
	})
	s.Require().NoError(err)
}

func (s *UsageTrackingServiceSuite) TestCheckLimitRejectsNonPositivePages() {
	for _, pages := range []int{0, -1, -50} {
		_, err := s.service.CheckLimit(s.ctx, "user-1", pages)
		s.Error(err)
		s.True(ierr.IsValidation(err))
	}
}

func (s *UsageTrackingServiceSuite) TestRecordUsageRejectsNonPositivePages() {
	err := s.service.RecordUsage(s.ctx, "user-1", 0, nil)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *UsageTrackingServiceSuite) TestCheckLimitDefaultsToFreeLifetimeWindow() {
	resp, err := s.service.CheckLimit(s.ctx, "user-1", 10)
	s.Require().NoError(err)

	s.Equal(types.PlanTierFree, resp.PlanTier)
	s.Equal(50, resp.Limit)
	s.Equal(0, resp.CurrentUsage)
	s.True(resp.CanProcess)
	s.False(resp.WouldExceed)
	s.True(resp.PeriodStart.Equal(types.LifetimePeriodStart))
	s.True(resp.PeriodEnd.Equal(types.LifetimePeriodEnd))
}

func (s *UsageTrackingServiceSuite) TestCheckLimitExactlyAtLimitIsAllowed() {
	s.Require().NoError(s.service.RecordUsage(s.ctx, "user-1", 40, nil))

	// 40 consumed + 10 requested == 50 limit: allowed
	resp, err := s.service.CheckLimit(s.ctx, "user-1", 10)
	s.Require().NoError(err)
	s.True(resp.CanProcess)
	s.False(resp.WouldExceed)
	s.Equal(40, resp.CurrentUsage)

	// one page over the boundary is refused
	resp, err = s.service.CheckLimit(s.ctx, "user-1", 11)
	s.Require().NoError(err)
	s.False(resp.CanProcess)
	s.True(resp.WouldExceed)
}

func (s *UsageTrackingServiceSuite) TestCheckLimitNeverReservesQuota() {
	resp, err := s.service.CheckLimit(s.ctx, "user-1", 30)
	s.Require().NoError(err)
	s.True(resp.CanProcess)

	// the check itself consumed nothing
	resp, err = s.service.CheckLimit(s.ctx, "user-1", 50)
	s.Require().NoError(err)
	s.Equal(0, resp.CurrentUsage)
	s.True(resp.CanProcess)
}

func (s *UsageTrackingServiceSuite) TestRecordUsagePastLimitStillCounts() {
	// work already done has to be charged even when it overshoots
	s.Require().NoError(s.service.RecordUsage(s.ctx, "user-1", 45, nil))
	s.Require().NoError(s.service.RecordUsage(s.ctx, "user-1", 20, nil))

	resp, err := s.service.CheckLimit(s.ctx, "user-1", 1)
	s.Require().NoError(err)
	s.Equal(65, resp.CurrentUsage)
	s.False(resp.CanProcess)
}

func (s *UsageTrackingServiceSuite) TestRecordUsageWritesAuditEntry() {
	metadata := &usage.Metadata{
		FileName:      "statement-2026-08.pdf",
		FileSizeBytes: 1 << 20,
	}
	s.Require().NoError(s.service.RecordUsage(s.ctx, "user-1", 12, metadata))

	entries := s.GetStores().Usage.LogEntries()
	s.Require().Len(entries, 1)
	s.Equal("user-1", entries[0].UserID)
	s.Equal(12, entries[0].PagesProcessed)
	s.Require().NotNil(entries[0].FileName)
	s.Equal("statement-2026-08.pdf", *entries[0].FileName)
	s.Require().NotNil(entries[0].FileSizeBytes)
	s.Equal(int64(1<<20), *entries[0].FileSizeBytes)
}

func (s *UsageTrackingServiceSuite) TestRecordUsageSurvivesAuditFailure() {
	s.GetStores().Usage.FailLogInserts = true

	s.Require().NoError(s.service.RecordUsage(s.ctx, "user-1", 5, nil))

	// the counter moved even though the audit write failed
	resp, err := s.service.CheckLimit(s.ctx, "user-1", 1)
	s.Require().NoError(err)
	s.Equal(5, resp.CurrentUsage)
	s.Empty(s.GetStores().Usage.LogEntries())
}

func (s *UsageTrackingServiceSuite) TestConcurrentRecordUsageLosesNoUpdates() {
	const workers = 32
	const pagesEach = 3

	var wg conc.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Go(func() {
			s.NoError(s.service.RecordUsage(s.ctx, "user-1", pagesEach, nil))
		})
	}
	wg.Wait()

	resp, err := s.service.CheckLimit(s.ctx, "user-1", 1)
	s.Require().NoError(err)
	s.Equal(workers*pagesEach, resp.CurrentUsage)
}

func (s *UsageTrackingServiceSuite) TestPaidTierUsesRollingWindow() {
	anchor := time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)
	s.seedSubscription("user-1", types.PlanTierLite, anchor)

	resp, err := s.service.CheckLimit(s.ctx, "user-1", 10)
	s.Require().NoError(err)

	s.Equal(types.PlanTierLite, resp.PlanTier)
	s.Equal(500, resp.Limit)

	wantStart, wantEnd, err := types.ComputeBillingPeriod(anchor, time.Now().UTC())
	s.Require().NoError(err)
	s.True(resp.PeriodStart.Equal(wantStart))
	s.True(resp.PeriodEnd.Equal(wantEnd))
}

func (s *UsageTrackingServiceSuite) TestLapsedSubscriptionFallsBackToFree() {
	start := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := start.AddDate(0, 1, 0)
	cancelledAt := start.AddDate(0, 0, 10)
	subID := "polar_sub_user-1"
	err := s.GetStores().Subscriptions.Upsert(s.ctx, &subscription.Subscription{
		ID:                     types.GenerateUUIDWithPrefix(types.UUIDPrefixSubscription),
		UserID:                 "user-1",
		Provider:               types.PaymentProviderPolar,
		ProviderCustomerID:     "cus_user-1",
		ProviderSubscriptionID: &subID,
		PlanTier:               types.PlanTierPro,
		SubscriptionStatus:     types.SubscriptionStatusCancelled,
		StartDate:              start,
		CurrentPeriodEnd:       &periodEnd,
		CancelledAt:            &cancelledAt,
		BaseModel:              types.GetDefaultBaseModel(),
	})
	s.Require().NoError(err)

	resp, err := s.service.CheckLimit(s.ctx, "user-1", 1)
	s.Require().NoError(err)
	s.Equal(types.PlanTierFree, resp.PlanTier)
	s.Equal(50, resp.Limit)
	s.True(resp.PeriodStart.Equal(types.LifetimePeriodStart))
}

func (s *UsageTrackingServiceSuite) TestGetOrCreateReturnsExistingRecord() {
	first, err := s.service.GetOrCreatePeriodRecord(s.ctx, "user-1", types.PlanTierFree, types.LifetimePeriodStart)
	s.Require().NoError(err)

	second, err := s.service.GetOrCreatePeriodRecord(s.ctx, "user-1", types.PlanTierFree, types.LifetimePeriodStart)
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID)
}

func (s *UsageTrackingServiceSuite) TestApplyPlanChangeRewritesTierSnapshot() {
	anchor := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	s.seedSubscription("user-1", types.PlanTierLite, anchor)

	s.Require().NoError(s.service.RecordUsage(s.ctx, "user-1", 5, nil))
	s.Require().NoError(s.service.ApplyPlanChange(s.ctx, "user-1", types.PlanTierPro, anchor))

	periodStart, _, err := types.ComputeBillingPeriod(anchor, time.Now().UTC())
	s.Require().NoError(err)

	record, err := s.GetStores().Usage.GetPeriodRecord(s.ctx, "user-1", periodStart)
	s.Require().NoError(err)
	s.Equal(types.PlanTierPro, record.PlanTier)
	s.Equal(5, record.PagesConsumed)
}

func (s *UsageTrackingServiceSuite) TestGetUsageHistoryNewestFirst() {
	anchor := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		start := anchor.AddDate(0, i, 0)
		err := s.GetStores().Usage.CreatePeriodRecord(s.ctx, &usage.PeriodRecord{
			ID:          types.GenerateUUIDWithPrefix(types.UUIDPrefixUsagePeriod),
			UserID:      "user-1",
			PlanTier:    types.PlanTierLite,
			PeriodStart: start,
			PeriodEnd:   start.AddDate(0, 1, -1),
			BaseModel:   types.GetDefaultBaseModel(),
		})
		s.Require().NoError(err)
	}

	records, err := s.service.GetUsageHistory(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Require().Len(records, 3)
	for i := 1; i < len(records); i++ {
		s.True(records[i-1].PeriodStart.After(records[i].PeriodStart))
	}
}
