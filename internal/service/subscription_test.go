package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	ierr "github.com/forgia-ai/bank-convert-billing/internal/errors"
	"github.com/forgia-ai/bank-convert-billing/internal/testutil"
	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

type SubscriptionServiceSuite struct {
	testutil.BaseServiceSuite
	service  SubscriptionService
	usageSvc UsageTrackingService
	ctx      context.Context
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.BaseServiceSuite.SetupTest()
	s.ctx = context.Background()

	params := ServiceParams{
		Logger:    s.GetLogger(),
		Config:    s.GetConfig(),
		Registry:  s.GetRegistry(),
		Cache:     s.GetCache(),
		SubRepo:   s.GetStores().Subscriptions,
		UsageRepo: s.GetStores().Usage,
	}
	s.service = NewSubscriptionService(params)
	s.usageSvc = NewUsageTrackingService(params)
}

// checkoutEvent builds the normalized activation event for a lite plan
// purchased through Polar
func (s *SubscriptionServiceSuite) checkoutEvent(userID string) *types.SubscriptionEvent {
	start := time.Now().UTC().AddDate(0, 0, -1)
	end := start.AddDate(0, 1, 0)
	return &types.SubscriptionEvent{
		ID:                     "evt_checkout_" + userID,
		Type:                   types.SubscriptionEventCheckoutCompleted,
		Provider:               types.PaymentProviderPolar,
		UserID:                 userID,
		ProviderCustomerID:     "cus_" + userID,
		ProviderSubscriptionID: "sub_provider_" + userID,
		ProductID:              "prod_lite_test",
		Status:                 types.SubscriptionStatusActive,
		CurrentPeriodStart:     &start,
		CurrentPeriodEnd:       &end,
		OccurredAt:             start,
	}
}

func (s *SubscriptionServiceSuite) TestCheckoutActivatesSubscription() {
	s.Require().NoError(s.service.ProcessEvent(s.ctx, s.checkoutEvent("user-1")))

	sub, err := s.GetStores().Subscriptions.GetByUserID(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(types.PlanTierLite, sub.PlanTier)
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
	s.Equal(types.PaymentProviderPolar, sub.Provider)
	s.Require().NotNil(sub.ProviderSubscriptionID)
	s.Equal("sub_provider_user-1", *sub.ProviderSubscriptionID)
}

func (s *SubscriptionServiceSuite) TestCheckoutPropagatesPlanToUsageTracker() {
	event := s.checkoutEvent("user-1")
	s.Require().NoError(s.service.ProcessEvent(s.ctx, event))

	// the quota check must already see the paid tier's limit
	resp, err := s.usageSvc.CheckLimit(s.ctx, "user-1", 100)
	s.Require().NoError(err)
	s.Equal(types.PlanTierLite, resp.PlanTier)
	s.Equal(500, resp.Limit)
	s.True(resp.CanProcess)
}

func (s *SubscriptionServiceSuite) TestCheckoutMissingUserIDIsDropped() {
	event := s.checkoutEvent("user-1")
	event.UserID = ""

	// dropped, not retried: the provider gets a success
	s.Require().NoError(s.service.ProcessEvent(s.ctx, event))
	s.Equal(0, s.GetStores().Subscriptions.Count())
}

func (s *SubscriptionServiceSuite) TestCheckoutUnknownProductIsDropped() {
	event := s.checkoutEvent("user-1")
	event.ProductID = "prod_not_in_catalog"

	s.Require().NoError(s.service.ProcessEvent(s.ctx, event))
	s.Equal(0, s.GetStores().Subscriptions.Count())
}

func (s *SubscriptionServiceSuite) TestCheckoutReplayIsIdempotent() {
	event := s.checkoutEvent("user-1")
	s.Require().NoError(s.service.ProcessEvent(s.ctx, event))

	first, err := s.GetStores().Subscriptions.GetByUserID(s.ctx, "user-1")
	s.Require().NoError(err)

	s.Require().NoError(s.service.ProcessEvent(s.ctx, event))

	s.Equal(1, s.GetStores().Subscriptions.Count())
	replayed, err := s.GetStores().Subscriptions.GetByUserID(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(first.ID, replayed.ID)
	s.Equal(first.PlanTier, replayed.PlanTier)
}

func (s *SubscriptionServiceSuite) TestUpdateWithPlanChangePropagates() {
	s.Require().NoError(s.service.ProcessEvent(s.ctx, s.checkoutEvent("user-1")))

	update := s.checkoutEvent("user-1")
	update.Type = types.SubscriptionEventUpdated
	update.ProductID = "prod_pro_test"

	s.Require().NoError(s.service.ProcessEvent(s.ctx, update))

	sub, err := s.GetStores().Subscriptions.GetByUserID(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(types.PlanTierPro, sub.PlanTier)

	resp, err := s.usageSvc.CheckLimit(s.ctx, "user-1", 1)
	s.Require().NoError(err)
	s.Equal(types.PlanTierPro, resp.PlanTier)
	s.Equal(1000, resp.Limit)
}

func (s *SubscriptionServiceSuite) TestHousekeepingUpdateSkipsPropagation() {
	s.Require().NoError(s.service.ProcessEvent(s.ctx, s.checkoutEvent("user-1")))

	// record some consumption under the current tier
	s.Require().NoError(s.usageSvc.RecordUsage(s.ctx, "user-1", 7, nil))

	update := s.checkoutEvent("user-1")
	update.Type = types.SubscriptionEventUpdated
	newEnd := update.CurrentPeriodEnd.AddDate(0, 1, 0)
	update.CurrentPeriodEnd = &newEnd

	s.Require().NoError(s.service.ProcessEvent(s.ctx, update))

	sub, err := s.GetStores().Subscriptions.GetByUserID(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(types.PlanTierLite, sub.PlanTier)
	s.Require().NotNil(sub.CurrentPeriodEnd)
	s.True(sub.CurrentPeriodEnd.Equal(newEnd))

	// the counter is untouched by the house-keeping write
	resp, err := s.usageSvc.CheckLimit(s.ctx, "user-1", 1)
	s.Require().NoError(err)
	s.Equal(7, resp.CurrentUsage)
}

func (s *SubscriptionServiceSuite) TestOutOfOrderUpdateCreatesSubscription() {
	update := s.checkoutEvent("user-1")
	update.Type = types.SubscriptionEventUpdated

	// the update arrives before the checkout event ever did
	s.Require().NoError(s.service.ProcessEvent(s.ctx, update))

	sub, err := s.GetStores().Subscriptions.GetByUserID(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(types.PlanTierLite, sub.PlanTier)
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
}

func (s *SubscriptionServiceSuite) TestOutOfOrderUpdateWithoutUserIDIsDropped() {
	update := s.checkoutEvent("user-1")
	update.Type = types.SubscriptionEventUpdated
	update.UserID = ""

	s.Require().NoError(s.service.ProcessEvent(s.ctx, update))
	s.Equal(0, s.GetStores().Subscriptions.Count())
}

func (s *SubscriptionServiceSuite) TestPendingCancellationRetainsTier() {
	s.Require().NoError(s.service.ProcessEvent(s.ctx, s.checkoutEvent("user-1")))

	cancelledAt := time.Now().UTC()
	periodEnd := cancelledAt.AddDate(0, 0, 20)
	cancel := s.checkoutEvent("user-1")
	cancel.Type = types.SubscriptionEventCancelled
	cancel.CancelledAt = &cancelledAt
	cancel.CurrentPeriodEnd = &periodEnd

	s.Require().NoError(s.service.ProcessEvent(s.ctx, cancel))

	sub, err := s.GetStores().Subscriptions.GetByUserID(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(types.PlanTierLite, sub.PlanTier)
	s.Require().NotNil(sub.CancelledAt)
	s.True(sub.IsCancelPending(time.Now().UTC()))

	// quota stays at the paid tier until the period runs out
	resp, err := s.usageSvc.CheckLimit(s.ctx, "user-1", 1)
	s.Require().NoError(err)
	s.Equal(types.PlanTierLite, resp.PlanTier)
}

func (s *SubscriptionServiceSuite) TestFinalCancellationDowngradesToFree() {
	s.Require().NoError(s.service.ProcessEvent(s.ctx, s.checkoutEvent("user-1")))

	cancelledAt := time.Now().UTC().AddDate(0, -2, 0)
	periodEnd := time.Now().UTC().AddDate(0, -1, 0)
	cancel := s.checkoutEvent("user-1")
	cancel.Type = types.SubscriptionEventCancelled
	cancel.CancelledAt = &cancelledAt
	cancel.CurrentPeriodEnd = &periodEnd

	s.Require().NoError(s.service.ProcessEvent(s.ctx, cancel))

	sub, err := s.GetStores().Subscriptions.GetByUserID(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(types.PlanTierFree, sub.PlanTier)
	s.Equal(types.SubscriptionStatusCancelled, sub.SubscriptionStatus)

	resp, err := s.usageSvc.CheckLimit(s.ctx, "user-1", 1)
	s.Require().NoError(err)
	s.Equal(types.PlanTierFree, resp.PlanTier)
	s.Equal(50, resp.Limit)
}

func (s *SubscriptionServiceSuite) TestCancellationForUnknownSubscriptionIsDropped() {
	cancel := s.checkoutEvent("user-1")
	cancel.Type = types.SubscriptionEventCancelled

	s.Require().NoError(s.service.ProcessEvent(s.ctx, cancel))
	s.Equal(0, s.GetStores().Subscriptions.Count())
}

func (s *SubscriptionServiceSuite) TestUncancelRevertsPendingCancellation() {
	s.Require().NoError(s.service.ProcessEvent(s.ctx, s.checkoutEvent("user-1")))

	cancelledAt := time.Now().UTC()
	periodEnd := cancelledAt.AddDate(0, 0, 20)
	cancel := s.checkoutEvent("user-1")
	cancel.Type = types.SubscriptionEventCancelled
	cancel.CancelledAt = &cancelledAt
	cancel.CurrentPeriodEnd = &periodEnd
	s.Require().NoError(s.service.ProcessEvent(s.ctx, cancel))

	uncancel := s.checkoutEvent("user-1")
	uncancel.Type = types.SubscriptionEventUncancelled
	s.Require().NoError(s.service.ProcessEvent(s.ctx, uncancel))

	sub, err := s.GetStores().Subscriptions.GetByUserID(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Nil(sub.CancelledAt)
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
	s.Equal(types.PlanTierLite, sub.PlanTier)
}

func (s *SubscriptionServiceSuite) TestUncancelOnFullyCancelledIsDropped() {
	s.Require().NoError(s.service.ProcessEvent(s.ctx, s.checkoutEvent("user-1")))

	cancelledAt := time.Now().UTC().AddDate(0, -2, 0)
	periodEnd := time.Now().UTC().AddDate(0, -1, 0)
	cancel := s.checkoutEvent("user-1")
	cancel.Type = types.SubscriptionEventCancelled
	cancel.CancelledAt = &cancelledAt
	cancel.CurrentPeriodEnd = &periodEnd
	s.Require().NoError(s.service.ProcessEvent(s.ctx, cancel))

	uncancel := s.checkoutEvent("user-1")
	uncancel.Type = types.SubscriptionEventUncancelled
	s.Require().NoError(s.service.ProcessEvent(s.ctx, uncancel))

	// the expired subscription stays downgraded
	sub, err := s.GetStores().Subscriptions.GetByUserID(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(types.PlanTierFree, sub.PlanTier)
	s.Equal(types.SubscriptionStatusCancelled, sub.SubscriptionStatus)
}

func (s *SubscriptionServiceSuite) TestUncancelReplayIsNoOp() {
	s.Require().NoError(s.service.ProcessEvent(s.ctx, s.checkoutEvent("user-1")))

	uncancel := s.checkoutEvent("user-1")
	uncancel.Type = types.SubscriptionEventUncancelled
	s.Require().NoError(s.service.ProcessEvent(s.ctx, uncancel))

	sub, err := s.GetStores().Subscriptions.GetByUserID(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Nil(sub.CancelledAt)
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
}

func (s *SubscriptionServiceSuite) TestInvalidProviderIsRejected() {
	event := s.checkoutEvent("user-1")
	event.Provider = "paypal"

	err := s.service.ProcessEvent(s.ctx, event)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *SubscriptionServiceSuite) TestGetCurrentSubscriptionDefaultsToFree() {
	resp, err := s.service.GetCurrentSubscription(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(types.PlanTierFree, resp.PlanTier)
	s.Equal(50, resp.PageLimit)
	s.Equal(types.SubscriptionStatusActive, resp.Status)
}

func (s *SubscriptionServiceSuite) TestGetCurrentSubscriptionReflectsReconciledState() {
	s.Require().NoError(s.service.ProcessEvent(s.ctx, s.checkoutEvent("user-1")))

	resp, err := s.service.GetCurrentSubscription(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(types.PlanTierLite, resp.PlanTier)
	s.Equal(500, resp.PageLimit)
	s.False(resp.CancelAtPeriodEnd)
}

func (s *SubscriptionServiceSuite) TestWebhookBustsCachedRead() {
	s.Require().NoError(s.service.ProcessEvent(s.ctx, s.checkoutEvent("user-1")))

	// prime the cache
	resp, err := s.service.GetCurrentSubscription(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(types.PlanTierLite, resp.PlanTier)

	update := s.checkoutEvent("user-1")
	update.Type = types.SubscriptionEventUpdated
	update.ProductID = "prod_pro_test"
	s.Require().NoError(s.service.ProcessEvent(s.ctx, update))

	resp, err = s.service.GetCurrentSubscription(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(types.PlanTierPro, resp.PlanTier)
	s.Equal(1000, resp.PageLimit)
}

func (s *SubscriptionServiceSuite) TestRefreshRereadsAuthoritativeState() {
	resp, err := s.service.GetCurrentSubscription(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(types.PlanTierFree, resp.PlanTier)

	s.Require().NoError(s.service.ProcessEvent(s.ctx, s.checkoutEvent("user-1")))

	resp, err = s.service.RefreshSubscription(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(types.PlanTierLite, resp.PlanTier)
}

func (s *SubscriptionServiceSuite) TestPendingCancellationExposesAccessWindow() {
	s.Require().NoError(s.service.ProcessEvent(s.ctx, s.checkoutEvent("user-1")))

	cancelledAt := time.Now().UTC()
	periodEnd := cancelledAt.AddDate(0, 0, 12)
	cancel := s.checkoutEvent("user-1")
	cancel.Type = types.SubscriptionEventCancelled
	cancel.CancelledAt = &cancelledAt
	cancel.CurrentPeriodEnd = &periodEnd
	s.Require().NoError(s.service.ProcessEvent(s.ctx, cancel))

	resp, err := s.service.GetCurrentSubscription(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(types.PlanTierLite, resp.PlanTier)
	s.True(resp.CancelAtPeriodEnd)
	s.Require().NotNil(resp.AccessUntil)
	s.True(resp.AccessUntil.Equal(periodEnd))
}
