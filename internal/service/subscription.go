package service

import (
	"context"
	"fmt"
	"time"

	"github.com/forgia-ai/bank-convert-billing/internal/api/dto"
	"github.com/forgia-ai/bank-convert-billing/internal/cache"
	"github.com/forgia-ai/bank-convert-billing/internal/domain/subscription"
	ierr "github.com/forgia-ai/bank-convert-billing/internal/errors"
	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

// SubscriptionService reconciles normalized payment provider events into the
// single canonical subscription record per user, and serves the cached
// authoritative read the client refreshes against.
//
// Every transition is idempotent: state is upserted by the natural key
// (provider, provider_customer_id), so at-least-once and out-of-order
// webhook delivery converge on the same end state.
type SubscriptionService interface {
	ProcessEvent(ctx context.Context, event *types.SubscriptionEvent) error
	GetCurrentSubscription(ctx context.Context, userID string) (*dto.SubscriptionResponse, error)
	RefreshSubscription(ctx context.Context, userID string) (*dto.SubscriptionResponse, error)
}

type subscriptionService struct {
	ServiceParams
	usageSvc UsageTrackingService
}

func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{
		ServiceParams: params,
		usageSvc:      NewUsageTrackingService(params),
	}
}

func (s *subscriptionService) ProcessEvent(ctx context.Context, event *types.SubscriptionEvent) error {
	if err := event.Provider.Validate(); err != nil {
		return err
	}

	s.Logger.Infow("processing subscription event",
		"event_id", event.ID,
		"event_type", event.Type,
		"provider", event.Provider,
		"user_id", event.UserID,
	)

	var err error
	switch event.Type {
	case types.SubscriptionEventCheckoutCompleted:
		err = s.handleCheckoutCompleted(ctx, event)
	case types.SubscriptionEventUpdated:
		err = s.handleUpdated(ctx, event)
	case types.SubscriptionEventCancelled:
		err = s.handleCancelled(ctx, event)
	case types.SubscriptionEventUncancelled:
		err = s.handleUncancelled(ctx, event)
	default:
		s.Logger.Infow("unhandled subscription event type", "type", event.Type)
		return nil
	}

	return err
}

// invalidate drops the stale read-through cache entry after a state change
func (s *subscriptionService) invalidate(ctx context.Context, userID string) {
	if userID != "" {
		s.Cache.Delete(ctx, subscriptionCacheKey(userID))
	}
}

// handleCheckoutCompleted is the first-ever activation of a subscription.
func (s *subscriptionService) handleCheckoutCompleted(ctx context.Context, event *types.SubscriptionEvent) error {
	// A billing action applied to the wrong account is worse than a dropped
	// webhook, so an unattributable event is dropped, never guessed at.
	if event.UserID == "" {
		s.Logger.Errorw("checkout event missing user id, dropping",
			"event_id", event.ID,
			"provider", event.Provider,
			"customer_id", event.ProviderCustomerID,
		)
		return nil
	}

	tier, err := s.Registry.TierForProduct(event.Provider, event.ProductID)
	if err != nil {
		// Retrying an unresolvable product forever is wasted work; the
		// operator has to fix the catalog. Drop with a 2xx.
		s.Logger.Errorw("checkout event references unknown product, dropping",
			"event_id", event.ID,
			"provider", event.Provider,
			"product_id", event.ProductID,
			"error", err,
		)
		return nil
	}

	startDate := event.OccurredAt.UTC()
	if event.CurrentPeriodStart != nil {
		startDate = event.CurrentPeriodStart.UTC()
	}

	sub := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUIDPrefixSubscription),
		UserID:             event.UserID,
		Provider:           event.Provider,
		ProviderCustomerID: event.ProviderCustomerID,
		PlanTier:           tier,
		SubscriptionStatus: types.SubscriptionStatusActive,
		StartDate:          startDate,
		CurrentPeriodStart: event.CurrentPeriodStart,
		CurrentPeriodEnd:   event.CurrentPeriodEnd,
		BaseModel:          types.GetDefaultBaseModel(),
	}
	if event.ProviderSubscriptionID != "" {
		sub.ProviderSubscriptionID = &event.ProviderSubscriptionID
	}

	// Persist first, propagate second. A propagation failure is retryable
	// by the provider's redelivery without re-doing the upsert.
	if err := s.SubRepo.Upsert(ctx, sub); err != nil {
		return err
	}
	s.invalidate(ctx, sub.UserID)

	if err := s.usageSvc.ApplyPlanChange(ctx, event.UserID, tier, startDate); err != nil {
		return ierr.WithError(err).
			WithHint("Subscription persisted but plan propagation failed").
			Mark(ierr.ErrDatabase)
	}

	s.Logger.Infow("activated subscription",
		"user_id", event.UserID,
		"provider", event.Provider,
		"plan_tier", tier,
	)

	return nil
}

// handleUpdated covers renewals, plan changes and provider house-keeping.
func (s *subscriptionService) handleUpdated(ctx context.Context, event *types.SubscriptionEvent) error {
	tier, err := s.Registry.TierForProduct(event.Provider, event.ProductID)
	if err != nil {
		s.Logger.Errorw("update event references unknown product, dropping",
			"event_id", event.ID,
			"provider", event.Provider,
			"product_id", event.ProductID,
			"error", err,
		)
		return nil
	}

	existing, err := s.findExisting(ctx, event)
	if err != nil {
		if !ierr.IsNotFound(err) {
			return err
		}
		// Out-of-order delivery: the update arrived before the checkout
		// event. With attributable metadata the update carries everything
		// needed to create the record.
		if event.UserID == "" {
			s.Logger.Errorw("update event for unknown subscription without user id, dropping",
				"event_id", event.ID,
				"provider", event.Provider,
				"customer_id", event.ProviderCustomerID,
			)
			return nil
		}
		return s.handleCheckoutCompleted(ctx, event)
	}

	planChanged := existing.PlanTier != tier

	existing.CurrentPeriodStart = event.CurrentPeriodStart
	existing.CurrentPeriodEnd = event.CurrentPeriodEnd
	if event.ProviderSubscriptionID != "" {
		existing.ProviderSubscriptionID = &event.ProviderSubscriptionID
	}
	if event.Status != "" {
		existing.SubscriptionStatus = event.Status
	}
	existing.PlanTier = tier
	existing.UpdatedAt = time.Now().UTC()

	if err := s.SubRepo.Upsert(ctx, existing); err != nil {
		return err
	}
	s.invalidate(ctx, existing.UserID)

	// Same plan means a house-keeping update: period timestamps only, no
	// redundant usage-tracker write.
	if !planChanged {
		return nil
	}

	if err := s.usageSvc.ApplyPlanChange(ctx, existing.UserID, tier, existing.StartDate); err != nil {
		return ierr.WithError(err).
			WithHint("Subscription persisted but plan propagation failed").
			Mark(ierr.ErrDatabase)
	}

	s.Logger.Infow("subscription plan changed",
		"user_id", existing.UserID,
		"provider", event.Provider,
		"plan_tier", tier,
	)

	return nil
}

// handleCancelled distinguishes a pending cancellation (access retained
// until the paid period runs out) from a final one (immediate downgrade).
func (s *subscriptionService) handleCancelled(ctx context.Context, event *types.SubscriptionEvent) error {
	existing, err := s.findExisting(ctx, event)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.Logger.Errorw("cancellation for unknown subscription, dropping",
				"event_id", event.ID,
				"provider", event.Provider,
				"customer_id", event.ProviderCustomerID,
			)
			return nil
		}
		return err
	}

	now := time.Now().UTC()

	cancelledAt := now
	if event.CancelledAt != nil {
		cancelledAt = event.CancelledAt.UTC()
	}
	existing.CancelledAt = &cancelledAt

	periodEnd := existing.CurrentPeriodEnd
	if event.CurrentPeriodEnd != nil {
		periodEnd = event.CurrentPeriodEnd
		existing.CurrentPeriodEnd = event.CurrentPeriodEnd
	}

	pending := periodEnd != nil && periodEnd.After(now)
	if pending {
		// Access retained until period end: tier and quota stay in force,
		// only the cancellation marker changes.
		existing.UpdatedAt = now
		if err := s.SubRepo.Upsert(ctx, existing); err != nil {
			return err
		}
		s.invalidate(ctx, existing.UserID)

		s.Logger.Infow("subscription cancellation pending",
			"user_id", existing.UserID,
			"provider", event.Provider,
			"access_until", periodEnd,
		)
		return nil
	}

	// Final cancellation (or one that arrived after the period already
	// lapsed): downgrade to free immediately.
	existing.SubscriptionStatus = types.SubscriptionStatusCancelled
	existing.PlanTier = types.PlanTierFree
	existing.UpdatedAt = now

	if err := s.SubRepo.Upsert(ctx, existing); err != nil {
		return err
	}
	s.invalidate(ctx, existing.UserID)

	if err := s.usageSvc.ApplyPlanChange(ctx, existing.UserID, types.PlanTierFree, existing.StartDate); err != nil {
		return ierr.WithError(err).
			WithHint("Subscription persisted but plan propagation failed").
			Mark(ierr.ErrDatabase)
	}

	s.Logger.Infow("subscription cancelled",
		"user_id", existing.UserID,
		"provider", event.Provider,
	)

	return nil
}

// handleUncancelled reverts a pending cancellation. It is only valid as the
// inverse of one: resurrecting an expired subscription from stale data would
// hand a free user a paid tier.
func (s *subscriptionService) handleUncancelled(ctx context.Context, event *types.SubscriptionEvent) error {
	existing, err := s.findExisting(ctx, event)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.Logger.Errorw("uncancel for unknown subscription, dropping",
				"event_id", event.ID,
				"provider", event.Provider,
				"customer_id", event.ProviderCustomerID,
			)
			return nil
		}
		return err
	}

	if existing.SubscriptionStatus == types.SubscriptionStatusCancelled ||
		existing.PlanTier == types.PlanTierFree {
		s.Logger.Errorw("uncancel on a fully cancelled subscription, dropping inconsistent payload",
			"event_id", event.ID,
			"provider", event.Provider,
			"user_id", existing.UserID,
			"status", existing.SubscriptionStatus,
		)
		return nil
	}

	if existing.CancelledAt == nil {
		// Replay of an already-applied uncancel
		return nil
	}

	existing.CancelledAt = nil
	existing.SubscriptionStatus = types.SubscriptionStatusActive
	existing.UpdatedAt = time.Now().UTC()

	if err := s.SubRepo.Upsert(ctx, existing); err != nil {
		return err
	}
	s.invalidate(ctx, existing.UserID)

	s.Logger.Infow("subscription cancellation reverted",
		"user_id", existing.UserID,
		"provider", event.Provider,
	)

	return nil
}

// findExisting resolves the stored record an event refers to, preferring the
// provider subscription id over the customer id.
func (s *subscriptionService) findExisting(ctx context.Context, event *types.SubscriptionEvent) (*subscription.Subscription, error) {
	if event.ProviderSubscriptionID != "" {
		sub, err := s.SubRepo.GetByProviderSubscription(ctx, event.Provider, event.ProviderSubscriptionID)
		if err == nil {
			return sub, nil
		}
		if !ierr.IsNotFound(err) {
			return nil, err
		}
	}

	if event.ProviderCustomerID == "" {
		return nil, ierr.NewError("event carries no customer reference").
			WithHint("Cannot resolve the subscription this event refers to").
			Mark(ierr.ErrNotFound)
	}

	return s.SubRepo.GetByProviderCustomer(ctx, event.Provider, event.ProviderCustomerID)
}

func subscriptionCacheKey(userID string) string {
	return fmt.Sprintf("subscription:%s", userID)
}

// GetCurrentSubscription serves the read-through cached view of the
// canonical state. Users without a record are on the free plan.
func (s *subscriptionService) GetCurrentSubscription(ctx context.Context, userID string) (*dto.SubscriptionResponse, error) {
	if userID == "" {
		return nil, ierr.NewError("user id is required").
			WithHint("Missing user identifier").
			Mark(ierr.ErrValidation)
	}

	key := subscriptionCacheKey(userID)
	if cached, ok := s.Cache.Get(ctx, key); ok {
		if resp, ok := cached.(*dto.SubscriptionResponse); ok {
			return resp, nil
		}
	}

	resp, err := s.loadSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.Cache.Set(ctx, key, resp, cache.DefaultExpiration)
	return resp, nil
}

// RefreshSubscription busts the cache and re-reads the authoritative state.
// This is the reconciliation point for any optimistic client-side mutation.
func (s *subscriptionService) RefreshSubscription(ctx context.Context, userID string) (*dto.SubscriptionResponse, error) {
	s.Cache.Delete(ctx, subscriptionCacheKey(userID))
	return s.GetCurrentSubscription(ctx, userID)
}

func (s *subscriptionService) loadSubscription(ctx context.Context, userID string) (*dto.SubscriptionResponse, error) {
	now := time.Now().UTC()

	sub, err := s.SubRepo.GetByUserID(ctx, userID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return s.freeResponse(userID)
		}
		return nil, err
	}

	tier := sub.PlanTier
	if !sub.HasAccess(now) {
		tier = types.PlanTierFree
	}

	limit, err := s.Registry.LimitFor(tier)
	if err != nil {
		return nil, err
	}

	resp := dto.NewSubscriptionResponse(sub, limit, now)
	resp.PlanTier = tier
	return resp, nil
}

func (s *subscriptionService) freeResponse(userID string) (*dto.SubscriptionResponse, error) {
	limit, err := s.Registry.LimitFor(types.PlanTierFree)
	if err != nil {
		return nil, err
	}
	return dto.NewFreeSubscriptionResponse(userID, limit), nil
}
