package testutil

import (
	"context"
	"sync"

	"github.com/forgia-ai/bank-convert-billing/internal/domain/subscription"
	ierr "github.com/forgia-ai/bank-convert-billing/internal/errors"
	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

// InMemorySubscriptionStore implements subscription.Repository with the same
// natural-key upsert semantics as the postgres implementation
type InMemorySubscriptionStore struct {
	mu sync.RWMutex
	// keyed by provider + provider customer id
	items map[string]*subscription.Subscription
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		items: make(map[string]*subscription.Subscription),
	}
}

func subscriptionKey(provider types.PaymentProvider, customerID string) string {
	return string(provider) + "/" + customerID
}

func (s *InMemorySubscriptionStore) Upsert(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := subscriptionKey(sub.Provider, sub.ProviderCustomerID)
	if existing, ok := s.items[key]; ok {
		// natural key wins over the generated id on replay
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	}
	copied := *sub
	s.items[key] = &copied
	return nil
}

func (s *InMemorySubscriptionStore) GetByUserID(_ context.Context, userID string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.items {
		if sub.UserID == userID {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, ierr.NewError("subscription not found").
		WithHint("No subscription exists for this user").
		Mark(ierr.ErrNotFound)
}

func (s *InMemorySubscriptionStore) GetByProviderCustomer(_ context.Context, provider types.PaymentProvider, customerID string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub, ok := s.items[subscriptionKey(provider, customerID)]; ok {
		copied := *sub
		return &copied, nil
	}
	return nil, ierr.NewError("subscription not found").
		WithHint("No subscription exists for this customer").
		Mark(ierr.ErrNotFound)
}

func (s *InMemorySubscriptionStore) GetByProviderSubscription(_ context.Context, provider types.PaymentProvider, subscriptionID string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.items {
		if sub.Provider == provider &&
			sub.ProviderSubscriptionID != nil &&
			*sub.ProviderSubscriptionID == subscriptionID {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, ierr.NewError("subscription not found").
		WithHint("No subscription exists with this provider subscription id").
		Mark(ierr.ErrNotFound)
}

// Count returns the number of stored subscriptions
func (s *InMemorySubscriptionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Clear removes all stored subscriptions
func (s *InMemorySubscriptionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*subscription.Subscription)
}
