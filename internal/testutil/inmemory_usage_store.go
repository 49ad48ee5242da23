package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/forgia-ai/bank-convert-billing/internal/domain/usage"
	ierr "github.com/forgia-ai/bank-convert-billing/internal/errors"
	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

// InMemoryUsageStore implements usage.Repository with the same uniqueness
// and atomic-increment semantics as the postgres implementation
type InMemoryUsageStore struct {
	mu sync.Mutex
	// keyed by user id + period start unix
	periods map[string]*usage.PeriodRecord
	entries []*usage.LogEntry

	// FailLogInserts makes InsertLogEntry return a database error, for
	// exercising the audit-write-failure path
	FailLogInserts bool
}

func NewInMemoryUsageStore() *InMemoryUsageStore {
	return &InMemoryUsageStore{
		periods: make(map[string]*usage.PeriodRecord),
	}
}

func periodKey(userID string, periodStart time.Time) string {
	return userID + "/" + periodStart.UTC().Format(time.RFC3339)
}

func (s *InMemoryUsageStore) GetPeriodRecord(_ context.Context, userID string, periodStart time.Time) (*usage.PeriodRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.periods[periodKey(userID, periodStart)]; ok {
		copied := *record
		return &copied, nil
	}
	return nil, ierr.NewError("usage period not found").
		WithHint("No usage record exists for this period").
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryUsageStore) CreatePeriodRecord(_ context.Context, record *usage.PeriodRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := periodKey(record.UserID, record.PeriodStart)
	if _, ok := s.periods[key]; ok {
		return ierr.NewError("usage period already exists").
			WithHint("A usage record already exists for this period").
			Mark(ierr.ErrAlreadyExists)
	}
	copied := *record
	s.periods[key] = &copied
	return nil
}

func (s *InMemoryUsageStore) IncrementPagesConsumed(_ context.Context, userID string, periodStart time.Time, pages int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.periods[periodKey(userID, periodStart)]
	if !ok {
		return ierr.NewError("usage period not found").
			WithHint("No usage record exists for this period").
			Mark(ierr.ErrNotFound)
	}
	record.PagesConsumed += pages
	record.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryUsageStore) UpdatePlanTier(_ context.Context, userID string, periodStart time.Time, tier types.PlanTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.periods[periodKey(userID, periodStart)]
	if !ok {
		return ierr.NewError("usage period not found").
			WithHint("No usage record exists for this period").
			Mark(ierr.ErrNotFound)
	}
	record.PlanTier = tier
	record.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryUsageStore) ListPeriodRecords(_ context.Context, userID string) ([]*usage.PeriodRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []*usage.PeriodRecord
	for _, record := range s.periods {
		if record.UserID == userID {
			copied := *record
			records = append(records, &copied)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].PeriodStart.After(records[j].PeriodStart)
	})
	return records, nil
}

func (s *InMemoryUsageStore) InsertLogEntry(_ context.Context, entry *usage.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailLogInserts {
		return ierr.NewError("failed to insert usage log entry").
			WithHint("Usage log write failed").
			Mark(ierr.ErrDatabase)
	}
	copied := *entry
	s.entries = append(s.entries, &copied)
	return nil
}

// LogEntries returns a copy of all recorded audit entries
func (s *InMemoryUsageStore) LogEntries() []*usage.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]*usage.LogEntry, len(s.entries))
	copy(entries, s.entries)
	return entries
}

// Clear removes all stored records
func (s *InMemoryUsageStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods = make(map[string]*usage.PeriodRecord)
	s.entries = nil
	s.FailLogInserts = false
}
