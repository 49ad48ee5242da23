package types

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestComputeBillingPeriod(t *testing.T) {
	tests := []struct {
		name      string
		anchor    time.Time
		now       time.Time
		wantStart time.Time
		wantEnd   time.Time
		wantErr   bool
	}{
		{
			name:      "anchor 31 into leap February",
			anchor:    date(2024, time.January, 31),
			now:       date(2024, time.February, 15),
			wantStart: date(2024, time.January, 31),
			wantEnd:   date(2024, time.February, 28),
		},
		{
			name:      "anchor 31 into non-leap February",
			anchor:    date(2023, time.January, 31),
			now:       date(2023, time.February, 15),
			wantStart: date(2023, time.January, 31),
			wantEnd:   date(2023, time.February, 27),
		},
		{
			name:      "year rollover December to January",
			anchor:    date(2023, time.November, 15),
			now:       date(2024, time.January, 5),
			wantStart: date(2023, time.December, 15),
			wantEnd:   date(2024, time.January, 14),
		},
		{
			name:      "now exactly on the boundary starts the new period",
			anchor:    date(2024, time.January, 15),
			now:       date(2024, time.March, 15),
			wantStart: date(2024, time.March, 15),
			wantEnd:   date(2024, time.April, 14),
		},
		{
			name:      "now just before the boundary stays in the old period",
			anchor:    date(2024, time.January, 15),
			now:       time.Date(2024, time.March, 14, 23, 59, 59, 0, time.UTC),
			wantStart: date(2024, time.February, 15),
			wantEnd:   date(2024, time.March, 14),
		},
		{
			name:      "anchor 31 inside non-leap February",
			anchor:    date(2023, time.January, 31),
			now:       date(2023, time.February, 28),
			wantStart: date(2023, time.February, 28),
			wantEnd:   date(2023, time.March, 30),
		},
		{
			name:      "anchor 31 inside leap February",
			anchor:    date(2024, time.January, 31),
			now:       time.Date(2024, time.February, 29, 10, 0, 0, 0, time.UTC),
			wantStart: date(2024, time.February, 29),
			wantEnd:   date(2024, time.March, 30),
		},
		{
			name:      "anchor 31 in a 30-day month clamps to the 30th",
			anchor:    date(2024, time.March, 31),
			now:       date(2024, time.May, 10),
			wantStart: date(2024, time.April, 30),
			wantEnd:   date(2024, time.May, 30),
		},
		{
			name:      "anchor 30 does not inherit February's clamp",
			anchor:    date(2023, time.January, 30),
			now:       date(2023, time.March, 15),
			wantStart: date(2023, time.February, 28),
			wantEnd:   date(2023, time.March, 29),
		},
		{
			name:      "anchor day 1",
			anchor:    date(2024, time.June, 1),
			now:       date(2024, time.July, 20),
			wantStart: date(2024, time.July, 1),
			wantEnd:   date(2024, time.July, 31),
		},
		{
			name:      "same day as anchor",
			anchor:    date(2024, time.June, 10),
			now:       time.Date(2024, time.June, 10, 8, 30, 0, 0, time.UTC),
			wantStart: date(2024, time.June, 10),
			wantEnd:   date(2024, time.July, 9),
		},
		{
			name:    "anchor in the future",
			anchor:  date(2025, time.January, 1),
			now:     date(2024, time.June, 1),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := ComputeBillingPeriod(tt.anchor, tt.now)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got periods %v - %v", start, end)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !start.Equal(tt.wantStart) {
				t.Errorf("period start = %v, want %v", start, tt.wantStart)
			}
			if !end.Equal(tt.wantEnd) {
				t.Errorf("period end = %v, want %v", end, tt.wantEnd)
			}
		})
	}
}

// Every anchor day across a full leap year must produce a window that
// contains "now" and whose boundaries stay clamped inside their months.
func TestComputeBillingPeriod_AllAnchorDays(t *testing.T) {
	for anchorDay := 1; anchorDay <= 31; anchorDay++ {
		anchor := date(2023, time.January, anchorDay)
		if anchor.Month() != time.January {
			// January has 31 days, so this cannot normalize away
			t.Fatalf("anchor day %d normalized out of January", anchorDay)
		}
		for m := time.March; m <= time.December; m++ {
			now := date(2024, m, 15)
			start, end, err := ComputeBillingPeriod(anchor, now)
			if err != nil {
				t.Fatalf("anchor day %d month %s: %v", anchorDay, m, err)
			}
			if now.Before(start) || now.After(end.AddDate(0, 0, 1)) {
				t.Errorf("anchor day %d month %s: now %v outside window [%v, %v]",
					anchorDay, m, now, start, end)
			}
			if start.Day() > anchorDay {
				t.Errorf("anchor day %d: start day %d exceeds anchor", anchorDay, start.Day())
			}
			if !end.After(start) {
				t.Errorf("anchor day %d month %s: end %v not after start %v", anchorDay, m, end, start)
			}
		}
	}
}

func TestDaysInMonth(t *testing.T) {
	cases := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2024, time.February, 29},
		{2023, time.February, 28},
		{2024, time.April, 30},
		{2024, time.December, 31},
		{2100, time.February, 28}, // century non-leap
		{2000, time.February, 29}, // 400-year leap
	}
	for _, c := range cases {
		if got := daysInMonth(c.year, c.month); got != c.want {
			t.Errorf("daysInMonth(%d, %s) = %d, want %d", c.year, c.month, got, c.want)
		}
	}
}
