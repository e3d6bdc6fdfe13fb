package reporting

import (
	"testing"
	"time"
)

func mustLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestBucketKeyWeeklyStartsOnMonday(t *testing.T) {
	loc := mustLoc(t)
	cases := []struct {
		in   time.Time
		want time.Time
	}{
		// Sunday maps back six days, Monday maps to itself.
		{time.Date(2026, 3, 8, 15, 0, 0, 0, loc), time.Date(2026, 3, 2, 0, 0, 0, 0, loc)},
		{time.Date(2026, 3, 2, 0, 0, 0, 0, loc), time.Date(2026, 3, 2, 0, 0, 0, 0, loc)},
		{time.Date(2026, 3, 7, 23, 59, 0, 0, loc), time.Date(2026, 3, 2, 0, 0, 0, 0, loc)},
		// Week spanning a month boundary keys on the Monday in the old month.
		{time.Date(2026, 4, 1, 9, 0, 0, 0, loc), time.Date(2026, 3, 30, 0, 0, 0, 0, loc)},
	}
	for _, tc := range cases {
		got := BucketKey(tc.in, FreqWeekly, loc)
		if !got.Equal(tc.want) {
			t.Errorf("BucketKey(%v, weekly) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestBucketKeyQuarterly(t *testing.T) {
	loc := mustLoc(t)
	cases := []struct {
		in        time.Time
		wantMonth time.Month
	}{
		{time.Date(2026, 1, 15, 0, 0, 0, 0, loc), time.January},
		{time.Date(2026, 3, 31, 0, 0, 0, 0, loc), time.January},
		{time.Date(2026, 5, 2, 0, 0, 0, 0, loc), time.April},
		{time.Date(2026, 9, 30, 0, 0, 0, 0, loc), time.July},
		{time.Date(2026, 12, 1, 0, 0, 0, 0, loc), time.October},
	}
	for _, tc := range cases {
		got := BucketKey(tc.in, FreqQuarterly, loc)
		if got.Month() != tc.wantMonth || got.Day() != 1 {
			t.Errorf("BucketKey(%v, quarterly) = %v, want month %v day 1", tc.in, got, tc.wantMonth)
		}
	}
}

func TestBucketKeyZoneConversion(t *testing.T) {
	loc := mustLoc(t)
	// 18:00 UTC on the 1st is already the 2nd in Manila.
	in := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	got := BucketKey(in, FreqDaily, loc)
	want := time.Date(2026, 6, 2, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("BucketKey(%v, daily) = %v, want %v", in, got, want)
	}
}

func TestBucketRangeContiguous(t *testing.T) {
	loc := mustLoc(t)
	start := time.Date(2026, 1, 10, 0, 0, 0, 0, loc)
	end := time.Date(2026, 4, 2, 0, 0, 0, 0, loc)

	months := BucketRange(start, end, FreqMonthly, loc)
	if len(months) != 4 {
		t.Fatalf("monthly buckets = %d, want 4", len(months))
	}
	for i, want := range []string{"2026-01", "2026-02", "2026-03", "2026-04"} {
		if got := FormatBucket(months[i], FreqMonthly); got != want {
			t.Errorf("bucket %d = %s, want %s", i, got, want)
		}
	}

	weeks := BucketRange(start, end, FreqWeekly, loc)
	for i := 1; i < len(weeks); i++ {
		if d := weeks[i].Sub(weeks[i-1]); d != 7*24*time.Hour {
			t.Errorf("week step %d = %v, want 168h", i, d)
		}
	}
	if weeks[0].Weekday() != time.Monday {
		t.Errorf("first week bucket starts %v, want Monday", weeks[0].Weekday())
	}
}

func TestBucketRangeInvertedIsEmpty(t *testing.T) {
	loc := mustLoc(t)
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, loc)
	end := time.Date(2026, 1, 1, 0, 0, 0, 0, loc)
	if got := BucketRange(start, end, FreqDaily, loc); got != nil {
		t.Errorf("inverted range produced %d buckets, want none", len(got))
	}
}

func TestFormatBucket(t *testing.T) {
	loc := mustLoc(t)
	b := time.Date(2026, 10, 1, 0, 0, 0, 0, loc)
	if got := FormatBucket(b, FreqQuarterly); got != "2026-Q4" {
		t.Errorf("quarterly label = %s, want 2026-Q4", got)
	}
	if got := FormatBucket(b, FreqMonthly); got != "2026-10" {
		t.Errorf("monthly label = %s, want 2026-10", got)
	}
	if got := FormatBucket(b, FreqDaily); got != "2026-10-01" {
		t.Errorf("daily label = %s, want 2026-10-01", got)
	}
}
