package availability

import (
	"testing"
	"time"
)

func at(t *testing.T, hour, minute int) time.Time {
	t.Helper()
	return time.Date(2025, 6, 16, hour, minute, 0, 0, time.UTC)
}

func TestFilter_LeadBoundaryExclusive(t *testing.T) {
	now := at(t, 10, 0)
	candidates := []Candidate{
		{ID: 1, StartAt: at(t, 16, 0)},
		{ID: 2, StartAt: at(t, 16, 1)},
	}

	got := Filter(candidates, nil, 30*time.Minute, 6*time.Hour, now)

	if len(got) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(got))
	}
	if got[0].ID != 2 {
		t.Fatalf("expected slot at 16:01 to survive, got slot %d", got[0].ID)
	}
}

func TestFilter_PastAndNowExcluded(t *testing.T) {
	now := at(t, 10, 0)
	candidates := []Candidate{
		{ID: 1, StartAt: at(t, 9, 30)},
		{ID: 2, StartAt: at(t, 10, 0)}, // equal to now counts as past
		{ID: 3, StartAt: at(t, 10, 30)},
	}

	got := Filter(candidates, nil, 30*time.Minute, 0, now)

	if len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("expected only slot 3, got %+v", got)
	}
}

func TestFilter_OverlapAgainstBookingTrueDuration(t *testing.T) {
	// A 90-minute booking at 10:00 occupies [10:00, 11:30): free slots at
	// 10:30 and 11:00 must be unavailable, 11:30 stays available.
	now := at(t, 8, 0)
	busy := []Interval{{Start: at(t, 10, 0), End: at(t, 11, 30)}}
	candidates := []Candidate{
		{ID: 1, StartAt: at(t, 10, 30)},
		{ID: 2, StartAt: at(t, 11, 0)},
		{ID: 3, StartAt: at(t, 11, 30)},
	}

	got := Filter(candidates, busy, 30*time.Minute, 0, now)

	if len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("expected only the 11:30 slot, got %+v", got)
	}
}

func TestFilter_CandidateDurationReachesIntoBooking(t *testing.T) {
	// A 60-minute request at 09:30 would run into a booking at 10:00.
	now := at(t, 8, 0)
	busy := []Interval{{Start: at(t, 10, 0), End: at(t, 10, 30)}}
	candidates := []Candidate{
		{ID: 1, StartAt: at(t, 9, 30)},
		{ID: 2, StartAt: at(t, 10, 30)},
	}

	got := Filter(candidates, busy, time.Hour, 0, now)

	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("expected only slot 2, got %+v", got)
	}
}

func TestFilter_TouchingIntervalsDoNotOverlap(t *testing.T) {
	// Half-open semantics: a request ending exactly where a booking starts is fine.
	now := at(t, 8, 0)
	busy := []Interval{{Start: at(t, 10, 0), End: at(t, 10, 30)}}
	candidates := []Candidate{{ID: 1, StartAt: at(t, 9, 30)}}

	got := Filter(candidates, busy, 30*time.Minute, 0, now)

	if len(got) != 1 {
		t.Fatalf("expected the touching slot to survive, got %+v", got)
	}
}

func TestFilter_PreservesOrder(t *testing.T) {
	now := at(t, 8, 0)
	candidates := []Candidate{
		{ID: 1, StartAt: at(t, 9, 0)},
		{ID: 2, StartAt: at(t, 9, 30)},
		{ID: 3, StartAt: at(t, 10, 0)},
	}

	got := Filter(candidates, nil, 30*time.Minute, 0, now)

	if len(got) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(got))
	}
	for i, c := range got {
		if c.ID != int64(i+1) {
			t.Fatalf("order not preserved: %+v", got)
		}
	}
}
