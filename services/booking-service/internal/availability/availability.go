package availability

import (
	"context"
	"time"

	"github.com/okorolenko/masterbook/services/booking-service/internal/model"
	"github.com/okorolenko/masterbook/services/booking-service/internal/storage"
)

// Candidate is a free slot under consideration.
type Candidate struct {
	ID      int64
	StartAt time.Time
}

// Interval is an occupied half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Filter returns the candidates legally bookable for a service of length
// requested: strictly in the future, strictly past the lead boundary
// now+lead, and not overlapping any busy interval. Input order is preserved.
func Filter(candidates []Candidate, busy []Interval, requested, lead time.Duration, now time.Time) []Candidate {
	boundary := now.Add(lead)
	var out []Candidate
	for _, c := range candidates {
		if !c.StartAt.After(now) {
			continue
		}
		if !c.StartAt.After(boundary) {
			continue
		}
		if overlapsAny(c.StartAt, c.StartAt.Add(requested), busy) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}

type slotStore interface {
	ListUnbooked(ctx context.Context, providerID int64) ([]model.Slot, error)
	ListBookedPrimary(ctx context.Context, providerID int64) ([]storage.BookedInterval, error)
}

type providerStore interface {
	GetProvider(ctx context.Context, id int64) (model.Provider, error)
}

// Engine computes the bookable slot set for a provider against live storage.
type Engine struct {
	slots   slotStore
	catalog providerStore
}

func NewEngine(slots slotStore, catalog providerStore) *Engine {
	return &Engine{slots: slots, catalog: catalog}
}

// AvailableSlots returns the slots bookable as of now for a service of the
// requested duration, ascending by start time. A non-positive duration falls
// back to the base slot granularity. The caller supplies now so the lead-time
// cut applies against the same clock the rest of the request uses.
func (e *Engine) AvailableSlots(ctx context.Context, providerID int64, requested time.Duration, now time.Time) ([]Candidate, error) {
	provider, err := e.catalog.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if requested <= 0 {
		requested = model.DefaultServiceDuration
	}

	unbooked, err := e.slots.ListUnbooked(ctx, providerID)
	if err != nil {
		return nil, err
	}
	booked, err := e.slots.ListBookedPrimary(ctx, providerID)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(unbooked))
	for _, s := range unbooked {
		candidates = append(candidates, Candidate{ID: s.ID, StartAt: s.StartAt})
	}

	busy := make([]Interval, 0, len(booked))
	for _, b := range booked {
		dur := model.DefaultServiceDuration
		if b.DurationMinutes != nil && *b.DurationMinutes > 0 {
			dur = time.Duration(*b.DurationMinutes) * time.Minute
		}
		busy = append(busy, Interval{Start: b.StartAt, End: b.StartAt.Add(dur)})
	}

	lead := time.Duration(provider.MinLeadHours) * time.Hour
	return Filter(candidates, busy, requested, lead, now), nil
}
