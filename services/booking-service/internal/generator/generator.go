// Package generator expands a provider's weekly template into concrete slots.
package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okorolenko/masterbook/libs/slottime"
	"github.com/okorolenko/masterbook/services/booking-service/internal/model"
)

// ErrNoTemplate reports that the provider has no weekly template configured,
// so there is nothing to expand.
var ErrNoTemplate = errors.New("no template configured")

type slotStore interface {
	Insert(ctx context.Context, providerID int64, startAt time.Time) (int64, error)
}

type templateStore interface {
	ListAll(ctx context.Context, providerID int64) ([]model.TemplateEntry, error)
	IsDayOff(ctx context.Context, providerID int64, day time.Time) (bool, error)
}

// Result reports what a generation run did. Skipped covers both day-off
// suppression and slots that already existed; Errors collects per-slot
// failures without aborting the run.
type Result struct {
	Created int
	Skipped int
	Errors  []string
}

type Generator struct {
	slots     slotStore
	templates templateStore
}

func NewGenerator(slots slotStore, templates templateStore) *Generator {
	return &Generator{slots: slots, templates: templates}
}

// Generate materialises the template over [from, from+days). Existing slots
// and whole days off count as skipped, never as errors; a failed insert is
// recorded and the run continues. Generation is idempotent: re-running over
// the same window creates nothing new.
func (g *Generator) Generate(ctx context.Context, providerID int64, from time.Time, days int) (Result, error) {
	var res Result

	entries, err := g.templates.ListAll(ctx, providerID)
	if err != nil {
		return res, err
	}
	if len(entries) == 0 {
		return res, ErrNoTemplate
	}

	byWeekday := make(map[int][]model.TemplateEntry)
	for _, e := range entries {
		byWeekday[e.DayOfWeek] = append(byWeekday[e.DayOfWeek], e)
	}

	loc := from.Location()
	for d := 0; d < days; d++ {
		day := from.AddDate(0, 0, d)
		day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)

		dayEntries := byWeekday[slottime.WeekdayIndex(day)]
		if len(dayEntries) == 0 {
			continue
		}

		off, err := g.templates.IsDayOff(ctx, providerID, day)
		if err != nil {
			return res, err
		}
		if off {
			res.Skipped += len(dayEntries)
			continue
		}

		for _, e := range dayEntries {
			hour, minute, err := slottime.ParseClock(e.StartClock)
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("%s %s: %v", slottime.FormatDay(day), e.StartClock, err))
				continue
			}
			startAt := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)

			switch _, err := g.slots.Insert(ctx, providerID, startAt); {
			case err == nil:
				res.Created++
			case errors.Is(err, model.ErrDuplicate):
				res.Skipped++
			default:
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", slottime.Format(startAt), err))
			}
		}
	}
	return res, nil
}
