package storage

import (
	"context"
	"time"

	"github.com/okorolenko/masterbook/services/booking-service/internal/model"
)

// TemplateRepository persists the weekly recurring pattern and its day-off
// exceptions.
type TemplateRepository struct {
	db DB
}

func NewTemplateRepository(database DB) *TemplateRepository {
	return &TemplateRepository{db: database}
}

func (r *TemplateRepository) AddEntry(ctx context.Context, providerID int64, dayOfWeek int, startClock string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO template_entries (provider_id, day_of_week, start_clock)
		VALUES ($1, $2, $3)
		RETURNING id
	`, providerID, dayOfWeek, startClock).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, model.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return 0, model.ErrNotFound
		}
		return 0, err
	}
	return id, nil
}

func (r *TemplateRepository) ListDay(ctx context.Context, providerID int64, dayOfWeek int) ([]model.TemplateEntry, error) {
	return r.list(ctx, `
		SELECT id, provider_id, day_of_week, start_clock
		FROM template_entries
		WHERE provider_id = $1 AND day_of_week = $2
		ORDER BY start_clock
	`, providerID, dayOfWeek)
}

func (r *TemplateRepository) ListAll(ctx context.Context, providerID int64) ([]model.TemplateEntry, error) {
	return r.list(ctx, `
		SELECT id, provider_id, day_of_week, start_clock
		FROM template_entries
		WHERE provider_id = $1
		ORDER BY day_of_week, start_clock
	`, providerID)
}

func (r *TemplateRepository) list(ctx context.Context, query string, args ...any) ([]model.TemplateEntry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.TemplateEntry
	for rows.Next() {
		var e model.TemplateEntry
		if err := rows.Scan(&e.ID, &e.ProviderID, &e.DayOfWeek, &e.StartClock); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return entries, nil
}

func (r *TemplateRepository) DeleteEntry(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM template_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *TemplateRepository) AddDayOff(ctx context.Context, providerID int64, day time.Time) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO days_off (provider_id, day)
		VALUES ($1, $2)
		RETURNING id
	`, providerID, day).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, model.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return 0, model.ErrNotFound
		}
		return 0, err
	}
	return id, nil
}

func (r *TemplateRepository) ListDaysOff(ctx context.Context, providerID int64) ([]model.DayOff, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, provider_id, day
		FROM days_off
		WHERE provider_id = $1
		ORDER BY day
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []model.DayOff
	for rows.Next() {
		var d model.DayOff
		if err := rows.Scan(&d.ID, &d.ProviderID, &d.Day); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return days, nil
}

func (r *TemplateRepository) DeleteDayOff(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM days_off WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *TemplateRepository) IsDayOff(ctx context.Context, providerID int64, day time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM days_off WHERE provider_id = $1 AND day = $2
		)
	`, providerID, day).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
