package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/okorolenko/masterbook/services/booking-service/internal/model"
)

type SlotRepository struct {
	db DB
}

func NewSlotRepository(database DB) *SlotRepository {
	return &SlotRepository{db: database}
}

func (r *SlotRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

// Insert adds a free slot. The (provider_id, start_at) unique constraint maps
// to ErrDuplicate, a missing provider to ErrNotFound.
func (r *SlotRepository) Insert(ctx context.Context, providerID int64, startAt time.Time) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO slots (provider_id, start_at)
		VALUES ($1, $2)
		RETURNING id
	`, providerID, startAt).Scan(&id)
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

func (r *SlotRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM slots WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ClearDay removes every slot of the provider whose start falls within
// [dayStart, dayStart+24h). Derived-blocked slots of that day go with their
// primaries in the same statement.
func (r *SlotRepository) ClearDay(ctx context.Context, providerID int64, dayStart time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM slots
		WHERE provider_id = $1
			AND start_at >= $2
			AND start_at < $3
	`, providerID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SlotListing is the read-joined provider view: slot state plus occupant and
// service details for presentation.
type SlotListing struct {
	ID             int64
	StartAt        time.Time
	Booked         bool
	BlockedBy      *int64
	ClientID       *int64
	ClientName     *string
	ClientUsername *string
	ServiceName    *string
	ServicePrice   *string
	Category       *string
	Subcategory    *string
}

func (r *SlotRepository) ListJoined(ctx context.Context, providerID int64) ([]SlotListing, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.id, s.start_at, s.booked, s.blocked_by, s.client_id,
			c.full_name, c.username,
			sv.name, sv.price::text, sv.category, sv.subcategory
		FROM slots s
		LEFT JOIN clients c ON s.client_id = c.id
		LEFT JOIN services sv ON s.service_id = sv.id
		WHERE s.provider_id = $1
		ORDER BY s.start_at
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []SlotListing
	for rows.Next() {
		var l SlotListing
		if err := rows.Scan(&l.ID, &l.StartAt, &l.Booked, &l.BlockedBy, &l.ClientID,
			&l.ClientName, &l.ClientUsername,
			&l.ServiceName, &l.ServicePrice, &l.Category, &l.Subcategory); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return listings, nil
}

func (r *SlotRepository) ListUnbooked(ctx context.Context, providerID int64) ([]model.Slot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, provider_id, start_at
		FROM slots
		WHERE provider_id = $1 AND booked = false
		ORDER BY start_at
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []model.Slot
	for rows.Next() {
		var s model.Slot
		if err := rows.Scan(&s.ID, &s.ProviderID, &s.StartAt); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return slots, nil
}

// BookedInterval is a primary booking's start plus its service duration.
// Derived-blocked slots are excluded: they are never independently bookable,
// so their time is already covered by the primary's interval.
type BookedInterval struct {
	StartAt         time.Time
	DurationMinutes *int
}

func (r *SlotRepository) ListBookedPrimary(ctx context.Context, providerID int64) ([]BookedInterval, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.start_at, sv.duration_minutes
		FROM slots s
		LEFT JOIN services sv ON s.service_id = sv.id
		WHERE s.provider_id = $1 AND s.booked = true AND s.blocked_by IS NULL
		ORDER BY s.start_at
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intervals []BookedInterval
	for rows.Next() {
		var iv BookedInterval
		if err := rows.Scan(&iv.StartAt, &iv.DurationMinutes); err != nil {
			return nil, err
		}
		intervals = append(intervals, iv)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return intervals, nil
}

func (r *SlotRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (model.Slot, error) {
	var s model.Slot
	err := tx.QueryRow(ctx, `
		SELECT id, provider_id, start_at, booked, client_id, service_id, blocked_by
		FROM slots
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&s.ID, &s.ProviderID, &s.StartAt, &s.Booked, &s.ClientID, &s.ServiceID, &s.BlockedBy)
	if err != nil {
		if isNoRows(err) {
			return model.Slot{}, model.ErrNotFound
		}
		return model.Slot{}, err
	}
	return s, nil
}

func (r *SlotRepository) GetBookedForClientForUpdate(ctx context.Context, tx pgx.Tx, id, clientID int64) (model.Slot, error) {
	var s model.Slot
	err := tx.QueryRow(ctx, `
		SELECT id, provider_id, start_at, booked, client_id, service_id, blocked_by
		FROM slots
		WHERE id = $1 AND client_id = $2 AND booked = true
		FOR UPDATE
	`, id, clientID).Scan(&s.ID, &s.ProviderID, &s.StartAt, &s.Booked, &s.ClientID, &s.ServiceID, &s.BlockedBy)
	if err != nil {
		if isNoRows(err) {
			return model.Slot{}, model.ErrNotFound
		}
		return model.Slot{}, err
	}
	return s, nil
}

func (r *SlotRepository) MarkBooked(ctx context.Context, tx pgx.Tx, id, clientID int64, serviceID *int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE slots
		SET booked = true, client_id = $2, service_id = $3
		WHERE id = $1
	`, id, clientID, serviceID)
	return err
}

// LockUnbookedBetween returns, locked, the ids of free slots of the provider
// whose start lies strictly inside (primaryStart, end). The caller bounds end
// so the range never leaves primaryStart's calendar day; truncating in SQL
// would use the session timezone, which need not match the app's.
func (r *SlotRepository) LockUnbookedBetween(ctx context.Context, tx pgx.Tx, providerID int64, primaryStart, end time.Time) ([]int64, error) {
	rows, err := tx.Query(ctx, `
		SELECT id
		FROM slots
		WHERE provider_id = $1
			AND booked = false
			AND start_at > $2
			AND start_at < $3
		ORDER BY start_at
		FOR UPDATE
	`, providerID, primaryStart, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return ids, nil
}

func (r *SlotRepository) Block(ctx context.Context, tx pgx.Tx, ids []int64, primaryID int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE slots
		SET booked = true, blocked_by = $2
		WHERE id = ANY($1)
	`, ids, primaryID)
	return err
}

func (r *SlotRepository) ReleaseDependents(ctx context.Context, tx pgx.Tx, primaryID int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE slots
		SET booked = false, blocked_by = NULL, client_id = NULL, service_id = NULL
		WHERE blocked_by = $1
	`, primaryID)
	return err
}

func (r *SlotRepository) ClearBooking(ctx context.Context, tx pgx.Tx, id int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE slots
		SET booked = false, client_id = NULL, service_id = NULL
		WHERE id = $1
	`, id)
	return err
}

// ClientBooking is the client-facing joined view of an active booking.
type ClientBooking struct {
	SlotID       int64
	StartAt      time.Time
	ProviderName string
	ServiceName  *string
	ServicePrice *string
	Category     *string
	Subcategory  *string
}

// ClientBookings lists the client's active future bookings, earliest first.
// Derived-blocked rows are filtered out: the client booked the primary only.
func (r *SlotRepository) ClientBookings(ctx context.Context, clientID int64, now time.Time) ([]ClientBooking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.id, s.start_at, p.name, sv.name, sv.price::text, sv.category, sv.subcategory
		FROM slots s
		JOIN providers p ON s.provider_id = p.id
		LEFT JOIN services sv ON s.service_id = sv.id
		WHERE s.client_id = $1
			AND s.booked = true
			AND s.blocked_by IS NULL
			AND s.start_at > $2
		ORDER BY s.start_at
	`, clientID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []ClientBooking
	for rows.Next() {
		var b ClientBooking
		if err := rows.Scan(&b.SlotID, &b.StartAt, &b.ProviderName, &b.ServiceName, &b.ServicePrice, &b.Category, &b.Subcategory); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return bookings, nil
}
