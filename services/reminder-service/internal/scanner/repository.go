package scanner

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the pool subset the repository needs; *db.Pool satisfies it, tests
// substitute a pgxmock pool.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// DueBooking is a booked primary slot joined with everything a reminder
// message needs.
type DueBooking struct {
	SlotID         int64
	StartAt        time.Time
	ClientID       int64
	ClientName     string
	ProviderID     int64
	ProviderChatID int64
	ProviderName   string
	ServiceName    *string
}

type Repository struct {
	db DB
}

func NewRepository(database DB) *Repository {
	return &Repository{db: database}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

// FetchWindow returns booked primary slots starting within [from, to) that
// have no ledger entry of the given kind yet. Derived-blocked slots carry no
// client and are excluded by blocked_by IS NULL.
func (r *Repository) FetchWindow(ctx context.Context, kind string, from, to time.Time) ([]DueBooking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.id, s.start_at, s.client_id, COALESCE(c.full_name, ''),
			p.id, p.chat_id, p.name, sv.name
		FROM slots s
		JOIN providers p ON s.provider_id = p.id
		LEFT JOIN clients c ON s.client_id = c.id
		LEFT JOIN services sv ON s.service_id = sv.id
		WHERE s.booked = true
			AND s.blocked_by IS NULL
			AND s.client_id IS NOT NULL
			AND s.start_at >= $2
			AND s.start_at < $3
			AND NOT EXISTS (
				SELECT 1 FROM reminder_ledger rl
				WHERE rl.slot_id = s.id AND rl.kind = $1
			)
		ORDER BY s.start_at
	`, kind, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []DueBooking
	for rows.Next() {
		var d DueBooking
		if err := rows.Scan(&d.SlotID, &d.StartAt, &d.ClientID, &d.ClientName,
			&d.ProviderID, &d.ProviderChatID, &d.ProviderName, &d.ServiceName); err != nil {
			return nil, err
		}
		due = append(due, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return due, nil
}

// RecordSent claims the (slot, kind) ledger entry. A false return means a
// concurrent scan already claimed it and this reminder must not be enqueued.
func (r *Repository) RecordSent(ctx context.Context, tx pgx.Tx, slotID, clientID int64, kind string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO reminder_ledger (slot_id, client_id, kind)
		VALUES ($1, $2, $3)
		ON CONFLICT (slot_id, kind) DO NOTHING
	`, slotID, clientID, kind)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
