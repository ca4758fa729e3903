package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/okorolenko/masterbook/libs/outbox"
	"github.com/okorolenko/masterbook/services/booking-service/internal/model"
	"github.com/okorolenko/masterbook/services/booking-service/internal/storage"
)

func newTestEngine(t *testing.T, now time.Time) (*Engine, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)

	e := NewEngine(storage.NewSlotRepository(mock), storage.NewCatalogRepository(mock), outbox.NewRepository())
	e.now = func() time.Time { return now }
	return e, mock
}

func TestBookLongServiceBlocksFollowingSlots(t *testing.T) {
	now := time.Date(2025, 6, 16, 8, 0, 0, 0, time.UTC)
	start := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	e, mock := newTestEngine(t, now)

	dur := 60
	serviceID := int64(7)
	client := model.Client{ID: 100, Username: "bob", FullName: "Bob"}

	mock.ExpectQuery("FROM services").WithArgs(serviceID).WillReturnRows(
		pgxmock.NewRows([]string{"id", "provider_id", "category", "subcategory", "name", "price", "duration_minutes", "description"}).
			AddRow(serviceID, int64(3), "hair", (*string)(nil), "Color", "50.00", &dur, ""))
	mock.ExpectExec("INSERT INTO clients").WithArgs(int64(100), "bob", "Bob").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(int64(42)).WillReturnRows(
		pgxmock.NewRows([]string{"id", "provider_id", "start_at", "booked", "client_id", "service_id", "blocked_by"}).
			AddRow(int64(42), int64(3), start, false, (*int64)(nil), (*int64)(nil), (*int64)(nil)))
	mock.ExpectQuery("FROM providers").WithArgs(int64(3)).WillReturnRows(
		pgxmock.NewRows([]string{"id", "chat_id", "name", "description", "min_lead_hours"}).
			AddRow(int64(3), int64(555), "Anna", "", 0))
	mock.ExpectExec("SET booked = true, client_id").WithArgs(int64(42), int64(100), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("booked = false").WithArgs(int64(3), start, start.Add(time.Hour)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(43)))
	mock.ExpectExec("SET booked = true, blocked_by").WithArgs([]int64{43}, int64(42)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(pgxmock.AnyArg(), "slot", "42", EventBookingCreated, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	slot, err := e.Book(context.Background(), 42, client, &serviceID)
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}
	if !slot.Booked || slot.ClientID == nil || *slot.ClientID != 100 {
		t.Fatalf("unexpected slot after booking: %+v", slot)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBookLateSlotStopsBlockingAtMidnight(t *testing.T) {
	now := time.Date(2025, 6, 16, 8, 0, 0, 0, time.UTC)
	start := time.Date(2025, 6, 16, 23, 30, 0, 0, time.UTC)
	midnight := time.Date(2025, 6, 17, 0, 0, 0, 0, time.UTC)
	e, mock := newTestEngine(t, now)

	dur := 90
	serviceID := int64(7)
	client := model.Client{ID: 100, Username: "bob", FullName: "Bob"}

	mock.ExpectQuery("FROM services").WithArgs(serviceID).WillReturnRows(
		pgxmock.NewRows([]string{"id", "provider_id", "category", "subcategory", "name", "price", "duration_minutes", "description"}).
			AddRow(serviceID, int64(3), "hair", (*string)(nil), "Color", "50.00", &dur, ""))
	mock.ExpectExec("INSERT INTO clients").WithArgs(int64(100), "bob", "Bob").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(int64(42)).WillReturnRows(
		pgxmock.NewRows([]string{"id", "provider_id", "start_at", "booked", "client_id", "service_id", "blocked_by"}).
			AddRow(int64(42), int64(3), start, false, (*int64)(nil), (*int64)(nil), (*int64)(nil)))
	mock.ExpectQuery("FROM providers").WithArgs(int64(3)).WillReturnRows(
		pgxmock.NewRows([]string{"id", "chat_id", "name", "description", "min_lead_hours"}).
			AddRow(int64(3), int64(555), "Anna", "", 0))
	mock.ExpectExec("SET booked = true, client_id").WithArgs(int64(42), int64(100), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("booked = false").WithArgs(int64(3), start, midnight).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(pgxmock.AnyArg(), "slot", "42", EventBookingCreated, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if _, err := e.Book(context.Background(), 42, client, &serviceID); err != nil {
		t.Fatalf("book failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBookWithoutServiceSkipsBlocking(t *testing.T) {
	now := time.Date(2025, 6, 16, 8, 0, 0, 0, time.UTC)
	start := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	e, mock := newTestEngine(t, now)

	client := model.Client{ID: 100, Username: "bob", FullName: "Bob"}

	mock.ExpectExec("INSERT INTO clients").WithArgs(int64(100), "bob", "Bob").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(int64(42)).WillReturnRows(
		pgxmock.NewRows([]string{"id", "provider_id", "start_at", "booked", "client_id", "service_id", "blocked_by"}).
			AddRow(int64(42), int64(3), start, false, (*int64)(nil), (*int64)(nil), (*int64)(nil)))
	mock.ExpectQuery("FROM providers").WithArgs(int64(3)).WillReturnRows(
		pgxmock.NewRows([]string{"id", "chat_id", "name", "description", "min_lead_hours"}).
			AddRow(int64(3), int64(555), "Anna", "", 0))
	mock.ExpectExec("SET booked = true, client_id").WithArgs(int64(42), int64(100), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(pgxmock.AnyArg(), "slot", "42", EventBookingCreated, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if _, err := e.Book(context.Background(), 42, client, nil); err != nil {
		t.Fatalf("book failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBookOccupiedSlotFails(t *testing.T) {
	now := time.Date(2025, 6, 16, 8, 0, 0, 0, time.UTC)
	start := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	e, mock := newTestEngine(t, now)

	otherClient := int64(999)
	mock.ExpectExec("INSERT INTO clients").WithArgs(int64(100), "bob", "Bob").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(int64(42)).WillReturnRows(
		pgxmock.NewRows([]string{"id", "provider_id", "start_at", "booked", "client_id", "service_id", "blocked_by"}).
			AddRow(int64(42), int64(3), start, true, &otherClient, (*int64)(nil), (*int64)(nil)))
	mock.ExpectRollback()

	_, err := e.Book(context.Background(), 42, model.Client{ID: 100, Username: "bob", FullName: "Bob"}, nil)
	if !errors.Is(err, model.ErrAlreadyBooked) {
		t.Fatalf("expected ErrAlreadyBooked, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBookPastSlotFails(t *testing.T) {
	now := time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)
	start := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	e, mock := newTestEngine(t, now)

	mock.ExpectExec("INSERT INTO clients").WithArgs(int64(100), "bob", "Bob").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(int64(42)).WillReturnRows(
		pgxmock.NewRows([]string{"id", "provider_id", "start_at", "booked", "client_id", "service_id", "blocked_by"}).
			AddRow(int64(42), int64(3), start, false, (*int64)(nil), (*int64)(nil), (*int64)(nil)))
	mock.ExpectRollback()

	_, err := e.Book(context.Background(), 42, model.Client{ID: 100, Username: "bob", FullName: "Bob"}, nil)
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCancelReleasesDependents(t *testing.T) {
	now := time.Date(2025, 6, 16, 8, 0, 0, 0, time.UTC)
	start := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	e, mock := newTestEngine(t, now)

	clientID := int64(100)
	serviceID := int64(7)
	dur := 60

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(int64(42), clientID).WillReturnRows(
		pgxmock.NewRows([]string{"id", "provider_id", "start_at", "booked", "client_id", "service_id", "blocked_by"}).
			AddRow(int64(42), int64(3), start, true, &clientID, &serviceID, (*int64)(nil)))
	mock.ExpectQuery("FROM services").WithArgs(serviceID).WillReturnRows(
		pgxmock.NewRows([]string{"id", "provider_id", "category", "subcategory", "name", "price", "duration_minutes", "description"}).
			AddRow(serviceID, int64(3), "hair", (*string)(nil), "Color", "50.00", &dur, ""))
	mock.ExpectQuery("FROM providers").WithArgs(int64(3)).WillReturnRows(
		pgxmock.NewRows([]string{"id", "chat_id", "name", "description", "min_lead_hours"}).
			AddRow(int64(3), int64(555), "Anna", "", 0))
	mock.ExpectExec("blocked_by = NULL").WithArgs(int64(42)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("SET booked = false, client_id = NULL").WithArgs(int64(42)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(pgxmock.AnyArg(), "slot", "42", EventBookingCancelled, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	slot, err := e.Cancel(context.Background(), 42, clientID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if slot.Booked || slot.ClientID != nil {
		t.Fatalf("unexpected slot after cancel: %+v", slot)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCancelForeignBookingNotFound(t *testing.T) {
	e, mock := newTestEngine(t, time.Now())

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(int64(42), int64(100)).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := e.Cancel(context.Background(), 42, 100)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
