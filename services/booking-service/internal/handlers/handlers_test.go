package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/okorolenko/masterbook/libs/outbox"
	"github.com/okorolenko/masterbook/services/booking-service/internal/availability"
	"github.com/okorolenko/masterbook/services/booking-service/internal/booking"
	"github.com/okorolenko/masterbook/services/booking-service/internal/generator"
	"github.com/okorolenko/masterbook/services/booking-service/internal/storage"
)

func newTestHandler(t *testing.T, now time.Time) (*http.ServeMux, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)

	slots := storage.NewSlotRepository(mock)
	catalog := storage.NewCatalogRepository(mock)
	templates := storage.NewTemplateRepository(mock)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(
		catalog,
		slots,
		templates,
		availability.NewEngine(slots, catalog),
		booking.NewEngine(slots, catalog, outbox.NewRepository()),
		generator.NewGenerator(slots, templates),
		logger,
	)
	h.now = func() time.Time { return now }

	mux := http.NewServeMux()
	h.Register(mux)
	return mux, mock
}

func TestAddSlotCreates(t *testing.T) {
	now := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	mux, mock := newTestHandler(t, now)

	mock.ExpectQuery("INSERT INTO slots").
		WithArgs(int64(3), time.Date(2025, 6, 17, 14, 0, 0, 0, time.UTC)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/providers/3/slots", strings.NewReader(`{"datetime":"17.06 14:00"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"id":42`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAddSlotRejectsPastDatetime(t *testing.T) {
	now := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	mux, _ := newTestHandler(t, now)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/providers/3/slots", strings.NewReader(`{"datetime":"15.06 14:00"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAddSlotDuplicateConflicts(t *testing.T) {
	now := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	mux, mock := newTestHandler(t, now)

	mock.ExpectQuery("INSERT INTO slots").
		WithArgs(int64(3), time.Date(2025, 6, 17, 14, 0, 0, 0, time.UTC)).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/providers/3/slots", strings.NewReader(`{"datetime":"17.06 14:00"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestDeleteSlotNotFound(t *testing.T) {
	mux, mock := newTestHandler(t, time.Now())

	mock.ExpectExec("DELETE FROM slots").WithArgs(int64(42)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/slots/42", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAvailabilityReturnsCompactDatetimes(t *testing.T) {
	now := time.Date(2025, 6, 16, 8, 0, 0, 0, time.UTC)
	mux, mock := newTestHandler(t, now)

	mock.ExpectQuery("FROM providers").WithArgs(int64(3)).WillReturnRows(
		pgxmock.NewRows([]string{"id", "chat_id", "name", "description", "min_lead_hours"}).
			AddRow(int64(3), int64(555), "Anna", "", 0))
	mock.ExpectQuery("booked = false").WithArgs(int64(3)).WillReturnRows(
		pgxmock.NewRows([]string{"id", "provider_id", "start_at"}).
			AddRow(int64(1), int64(3), time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)))
	mock.ExpectQuery("booked = true").WithArgs(int64(3)).WillReturnRows(
		pgxmock.NewRows([]string{"start_at", "duration_minutes"}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/providers/3/availability", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"datetime":"16.06 10:00"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetLeadTimeUnknownProvider(t *testing.T) {
	mux, mock := newTestHandler(t, time.Now())

	mock.ExpectExec("UPDATE providers").WithArgs(int64(9), 6).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/providers/9/lead-time", strings.NewReader(`{"hours":6}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
