// Package handlers exposes the booking engine over a JSON HTTP API.
// Datetimes cross the boundary in the compact "DD.MM HH:MM" form; storage
// carries full timestamps.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/okorolenko/masterbook/services/booking-service/internal/availability"
	"github.com/okorolenko/masterbook/services/booking-service/internal/booking"
	"github.com/okorolenko/masterbook/services/booking-service/internal/generator"
	"github.com/okorolenko/masterbook/services/booking-service/internal/model"
	"github.com/okorolenko/masterbook/services/booking-service/internal/storage"
)

type Handler struct {
	catalog      *storage.CatalogRepository
	slots        *storage.SlotRepository
	templates    *storage.TemplateRepository
	availability *availability.Engine
	booking      *booking.Engine
	generator    *generator.Generator
	logger       *slog.Logger
	now          func() time.Time
}

func New(
	catalog *storage.CatalogRepository,
	slots *storage.SlotRepository,
	templates *storage.TemplateRepository,
	availabilityEngine *availability.Engine,
	bookingEngine *booking.Engine,
	gen *generator.Generator,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		catalog:      catalog,
		slots:        slots,
		templates:    templates,
		availability: availabilityEngine,
		booking:      bookingEngine,
		generator:    gen,
		logger:       logger,
		now:          time.Now,
	}
}

// Register wires every route onto the mux. Method-qualified patterns; path
// ids come out of r.PathValue.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/providers", h.ListProviders)
	mux.HandleFunc("POST /api/v1/providers", h.CreateProvider)
	mux.HandleFunc("GET /api/v1/providers/{id}/categories", h.ListCategories)
	mux.HandleFunc("GET /api/v1/providers/{id}/subcategories", h.ListSubcategories)
	mux.HandleFunc("GET /api/v1/providers/{id}/services", h.ListServices)
	mux.HandleFunc("GET /api/v1/services/{id}", h.GetService)

	mux.HandleFunc("POST /api/v1/clients", h.UpsertClient)
	mux.HandleFunc("GET /api/v1/clients/{id}/bookings", h.ClientBookings)

	mux.HandleFunc("POST /api/v1/providers/{id}/slots", h.AddSlot)
	mux.HandleFunc("GET /api/v1/providers/{id}/slots", h.ListSlots)
	mux.HandleFunc("DELETE /api/v1/providers/{id}/slots", h.ClearDay)
	mux.HandleFunc("DELETE /api/v1/slots/{id}", h.DeleteSlot)
	mux.HandleFunc("GET /api/v1/providers/{id}/availability", h.Availability)
	mux.HandleFunc("POST /api/v1/slots/{id}/book", h.Book)
	mux.HandleFunc("POST /api/v1/slots/{id}/cancel", h.Cancel)

	mux.HandleFunc("POST /api/v1/providers/{id}/template", h.AddTemplateEntry)
	mux.HandleFunc("GET /api/v1/providers/{id}/template", h.ListTemplate)
	mux.HandleFunc("DELETE /api/v1/template-entries/{id}", h.DeleteTemplateEntry)
	mux.HandleFunc("POST /api/v1/providers/{id}/days-off", h.AddDayOff)
	mux.HandleFunc("GET /api/v1/providers/{id}/days-off", h.ListDaysOff)
	mux.HandleFunc("GET /api/v1/providers/{id}/days-off/check", h.CheckDayOff)
	mux.HandleFunc("DELETE /api/v1/days-off/{id}", h.DeleteDayOff)
	mux.HandleFunc("GET /api/v1/providers/{id}/lead-time", h.GetLeadTime)
	mux.HandleFunc("PUT /api/v1/providers/{id}/lead-time", h.SetLeadTime)
	mux.HandleFunc("POST /api/v1/providers/{id}/generate", h.Generate)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// fail maps domain errors onto status codes; anything unrecognised is logged
// and reported as a 500 with the generic message.
func (h *Handler) fail(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, model.ErrAlreadyBooked):
		http.Error(w, "slot already booked", http.StatusConflict)
	case errors.Is(err, model.ErrDuplicate):
		http.Error(w, "already exists", http.StatusConflict)
	case errors.Is(err, model.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error(msg, "err", err)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}
