package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/okorolenko/masterbook/libs/slottime"
	"github.com/okorolenko/masterbook/services/booking-service/internal/generator"
)

type addTemplateEntryRequest struct {
	DayOfWeek int    `json:"day_of_week"`
	Time      string `json:"time"`
}

func (h *Handler) AddTemplateEntry(w http.ResponseWriter, r *http.Request) {
	providerID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}

	var req addTemplateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.DayOfWeek < 0 || req.DayOfWeek > 6 {
		http.Error(w, "day_of_week must be 0 (Monday) to 6 (Sunday)", http.StatusBadRequest)
		return
	}
	hour, minute, err := slottime.ParseClock(strings.TrimSpace(req.Time))
	if err != nil {
		http.Error(w, "invalid time, expected HH:MM", http.StatusBadRequest)
		return
	}
	clock := fmt.Sprintf("%02d:%02d", hour, minute)

	id, err := h.templates.AddEntry(r.Context(), providerID, req.DayOfWeek, clock)
	if err != nil {
		h.fail(w, err, "failed to add template entry")
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

type templateEntryItem struct {
	ID   int64  `json:"id"`
	Time string `json:"time"`
}

// ListTemplate returns the weekly template grouped by day of week, 0=Monday.
func (h *Handler) ListTemplate(w http.ResponseWriter, r *http.Request) {
	providerID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}

	entries, err := h.templates.ListAll(r.Context(), providerID)
	if err != nil {
		h.fail(w, err, "failed to list template")
		return
	}

	grouped := make(map[string][]templateEntryItem)
	for _, e := range entries {
		key := strings.ToLower(dayNames[e.DayOfWeek])
		grouped[key] = append(grouped[key], templateEntryItem{ID: e.ID, Time: e.StartClock})
	}
	h.writeJSON(w, http.StatusOK, grouped)
}

var dayNames = [7]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func (h *Handler) DeleteTemplateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid entry id", http.StatusBadRequest)
		return
	}

	if err := h.templates.DeleteEntry(r.Context(), id); err != nil {
		h.fail(w, err, "failed to delete template entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addDayOffRequest struct {
	Date string `json:"date"`
}

func (h *Handler) AddDayOff(w http.ResponseWriter, r *http.Request) {
	providerID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}

	var req addDayOffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	day, err := slottime.ParseDay(strings.TrimSpace(req.Date), h.now().Location())
	if err != nil {
		http.Error(w, "invalid date, expected DD.MM.YYYY", http.StatusBadRequest)
		return
	}

	id, err := h.templates.AddDayOff(r.Context(), providerID, day)
	if err != nil {
		h.fail(w, err, "failed to add day off")
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

type dayOffItem struct {
	ID   int64  `json:"id"`
	Date string `json:"date"`
}

func (h *Handler) ListDaysOff(w http.ResponseWriter, r *http.Request) {
	providerID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}

	daysOff, err := h.templates.ListDaysOff(r.Context(), providerID)
	if err != nil {
		h.fail(w, err, "failed to list days off")
		return
	}

	items := make([]dayOffItem, 0, len(daysOff))
	for _, d := range daysOff {
		items = append(items, dayOffItem{ID: d.ID, Date: slottime.FormatDay(d.Day)})
	}
	h.writeJSON(w, http.StatusOK, items)
}

func (h *Handler) CheckDayOff(w http.ResponseWriter, r *http.Request) {
	providerID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}
	day, err := slottime.ParseDay(strings.TrimSpace(r.URL.Query().Get("date")), h.now().Location())
	if err != nil {
		http.Error(w, "invalid date, expected DD.MM.YYYY", http.StatusBadRequest)
		return
	}

	off, err := h.templates.IsDayOff(r.Context(), providerID, day)
	if err != nil {
		h.fail(w, err, "failed to check day off")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"day_off": off})
}

func (h *Handler) DeleteDayOff(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid day off id", http.StatusBadRequest)
		return
	}

	if err := h.templates.DeleteDayOff(r.Context(), id); err != nil {
		h.fail(w, err, "failed to delete day off")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetLeadTime(w http.ResponseWriter, r *http.Request) {
	providerID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}

	provider, err := h.catalog.GetProvider(r.Context(), providerID)
	if err != nil {
		h.fail(w, err, "failed to load provider")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"hours": provider.MinLeadHours})
}

type setLeadTimeRequest struct {
	Hours int `json:"hours"`
}

func (h *Handler) SetLeadTime(w http.ResponseWriter, r *http.Request) {
	providerID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}

	var req setLeadTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.Hours < 0 || req.Hours > 24*30 {
		http.Error(w, "hours out of range", http.StatusBadRequest)
		return
	}

	if err := h.catalog.SetMinLeadHours(r.Context(), providerID, req.Hours); err != nil {
		h.fail(w, err, "failed to set lead time")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"hours": req.Hours})
}

type generateRequest struct {
	DaysAhead int `json:"days_ahead"`
}

type generateResponse struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	providerID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.DaysAhead <= 0 || req.DaysAhead > 90 {
		http.Error(w, "days_ahead must be 1 to 90", http.StatusBadRequest)
		return
	}

	res, err := h.generator.Generate(r.Context(), providerID, h.now(), req.DaysAhead)
	if err != nil {
		if errors.Is(err, generator.ErrNoTemplate) {
			http.Error(w, "no template configured", http.StatusConflict)
			return
		}
		h.fail(w, err, "failed to generate slots")
		return
	}
	if res.Errors == nil {
		res.Errors = []string{}
	}
	h.writeJSON(w, http.StatusOK, generateResponse(res))
}
