package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okorolenko/masterbook/libs/slottime"
	"github.com/okorolenko/masterbook/services/booking-service/internal/model"
)

type addSlotRequest struct {
	Datetime string `json:"datetime"`
}

func (h *Handler) AddSlot(w http.ResponseWriter, r *http.Request) {
	providerID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}

	var req addSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	now := h.now()
	startAt, err := slottime.Parse(strings.TrimSpace(req.Datetime), now)
	if err != nil {
		http.Error(w, "invalid datetime, expected DD.MM HH:MM", http.StatusBadRequest)
		return
	}
	if slottime.IsPast(startAt, now) {
		http.Error(w, "datetime is in the past", http.StatusBadRequest)
		return
	}

	id, err := h.slots.Insert(r.Context(), providerID, startAt)
	if err != nil {
		h.fail(w, err, "failed to add slot")
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid slot id", http.StatusBadRequest)
		return
	}

	if err := h.slots.Delete(r.Context(), id); err != nil {
		h.fail(w, err, "failed to delete slot")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearDay drops every slot of the provider on the given DD.MM.YYYY day,
// booked ones included.
func (h *Handler) ClearDay(w http.ResponseWriter, r *http.Request) {
	providerID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}

	day, err := slottime.ParseDay(strings.TrimSpace(r.URL.Query().Get("day")), h.now().Location())
	if err != nil {
		http.Error(w, "invalid day, expected DD.MM.YYYY", http.StatusBadRequest)
		return
	}

	deleted, err := h.slots.ClearDay(r.Context(), providerID, day)
	if err != nil {
		h.fail(w, err, "failed to clear day")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

type slotListItem struct {
	ID             int64   `json:"id"`
	Datetime       string  `json:"datetime"`
	Booked         bool    `json:"booked"`
	BlockedBy      *int64  `json:"blocked_by,omitempty"`
	ClientID       *int64  `json:"client_id,omitempty"`
	ClientName     *string `json:"client_name,omitempty"`
	ClientUsername *string `json:"client_username,omitempty"`
	ServiceName    *string `json:"service_name,omitempty"`
	ServicePrice   *string `json:"service_price,omitempty"`
	Category       *string `json:"category,omitempty"`
	Subcategory    *string `json:"subcategory,omitempty"`
}

func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	providerID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}

	listings, err := h.slots.ListJoined(r.Context(), providerID)
	if err != nil {
		h.fail(w, err, "failed to list slots")
		return
	}

	items := make([]slotListItem, 0, len(listings))
	for _, l := range listings {
		items = append(items, slotListItem{
			ID:             l.ID,
			Datetime:       slottime.Format(l.StartAt),
			Booked:         l.Booked,
			BlockedBy:      l.BlockedBy,
			ClientID:       l.ClientID,
			ClientName:     l.ClientName,
			ClientUsername: l.ClientUsername,
			ServiceName:    l.ServiceName,
			ServicePrice:   l.ServicePrice,
			Category:       l.Category,
			Subcategory:    l.Subcategory,
		})
	}
	h.writeJSON(w, http.StatusOK, items)
}

type availableSlotItem struct {
	ID       int64  `json:"id"`
	Datetime string `json:"datetime"`
}

func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	providerID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}

	var requested time.Duration
	if raw := strings.TrimSpace(r.URL.Query().Get("duration_minutes")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 8*60 {
			http.Error(w, "invalid duration_minutes", http.StatusBadRequest)
			return
		}
		requested = time.Duration(n) * time.Minute
	}

	candidates, err := h.availability.AvailableSlots(r.Context(), providerID, requested, h.now())
	if err != nil {
		h.fail(w, err, "failed to compute availability")
		return
	}

	items := make([]availableSlotItem, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, availableSlotItem{ID: c.ID, Datetime: slottime.Format(c.StartAt)})
	}
	h.writeJSON(w, http.StatusOK, items)
}

type bookRequest struct {
	ClientID  int64  `json:"client_id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	ServiceID *int64 `json:"service_id"`
}

type bookResponse struct {
	SlotID   int64  `json:"slot_id"`
	Datetime string `json:"datetime"`
	Booked   bool   `json:"booked"`
}

func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	slotID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid slot id", http.StatusBadRequest)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.ClientID == 0 {
		http.Error(w, "client_id required", http.StatusBadRequest)
		return
	}

	client := model.Client{
		ID:       req.ClientID,
		Username: strings.TrimSpace(req.Username),
		FullName: strings.TrimSpace(req.FullName),
	}
	slot, err := h.booking.Book(r.Context(), slotID, client, req.ServiceID)
	if err != nil {
		h.fail(w, err, "failed to book slot")
		return
	}
	h.writeJSON(w, http.StatusOK, bookResponse{SlotID: slot.ID, Datetime: slottime.Format(slot.StartAt), Booked: slot.Booked})
}

type cancelRequest struct {
	ClientID int64 `json:"client_id"`
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	slotID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid slot id", http.StatusBadRequest)
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.ClientID == 0 {
		http.Error(w, "client_id required", http.StatusBadRequest)
		return
	}

	slot, err := h.booking.Cancel(r.Context(), slotID, req.ClientID)
	if err != nil {
		h.fail(w, err, "failed to cancel booking")
		return
	}
	h.writeJSON(w, http.StatusOK, bookResponse{SlotID: slot.ID, Datetime: slottime.Format(slot.StartAt), Booked: slot.Booked})
}
