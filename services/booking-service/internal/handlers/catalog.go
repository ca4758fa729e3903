package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/okorolenko/masterbook/libs/slottime"
	"github.com/okorolenko/masterbook/services/booking-service/internal/model"
)

type providerItem struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	MinLeadHours int    `json:"min_lead_hours"`
}

func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.catalog.ListProviders(r.Context())
	if err != nil {
		h.fail(w, err, "failed to list providers")
		return
	}

	items := make([]providerItem, 0, len(providers))
	for _, p := range providers {
		items = append(items, providerItem{ID: p.ID, Name: p.Name, Description: p.Description, MinLeadHours: p.MinLeadHours})
	}
	h.writeJSON(w, http.StatusOK, items)
}

type createProviderRequest struct {
	ChatID      int64  `json:"chat_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	var req createProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.ChatID == 0 || req.Name == "" {
		http.Error(w, "chat_id and name required", http.StatusBadRequest)
		return
	}

	id, err := h.catalog.CreateProvider(r.Context(), req.ChatID, req.Name, strings.TrimSpace(req.Description))
	if err != nil {
		h.fail(w, err, "failed to create provider")
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	providerID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}

	categories, err := h.catalog.ListCategories(r.Context(), providerID)
	if err != nil {
		h.fail(w, err, "failed to list categories")
		return
	}
	if categories == nil {
		categories = []string{}
	}
	h.writeJSON(w, http.StatusOK, categories)
}

func (h *Handler) ListSubcategories(w http.ResponseWriter, r *http.Request) {
	providerID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	if category == "" {
		http.Error(w, "category required", http.StatusBadRequest)
		return
	}

	subcategories, err := h.catalog.ListSubcategories(r.Context(), providerID, category)
	if err != nil {
		h.fail(w, err, "failed to list subcategories")
		return
	}
	if subcategories == nil {
		subcategories = []string{}
	}
	h.writeJSON(w, http.StatusOK, subcategories)
}

type serviceItem struct {
	ID              int64   `json:"id"`
	Category        string  `json:"category"`
	Subcategory     *string `json:"subcategory,omitempty"`
	Name            string  `json:"name"`
	Price           string  `json:"price"`
	DurationMinutes int     `json:"duration_minutes"`
	Description     string  `json:"description,omitempty"`
}

func serviceToItem(s model.Service) serviceItem {
	return serviceItem{
		ID:              s.ID,
		Category:        s.Category,
		Subcategory:     s.Subcategory,
		Name:            s.Name,
		Price:           s.Price,
		DurationMinutes: int(s.Duration().Minutes()),
		Description:     s.Description,
	}
}

func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	providerID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	if category == "" {
		http.Error(w, "category required", http.StatusBadRequest)
		return
	}
	var subcategory *string
	if raw := strings.TrimSpace(r.URL.Query().Get("subcategory")); raw != "" {
		subcategory = &raw
	}

	services, err := h.catalog.ListServices(r.Context(), providerID, category, subcategory)
	if err != nil {
		h.fail(w, err, "failed to list services")
		return
	}

	items := make([]serviceItem, 0, len(services))
	for _, s := range services {
		items = append(items, serviceToItem(s))
	}
	h.writeJSON(w, http.StatusOK, items)
}

func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid service id", http.StatusBadRequest)
		return
	}

	svc, err := h.catalog.GetService(r.Context(), id)
	if err != nil {
		h.fail(w, err, "failed to load service")
		return
	}
	h.writeJSON(w, http.StatusOK, serviceToItem(svc))
}

type upsertClientRequest struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

func (h *Handler) UpsertClient(w http.ResponseWriter, r *http.Request) {
	var req upsertClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.ID == 0 {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	err := h.catalog.UpsertClient(r.Context(), model.Client{
		ID:       req.ID,
		Username: strings.TrimSpace(req.Username),
		FullName: strings.TrimSpace(req.FullName),
	})
	if err != nil {
		h.fail(w, err, "failed to upsert client")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type clientBookingItem struct {
	SlotID       int64   `json:"slot_id"`
	Datetime     string  `json:"datetime"`
	ProviderName string  `json:"provider_name"`
	ServiceName  *string `json:"service_name,omitempty"`
	ServicePrice *string `json:"service_price,omitempty"`
	Category     *string `json:"category,omitempty"`
	Subcategory  *string `json:"subcategory,omitempty"`
}

func (h *Handler) ClientBookings(w http.ResponseWriter, r *http.Request) {
	clientID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid client id", http.StatusBadRequest)
		return
	}

	bookings, err := h.slots.ClientBookings(r.Context(), clientID, h.now())
	if err != nil {
		h.fail(w, err, "failed to list bookings")
		return
	}

	items := make([]clientBookingItem, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, clientBookingItem{
			SlotID:       b.SlotID,
			Datetime:     slottime.Format(b.StartAt),
			ProviderName: b.ProviderName,
			ServiceName:  b.ServiceName,
			ServicePrice: b.ServicePrice,
			Category:     b.Category,
			Subcategory:  b.Subcategory,
		})
	}
	h.writeJSON(w, http.StatusOK, items)
}
