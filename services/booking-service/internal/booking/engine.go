// Package booking implements the transactional book and cancel flows over the
// slot store, including derived blocking of neighbouring slots for services
// longer than the base granularity.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/okorolenko/masterbook/libs/outbox"
	"github.com/okorolenko/masterbook/libs/slottime"
	"github.com/okorolenko/masterbook/services/booking-service/internal/model"
)

const (
	EventBookingCreated   = "booking.created.v1"
	EventBookingCancelled = "booking.cancelled.v1"

	aggregateSlot = "slot"
)

type slotStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (model.Slot, error)
	GetBookedForClientForUpdate(ctx context.Context, tx pgx.Tx, id, clientID int64) (model.Slot, error)
	MarkBooked(ctx context.Context, tx pgx.Tx, id, clientID int64, serviceID *int64) error
	LockUnbookedBetween(ctx context.Context, tx pgx.Tx, providerID int64, primaryStart, end time.Time) ([]int64, error)
	Block(ctx context.Context, tx pgx.Tx, ids []int64, primaryID int64) error
	ReleaseDependents(ctx context.Context, tx pgx.Tx, primaryID int64) error
	ClearBooking(ctx context.Context, tx pgx.Tx, id int64) error
}

type catalogStore interface {
	GetProvider(ctx context.Context, id int64) (model.Provider, error)
	GetService(ctx context.Context, id int64) (model.Service, error)
	UpsertClient(ctx context.Context, c model.Client) error
}

type eventStore interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

// Engine runs booking state transitions. Every mutation happens inside a
// single transaction together with its outbox event, so a committed state
// change always has its notification queued.
type Engine struct {
	slots   slotStore
	catalog catalogStore
	events  eventStore
	now     func() time.Time
}

func NewEngine(slots slotStore, catalog catalogStore, events eventStore) *Engine {
	return &Engine{slots: slots, catalog: catalog, events: events, now: time.Now}
}

// CreatedPayload is the body of a booking.created.v1 event.
type CreatedPayload struct {
	SlotID         int64   `json:"slot_id"`
	ProviderID     int64   `json:"provider_id"`
	ProviderChatID int64   `json:"provider_chat_id"`
	ProviderName   string  `json:"provider_name"`
	ClientID       int64   `json:"client_id"`
	ClientName     string  `json:"client_name"`
	ClientUsername string  `json:"client_username,omitempty"`
	ServiceName    *string `json:"service_name,omitempty"`
	ServicePrice   *string `json:"service_price,omitempty"`
	StartAt        string  `json:"start_at"`
	StartCompact   string  `json:"start_compact"`
}

// CancelledPayload is the body of a booking.cancelled.v1 event.
type CancelledPayload struct {
	SlotID         int64   `json:"slot_id"`
	ProviderID     int64   `json:"provider_id"`
	ProviderChatID int64   `json:"provider_chat_id"`
	ProviderName   string  `json:"provider_name"`
	ClientID       int64   `json:"client_id"`
	ServiceName    *string `json:"service_name,omitempty"`
	StartAt        string  `json:"start_at"`
	StartCompact   string  `json:"start_compact"`
}

// Book marks the slot as taken by the client for the given service. When the
// service runs longer than one slot, the free slots of the same calendar day
// whose start lies strictly inside the booked interval are consumed as well,
// tied to the primary via blocked_by. Booking an occupied slot returns
// ErrAlreadyBooked; a slot whose start is not in the future returns
// ErrInvalidInput.
func (e *Engine) Book(ctx context.Context, slotID int64, client model.Client, serviceID *int64) (model.Slot, error) {
	duration := model.DefaultServiceDuration
	var svc model.Service
	if serviceID != nil {
		var err error
		svc, err = e.catalog.GetService(ctx, *serviceID)
		if err != nil {
			return model.Slot{}, fmt.Errorf("resolve service: %w", err)
		}
		duration = svc.Duration()
	}

	if err := e.catalog.UpsertClient(ctx, client); err != nil {
		return model.Slot{}, fmt.Errorf("upsert client: %w", err)
	}

	tx, err := e.slots.Begin(ctx)
	if err != nil {
		return model.Slot{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	slot, err := e.slots.GetForUpdate(ctx, tx, slotID)
	if err != nil {
		return model.Slot{}, err
	}
	if slot.Booked {
		return model.Slot{}, model.ErrAlreadyBooked
	}
	if !slot.StartAt.After(e.now()) {
		return model.Slot{}, fmt.Errorf("%w: slot start is in the past", model.ErrInvalidInput)
	}
	if serviceID != nil && svc.ProviderID != slot.ProviderID {
		return model.Slot{}, fmt.Errorf("%w: service belongs to another provider", model.ErrInvalidInput)
	}

	provider, err := e.catalog.GetProvider(ctx, slot.ProviderID)
	if err != nil {
		return model.Slot{}, err
	}

	if err := e.slots.MarkBooked(ctx, tx, slot.ID, client.ID, serviceID); err != nil {
		return model.Slot{}, err
	}

	if duration > model.SlotGranularity {
		ids, err := e.slots.LockUnbookedBetween(ctx, tx, slot.ProviderID, slot.StartAt, blockEnd(slot.StartAt, duration))
		if err != nil {
			return model.Slot{}, err
		}
		if err := e.slots.Block(ctx, tx, ids, slot.ID); err != nil {
			return model.Slot{}, err
		}
	}

	payload := CreatedPayload{
		SlotID:         slot.ID,
		ProviderID:     provider.ID,
		ProviderChatID: provider.ChatID,
		ProviderName:   provider.Name,
		ClientID:       client.ID,
		ClientName:     client.FullName,
		ClientUsername: client.Username,
		StartAt:        slot.StartAt.Format(time.RFC3339),
		StartCompact:   slottime.Format(slot.StartAt),
	}
	if serviceID != nil {
		payload.ServiceName = &svc.Name
		payload.ServicePrice = &svc.Price
	}
	if err := e.insertEvent(ctx, tx, EventBookingCreated, slot.ID, payload); err != nil {
		return model.Slot{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Slot{}, err
	}

	slot.Booked = true
	slot.ClientID = &client.ID
	slot.ServiceID = serviceID
	return slot, nil
}

// Cancel releases the client's booking. The primary slot returns to the free
// pool and every slot it had blocked is released in the same transaction.
// Slots not booked by this client surface as ErrNotFound.
func (e *Engine) Cancel(ctx context.Context, slotID, clientID int64) (model.Slot, error) {
	tx, err := e.slots.Begin(ctx)
	if err != nil {
		return model.Slot{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	slot, err := e.slots.GetBookedForClientForUpdate(ctx, tx, slotID, clientID)
	if err != nil {
		return model.Slot{}, err
	}

	var serviceName *string
	if slot.ServiceID != nil {
		svc, err := e.catalog.GetService(ctx, *slot.ServiceID)
		if err == nil {
			serviceName = &svc.Name
		} else if !errors.Is(err, model.ErrNotFound) {
			return model.Slot{}, err
		}
	}

	provider, err := e.catalog.GetProvider(ctx, slot.ProviderID)
	if err != nil {
		return model.Slot{}, err
	}

	if err := e.slots.ReleaseDependents(ctx, tx, slot.ID); err != nil {
		return model.Slot{}, err
	}
	if err := e.slots.ClearBooking(ctx, tx, slot.ID); err != nil {
		return model.Slot{}, err
	}

	payload := CancelledPayload{
		SlotID:         slot.ID,
		ProviderID:     provider.ID,
		ProviderChatID: provider.ChatID,
		ProviderName:   provider.Name,
		ClientID:       clientID,
		ServiceName:    serviceName,
		StartAt:        slot.StartAt.Format(time.RFC3339),
		StartCompact:   slottime.Format(slot.StartAt),
	}
	if err := e.insertEvent(ctx, tx, EventBookingCancelled, slot.ID, payload); err != nil {
		return model.Slot{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Slot{}, err
	}

	slot.Booked = false
	slot.ClientID = nil
	slot.ServiceID = nil
	return slot, nil
}

// blockEnd caps the blocking range at the next midnight of start's location,
// so a late booking never consumes the following day's slots.
func blockEnd(start time.Time, duration time.Duration) time.Time {
	end := start.Add(duration)
	y, m, d := start.Date()
	nextDay := time.Date(y, m, d, 0, 0, 0, 0, start.Location()).AddDate(0, 0, 1)
	if end.After(nextDay) {
		return nextDay
	}
	return end
}

func (e *Engine) insertEvent(ctx context.Context, tx pgx.Tx, eventType string, slotID int64, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return e.events.Insert(ctx, tx, outbox.Event{
		AggregateType: aggregateSlot,
		AggregateID:   strconv.FormatInt(slotID, 10),
		EventType:     eventType,
		Payload:       body,
	})
}
