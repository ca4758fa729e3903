// Package scanner periodically finds upcoming bookings and enqueues reminder
// events, once per (slot, kind), through the transactional outbox.
package scanner

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/okorolenko/masterbook/libs/outbox"
	"github.com/okorolenko/masterbook/libs/slottime"
)

const (
	EventReminderDue = "reminder.due.v1"

	Kind24h = "24h"
	Kind3h  = "3h"
)

// window is the half-open start-time range a reminder kind targets. Ranges
// are wider than one scan interval so a slow or restarted scanner cannot
// slip a booking through the gap; the ledger keeps retries from duplicating.
type window struct {
	kind string
	from time.Time
	to   time.Time
}

func windows(now time.Time) []window {
	return []window{
		{kind: Kind24h, from: now.Add(23 * time.Hour), to: now.Add(24*time.Hour + 30*time.Minute)},
		{kind: Kind3h, from: now.Add(2*time.Hour + 30*time.Minute), to: now.Add(3*time.Hour + 30*time.Minute)},
	}
}

type Scanner struct {
	repo         *Repository
	outbox       *outbox.Repository
	logger       *slog.Logger
	interval     time.Duration
	initialDelay time.Duration
	now          func() time.Time
}

type Config struct {
	Interval     time.Duration
	InitialDelay time.Duration
}

func New(repo *Repository, outboxRepo *outbox.Repository, logger *slog.Logger, cfg Config) *Scanner {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Minute
	}
	return &Scanner{
		repo:         repo,
		outbox:       outboxRepo,
		logger:       logger,
		interval:     cfg.Interval,
		initialDelay: cfg.InitialDelay,
		now:          time.Now,
	}
}

// Run scans shortly after startup, then on every tick until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	initial := time.NewTimer(s.initialDelay)
	defer initial.Stop()

	select {
	case <-ctx.Done():
		return
	case <-initial.C:
		s.scanOnce(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanOnce(ctx)
		}
	}
}

func (s *Scanner) scanOnce(ctx context.Context) {
	for _, win := range windows(s.now()) {
		if err := s.scanWindow(ctx, win); err != nil {
			s.logger.Error("reminder scan failed", "kind", win.kind, "err", err)
		}
	}
}

func (s *Scanner) scanWindow(ctx context.Context, win window) error {
	due, err := s.repo.FetchWindow(ctx, win.kind, win.from, win.to)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	enqueued := 0
	for _, d := range due {
		claimed, err := s.repo.RecordSent(ctx, tx, d.SlotID, d.ClientID, win.kind)
		if err != nil {
			return err
		}
		if !claimed {
			continue
		}

		payload, err := json.Marshal(ReminderPayload{
			SlotID:         d.SlotID,
			Kind:           win.kind,
			ClientID:       d.ClientID,
			ClientName:     d.ClientName,
			ProviderID:     d.ProviderID,
			ProviderChatID: d.ProviderChatID,
			ProviderName:   d.ProviderName,
			ServiceName:    d.ServiceName,
			StartAt:        d.StartAt.Format(time.RFC3339),
			StartCompact:   slottime.Format(d.StartAt),
		})
		if err != nil {
			return err
		}
		if err := s.outbox.Insert(ctx, tx, outbox.Event{
			AggregateType: "slot",
			AggregateID:   strconv.FormatInt(d.SlotID, 10),
			EventType:     EventReminderDue,
			Payload:       payload,
		}); err != nil {
			return err
		}
		enqueued++
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	if enqueued > 0 {
		s.logger.Info("reminders enqueued", "kind", win.kind, "count", enqueued)
	}
	return nil
}

// ReminderPayload is the body of a reminder.due.v1 event.
type ReminderPayload struct {
	SlotID         int64   `json:"slot_id"`
	Kind           string  `json:"kind"`
	ClientID       int64   `json:"client_id"`
	ClientName     string  `json:"client_name"`
	ProviderID     int64   `json:"provider_id"`
	ProviderChatID int64   `json:"provider_chat_id"`
	ProviderName   string  `json:"provider_name"`
	ServiceName    *string `json:"service_name,omitempty"`
	StartAt        string  `json:"start_at"`
	StartCompact   string  `json:"start_compact"`
}
