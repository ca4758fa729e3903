package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeDedup struct {
	seen     map[string]bool
	recorded []string
}

func (f *fakeDedup) Seen(_ context.Context, eventID string) (bool, error) {
	return f.seen[eventID], nil
}

func (f *fakeDedup) Record(_ context.Context, eventID string, _ string) (bool, error) {
	f.recorded = append(f.recorded, eventID)
	return true, nil
}

func newTestConsumer(dedup *fakeDedup, handler Handler) *Consumer {
	return &Consumer{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		inbox:   dedup,
		handler: handler,
	}
}

func msgWithID(id string) kafka.Message {
	return kafka.Message{
		Topic:   "reminder.due.v1",
		Headers: []kafka.Header{{Key: "event_id", Value: []byte(id)}},
	}
}

func TestProcessRecordsAfterSuccessfulHandling(t *testing.T) {
	dedup := &fakeDedup{seen: map[string]bool{}}
	handled := 0
	c := newTestConsumer(dedup, func(context.Context, kafka.Message) error {
		handled++
		if len(dedup.recorded) != 0 {
			t.Fatal("event recorded before the handler ran")
		}
		return nil
	})

	c.process(context.Background(), msgWithID("evt-1"))

	if handled != 1 {
		t.Fatalf("expected 1 handler call, got %d", handled)
	}
	if len(dedup.recorded) != 1 || dedup.recorded[0] != "evt-1" {
		t.Fatalf("expected evt-1 recorded, got %v", dedup.recorded)
	}
}

func TestProcessSkipsAlreadySeenEvent(t *testing.T) {
	dedup := &fakeDedup{seen: map[string]bool{"evt-1": true}}
	c := newTestConsumer(dedup, func(context.Context, kafka.Message) error {
		t.Fatal("handler must not run for a seen event")
		return nil
	})

	c.process(context.Background(), msgWithID("evt-1"))

	if len(dedup.recorded) != 0 {
		t.Fatalf("expected no record, got %v", dedup.recorded)
	}
}

func TestProcessFailedHandlerLeavesEventUnclaimed(t *testing.T) {
	dedup := &fakeDedup{seen: map[string]bool{}}
	c := newTestConsumer(dedup, func(context.Context, kafka.Message) error {
		return errors.New("send failed")
	})

	c.process(context.Background(), msgWithID("evt-1"))

	if len(dedup.recorded) != 0 {
		t.Fatalf("failed event must stay unclaimed for redelivery, got %v", dedup.recorded)
	}
}
