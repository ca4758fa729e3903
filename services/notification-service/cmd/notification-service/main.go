package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/okorolenko/masterbook/libs/config"
	"github.com/okorolenko/masterbook/libs/db"
	"github.com/okorolenko/masterbook/libs/httpx"
	"github.com/okorolenko/masterbook/libs/kafkax"
	otelx "github.com/okorolenko/masterbook/libs/otel"
	"github.com/okorolenko/masterbook/libs/outbox"
	"github.com/okorolenko/masterbook/libs/runtime"
	"github.com/okorolenko/masterbook/services/notification-service/internal/consumer"
	"github.com/okorolenko/masterbook/services/notification-service/internal/email"
	"github.com/okorolenko/masterbook/services/notification-service/internal/inbox"
	"github.com/okorolenko/masterbook/services/notification-service/internal/message"
	"github.com/okorolenko/masterbook/services/notification-service/internal/storage"
	"github.com/okorolenko/masterbook/services/notification-service/internal/telegram"
)

type reminderPayload struct {
	SlotID         int64   `json:"slot_id"`
	Kind           string  `json:"kind"`
	ClientID       int64   `json:"client_id"`
	ClientName     string  `json:"client_name"`
	ProviderChatID int64   `json:"provider_chat_id"`
	ProviderName   string  `json:"provider_name"`
	ServiceName    *string `json:"service_name"`
	StartCompact   string  `json:"start_compact"`
}

type bookingPayload struct {
	SlotID         int64   `json:"slot_id"`
	ProviderChatID int64   `json:"provider_chat_id"`
	ClientID       int64   `json:"client_id"`
	ClientName     string  `json:"client_name"`
	ClientUsername string  `json:"client_username"`
	ServiceName    *string `json:"service_name"`
	ServicePrice   *string `json:"service_price"`
	StartCompact   string  `json:"start_compact"`
}

type telegramSender interface {
	Send(chatID int64, text string) error
}

type app struct {
	pool       *db.Pool
	outboxRepo *outbox.Repository
	store      *storage.Repository
	telegram   telegramSender
	email      *email.SMTPSender
	opsEmail   string
	logger     *slog.Logger
}

func (a *app) deliver(ctx context.Context, slotID, clientID, chatID int64, text, kind string) {
	status := "sent"
	if a.telegram == nil {
		status = "skipped"
	} else if err := a.telegram.Send(chatID, text); err != nil {
		status = "failed"
		a.logger.Error("telegram send failed", "err", err, "chat_id", chatID)
	}

	if err := a.store.Insert(ctx, storage.Notification{
		SlotID:    slotID,
		ClientID:  clientID,
		Channel:   "telegram",
		Recipient: strconv.FormatInt(chatID, 10),
		Payload:   map[string]any{"text": text, "kind": kind},
		Status:    status,
	}); err != nil {
		a.logger.Error("failed to persist notification", "err", err)
	}

	if a.opsEmail != "" && a.email != nil {
		if err := a.email.Send(a.opsEmail, "notification "+status+": "+kind, text); err != nil {
			a.logger.Error("ops email copy failed", "err", err)
		}
	}

	if err := a.writeDeliveryEvent(ctx, slotID, kind, status); err != nil {
		a.logger.Error("failed to enqueue delivery event", "err", err)
	}
}

func (a *app) writeDeliveryEvent(ctx context.Context, slotID int64, kind, status string) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	eventType := "notification.sent.v1"
	if status != "sent" {
		eventType = "notification.failed.v1"
	}
	payload, err := json.Marshal(map[string]any{
		"slot_id":      slotID,
		"kind":         kind,
		"status":       status,
		"delivered_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	if err := a.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   strconv.FormatInt(slotID, 10),
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	inboxRepo := inbox.NewRepository(pool)
	outboxRepo := outbox.NewRepository()
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	a := &app{
		pool:       pool,
		outboxRepo: outboxRepo,
		store:      storage.NewRepository(pool),
		email:      email.NewSMTPSender(config.String("SMTP_HOST", "mailpit"), config.String("SMTP_PORT", "1025"), config.String("SMTP_FROM", "")),
		opsEmail:   config.String("OPS_EMAIL", ""),
		logger:     logger,
	}
	if token := config.String("TELEGRAM_BOT_TOKEN", ""); token != "" {
		sender, err := telegram.NewSender(token)
		if err != nil {
			logger.Error("telegram init failed; deliveries will be recorded as skipped", "err", err)
		} else {
			a.telegram = sender
		}
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN not set; deliveries will be recorded as skipped")
	}

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "notification-service")

	startConsumer := func(topic string, handler consumer.Handler) {
		c := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}, handler)
		go c.Run(ctx)
	}

	startConsumer("reminder.due.v1", func(ctx context.Context, msg kafka.Message) error {
		var p reminderPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			logger.Error("invalid reminder payload", "err", err)
			return nil
		}
		if p.SlotID == 0 || p.ClientID == 0 || p.StartCompact == "" {
			logger.Error("missing reminder fields", "slot_id", p.SlotID)
			return nil
		}

		text := message.Reminder(p.Kind, p.ProviderName, p.ServiceName, p.StartCompact, time.Now())
		a.deliver(ctx, p.SlotID, p.ClientID, p.ClientID, text, "reminder."+p.Kind)
		return nil
	})

	startConsumer("booking.created.v1", func(ctx context.Context, msg kafka.Message) error {
		var p bookingPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			logger.Error("invalid booking payload", "err", err)
			return nil
		}
		if p.SlotID == 0 || p.ProviderChatID == 0 {
			logger.Error("missing booking fields", "slot_id", p.SlotID)
			return nil
		}

		text := message.BookingCreated(p.ClientName, p.ClientUsername, p.StartCompact, p.ServiceName, p.ServicePrice)
		a.deliver(ctx, p.SlotID, p.ClientID, p.ProviderChatID, text, "booking.created")
		return nil
	})

	startConsumer("booking.cancelled.v1", func(ctx context.Context, msg kafka.Message) error {
		var p bookingPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			logger.Error("invalid cancellation payload", "err", err)
			return nil
		}
		if p.SlotID == 0 || p.ProviderChatID == 0 {
			logger.Error("missing cancellation fields", "slot_id", p.SlotID)
			return nil
		}

		text := message.BookingCancelled(p.StartCompact, p.ServiceName)
		a.deliver(ctx, p.SlotID, p.ClientID, p.ProviderChatID, text, "booking.cancelled")
		return nil
	})

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
