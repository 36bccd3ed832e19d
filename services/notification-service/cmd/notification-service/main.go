package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/almatopete/clinica-backend/libs/config"
	"github.com/almatopete/clinica-backend/libs/db"
	"github.com/almatopete/clinica-backend/libs/httpx"
	"github.com/almatopete/clinica-backend/libs/kafkax"
	otelx "github.com/almatopete/clinica-backend/libs/otel"
	"github.com/almatopete/clinica-backend/libs/outbox"
	"github.com/almatopete/clinica-backend/libs/runtime"
	"github.com/almatopete/clinica-backend/services/notification-service/internal/consumer"
	"github.com/almatopete/clinica-backend/services/notification-service/internal/email"
	"github.com/almatopete/clinica-backend/services/notification-service/internal/inbox"
	"github.com/almatopete/clinica-backend/services/notification-service/internal/sms"
	"github.com/almatopete/clinica-backend/services/notification-service/internal/storage"
)

// appointmentEvent covers the booked, cancelled and reminder payloads; fields
// absent from a given event type stay zero.
type appointmentEvent struct {
	AppointmentID string `json:"appointment_id"`
	DoctorID      string `json:"doctor_id"`
	DoctorName    string `json:"doctor_name"`
	PatientName   string `json:"patient_name"`
	Recipient     string `json:"recipient"`
	Phone         string `json:"phone"`
	Reason        string `json:"reason"`
	OccursAt      string `json:"occurs_at"`
}

type notifier struct {
	pool       *db.Pool
	repo       *storage.Repository
	outboxRepo *outbox.Repository
	email      email.Sender
	sms        sms.Sender
}

func (n *notifier) recordOutcome(ctx context.Context, kind, channel string, evt appointmentEvent, sendErr error) error {
	status := "sent"
	if sendErr != nil {
		status = "failed"
	}
	recipient := evt.Recipient
	if channel == "sms" {
		recipient = evt.Phone
	}

	if err := n.repo.Insert(ctx, storage.Notification{
		AppointmentID: evt.AppointmentID,
		Kind:          kind,
		Channel:       channel,
		Recipient:     recipient,
		Payload: map[string]any{
			"patient_name": evt.PatientName,
			"occurs_at":    evt.OccursAt,
			"reason":       evt.Reason,
		},
		Status: status,
	}); err != nil {
		return err
	}

	eventType := "notification.sent.v1"
	fields := map[string]any{
		"appointment_id": evt.AppointmentID,
		"kind":           kind,
		"channel":        channel,
		"sent_at":        time.Now().UTC().Format(time.RFC3339),
	}
	if sendErr != nil {
		eventType = "notification.failed.v1"
		delete(fields, "sent_at")
		fields["error_reason"] = sendErr.Error()
		fields["failed_at"] = time.Now().UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return n.outboxRepo.Insert(ctx, n.pool, outbox.Event{
		AggregateType: "notification",
		AggregateID:   evt.AppointmentID,
		EventType:     eventType,
		Payload:       payload,
	})
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8083")
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
	notificationsRepo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	emailSender := email.NewSMTPSender(
		config.String("SMTP_HOST", "mailpit"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "no-reply@clinica.local"),
	)

	var smsSender sms.Sender
	switch strings.ToLower(config.String("SMS_PROVIDER", "noop")) {
	case "webhook":
		smsSender = sms.NewWebhookSender(config.String("SMS_WEBHOOK_URL", ""), config.String("SMS_WEBHOOK_TOKEN", ""))
	default:
		smsSender = sms.NewNoopSender()
	}

	n := &notifier{
		pool:       pool,
		repo:       notificationsRepo,
		outboxRepo: outboxRepo,
		email:      emailSender,
		sms:        smsSender,
	}

	decode := func(msg kafka.Message) (appointmentEvent, bool) {
		var evt appointmentEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
			return evt, false
		}
		if evt.AppointmentID == "" || evt.Recipient == "" {
			logger.Error("missing event fields", "topic", msg.Topic)
			return evt, false
		}
		return evt, true
	}

	occursAtOf := func(evt appointmentEvent) time.Time {
		t, err := time.Parse(time.RFC3339, evt.OccursAt)
		if err != nil {
			return time.Time{}
		}
		return t
	}

	handlers := map[string]consumer.Handler{
		"clinic.appointment.booked.v1": func(ctx context.Context, msg kafka.Message) error {
			evt, ok := decode(msg)
			if !ok {
				return nil
			}
			doctorName, err := notificationsRepo.DoctorName(ctx, evt.DoctorID)
			if err != nil {
				logger.Warn("doctor lookup failed", "err", err, "doctor_id", evt.DoctorID)
			}
			sendErr := n.email.Send(evt.Recipient,
				email.ConfirmationSubject(),
				email.ConfirmationBody(evt.PatientName, occursAtOf(evt), doctorName, evt.Reason))
			if sendErr != nil {
				logger.Error("confirmation email failed", "err", sendErr, "recipient", evt.Recipient)
			}
			return n.recordOutcome(ctx, "booking_confirmation", "email", evt, sendErr)
		},
		"clinic.appointment.cancelled.v1": func(ctx context.Context, msg kafka.Message) error {
			evt, ok := decode(msg)
			if !ok {
				return nil
			}
			sendErr := n.email.Send(evt.Recipient,
				email.CancellationSubject(),
				email.CancellationBody(evt.PatientName, occursAtOf(evt), evt.Reason))
			if sendErr != nil {
				logger.Error("cancellation email failed", "err", sendErr, "recipient", evt.Recipient)
			}
			return n.recordOutcome(ctx, "cancellation", "email", evt, sendErr)
		},
		"clinic.reminder.due.v1": func(ctx context.Context, msg kafka.Message) error {
			evt, ok := decode(msg)
			if !ok {
				return nil
			}
			body := email.ReminderBody(evt.PatientName, occursAtOf(evt), evt.DoctorName, evt.Reason)
			sendErr := n.email.Send(evt.Recipient, email.ReminderSubject(), body)
			if sendErr != nil {
				logger.Error("reminder email failed", "err", sendErr, "recipient", evt.Recipient)
			}
			if err := n.recordOutcome(ctx, "reminder", "email", evt, sendErr); err != nil {
				return err
			}
			if evt.Phone == "" {
				return nil
			}
			smsErr := n.sms.Send(ctx, evt.Phone, body)
			if smsErr != nil {
				logger.Error("reminder sms failed", "err", smsErr, "recipient", evt.Phone)
			}
			return n.recordOutcome(ctx, "reminder", "sms", evt, smsErr)
		},
	}

	for topic, handler := range handlers {
		eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
			Topic:   topic,
		}, handler)
		go eventConsumer.Run(ctx)
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
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
