package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/lexconnect/lexconnect/libs/kafkax"
	"github.com/lexconnect/lexconnect/services/notification-service/internal/email"
	"github.com/lexconnect/lexconnect/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

const channelEmail = "email"

// Handler turns appointment events into client emails and records the outcome.
type Handler struct {
	sender email.Sender
	store  storage.Store
	logger *slog.Logger
}

func NewHandler(sender email.Sender, store storage.Store, logger *slog.Logger) *Handler {
	return &Handler{sender: sender, store: store, logger: logger}
}

// Handle never fails for bad input or a failed send; those are recorded and
// logged. Only a failure to persist the record is returned.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)

	var p appointmentPayload
	if err := json.Unmarshal(msg.Value, &p); err != nil {
		h.logger.ErrorContext(ctx, "invalid appointment payload", "err", err, "event_id", meta.EventID)
		return nil
	}
	if p.AppointmentID == "" {
		h.logger.ErrorContext(ctx, "appointment payload missing appointment_id", "event_id", meta.EventID)
		return nil
	}

	n := storage.Notification{
		EventID:       meta.EventID,
		AppointmentID: p.AppointmentID,
		EventType:     meta.EventType,
		Channel:       channelEmail,
		Recipient:     strings.TrimSpace(p.Client.Email),
	}

	subject, body, ok := compose(meta.EventType, p)
	switch {
	case !ok:
		n.Status = storage.StatusSkipped
		n.ErrorReason = "event does not notify"
	case n.Recipient == "":
		n.Status = storage.StatusSkipped
		n.ErrorReason = "client has no email"
	default:
		n.Subject = subject
		err := h.sender.Send(ctx, email.Message{To: n.Recipient, ToName: p.Client.Name, Subject: subject, Body: body})
		if err != nil {
			n.Status = storage.StatusFailed
			n.ErrorReason = err.Error()
			h.logger.ErrorContext(ctx, "email send failed", "err", err, "appointment_id", p.AppointmentID, "event_type", meta.EventType)
		} else {
			n.Status = storage.StatusSent
		}
	}

	if err := h.store.Insert(ctx, n); err != nil {
		return err
	}
	h.logger.InfoContext(ctx, "appointment event processed",
		"appointment_id", p.AppointmentID,
		"event_type", meta.EventType,
		"status", n.Status,
		"provider", h.sender.ProviderID(),
	)
	return nil
}
