package notification

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/comaslimpio/notification-api/internal/apperror"
	"github.com/comaslimpio/notification-api/internal/directory"
	"github.com/comaslimpio/notification-api/internal/push"
)

// RecordWriter stores delivered notifications.
type RecordWriter interface {
	SaveNotification(ctx context.Context, citizenID string, record directory.NotificationRecord) (*directory.NotificationRecord, error)
}

// DispatcherConfig holds configuration for the dispatcher.
type DispatcherConfig struct {
	Sender    push.Sender
	Records   RecordWriter
	Templates Templates
	Logger    zerolog.Logger
}

// Dispatcher sends notifications to one recipient at a time and records them.
type Dispatcher struct {
	sender    push.Sender
	records   RecordWriter
	templates Templates
	logger    zerolog.Logger
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		sender:    cfg.Sender,
		records:   cfg.Records,
		templates: cfg.Templates,
		logger:    cfg.Logger,
	}
}

// Templates returns the dispatcher's message templates.
func (d *Dispatcher) Templates() Templates {
	return d.templates
}

// Send delivers a notification to token and returns the delivery ID.
// Failures are apperror delivery failures wrapping the transport error.
func (d *Dispatcher) Send(ctx context.Context, token, title, body string, data map[string]string) (string, error) {
	badge := 1
	return d.SendRaw(ctx, push.Message{
		Token:     token,
		Title:     title,
		Body:      body,
		Data:      data,
		ChannelID: d.templates.ChannelID,
		Icon:      d.templates.Icon,
		Sound:     "default",
		Badge:     &badge,
	})
}

// SendRaw delivers msg as given.
func (d *Dispatcher) SendRaw(ctx context.Context, msg push.Message) (string, error) {
	id, err := d.sender.Send(ctx, msg)
	if err != nil {
		return "", apperror.Delivery("push delivery failed", err)
	}
	return id, nil
}

// Persist records a delivered notification for a citizen and returns the
// stored record with its assigned ID and timestamp.
func (d *Dispatcher) Persist(ctx context.Context, citizenID string, record directory.NotificationRecord) (*directory.NotificationRecord, error) {
	stored, err := d.records.SaveNotification(ctx, citizenID, record)
	if err != nil {
		return nil, err
	}

	d.logger.Debug().
		Str("citizen_id", citizenID).
		Str("notification_id", stored.ID).
		Msg("notification recorded")

	return stored, nil
}
