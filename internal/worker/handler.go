// Package worker consumes truck location updates from a message broker and
// feeds them through the proximity pipeline.
package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/comaslimpio/notification-api/internal/api/models"
	"github.com/comaslimpio/notification-api/internal/apperror"
	"github.com/comaslimpio/notification-api/internal/proximity"
	"github.com/comaslimpio/notification-api/pkg/geo"
)

// DefaultMessageTimeout bounds the processing of one message.
const DefaultMessageTimeout = 30 * time.Second

// Decision tells the transport what to do with a delivered message.
type Decision int

const (
	// Ack removes the message from the subscription.
	Ack Decision = iota
	// Nack asks the broker to redeliver the message later.
	Nack
)

func (d Decision) String() string {
	if d == Nack {
		return "nack"
	}
	return "ack"
}

// Processor runs the proximity pipeline for one location update.
type Processor interface {
	ProcessLocationUpdate(ctx context.Context, userID string, loc *geo.Location) (*proximity.Result, error)
}

// HandlerConfig holds configuration for the message handler.
type HandlerConfig struct {
	Processor Processor
	Timeout   time.Duration
	Logger    zerolog.Logger
}

// Handler decodes location messages and runs them through the pipeline.
// It is transport independent; see PubSubConsumer and NATSConsumer.
type Handler struct {
	processor Processor
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewHandler creates a new message handler.
func NewHandler(cfg HandlerConfig) *Handler {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultMessageTimeout
	}
	return &Handler{
		processor: cfg.Processor,
		timeout:   timeout,
		logger:    cfg.Logger,
	}
}

// Handle processes one message body. Malformed messages, validation failures
// and business rejections are acked since redelivery cannot change their
// outcome. Lookup and internal failures are nacked.
func (h *Handler) Handle(ctx context.Context, data []byte, logger zerolog.Logger) Decision {
	var msg models.LocationUpdateRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Error().Err(err).Msg("failed to parse location message")
		return Ack
	}

	loc := msg.Location.ToGeo()
	if v := proximity.ValidateInput(msg.UserID, loc); !v.IsValid {
		logger.Warn().Str("user_id", msg.UserID).Str("reason", v.Message).Msg("invalid location message")
		return Ack
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	result, err := h.processor.ProcessLocationUpdate(ctx, msg.UserID, loc)
	if err != nil {
		switch apperror.KindOf(err) {
		case apperror.KindValidation, apperror.KindNotFound:
			logger.Info().
				Str("user_id", msg.UserID).
				Str("reason", apperror.MessageOf(err)).
				Msg("location update rejected")
			return Ack
		default:
			logger.Error().Err(err).Str("user_id", msg.UserID).Msg("location update failed")
			return Nack
		}
	}

	logger.Info().
		Str("user_id", msg.UserID).
		Str("route_id", result.RouteID).
		Int("citizens", result.TotalCitizens).
		Int("sent", result.NotificationsSent).
		Dur("duration", time.Since(start)).
		Msg("location update processed")
	return Ack
}
