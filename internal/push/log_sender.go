package push

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogSender logs messages instead of delivering them. It stands in for FCM
// in local runs without Firebase credentials.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender creates a new LogSender.
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("provider", "log").Logger()}
}

// Send logs msg and returns a random delivery ID.
func (s *LogSender) Send(_ context.Context, msg Message) (string, error) {
	if msg.Token == "" {
		return "", ErrEmptyToken
	}
	id := "log-" + uuid.NewString()
	s.logger.Info().
		Str("message_id", id).
		Str("token", TokenPreview(msg.Token)).
		Str("title", msg.Title).
		Str("body", msg.Body).
		Msg("push message not delivered, log sender in use")
	return id, nil
}
