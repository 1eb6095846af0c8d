package push

import (
	"context"
	"fmt"

	"firebase.google.com/go/messaging"
	"github.com/rs/zerolog"

	"github.com/comaslimpio/notification-api/internal/provider/resilience"
)

// ProviderName identifies FCM in the provider health registry.
const ProviderName = "fcm"

// MessagingClient is the subset of the FCM client used by FCMSender.
type MessagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSenderConfig holds configuration for the FCM sender.
type FCMSenderConfig struct {
	Client MessagingClient

	// Executor wraps each send with a circuit breaker and retries.
	// If nil, a default executor classifying errors with IsRetryable is used.
	Executor *resilience.Executor[string]

	Logger zerolog.Logger
}

// FCMSender sends push messages through Firebase Cloud Messaging.
type FCMSender struct {
	client   MessagingClient
	executor *resilience.Executor[string]
	logger   zerolog.Logger
}

// NewFCMSender creates a new FCM sender.
func NewFCMSender(cfg FCMSenderConfig) *FCMSender {
	executor := cfg.Executor
	if executor == nil {
		execCfg := resilience.DefaultExecutorConfig(ProviderName)
		execCfg.Retryable = IsRetryable
		executor = resilience.NewExecutor[string](execCfg)
	}

	return &FCMSender{
		client:   cfg.Client,
		executor: executor,
		logger:   cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

// NewFCMExecutor returns an executor tuned for FCM and registered in registry.
func NewFCMExecutor(registry *resilience.Registry) *resilience.Executor[string] {
	cfg := resilience.DefaultExecutorConfig(ProviderName)
	cfg.Retryable = IsRetryable
	cfg.Registry = registry
	return resilience.NewExecutor[string](cfg)
}

// Send delivers msg and returns the FCM message name.
func (s *FCMSender) Send(ctx context.Context, msg Message) (string, error) {
	if msg.Token == "" {
		return "", ErrEmptyToken
	}

	fcmMessage := BuildFCMMessage(msg)
	id, err := s.executor.Execute(ctx, func(ctx context.Context) (string, error) {
		return s.client.Send(ctx, fcmMessage)
	})
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("token", TokenPreview(msg.Token)).
			Msg("fcm send failed")
		return "", fmt.Errorf("fcm send: %w", err)
	}

	s.logger.Debug().
		Str("message_id", id).
		Str("token", TokenPreview(msg.Token)).
		Msg("fcm message sent")

	return id, nil
}

// BuildFCMMessage maps a Message to an FCM message with Android and APNs
// configuration for a high priority alert.
func BuildFCMMessage(msg Message) *messaging.Message {
	sound := msg.Sound
	if sound == "" {
		sound = "default"
	}

	return &messaging.Message{
		Token: msg.Token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID:             msg.ChannelID,
				Icon:                  msg.Icon,
				DefaultSound:          sound == "default",
				DefaultVibrateTimings: true,
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority": "10",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: msg.Title,
						Body:  msg.Body,
					},
					Sound: sound,
					Badge: msg.Badge,
				},
			},
		},
	}
}

// IsRetryable reports whether an FCM error is transient.
func IsRetryable(err error) bool {
	return messaging.IsServerUnavailable(err) ||
		messaging.IsInternal(err) ||
		messaging.IsUnknown(err)
}
