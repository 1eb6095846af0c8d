package push_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"firebase.google.com/go/messaging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comaslimpio/notification-api/internal/provider/resilience"
	"github.com/comaslimpio/notification-api/internal/push"
)

type fakeMessagingClient struct {
	mu       sync.Mutex
	messages []*messaging.Message
	err      error
}

func (c *fakeMessagingClient) Send(_ context.Context, message *messaging.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
	if c.err != nil {
		return "", c.err
	}
	return "projects/comaslimpio/messages/1", nil
}

func TestFCMSender_Send(t *testing.T) {
	client := &fakeMessagingClient{}
	registry := resilience.NewRegistry()
	sender := push.NewFCMSender(push.FCMSenderConfig{
		Client:   client,
		Executor: push.NewFCMExecutor(registry),
		Logger:   zerolog.Nop(),
	})

	id, err := sender.Send(context.Background(), push.Message{
		Token: "token-1234567890",
		Title: "title",
		Body:  "body",
		Data:  map[string]string{"type": "truck_near"},
	})

	require.NoError(t, err)
	assert.Equal(t, "projects/comaslimpio/messages/1", id)
	require.Len(t, client.messages, 1)
	assert.Equal(t, "token-1234567890", client.messages[0].Token)

	health := registry.GetHealth(push.ProviderName)
	require.NotNil(t, health)
	assert.NotNil(t, health.LastSuccessAt)
}

func TestFCMSender_SendFailure(t *testing.T) {
	client := &fakeMessagingClient{err: errors.New("registration-token-not-registered")}
	sender := push.NewFCMSender(push.FCMSenderConfig{Client: client, Logger: zerolog.Nop()})

	_, err := sender.Send(context.Background(), push.Message{Token: "token"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "registration-token-not-registered")
	assert.Len(t, client.messages, 1, "non-transient errors are not retried")
}

func TestFCMSender_EmptyToken(t *testing.T) {
	client := &fakeMessagingClient{}
	sender := push.NewFCMSender(push.FCMSenderConfig{Client: client, Logger: zerolog.Nop()})

	_, err := sender.Send(context.Background(), push.Message{Title: "x"})

	require.ErrorIs(t, err, push.ErrEmptyToken)
	assert.Empty(t, client.messages)
}

func TestBuildFCMMessage(t *testing.T) {
	badge := 1
	msg := push.BuildFCMMessage(push.Message{
		Token:     "token",
		Title:     "🚛 ComasLimpio - ¡Camión Cerca!",
		Body:      "El camión de basura está a 120 metros de tu ubicación.",
		Data:      map[string]string{"distance": "120"},
		ChannelID: "comaslimpio_notifications",
		Icon:      "truck_icon",
		Badge:     &badge,
	})

	require.NotNil(t, msg.Notification)
	assert.Equal(t, "🚛 ComasLimpio - ¡Camión Cerca!", msg.Notification.Title)
	assert.Equal(t, "120", msg.Data["distance"])

	require.NotNil(t, msg.Android)
	assert.Equal(t, "high", msg.Android.Priority)
	assert.Equal(t, "comaslimpio_notifications", msg.Android.Notification.ChannelID)
	assert.Equal(t, "truck_icon", msg.Android.Notification.Icon)
	assert.True(t, msg.Android.Notification.DefaultSound)

	require.NotNil(t, msg.APNS)
	assert.Equal(t, "10", msg.APNS.Headers["apns-priority"])
	aps := msg.APNS.Payload.Aps
	assert.Equal(t, "default", aps.Sound)
	assert.Equal(t, msg.Notification.Body, aps.Alert.Body)
	require.NotNil(t, aps.Badge)
	assert.Equal(t, 1, *aps.Badge)
}

func TestTokenPreview(t *testing.T) {
	assert.Equal(t, "abcdefghij...", push.TokenPreview("abcdefghijklmnop"))
	assert.Equal(t, "short...", push.TokenPreview("short"))
}

func TestLogSender(t *testing.T) {
	sender := push.NewLogSender(zerolog.Nop())

	id, err := sender.Send(context.Background(), push.Message{Token: "abcdefghijklmnop", Title: "t"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "log-"))

	_, err = sender.Send(context.Background(), push.Message{})
	assert.ErrorIs(t, err, push.ErrEmptyToken)
}
