package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comaslimpio/notification-api/internal/api/handler"
	"github.com/comaslimpio/notification-api/internal/api/models"
	"github.com/comaslimpio/notification-api/internal/apperror"
	"github.com/comaslimpio/notification-api/internal/directory"
	"github.com/comaslimpio/notification-api/internal/notification"
	"github.com/comaslimpio/notification-api/internal/push"
)

type stubUsers struct {
	users map[string]*directory.User
	err   error
}

func (s *stubUsers) GetUser(_ context.Context, id string) (*directory.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return u, nil
}

type stubRawSender struct {
	sent []push.Message
	err  error
}

func (s *stubRawSender) Templates() notification.Templates {
	return notification.DefaultTemplates()
}

func (s *stubRawSender) SendRaw(_ context.Context, msg push.Message) (string, error) {
	if s.err != nil {
		return "", apperror.Delivery("push delivery failed", s.err)
	}
	s.sent = append(s.sent, msg)
	return "projects/test/messages/42", nil
}

func newPushHandler(sender *stubRawSender) *handler.PushHandler {
	users := &stubUsers{users: map[string]*directory.User{
		"citizen-1": {ID: "citizen-1", FCMToken: "0123456789abcdef"},
		"no-token":  {ID: "no-token"},
	}}
	return handler.NewPushHandler(users, sender, zerolog.Nop())
}

func decodePushResponse(t *testing.T, body []byte) models.TestPushResponse {
	t.Helper()
	var resp models.TestPushResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func TestTestPush_Success(t *testing.T) {
	sender := &stubRawSender{}
	h := newPushHandler(sender)

	w := postJSON(h.TestPush, `{"userId":"citizen-1"}`)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodePushResponse(t, w.Body.Bytes())
	assert.True(t, resp.Success)
	assert.Equal(t, "projects/test/messages/42", resp.MessageID)
	assert.Equal(t, "0123456789...", resp.FCMToken)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, handler.TestPushTitle, sender.sent[0].Title)
	assert.Equal(t, handler.TestPushBody, sender.sent[0].Body)
	assert.Equal(t, "test", sender.sent[0].Data["type"])
}

func TestTestPush_CustomCopy(t *testing.T) {
	sender := &stubRawSender{}
	h := newPushHandler(sender)

	w := postJSON(h.TestPush, `{"userId":"citizen-1","title":"Hola","body":"Prueba"}`)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Hola", sender.sent[0].Title)
	assert.Equal(t, "Prueba", sender.sent[0].Body)
}

func TestTestPush_Failures(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		sender     *stubRawSender
		wantStatus int
		wantMsg    string
		wantError  string
	}{
		{"bad json", `{`, &stubRawSender{}, http.StatusBadRequest, "Invalid JSON body", ""},
		{"no user id", `{}`, &stubRawSender{}, http.StatusBadRequest, "UserId is required", ""},
		{"unknown user", `{"userId":"ghost"}`, &stubRawSender{}, http.StatusNotFound, "User not found", ""},
		{"no token", `{"userId":"no-token"}`, &stubRawSender{}, http.StatusBadRequest, "User has no FCM token", ""},
		{
			"send fails",
			`{"userId":"citizen-1"}`,
			&stubRawSender{err: errors.New("registration-token-not-registered")},
			http.StatusBadGateway,
			"Failed to send test notification",
			"registration-token-not-registered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newPushHandler(tt.sender)

			w := postJSON(h.TestPush, tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodePushResponse(t, w.Body.Bytes())
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantMsg, resp.Message)
			assert.Equal(t, tt.wantError, resp.Error)
		})
	}
}

func TestTestPush_LookupFailure(t *testing.T) {
	users := &stubUsers{err: apperror.Lookup("get user", errors.New("unavailable"))}
	h := handler.NewPushHandler(users, &stubRawSender{}, zerolog.Nop())

	w := postJSON(h.TestPush, `{"userId":"citizen-1"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "get user: unavailable", decodePushResponse(t, w.Body.Bytes()).Message)
}
