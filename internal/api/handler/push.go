package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/comaslimpio/notification-api/internal/api/models"
	"github.com/comaslimpio/notification-api/internal/api/response"
	"github.com/comaslimpio/notification-api/internal/apperror"
	"github.com/comaslimpio/notification-api/internal/directory"
	"github.com/comaslimpio/notification-api/internal/notification"
	"github.com/comaslimpio/notification-api/internal/proximity"
	"github.com/comaslimpio/notification-api/internal/push"
)

// Fallback test push copy.
const (
	TestPushTitle = "🧪 Prueba ComasLimpio"
	TestPushBody  = "Esta es una notificación de prueba."
)

// UserLookup finds users by ID.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*directory.User, error)
}

// RawSender sends an arbitrary push message.
type RawSender interface {
	Templates() notification.Templates
	SendRaw(ctx context.Context, msg push.Message) (string, error)
}

// PushHandler sends test pushes straight to a user's device.
type PushHandler struct {
	users  UserLookup
	sender RawSender
	logger zerolog.Logger
}

// NewPushHandler creates a new PushHandler.
func NewPushHandler(users UserLookup, sender RawSender, logger zerolog.Logger) *PushHandler {
	return &PushHandler{users: users, sender: sender, logger: logger}
}

// TestPush handles POST /api/test-push.
func (h *PushHandler) TestPush(w http.ResponseWriter, r *http.Request) {
	var req models.TestPushRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.JSON(w, r, http.StatusBadRequest, models.TestPushResponse{Message: "Invalid JSON body"})
		return
	}
	if req.UserID == "" {
		response.JSON(w, r, http.StatusBadRequest, models.TestPushResponse{Message: proximity.MsgUserIDRequired})
		return
	}

	log := requestLogger(r, h.logger)

	user, err := h.users.GetUser(r.Context(), req.UserID)
	switch {
	case errors.Is(err, directory.ErrNotFound):
		response.JSON(w, r, http.StatusNotFound, models.TestPushResponse{Message: proximity.MsgUserNotFound})
		return
	case err != nil:
		log.Error().Err(err).Str("user_id", req.UserID).Msg("test push user lookup failed")
		response.JSON(w, r, http.StatusInternalServerError, models.TestPushResponse{Message: apperror.MessageOf(err)})
		return
	}

	if user.FCMToken == "" {
		response.JSON(w, r, http.StatusBadRequest, models.TestPushResponse{Message: "User has no FCM token"})
		return
	}

	title := req.Title
	if title == "" {
		title = TestPushTitle
	}
	body := req.Body
	if body == "" {
		body = TestPushBody
	}

	templates := h.sender.Templates()
	msg := push.Message{
		Token: user.FCMToken,
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":         "test",
			"click_action": templates.ClickAction,
		},
		ChannelID: templates.ChannelID,
		Icon:      templates.Icon,
		Sound:     "default",
	}

	id, err := h.sender.SendRaw(r.Context(), msg)
	if err != nil {
		log.Warn().
			Err(err).
			Str("user_id", user.ID).
			Str("token", push.TokenPreview(user.FCMToken)).
			Msg("test push failed")
		response.JSON(w, r, http.StatusBadGateway, models.TestPushResponse{
			Message:  "Failed to send test notification",
			FCMToken: push.TokenPreview(user.FCMToken),
			Error:    errorText(err),
		})
		return
	}

	response.JSON(w, r, http.StatusOK, models.TestPushResponse{
		Success:   true,
		Message:   "Test notification sent",
		MessageID: id,
		FCMToken:  push.TokenPreview(user.FCMToken),
	})
}

// errorText returns the innermost cause text of a delivery failure.
func errorText(err error) string {
	var appErr *apperror.Error
	if errors.As(err, &appErr) && appErr.Err != nil {
		return appErr.Err.Error()
	}
	return err.Error()
}
