// Package handler provides HTTP handlers for the notification API.
package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/comaslimpio/notification-api/internal/api/models"
	"github.com/comaslimpio/notification-api/internal/api/response"
	"github.com/comaslimpio/notification-api/internal/apperror"
	"github.com/comaslimpio/notification-api/internal/proximity"
	"github.com/comaslimpio/notification-api/pkg/geo"
)

// TestLocation is the fixed point used by the test-notification endpoint.
var TestLocation = geo.Location{Lat: -11.9498, Long: -77.0622}

// LocationProcessor runs the proximity pipeline for one location update.
type LocationProcessor interface {
	ProcessLocationUpdate(ctx context.Context, userID string, loc *geo.Location) (*proximity.Result, error)
}

// LocationHandler handles truck location updates.
type LocationHandler struct {
	processor LocationProcessor
	logger    zerolog.Logger
}

// NewLocationHandler creates a new LocationHandler.
func NewLocationHandler(processor LocationProcessor, logger zerolog.Logger) *LocationHandler {
	return &LocationHandler{processor: processor, logger: logger}
}

// UpdateTruckLocation handles POST /api/update-truck-location.
func (h *LocationHandler) UpdateTruckLocation(w http.ResponseWriter, r *http.Request) {
	var req models.LocationUpdateRequest
	if err := response.Decode(w, r, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	loc := req.Location.ToGeo()
	if v := proximity.ValidateInput(req.UserID, loc); !v.IsValid {
		fail(w, r, http.StatusBadRequest, v.Message)
		return
	}

	h.process(w, r, req.UserID, loc)
}

// TestNotification handles POST /api/test-notification. It runs the pipeline
// for the given driver as if they reported TestLocation.
func (h *LocationHandler) TestNotification(w http.ResponseWriter, r *http.Request) {
	var req models.TestNotificationRequest
	if err := response.Decode(w, r, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.UserID == "" {
		fail(w, r, http.StatusBadRequest, proximity.MsgUserIDRequired)
		return
	}

	loc := TestLocation
	h.process(w, r, req.UserID, &loc)
}

func (h *LocationHandler) process(w http.ResponseWriter, r *http.Request, userID string, loc *geo.Location) {
	result, err := h.processor.ProcessLocationUpdate(r.Context(), userID, loc)
	if err != nil {
		h.writeError(w, r, userID, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toLocationUpdateResponse(result))
}

// writeError maps a pipeline failure to a status code: 400 for validation,
// 200 with success=false for business rejections and lookup failures, and a
// generic 500 for anything else.
func (h *LocationHandler) writeError(w http.ResponseWriter, r *http.Request, userID string, err error) {
	log := requestLogger(r, h.logger)

	switch apperror.KindOf(err) {
	case apperror.KindValidation:
		fail(w, r, http.StatusBadRequest, apperror.MessageOf(err))
	case apperror.KindNotFound:
		log.Info().Str("user_id", userID).Str("reason", apperror.MessageOf(err)).Msg("location update rejected")
		fail(w, r, http.StatusOK, apperror.MessageOf(err))
	case apperror.KindLookup:
		log.Warn().Err(err).Str("user_id", userID).Msg("location update lookup failed")
		fail(w, r, http.StatusOK, apperror.MessageOf(err))
	default:
		log.Error().Err(err).Str("user_id", userID).Msg("location update failed")
		fail(w, r, http.StatusInternalServerError, apperror.MessageOf(err))
	}
}

func fail(w http.ResponseWriter, r *http.Request, status int, message string) {
	response.JSON(w, r, status, models.LocationUpdateResponse{Success: false, Message: message})
}

func toLocationUpdateResponse(result *proximity.Result) models.LocationUpdateResponse {
	total := result.TotalCitizens
	sent := result.NotificationsSent

	outcomes := make([]models.NotificationOutcome, len(result.Notifications))
	for i, o := range result.Notifications {
		outcomes[i] = models.NotificationOutcome{
			CitizenID: o.CitizenID,
			Sent:      o.Sent,
			Reason:    o.Reason,
			Distance:  o.Distance,
			FCMToken:  o.TokenPreview,
			Error:     o.Error,
		}
	}

	return models.LocationUpdateResponse{
		Success:           result.Success,
		Message:           result.Message,
		RouteID:           result.RouteID,
		TruckID:           result.TruckID,
		TotalCitizens:     &total,
		NotificationsSent: &sent,
		Notifications:     outcomes,
	}
}

// requestLogger returns the request-scoped logger set by the logging
// middleware, or fallback when there is none.
func requestLogger(r *http.Request, fallback zerolog.Logger) *zerolog.Logger {
	log := zerolog.Ctx(r.Context())
	if log.GetLevel() == zerolog.Disabled {
		return &fallback
	}
	return log
}
