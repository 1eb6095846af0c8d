package models

import "github.com/comaslimpio/notification-api/pkg/geo"

// LocationPayload is a coordinate pair as sent by the driver app.
type LocationPayload struct {
	Lat  *float64 `json:"lat"`
	Long *float64 `json:"long"`
}

// ToGeo returns the payload as a geo.Location, or nil when either coordinate
// is missing.
func (p *LocationPayload) ToGeo() *geo.Location {
	if p == nil || p.Lat == nil || p.Long == nil {
		return nil
	}
	return &geo.Location{Lat: *p.Lat, Long: *p.Long}
}

// LocationUpdateRequest is the body of POST /api/update-truck-location.
type LocationUpdateRequest struct {
	UserID   string           `json:"userId"`
	Location *LocationPayload `json:"location"`
}

// NotificationOutcome reports what happened for one subscribed citizen.
type NotificationOutcome struct {
	CitizenID string `json:"citizenId"`
	Sent      bool   `json:"sent"`
	Reason    string `json:"reason,omitempty"`
	Distance  string `json:"distance,omitempty"`
	FCMToken  string `json:"fcmToken,omitempty"`
	Error     string `json:"error,omitempty"`
}

// LocationUpdateResponse is returned by the location endpoints. Only Success
// and Message are set on failures.
type LocationUpdateResponse struct {
	Success           bool                  `json:"success"`
	Message           string                `json:"message"`
	RouteID           string                `json:"routeId,omitempty"`
	TruckID           string                `json:"truckId,omitempty"`
	TotalCitizens     *int                  `json:"totalCitizens,omitempty"`
	NotificationsSent *int                  `json:"notificationsSent,omitempty"`
	Notifications     []NotificationOutcome `json:"notifications,omitempty"`
}

// TestNotificationRequest is the body of POST /api/test-notification.
type TestNotificationRequest struct {
	UserID string `json:"userId"`
}

// TestPushRequest is the body of POST /api/test-push. Title and Body fall
// back to a fixed test message.
type TestPushRequest struct {
	UserID string `json:"userId"`
	Title  string `json:"title,omitempty"`
	Body   string `json:"body,omitempty"`
}

// TestPushResponse is returned by POST /api/test-push.
type TestPushResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	MessageID string `json:"messageId,omitempty"`
	FCMToken  string `json:"fcmToken,omitempty"`
	Error     string `json:"error,omitempty"`
}
