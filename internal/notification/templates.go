// Package notification composes and dispatches truck proximity notifications.
package notification

import (
	"fmt"
	"strconv"
	"time"

	"github.com/comaslimpio/notification-api/internal/directory"
)

// Templates holds the configurable parts of a truck-near notification.
type Templates struct {
	Title string

	// BodyTemplate is a format string taking the rounded distance in meters.
	BodyTemplate string

	ChannelID   string
	Icon        string
	ClickAction string
}

// DefaultTemplates returns the Spanish copy used by the mobile app.
func DefaultTemplates() Templates {
	return Templates{
		Title:        "🚛 ComasLimpio - ¡Camión Cerca!",
		BodyTemplate: "El camión de basura está a %d metros de tu ubicación.",
		ChannelID:    "comaslimpio_notifications",
		Icon:         "truck_icon",
		ClickAction:  "FLUTTER_NOTIFICATION_CLICK",
	}
}

// Content is a composed notification.
type Content struct {
	Title string
	Body  string
	Data  map[string]string
}

// TruckNear composes the notification sent when a truck is distanceMeters away.
func (t Templates) TruckNear(distanceMeters int, truckID, routeID string, at time.Time) Content {
	return Content{
		Title: t.Title,
		Body:  fmt.Sprintf(t.BodyTemplate, distanceMeters),
		Data: map[string]string{
			"click_action": t.ClickAction,
			"sound":        "default",
			"type":         directory.NotificationTypeTruckNear,
			"truckId":      truckID,
			"routeId":      routeID,
			"distance":     strconv.Itoa(distanceMeters),
			"timestamp":    at.UTC().Format(time.RFC3339Nano),
		},
	}
}
