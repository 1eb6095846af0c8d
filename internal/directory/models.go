// Package directory provides lookups of users, trucks, routes and delivered
// notifications. Backend records are mapped into one canonical model at this
// boundary; the rest of the service never sees raw store documents.
package directory

import (
	"errors"
	"time"

	"github.com/comaslimpio/notification-api/pkg/geo"
)

// Store errors.
var (
	ErrNotFound = errors.New("not found")
)

// Role is the role of an app user.
type Role string

const (
	RoleTruckDriver Role = "truck_driver"
	RoleCitizen     Role = "citizen"
	RoleAdmin       Role = "admin"
)

// Status values shared by users, trucks and routes.
const (
	StatusActive      = "active"
	StatusInactive    = "inactive"
	StatusMaintenance = "maintenance"
	StatusCompleted   = "completed"
)

// NotificationTypeTruckNear tags notifications about an approaching truck.
const NotificationTypeTruckNear = "truck_near"

// Preferences are a citizen's alert time windows. Times are HH:MM in local time.
type Preferences struct {
	DaytimeAlerts   bool
	NighttimeAlerts bool
	DaytimeStart    string
	DaytimeEnd      string
	NighttimeStart  string
	NighttimeEnd    string
}

// DefaultPreferences returns the preferences applied when a user has none stored.
func DefaultPreferences() Preferences {
	return Preferences{
		DaytimeAlerts:   true,
		NighttimeAlerts: false,
		DaytimeStart:    "06:00",
		DaytimeEnd:      "20:00",
		NighttimeStart:  "20:00",
		NighttimeEnd:    "06:00",
	}
}

// AllowsAt reports whether alerts are wanted at t, using the wall clock of
// t's location. Windows may wrap past midnight. Unparseable windows allow.
func (p Preferences) AllowsAt(t time.Time) bool {
	minute := t.Hour()*60 + t.Minute()
	if inWindow(minute, p.DaytimeStart, p.DaytimeEnd) {
		return p.DaytimeAlerts
	}
	if inWindow(minute, p.NighttimeStart, p.NighttimeEnd) {
		return p.NighttimeAlerts
	}
	return p.DaytimeAlerts || p.NighttimeAlerts
}

func inWindow(minute int, start, end string) bool {
	from, ok1 := parseClock(start)
	to, ok2 := parseClock(end)
	if !ok1 || !ok2 {
		return false
	}
	if from <= to {
		return minute >= from && minute < to
	}
	return minute >= from || minute < to
}

func parseClock(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// User is an app user: a truck driver, a citizen or an admin.
type User struct {
	ID              string
	Name            string
	Email           string
	Role            Role
	Status          string
	Location        *geo.Location
	FCMToken        string
	SelectedRouteID string
	PhoneNumber     string
	Preferences     Preferences
}

// IsTruckDriver reports whether the user drives a truck.
func (u *User) IsTruckDriver() bool {
	return u.Role == RoleTruckDriver
}

// HasLocation reports whether the user carries a current location.
func (u *User) HasLocation() bool {
	return u.Location != nil
}

// Truck is a collection truck owned by a driver.
type Truck struct {
	ID           string
	DriverID     string
	Status       string
	Brand        string
	Model        string
	SerialNumber string
}

// Route is a collection route served by a truck.
type Route struct {
	ID      string
	TruckID string
	Status  string
	Name    string
}

// NotificationRecord is a notification delivered to a citizen.
type NotificationRecord struct {
	ID        string
	CitizenID string
	RouteID   string
	Type      string
	Message   string
	Data      map[string]string
	Timestamp time.Time
	Read      bool
}
