package directory

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/comaslimpio/notification-api/pkg/geo"
)

// Documents written by different app versions use camelCase or snake_case
// field names. Each mapper below lists every accepted spelling, preferred first.

// UserFromDocument maps a stored user document to a User. The uid field wins
// over the document ID when present.
func UserFromDocument(docID string, data map[string]any) *User {
	user := &User{
		ID:              firstString(data, "uid", "id"),
		Name:            firstString(data, "name"),
		Email:           firstString(data, "email"),
		Role:            Role(firstString(data, "role")),
		Status:          firstString(data, "status"),
		Location:        locationValue(data["location"]),
		FCMToken:        firstString(data, "fcmToken", "fcm_token"),
		SelectedRouteID: firstString(data, "selectedRouteId", "selected_route_id"),
		PhoneNumber:     firstString(data, "phoneNumber", "phone_number"),
		Preferences:     PreferencesFromDocument(firstMap(data, "notification_preferences", "notificationPreferences")),
	}
	if user.ID == "" {
		user.ID = docID
	}
	if user.Status == "" {
		user.Status = StatusActive
	}
	return user
}

// PreferencesFromDocument maps stored notification preferences, filling
// missing fields from DefaultPreferences.
func PreferencesFromDocument(data map[string]any) Preferences {
	prefs := DefaultPreferences()
	if data == nil {
		return prefs
	}
	if v, ok := firstBool(data, "daytimeAlerts", "daytime_alerts"); ok {
		prefs.DaytimeAlerts = v
	}
	if v, ok := firstBool(data, "nighttimeAlerts", "nighttime_alerts"); ok {
		prefs.NighttimeAlerts = v
	}
	if v := firstString(data, "daytimeStart", "daytime_start"); v != "" {
		prefs.DaytimeStart = v
	}
	if v := firstString(data, "daytimeEnd", "daytime_end"); v != "" {
		prefs.DaytimeEnd = v
	}
	if v := firstString(data, "nighttimeStart", "nighttime_start"); v != "" {
		prefs.NighttimeStart = v
	}
	if v := firstString(data, "nighttimeEnd", "nighttime_end"); v != "" {
		prefs.NighttimeEnd = v
	}
	return prefs
}

// PreferencesFromJSON decodes preferences stored as a JSON object.
// Malformed or empty input yields the defaults.
func PreferencesFromJSON(raw []byte) Preferences {
	if len(raw) == 0 {
		return DefaultPreferences()
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return DefaultPreferences()
	}
	return PreferencesFromDocument(data)
}

// TruckFromDocument maps a stored truck document to a Truck.
func TruckFromDocument(docID string, data map[string]any) *Truck {
	truck := &Truck{
		ID:           firstString(data, "id_truck", "idTruck"),
		DriverID:     firstString(data, "id_app_user", "idAppUser"),
		Status:       firstString(data, "status"),
		Brand:        firstString(data, "brand"),
		Model:        firstString(data, "model"),
		SerialNumber: firstString(data, "serial_number", "serialNumber"),
	}
	if truck.ID == "" {
		truck.ID = docID
	}
	return truck
}

// RouteFromDocument maps a stored route document to a Route. Only the uid
// field identifies a route; a document without one maps to a Route with an
// empty ID.
func RouteFromDocument(data map[string]any) *Route {
	return &Route{
		ID:      firstString(data, "uid"),
		TruckID: firstString(data, "id_truck", "idTruck"),
		Status:  firstString(data, "status"),
		Name:    firstString(data, "name"),
	}
}

// NotificationFromDocument maps a stored notification document.
func NotificationFromDocument(citizenID, docID string, data map[string]any) *NotificationRecord {
	record := &NotificationRecord{
		ID:        firstString(data, "uid"),
		CitizenID: citizenID,
		RouteID:   firstString(data, "routeId", "route_id"),
		Type:      firstString(data, "type"),
		Message:   firstString(data, "message"),
		Timestamp: timeValue(data["timestamp"]),
	}
	if record.ID == "" {
		record.ID = docID
	}
	if read, ok := firstBool(data, "read"); ok {
		record.Read = read
	}
	if raw, ok := data["data"].(map[string]any); ok {
		record.Data = make(map[string]string, len(raw))
		for k, v := range raw {
			if s, ok := stringValue(v); ok {
				record.Data[k] = s
			}
		}
	}
	return record
}

// NotificationToDocument maps a notification to the stored document shape.
func NotificationToDocument(record *NotificationRecord) map[string]any {
	doc := map[string]any{
		"uid":       record.ID,
		"type":      record.Type,
		"routeId":   record.RouteID,
		"message":   record.Message,
		"timestamp": record.Timestamp,
		"read":      record.Read,
	}
	if len(record.Data) > 0 {
		doc["data"] = record.Data
	}
	return doc
}

func firstString(data map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := stringValue(data[key]); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstBool(data map[string]any, keys ...string) (bool, bool) {
	for _, key := range keys {
		switch v := data[key].(type) {
		case bool:
			return v, true
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return b, true
			}
		}
	}
	return false, false
}

func firstMap(data map[string]any, keys ...string) map[string]any {
	for _, key := range keys {
		if m, ok := data[key].(map[string]any); ok {
			return m
		}
	}
	return nil
}

func stringValue(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case int64:
		return strconv.FormatInt(s, 10), true
	case int:
		return strconv.Itoa(s), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	default:
		return "", false
	}
}

func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// locationValue maps a stored location. Both coordinates must be present and
// in range, otherwise the user is treated as having no location.
func locationValue(v any) *geo.Location {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	lat, okLat := floatValue(firstPresent(m, "lat", "latitude"))
	long, okLong := floatValue(firstPresent(m, "long", "lng", "longitude"))
	if !okLat || !okLong {
		return nil
	}

	loc := geo.Location{Lat: lat, Long: long}
	if !loc.Valid() {
		return nil
	}
	return &loc
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func timeValue(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case *time.Time:
		if t != nil {
			return *t
		}
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed
		}
	case int64:
		return time.UnixMilli(t)
	}
	return time.Time{}
}
