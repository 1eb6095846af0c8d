// Package featureflags provides runtime switches for the notification pipeline.
package featureflags

import (
	"time"
)

// Well-known feature flag keys.
const (
	// FlagThrottleDisabled lets every notification through the throttle.
	FlagThrottleDisabled = "throttle_disabled"

	// FlagDisablePushSending evaluates proximity but sends nothing.
	FlagDisablePushSending = "disable_push_sending"

	// FlagRespectQuietHours skips citizens whose alert preferences exclude
	// the current time of day.
	FlagRespectQuietHours = "respect_quiet_hours"
)

// Flag represents a feature flag with its current value.
type Flag struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// BoolValue returns the flag value as a boolean.
// Returns the default value if the flag is nil or not a boolean.
func (f *Flag) BoolValue(defaultValue bool) bool {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		// JSON unmarshals numbers as float64
		return v != 0
	case string:
		return v == "true" || v == "1"
	default:
		return defaultValue
	}
}

// DefaultFlags returns the flag values used when the repository has none.
func DefaultFlags() map[string]*Flag {
	return map[string]*Flag{
		FlagThrottleDisabled:   {Key: FlagThrottleDisabled, Value: false},
		FlagDisablePushSending: {Key: FlagDisablePushSending, Value: false},
		FlagRespectQuietHours:  {Key: FlagRespectQuietHours, Value: false},
	}
}
