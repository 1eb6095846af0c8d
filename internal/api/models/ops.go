package models

// Health is the liveness response of GET /health.
type Health struct {
	Status    HealthStatus `json:"status"`
	Timestamp Timestamp    `json:"timestamp"`
	Service   string       `json:"service"`
	Version   string       `json:"version"`
}

// Readiness is the response of GET /ops/ready.
type Readiness struct {
	Status HealthStatus      `json:"status"`
	Time   Timestamp         `json:"time"`
	Checks []SubsystemStatus `json:"checks"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status                 HealthStatus      `json:"status"`
	Time                   Timestamp         `json:"time"`
	Version                string            `json:"version"`
	Subsystems             []SubsystemStatus `json:"subsystems"`
	Providers              []ProviderStatus  `json:"providers"`
	ActiveDegradationFlags []string          `json:"activeDegradationFlags,omitempty"`
}

// SubsystemStatus represents the status of a subsystem.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// ProviderStatus represents the status of an external provider.
type ProviderStatus struct {
	Provider            string       `json:"provider"`
	Status              HealthStatus `json:"status"`
	CircuitState        string       `json:"circuitState"`
	ConsecutiveFailures uint32       `json:"consecutiveFailures"`
	LastSuccessAt       *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *Timestamp   `json:"lastFailureAt,omitempty"`
	Message             *string      `json:"message,omitempty"`
}

// FeatureFlag is a feature flag as exposed by /ops/flags.
type FeatureFlag struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	UpdatedAt *Timestamp  `json:"updatedAt,omitempty"`
}

// FeatureFlagList is the response of GET /ops/flags.
type FeatureFlagList struct {
	Flags []FeatureFlag `json:"flags"`
}

// FeatureFlagUpsertRequest is the body of PUT /ops/flags.
type FeatureFlagUpsertRequest struct {
	Flags []FeatureFlag `json:"flags"`
}
