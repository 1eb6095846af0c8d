package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	"github.com/comaslimpio/notification-api/internal/api/models"
	"github.com/comaslimpio/notification-api/internal/api/response"
	"github.com/comaslimpio/notification-api/internal/featureflags"
	"github.com/comaslimpio/notification-api/internal/provider/resilience"
)

// HealthServiceName is reported by GET /health.
const HealthServiceName = "Notification API"

const readinessCheckTimeout = 2 * time.Second

// DependencyCheck probes one dependency, e.g. a database ping.
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// degradationFlags are flags that change delivery behaviour when on.
var degradationFlags = []string{
	featureflags.FlagThrottleDisabled,
	featureflags.FlagDisablePushSending,
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version  string
	registry *resilience.Registry
	flags    *featureflags.Service
	checks   []DependencyCheck
	now      func() time.Time
}

// NewOpsHandler creates a new OpsHandler. registry and flags may be nil.
func NewOpsHandler(version string, registry *resilience.Registry, flags *featureflags.Service, checks []DependencyCheck) *OpsHandler {
	return &OpsHandler{
		version:  version,
		registry: registry,
		flags:    flags,
		checks:   checks,
		now:      time.Now,
	}
}

// HealthCheck handles GET /health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status:    models.HealthStatusOK,
		Timestamp: models.Timestamp(h.now()),
		Service:   HealthServiceName,
		Version:   h.version,
	})
}

// ReadinessCheck handles GET /ops/ready. It answers 503 when any dependency check fails.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	checks := h.runChecks(r.Context())

	status := models.HealthStatusOK
	code := http.StatusOK
	for _, c := range checks {
		if c.Status == models.HealthStatusFail {
			status = models.HealthStatusFail
			code = http.StatusServiceUnavailable
			break
		}
	}

	response.JSON(w, r, code, models.Readiness{
		Status: status,
		Time:   models.Timestamp(h.now()),
		Checks: checks,
	})
}

// SystemStatus handles GET /ops/status - dependency, push provider and flag status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())
	providers := h.providerStatuses()
	flags := h.activeDegradationFlags(r.Context())

	status := models.HealthStatusOK
	if len(flags) > 0 {
		status = models.HealthStatusDegraded
	}
	for _, p := range providers {
		if p.Status != models.HealthStatusOK {
			status = models.HealthStatusDegraded
		}
	}
	for _, s := range subsystems {
		if s.Status == models.HealthStatusFail {
			status = models.HealthStatusFail
		}
	}

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:                 status,
		Time:                   models.Timestamp(h.now()),
		Version:                h.version,
		Subsystems:             subsystems,
		Providers:              providers,
		ActiveDegradationFlags: flags,
	})
}

// runChecks runs every readiness check concurrently, each with its own timeout.
func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	results := make([]models.SubsystemStatus, len(h.checks))

	var g errgroup.Group
	for i, c := range h.checks {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, readinessCheckTimeout)
			defer cancel()

			results[i] = models.SubsystemStatus{Name: c.Name, Status: models.HealthStatusOK}
			if err := c.Check(checkCtx); err != nil {
				detail := err.Error()
				results[i].Status = models.HealthStatusFail
				results[i].Detail = &detail
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // checks report through results

	return results
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.registry == nil {
		return []models.ProviderStatus{}
	}

	all := h.registry.GetAllHealth()
	statuses := make([]models.ProviderStatus, 0, len(all))
	for _, ph := range all {
		ps := models.ProviderStatus{
			Provider:            ph.Name,
			Status:              providerHealthStatus(ph.CircuitState),
			CircuitState:        ph.CircuitState.String(),
			ConsecutiveFailures: ph.Counts.ConsecutiveFailures,
		}
		if ph.LastSuccessAt != nil {
			ts := models.Timestamp(*ph.LastSuccessAt)
			ps.LastSuccessAt = &ts
		}
		if ph.LastFailureAt != nil {
			ts := models.Timestamp(*ph.LastFailureAt)
			ps.LastFailureAt = &ts
		}
		if ph.LastError != "" {
			msg := ph.LastError
			ps.Message = &msg
		}
		statuses = append(statuses, ps)
	}
	return statuses
}

func providerHealthStatus(state gobreaker.State) models.HealthStatus {
	switch state {
	case gobreaker.StateClosed:
		return models.HealthStatusOK
	case gobreaker.StateHalfOpen:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusFail
	}
}

func (h *OpsHandler) activeDegradationFlags(ctx context.Context) []string {
	if h.flags == nil {
		return nil
	}
	var active []string
	for _, key := range degradationFlags {
		if h.flags.IsEnabled(ctx, key) {
			active = append(active, key)
		}
	}
	sort.Strings(active)
	return active
}
