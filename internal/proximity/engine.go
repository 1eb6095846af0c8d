// Package proximity turns a truck driver's location update into push
// notifications for the nearby citizens subscribed to the truck's route.
package proximity

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/comaslimpio/notification-api/internal/apperror"
	"github.com/comaslimpio/notification-api/internal/directory"
	"github.com/comaslimpio/notification-api/internal/notification"
	"github.com/comaslimpio/notification-api/internal/push"
	"github.com/comaslimpio/notification-api/internal/telemetry"
	"github.com/comaslimpio/notification-api/pkg/geo"
)

const tracerName = "github.com/comaslimpio/notification-api/internal/proximity"

// Defaults.
const (
	DefaultDistanceThreshold = 200.0
	DefaultConcurrency       = 4
)

// Caller-facing messages.
const (
	MsgUserIDRequired     = "UserId is required"
	MsgLocationRequired   = "Location data is required"
	MsgInvalidCoordinates = "Invalid coordinates"
	MsgUserNotFound       = "User not found"
	MsgNotEligible        = "Not a truck driver or no location"
	MsgNoTruck            = "No truck found"
	MsgNoActiveRoute      = "No active route found"
)

// Skip reasons reported per citizen.
const (
	ReasonNoLocation      = "No location"
	ReasonNoToken         = "No FCM token"
	ReasonTooFar          = "Too far"
	ReasonQuietHours      = "Quiet hours"
	ReasonThrottled       = "Throttled"
	ReasonThrottleFailed  = "Throttle check failed"
	ReasonSendingDisabled = "Sending disabled"
	ReasonSendFailed      = "Send failed"
)

// Directory resolves the people and assets behind a location update.
type Directory interface {
	GetUser(ctx context.Context, id string) (*directory.User, error)
	GetTruckByDriver(ctx context.Context, driverID string) (*directory.Truck, error)
	GetActiveRoute(ctx context.Context, truckID string) (*directory.Route, error)
	GetSubscribedCitizens(ctx context.Context, routeID string) []*directory.User
}

// Dispatcher sends and records notifications.
type Dispatcher interface {
	Templates() notification.Templates
	Send(ctx context.Context, token, title, body string, data map[string]string) (string, error)
	Persist(ctx context.Context, citizenID string, record directory.NotificationRecord) (*directory.NotificationRecord, error)
}

// Throttle limits how often a citizen is notified for a route.
type Throttle interface {
	ShouldSend(ctx context.Context, citizenID, routeID string) (bool, error)
	Record(ctx context.Context, citizenID, routeID string, at time.Time)
}

// Flags are the runtime switches the engine honours.
type Flags interface {
	PushSendingDisabled(ctx context.Context) bool
	QuietHoursRespected(ctx context.Context) bool
}

// EngineConfig holds configuration for the proximity engine.
type EngineConfig struct {
	Directory  Directory
	Dispatcher Dispatcher
	Throttle   Throttle

	// Flags is optional. Without it, sending is enabled and quiet hours are ignored.
	Flags Flags

	// DistanceThreshold is the maximum truck-to-citizen distance in meters.
	DistanceThreshold float64

	// Concurrency bounds the number of citizens evaluated in parallel.
	Concurrency int

	// Location is the time zone used for citizens' quiet hours. Defaults to UTC.
	Location *time.Location

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Metrics is optional.
	Metrics *telemetry.NotificationMetrics

	Logger zerolog.Logger
}

// Engine processes truck location updates. It is safe for concurrent use.
type Engine struct {
	directory   Directory
	dispatcher  Dispatcher
	throttle    Throttle
	flags       Flags
	threshold   float64
	concurrency int
	location    *time.Location
	now         func() time.Time
	metrics     *telemetry.NotificationMetrics
	tracer      trace.Tracer
	logger      zerolog.Logger
}

// NewEngine creates a new proximity engine.
func NewEngine(cfg EngineConfig) *Engine {
	threshold := cfg.DistanceThreshold
	if threshold <= 0 {
		threshold = DefaultDistanceThreshold
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		directory:   cfg.Directory,
		dispatcher:  cfg.Dispatcher,
		throttle:    cfg.Throttle,
		flags:       cfg.Flags,
		threshold:   threshold,
		concurrency: concurrency,
		location:    loc,
		now:         now,
		metrics:     cfg.Metrics,
		tracer:      otel.Tracer(tracerName),
		logger:      cfg.Logger,
	}
}

// ValidationResult is the outcome of ValidateInput.
type ValidationResult struct {
	IsValid bool
	Message string
}

// ValidateInput checks a location update without touching the directory.
func ValidateInput(userID string, loc *geo.Location) ValidationResult {
	switch {
	case userID == "":
		return ValidationResult{Message: MsgUserIDRequired}
	case loc == nil:
		return ValidationResult{Message: MsgLocationRequired}
	case !loc.Valid():
		return ValidationResult{Message: MsgInvalidCoordinates}
	}
	return ValidationResult{IsValid: true}
}

// Outcome is the decision taken for one subscribed citizen.
type Outcome struct {
	CitizenID string
	Sent      bool
	Reason    string

	// Distance is the truck-to-citizen distance in whole meters, empty when
	// it was not computed.
	Distance string

	// Error carries the underlying failure text for failed sends and
	// throttle lookups.
	Error string

	// TokenPreview is set on sent outcomes.
	TokenPreview string
}

// Result summarises a processed location update.
type Result struct {
	Success           bool
	Message           string
	RouteID           string
	TruckID           string
	TotalCitizens     int
	NotificationsSent int
	Notifications     []Outcome
}

// ProcessLocationUpdate validates the update, resolves the driver's truck and
// active route and notifies every subscribed citizen within the distance
// threshold who has not been notified within the throttle window.
//
// Returned errors are *apperror.Error values: validation, not_found or lookup.
// Per-citizen failures never fail the call; they are reported in the outcomes.
func (e *Engine) ProcessLocationUpdate(ctx context.Context, userID string, loc *geo.Location) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "proximity.ProcessLocationUpdate",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	result, err := e.process(ctx, userID, loc)
	if err != nil {
		kind := apperror.KindOf(err)
		span.SetAttributes(attribute.String("error.kind", string(kind)))
		if kind == apperror.KindLookup || kind == apperror.KindInternal {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		e.metrics.RecordUpdate(ctx, string(kind))
		return nil, err
	}

	span.SetAttributes(
		attribute.String("route.id", result.RouteID),
		attribute.String("truck.id", result.TruckID),
		attribute.Int("citizens.total", result.TotalCitizens),
		attribute.Int("notifications.sent", result.NotificationsSent),
	)
	e.metrics.RecordUpdate(ctx, "success")
	return result, nil
}

func (e *Engine) process(ctx context.Context, userID string, loc *geo.Location) (*Result, error) {
	if v := ValidateInput(userID, loc); !v.IsValid {
		return nil, apperror.Validation(v.Message)
	}

	driver, err := e.directory.GetUser(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, MsgUserNotFound)
	}
	if !driver.IsTruckDriver() || !driver.HasLocation() {
		return nil, apperror.NotFound(MsgNotEligible)
	}

	truck, err := e.directory.GetTruckByDriver(ctx, driver.ID)
	if err != nil {
		return nil, notFoundOr(err, MsgNoTruck)
	}

	route, err := e.directory.GetActiveRoute(ctx, truck.ID)
	if err != nil {
		return nil, notFoundOr(err, MsgNoActiveRoute)
	}
	if route == nil || route.ID == "" {
		return nil, apperror.NotFound(MsgNoActiveRoute)
	}

	citizens := e.directory.GetSubscribedCitizens(ctx, route.ID)

	e.logger.Debug().
		Str("driver_id", driver.ID).
		Str("truck_id", truck.ID).
		Str("route_id", route.ID).
		Int("citizens", len(citizens)).
		Msg("evaluating subscribed citizens")

	start := time.Now()
	outcomes := e.fanOut(ctx, *driver.Location, truck.ID, route.ID, citizens)
	e.metrics.RecordFanOut(ctx, len(citizens), time.Since(start))

	sent := 0
	for _, o := range outcomes {
		if o.Sent {
			sent++
		}
	}

	e.logger.Info().
		Str("driver_id", driver.ID).
		Str("route_id", route.ID).
		Int("citizens", len(citizens)).
		Int("sent", sent).
		Msg("location update processed")

	return &Result{
		Success:           true,
		Message:           "Processed " + strconv.Itoa(len(citizens)) + " citizens, sent " + strconv.Itoa(sent) + " notifications",
		RouteID:           route.ID,
		TruckID:           truck.ID,
		TotalCitizens:     len(citizens),
		NotificationsSent: sent,
		Notifications:     outcomes,
	}, nil
}

// fanOut evaluates every citizen on a bounded pool. Each task writes only its
// own slot, so outcomes keep the directory order.
func (e *Engine) fanOut(ctx context.Context, truckLoc geo.Location, truckID, routeID string, citizens []*directory.User) []Outcome {
	outcomes := make([]Outcome, len(citizens))
	if len(citizens) == 0 {
		return outcomes
	}

	sendingDisabled := e.flags != nil && e.flags.PushSendingDisabled(ctx)
	quietHours := e.flags != nil && e.flags.QuietHoursRespected(ctx)

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, citizen := range citizens {
		g.Go(func() error {
			outcomes[i] = e.evaluate(ctx, citizenJob{
				citizen:         citizen,
				truckLoc:        truckLoc,
				truckID:         truckID,
				routeID:         routeID,
				sendingDisabled: sendingDisabled,
				quietHours:      quietHours,
			})
			e.metrics.RecordOutcome(ctx, outcomes[i].Sent, outcomes[i].Reason)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // tasks never return errors

	return outcomes
}

type citizenJob struct {
	citizen         *directory.User
	truckLoc        geo.Location
	truckID         string
	routeID         string
	sendingDisabled bool
	quietHours      bool
}

func (e *Engine) evaluate(ctx context.Context, job citizenJob) Outcome {
	citizen := job.citizen
	out := Outcome{CitizenID: citizen.ID}

	if !citizen.HasLocation() {
		out.Reason = ReasonNoLocation
		return out
	}
	if citizen.FCMToken == "" {
		out.Reason = ReasonNoToken
		return out
	}

	distance := job.truckLoc.DistanceTo(*citizen.Location)
	out.Distance = strconv.FormatFloat(distance, 'f', 0, 64)
	if distance > e.threshold {
		out.Reason = ReasonTooFar
		return out
	}

	now := e.now()
	if job.quietHours && !citizen.Preferences.AllowsAt(now.In(e.location)) {
		out.Reason = ReasonQuietHours
		return out
	}

	allowed, err := e.throttle.ShouldSend(ctx, citizen.ID, job.routeID)
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("citizen_id", citizen.ID).
			Str("route_id", job.routeID).
			Msg("throttle check failed")
		out.Reason = ReasonThrottleFailed
		out.Error = err.Error()
		return out
	}
	if !allowed {
		out.Reason = ReasonThrottled
		return out
	}

	if job.sendingDisabled {
		out.Reason = ReasonSendingDisabled
		return out
	}

	meters := int(math.Round(distance))
	content := e.dispatcher.Templates().TruckNear(meters, job.truckID, job.routeID, now)

	if _, err := e.dispatcher.Send(ctx, citizen.FCMToken, content.Title, content.Body, content.Data); err != nil {
		e.logger.Warn().
			Err(err).
			Str("citizen_id", citizen.ID).
			Str("token", push.TokenPreview(citizen.FCMToken)).
			Msg("notification send failed")
		out.Reason = ReasonSendFailed
		out.Error = errorText(err)
		return out
	}

	out.Sent = true
	out.TokenPreview = push.TokenPreview(citizen.FCMToken)
	e.throttle.Record(ctx, citizen.ID, job.routeID, now)

	if _, err := e.dispatcher.Persist(ctx, citizen.ID, directory.NotificationRecord{
		RouteID: job.routeID,
		Type:    directory.NotificationTypeTruckNear,
		Message: content.Body,
		Data:    content.Data,
	}); err != nil {
		e.logger.Error().
			Err(err).
			Str("citizen_id", citizen.ID).
			Str("route_id", job.routeID).
			Msg("failed to persist notification")
	}

	e.logger.Debug().
		Str("citizen_id", citizen.ID).
		Str("distance", out.Distance).
		Msg("notification sent")

	return out
}

// notFoundOr maps directory.ErrNotFound to a not-found failure with msg and
// passes every other error through.
func notFoundOr(err error, msg string) error {
	if errors.Is(err, directory.ErrNotFound) {
		return apperror.NotFound(msg)
	}
	return err
}

// errorText returns the transport error text of a delivery failure.
func errorText(err error) string {
	var appErr *apperror.Error
	if errors.As(err, &appErr) && appErr.Err != nil {
		return appErr.Err.Error()
	}
	return err.Error()
}
