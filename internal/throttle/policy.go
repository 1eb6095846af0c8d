// Package throttle decides whether a citizen may be notified again for a route.
package throttle

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/comaslimpio/notification-api/internal/directory"
)

// LastNotificationReader returns the latest notification for a citizen and
// route, or nil when there is none.
type LastNotificationReader interface {
	GetLastNotification(ctx context.Context, citizenID, routeID string) (*directory.NotificationRecord, error)
}

// Cache remembers recent sends so the directory is not queried for every citizen.
type Cache interface {
	LastSent(ctx context.Context, citizenID, routeID string) (time.Time, bool, error)
	RecordSent(ctx context.Context, citizenID, routeID string, at time.Time, ttl time.Duration) error
}

// Bypass switches throttling off at runtime.
type Bypass interface {
	ThrottleDisabled(ctx context.Context) bool
}

// PolicyConfig holds configuration for the throttle policy.
type PolicyConfig struct {
	Reader LastNotificationReader

	// Window is the minimum time between two notifications for the same
	// citizen and route.
	Window time.Duration

	// Cache is optional.
	Cache Cache

	// Bypass is optional.
	Bypass Bypass

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	Logger zerolog.Logger
}

// Policy is the per (citizen, route) notification throttle.
type Policy struct {
	reader LastNotificationReader
	window time.Duration
	cache  Cache
	bypass Bypass
	now    func() time.Time
	logger zerolog.Logger
}

// NewPolicy creates a new throttle policy.
func NewPolicy(cfg PolicyConfig) *Policy {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Policy{
		reader: cfg.Reader,
		window: cfg.Window,
		cache:  cfg.Cache,
		bypass: cfg.Bypass,
		now:    now,
		logger: cfg.Logger,
	}
}

// Window returns the configured throttle window.
func (p *Policy) Window() time.Duration {
	return p.window
}

// ShouldSend reports whether a notification may be sent to citizenID for routeID.
// It allows when no notification was sent before, or when the last one is at
// least Window old.
func (p *Policy) ShouldSend(ctx context.Context, citizenID, routeID string) (bool, error) {
	if p.bypass != nil && p.bypass.ThrottleDisabled(ctx) {
		return true, nil
	}
	if p.window <= 0 {
		return true, nil
	}

	if p.cache != nil {
		at, found, err := p.cache.LastSent(ctx, citizenID, routeID)
		switch {
		case err != nil:
			p.logger.Warn().
				Err(err).
				Str("citizen_id", citizenID).
				Str("route_id", routeID).
				Msg("throttle cache read failed, falling back to directory")
		case found:
			return p.elapsed(at), nil
		}
	}

	last, err := p.reader.GetLastNotification(ctx, citizenID, routeID)
	if err != nil {
		return false, err
	}
	if last == nil || last.Timestamp.IsZero() {
		return true, nil
	}
	return p.elapsed(last.Timestamp), nil
}

// Record remembers a send at the given time. It never fails the caller.
func (p *Policy) Record(ctx context.Context, citizenID, routeID string, at time.Time) {
	if p.cache == nil || p.window <= 0 {
		return
	}
	if err := p.cache.RecordSent(ctx, citizenID, routeID, at, p.window); err != nil {
		p.logger.Warn().
			Err(err).
			Str("citizen_id", citizenID).
			Str("route_id", routeID).
			Msg("throttle cache write failed")
	}
}

func (p *Policy) elapsed(last time.Time) bool {
	return p.now().Sub(last) >= p.window
}
