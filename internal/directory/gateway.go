package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/comaslimpio/notification-api/internal/apperror"
)

// GatewayConfig holds configuration for the directory gateway.
type GatewayConfig struct {
	Store  Store
	Logger zerolog.Logger

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Gateway applies the lookup policy on top of a Store: not-found results
// surface as ErrNotFound, store failures as apperror lookup failures, except
// for subscriber listing which degrades to an empty result.
type Gateway struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewGateway creates a new directory gateway.
func NewGateway(cfg GatewayConfig) *Gateway {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Gateway{
		store:  cfg.Store,
		logger: cfg.Logger,
		now:    now,
	}
}

// GetUser retrieves a user by ID.
func (g *Gateway) GetUser(ctx context.Context, id string) (*User, error) {
	user, err := g.store.FindUser(ctx, id)
	if err != nil {
		return nil, g.lookupError("get user", err)
	}
	return user, nil
}

// GetTruckByDriver retrieves the truck owned by a driver.
func (g *Gateway) GetTruckByDriver(ctx context.Context, driverID string) (*Truck, error) {
	truck, err := g.store.FindTruckByDriver(ctx, driverID)
	if err != nil {
		return nil, g.lookupError("get truck by driver", err)
	}
	return truck, nil
}

// GetActiveRoute retrieves the active route of a truck.
func (g *Gateway) GetActiveRoute(ctx context.Context, truckID string) (*Route, error) {
	route, err := g.store.FindActiveRoute(ctx, truckID)
	if err != nil {
		return nil, g.lookupError("get active route", err)
	}
	return route, nil
}

// GetSubscribedCitizens lists the citizens subscribed to a route in store order.
// An empty routeID or a store failure yields an empty list.
func (g *Gateway) GetSubscribedCitizens(ctx context.Context, routeID string) []*User {
	if routeID == "" {
		g.logger.Warn().Msg("no route id provided for citizen lookup")
		return []*User{}
	}

	citizens, err := g.store.ListSubscribedCitizens(ctx, routeID)
	if err != nil {
		g.logger.Error().
			Err(err).
			Str("route_id", routeID).
			Msg("failed to list subscribed citizens")
		return []*User{}
	}
	if citizens == nil {
		return []*User{}
	}
	return citizens
}

// GetLastNotification returns the latest truck_near notification for a
// citizen and route, or nil when there is none.
func (g *Gateway) GetLastNotification(ctx context.Context, citizenID, routeID string) (*NotificationRecord, error) {
	record, err := g.store.FindLastNotification(ctx, citizenID, routeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, apperror.Lookup("get last notification", err)
	}
	return record, nil
}

// SaveNotification stores a notification for a citizen, assigning its ID and
// timestamp. The stored record is returned.
func (g *Gateway) SaveNotification(ctx context.Context, citizenID string, record NotificationRecord) (*NotificationRecord, error) {
	record.ID = uuid.New().String()
	record.CitizenID = citizenID
	record.Timestamp = g.now().UTC()
	record.Read = false
	if record.Type == "" {
		record.Type = NotificationTypeTruckNear
	}

	if err := g.store.SaveNotification(ctx, &record); err != nil {
		return nil, apperror.Lookup("save notification", err)
	}
	return &record, nil
}

func (g *Gateway) lookupError(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return apperror.Lookup(op, err)
}
