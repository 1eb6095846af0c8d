package directory

import "context"

// Store is a backend holding users, trucks, routes and notifications.
// Lookups of a single entity return ErrNotFound when it does not exist.
type Store interface {
	// FindUser retrieves a user by ID.
	FindUser(ctx context.Context, id string) (*User, error)

	// FindTruckByDriver retrieves the truck owned by a driver.
	FindTruckByDriver(ctx context.Context, driverID string) (*Truck, error)

	// FindActiveRoute retrieves the first active route of a truck.
	FindActiveRoute(ctx context.Context, truckID string) (*Route, error)

	// ListSubscribedCitizens lists citizens whose selected route is routeID.
	ListSubscribedCitizens(ctx context.Context, routeID string) ([]*User, error)

	// FindLastNotification retrieves the latest truck_near notification sent
	// to a citizen for a route.
	FindLastNotification(ctx context.Context, citizenID, routeID string) (*NotificationRecord, error)

	// SaveNotification stores a notification under the citizen. ID and
	// Timestamp are assigned by the caller.
	SaveNotification(ctx context.Context, record *NotificationRecord) error
}
