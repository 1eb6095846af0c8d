package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/comaslimpio/notification-api/pkg/geo"
)

// PostgresStore is a PostgreSQL implementation of Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL directory store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const userColumns = `id, name, email, role, status, lat, long, fcm_token, selected_route_id, phone_number, notification_preferences`

// FindUser retrieves a user by ID.
func (s *PostgresStore) FindUser(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM app_users WHERE id = $1`

	user, err := scanUser(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// FindTruckByDriver retrieves the truck owned by a driver.
func (s *PostgresStore) FindTruckByDriver(ctx context.Context, driverID string) (*Truck, error) {
	query := `
		SELECT id, driver_id, status, COALESCE(brand, ''), COALESCE(model, ''), COALESCE(serial_number, '')
		FROM trucks
		WHERE driver_id = $1
		ORDER BY created_at
		LIMIT 1
	`

	var truck Truck
	err := s.pool.QueryRow(ctx, query, driverID).Scan(
		&truck.ID,
		&truck.DriverID,
		&truck.Status,
		&truck.Brand,
		&truck.Model,
		&truck.SerialNumber,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &truck, nil
}

// FindActiveRoute retrieves the first active route of a truck.
func (s *PostgresStore) FindActiveRoute(ctx context.Context, truckID string) (*Route, error) {
	query := `
		SELECT id, truck_id, status, COALESCE(name, '')
		FROM routes
		WHERE truck_id = $1 AND status = 'active'
		ORDER BY created_at
		LIMIT 1
	`

	var route Route
	err := s.pool.QueryRow(ctx, query, truckID).Scan(
		&route.ID,
		&route.TruckID,
		&route.Status,
		&route.Name,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &route, nil
}

// ListSubscribedCitizens lists citizens whose selected route is routeID.
func (s *PostgresStore) ListSubscribedCitizens(ctx context.Context, routeID string) ([]*User, error) {
	query := `SELECT ` + userColumns + `
		FROM app_users
		WHERE role = 'citizen' AND selected_route_id = $1
		ORDER BY created_at, id
	`

	rows, err := s.pool.Query(ctx, query, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	citizens := make([]*User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		citizens = append(citizens, user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return citizens, nil
}

// FindLastNotification retrieves the latest truck_near notification for a citizen and route.
func (s *PostgresStore) FindLastNotification(ctx context.Context, citizenID, routeID string) (*NotificationRecord, error) {
	query := `
		SELECT id, citizen_id, route_id, type, message, created_at, read
		FROM notifications
		WHERE citizen_id = $1 AND route_id = $2 AND type = $3
		ORDER BY created_at DESC
		LIMIT 1
	`

	var record NotificationRecord
	err := s.pool.QueryRow(ctx, query, citizenID, routeID, NotificationTypeTruckNear).Scan(
		&record.ID,
		&record.CitizenID,
		&record.RouteID,
		&record.Type,
		&record.Message,
		&record.Timestamp,
		&record.Read,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// SaveNotification stores a notification under the citizen.
func (s *PostgresStore) SaveNotification(ctx context.Context, record *NotificationRecord) error {
	query := `
		INSERT INTO notifications (id, citizen_id, route_id, type, message, data, created_at, read)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		record.ID,
		record.CitizenID,
		record.RouteID,
		record.Type,
		record.Message,
		record.Data,
		record.Timestamp,
		record.Read,
	)
	return err
}

// scanUser scans a user row selected with userColumns.
func scanUser(row pgx.Row) (*User, error) {
	var (
		user                                 User
		role                                 string
		lat, long                            *float64
		email, token, routeID, phone, status *string
		prefs                                []byte
	)

	err := row.Scan(
		&user.ID,
		&user.Name,
		&email,
		&role,
		&status,
		&lat,
		&long,
		&token,
		&routeID,
		&phone,
		&prefs,
	)
	if err != nil {
		return nil, err
	}

	user.Role = Role(role)
	user.Email = deref(email)
	user.Status = deref(status)
	user.FCMToken = deref(token)
	user.SelectedRouteID = deref(routeID)
	user.PhoneNumber = deref(phone)
	user.Preferences = PreferencesFromJSON(prefs)
	if lat != nil && long != nil {
		loc := geo.Location{Lat: *lat, Long: *long}
		if loc.Valid() {
			user.Location = &loc
		}
	}
	if user.Status == "" {
		user.Status = StatusActive
	}

	return &user, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
