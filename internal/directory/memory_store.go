package directory

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of Store.
// It is used in tests and for local development without Firebase.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]*User
	userOrder     []string
	trucks        map[string]*Truck
	routes        []*Route
	notifications map[string][]*NotificationRecord // keyed by citizen ID
}

// NewMemoryStore creates a new in-memory directory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*User),
		trucks:        make(map[string]*Truck),
		notifications: make(map[string][]*NotificationRecord),
	}
}

// PutUser adds or replaces a user. Users are listed in insertion order.
func (s *MemoryStore) PutUser(user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		s.userOrder = append(s.userOrder, user.ID)
	}
	s.users[user.ID] = copyUser(user)
}

// PutTruck adds or replaces a truck.
func (s *MemoryStore) PutTruck(truck *Truck) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := *truck
	s.trucks[truck.ID] = &t
}

// PutRoute adds a route.
func (s *MemoryStore) PutRoute(route *Route) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := *route
	s.routes = append(s.routes, &r)
}

// FindUser retrieves a user by ID.
func (s *MemoryStore) FindUser(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(user), nil
}

// FindTruckByDriver retrieves the truck owned by a driver.
func (s *MemoryStore) FindTruckByDriver(_ context.Context, driverID string) (*Truck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, truck := range s.trucks {
		if truck.DriverID == driverID {
			t := *truck
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

// FindActiveRoute retrieves the first active route of a truck.
func (s *MemoryStore) FindActiveRoute(_ context.Context, truckID string) (*Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, route := range s.routes {
		if route.TruckID == truckID && route.Status == StatusActive {
			r := *route
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

// ListSubscribedCitizens lists citizens whose selected route is routeID.
func (s *MemoryStore) ListSubscribedCitizens(_ context.Context, routeID string) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	citizens := make([]*User, 0)
	for _, id := range s.userOrder {
		user := s.users[id]
		if user.Role == RoleCitizen && user.SelectedRouteID == routeID {
			citizens = append(citizens, copyUser(user))
		}
	}
	return citizens, nil
}

// FindLastNotification retrieves the latest truck_near notification for a citizen and route.
func (s *MemoryStore) FindLastNotification(_ context.Context, citizenID, routeID string) (*NotificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *NotificationRecord
	for _, record := range s.notifications[citizenID] {
		if record.Type != NotificationTypeTruckNear || record.RouteID != routeID {
			continue
		}
		if latest == nil || record.Timestamp.After(latest.Timestamp) {
			latest = record
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return copyNotification(latest), nil
}

// SaveNotification stores a notification under the citizen.
func (s *MemoryStore) SaveNotification(_ context.Context, record *NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifications[record.CitizenID] = append(s.notifications[record.CitizenID], copyNotification(record))
	return nil
}

// Notifications returns the notifications stored for a citizen.
func (s *MemoryStore) Notifications(citizenID string) []*NotificationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*NotificationRecord, 0, len(s.notifications[citizenID]))
	for _, record := range s.notifications[citizenID] {
		records = append(records, copyNotification(record))
	}
	return records
}

// copyUser creates a deep copy of a user.
func copyUser(u *User) *User {
	userCopy := *u
	if u.Location != nil {
		loc := *u.Location
		userCopy.Location = &loc
	}
	return &userCopy
}

func copyNotification(n *NotificationRecord) *NotificationRecord {
	recordCopy := *n
	if n.Data != nil {
		recordCopy.Data = make(map[string]string, len(n.Data))
		for k, v := range n.Data {
			recordCopy.Data[k] = v
		}
	}
	return &recordCopy
}
