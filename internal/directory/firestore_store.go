package directory

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore collection names used by the mobile app.
const (
	collectionUsers         = "app_users"
	collectionTrucks        = "trucks"
	collectionRoutes        = "routes"
	collectionNotifications = "notifications"
)

// FirestoreStore is a Cloud Firestore implementation of Store, reading the
// collections written by the ComasLimpio mobile app.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a new Firestore directory store.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

// FindUser retrieves a user by document ID.
func (s *FirestoreStore) FindUser(ctx context.Context, id string) (*User, error) {
	snap, err := s.client.Collection(collectionUsers).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	if !snap.Exists() {
		return nil, ErrNotFound
	}
	return UserFromDocument(snap.Ref.ID, snap.Data()), nil
}

// FindTruckByDriver retrieves the truck owned by a driver.
func (s *FirestoreStore) FindTruckByDriver(ctx context.Context, driverID string) (*Truck, error) {
	docs, err := s.client.Collection(collectionTrucks).
		Where("id_app_user", "==", driverID).
		Limit(1).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, fmt.Errorf("query trucks: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return TruckFromDocument(docs[0].Ref.ID, docs[0].Data()), nil
}

// FindActiveRoute retrieves the first active route of a truck.
func (s *FirestoreStore) FindActiveRoute(ctx context.Context, truckID string) (*Route, error) {
	docs, err := s.client.Collection(collectionRoutes).
		Where("id_truck", "==", truckID).
		Where("status", "==", StatusActive).
		Limit(1).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return RouteFromDocument(docs[0].Data()), nil
}

// ListSubscribedCitizens lists citizens whose selected route is routeID.
func (s *FirestoreStore) ListSubscribedCitizens(ctx context.Context, routeID string) ([]*User, error) {
	docs, err := s.client.Collection(collectionUsers).
		Where("role", "==", string(RoleCitizen)).
		Where("selectedRouteId", "==", routeID).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, fmt.Errorf("query citizens: %w", err)
	}

	citizens := make([]*User, 0, len(docs))
	for _, doc := range docs {
		user := UserFromDocument(doc.Ref.ID, doc.Data())
		// Subscribers are addressed by document ID, which is what the
		// notifications subcollection hangs off.
		user.ID = doc.Ref.ID
		citizens = append(citizens, user)
	}
	return citizens, nil
}

// FindLastNotification retrieves the latest truck_near notification for a citizen and route.
func (s *FirestoreStore) FindLastNotification(ctx context.Context, citizenID, routeID string) (*NotificationRecord, error) {
	docs, err := s.notifications(citizenID).
		Where("type", "==", NotificationTypeTruckNear).
		Where("routeId", "==", routeID).
		OrderBy("timestamp", firestore.Desc).
		Limit(1).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return NotificationFromDocument(citizenID, docs[0].Ref.ID, docs[0].Data()), nil
}

// SaveNotification stores a notification in the citizen's notifications subcollection.
func (s *FirestoreStore) SaveNotification(ctx context.Context, record *NotificationRecord) error {
	_, err := s.notifications(record.CitizenID).Doc(record.ID).Set(ctx, NotificationToDocument(record))
	if err != nil {
		return fmt.Errorf("save notification: %w", err)
	}
	return nil
}

func (s *FirestoreStore) notifications(citizenID string) *firestore.CollectionRef {
	return s.client.Collection(collectionUsers).Doc(citizenID).Collection(collectionNotifications)
}
