package directory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comaslimpio/notification-api/internal/apperror"
	"github.com/comaslimpio/notification-api/internal/directory"
)

var errBackend = errors.New("deadline exceeded")

// failingStore fails every call and counts them.
type failingStore struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *failingStore) fail() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func (s *failingStore) FindUser(context.Context, string) (*directory.User, error) {
	return nil, s.fail()
}

func (s *failingStore) FindTruckByDriver(context.Context, string) (*directory.Truck, error) {
	return nil, s.fail()
}

func (s *failingStore) FindActiveRoute(context.Context, string) (*directory.Route, error) {
	return nil, s.fail()
}

func (s *failingStore) ListSubscribedCitizens(context.Context, string) ([]*directory.User, error) {
	return nil, s.fail()
}

func (s *failingStore) FindLastNotification(context.Context, string, string) (*directory.NotificationRecord, error) {
	return nil, s.fail()
}

func (s *failingStore) SaveNotification(context.Context, *directory.NotificationRecord) error {
	return s.fail()
}

func newGateway(store directory.Store) *directory.Gateway {
	return directory.NewGateway(directory.GatewayConfig{
		Store:  store,
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) },
	})
}

func TestGateway_NotFoundPassesThrough(t *testing.T) {
	gw := newGateway(directory.NewMemoryStore())
	ctx := context.Background()

	_, err := gw.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, directory.ErrNotFound)

	_, err = gw.GetTruckByDriver(ctx, "missing")
	assert.ErrorIs(t, err, directory.ErrNotFound)

	_, err = gw.GetActiveRoute(ctx, "missing")
	assert.ErrorIs(t, err, directory.ErrNotFound)

	last, err := gw.GetLastNotification(ctx, "c1", "r1")
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestGateway_StoreFailuresAreLookupFailures(t *testing.T) {
	store := &failingStore{err: errBackend}
	gw := newGateway(store)
	ctx := context.Background()

	_, err := gw.GetUser(ctx, "u1")
	assert.Equal(t, apperror.KindLookup, apperror.KindOf(err))
	assert.ErrorIs(t, err, errBackend)

	_, err = gw.GetTruckByDriver(ctx, "u1")
	assert.Equal(t, apperror.KindLookup, apperror.KindOf(err))

	_, err = gw.GetActiveRoute(ctx, "t1")
	assert.Equal(t, apperror.KindLookup, apperror.KindOf(err))

	_, err = gw.GetLastNotification(ctx, "c1", "r1")
	assert.Equal(t, apperror.KindLookup, apperror.KindOf(err))

	_, err = gw.SaveNotification(ctx, "c1", directory.NotificationRecord{RouteID: "r1"})
	assert.Equal(t, apperror.KindLookup, apperror.KindOf(err))
}

func TestGateway_GetSubscribedCitizens(t *testing.T) {
	t.Run("empty route id skips the store", func(t *testing.T) {
		store := &failingStore{err: errBackend}
		gw := newGateway(store)

		citizens := gw.GetSubscribedCitizens(context.Background(), "")
		assert.NotNil(t, citizens)
		assert.Empty(t, citizens)
		assert.Equal(t, 0, store.calls)
	})

	t.Run("store failure degrades to empty", func(t *testing.T) {
		store := &failingStore{err: errBackend}
		gw := newGateway(store)

		citizens := gw.GetSubscribedCitizens(context.Background(), "route-1")
		assert.NotNil(t, citizens)
		assert.Empty(t, citizens)
		assert.Equal(t, 1, store.calls)
	})

	t.Run("lists subscribers", func(t *testing.T) {
		store := directory.NewMemoryStore()
		store.PutUser(&directory.User{ID: "c1", Role: directory.RoleCitizen, SelectedRouteID: "route-1"})
		gw := newGateway(store)

		citizens := gw.GetSubscribedCitizens(context.Background(), "route-1")
		require.Len(t, citizens, 1)
		assert.Equal(t, "c1", citizens[0].ID)
	})
}

func TestGateway_SaveNotification(t *testing.T) {
	store := directory.NewMemoryStore()
	gw := newGateway(store)
	ctx := context.Background()

	saved, err := gw.SaveNotification(ctx, "c1", directory.NotificationRecord{
		RouteID: "route-1",
		Message: "cerca",
		Read:    true,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "c1", saved.CitizenID)
	assert.Equal(t, directory.NotificationTypeTruckNear, saved.Type)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), saved.Timestamp)
	assert.False(t, saved.Read)

	last, err := gw.GetLastNotification(ctx, "c1", "route-1")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, last.ID)
}
