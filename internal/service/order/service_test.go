package order_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ustabul/ustabul/internal/cache"
	"github.com/ustabul/ustabul/internal/config"
	"github.com/ustabul/ustabul/internal/database"
	"github.com/ustabul/ustabul/internal/dbtest"
	"github.com/ustabul/ustabul/internal/entity"
	"github.com/ustabul/ustabul/internal/event"
	"github.com/ustabul/ustabul/internal/messaging"
	repo "github.com/ustabul/ustabul/internal/repository/order"
	"github.com/ustabul/ustabul/internal/service/order"
	"github.com/ustabul/ustabul/pkg/errorbank"
)

// mapStore is an in-memory cache.Store for tests.
type mapStore struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMapStore() *mapStore {
	return &mapStore{entries: make(map[string][]byte)}
}

func (m *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.entries[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return value, nil
}

func (m *mapStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *mapStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Notification
}

func (p *recordingPublisher) Publish(_ context.Context, _ []byte, value []byte) error {
	var n event.Notification
	if err := json.Unmarshal(value, &n); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, n)
	return nil
}

func (p *recordingPublisher) Consume(ctx context.Context, _ messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (p *recordingPublisher) Topic() string { return "test" }

func newService(t *testing.T) (*order.Service, *database.Connections, *mapStore, *recordingPublisher) {
	t.Helper()
	conns := dbtest.New(t)
	store := newMapStore()
	pub := &recordingPublisher{}
	svc := order.NewService(order.Params{
		Repository: repo.NewRepository(conns),
		Cache:      store,
		Config: config.Config{
			Cache:     config.Cache{DefaultTTL: time.Minute},
			Messaging: config.Messaging{Enabled: true},
		},
		Logger:    zap.NewNop(),
		Publisher: pub,
	})
	return svc, conns, store, pub
}

func validInput() order.CreateInput {
	return order.CreateInput{
		CustomerID:     10,
		CategoryID:     1,
		Title:          "fix the sink",
		Description:    "kitchen sink leaks",
		District:       "Yasamal",
		Address:        "Sharifzadeh St. 12",
		ScheduledAt:    time.Now().UTC().Add(24 * time.Hour),
		Urgency:        entity.UrgencyToday,
		EstimatedPrice: decimal.NewFromInt(500),
	}
}

func TestCreateOrder(t *testing.T) {
	svc, _, store, _ := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	require.Equal(t, entity.OrderStatusPending, created.Status)
	require.Regexp(t, `^UB-[0-9A-F]{8}$`, created.Number)
	require.Nil(t, created.MasterID)

	// The fresh order lands in the cache.
	_, err = store.Get(ctx, order.CacheKey(created.ID))
	require.NoError(t, err)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.Number, got.Number)
}

func TestCreateOrderValidation(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()

	cases := map[string]func(*order.CreateInput){
		"missing title":     func(in *order.CreateInput) { in.Title = "   " },
		"missing category":  func(in *order.CreateInput) { in.CategoryID = 0 },
		"missing schedule":  func(in *order.CreateInput) { in.ScheduledAt = time.Time{} },
		"bad urgency":       func(in *order.CreateInput) { in.Urgency = "whenever" },
		"non-positive cost": func(in *order.CreateInput) { in.EstimatedPrice = decimal.Zero },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			_, err := svc.Create(ctx, in)
			require.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))
		})
	}
}

func TestGetMissingOrder(t *testing.T) {
	svc, _, _, _ := newService(t)

	_, err := svc.Get(context.Background(), 404)
	require.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}

func assign(t *testing.T, conns *database.Connections, orderID, masterID int64) {
	t.Helper()
	r := repo.NewRepository(conns)
	ok, err := r.Assign(context.Background(), conns.Writer, orderID, masterID, decimal.NewFromInt(450))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMasterLifecycle(t *testing.T) {
	svc, conns, store, pub := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	assign(t, conns, created.ID, 7)

	// Only the assigned master can move the order.
	_, err = svc.Start(ctx, created.ID, 8)
	require.True(t, errorbank.IsKind(err, errorbank.KindForbidden))

	started, err := svc.Start(ctx, created.ID, 7)
	require.NoError(t, err)
	require.Equal(t, entity.OrderStatusInProgress, started.Status)

	// Starting twice is a state conflict.
	_, err = svc.Start(ctx, created.ID, 7)
	require.True(t, errorbank.IsKind(err, errorbank.KindConflict))

	completed, err := svc.Complete(ctx, created.ID, 7)
	require.NoError(t, err)
	require.Equal(t, entity.OrderStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	// Stale cached copies are gone after a transition.
	_, err = store.Get(ctx, order.CacheKey(created.ID))
	require.ErrorIs(t, err, cache.ErrCacheMiss)

	require.Len(t, pub.events, 1)
	require.Equal(t, event.TypeOrderCompleted, pub.events[0].Type)
	require.Equal(t, int64(10), pub.events[0].UserID)
}

func TestCancelRules(t *testing.T) {
	svc, conns, _, _ := newService(t)
	ctx := context.Background()

	pending, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, pending.ID, 99, "customer")
	require.True(t, errorbank.IsKind(err, errorbank.KindForbidden))

	_, err = svc.Cancel(ctx, pending.ID, 10, "admin")
	require.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))

	cancelled, err := svc.Cancel(ctx, pending.ID, 10, "customer")
	require.NoError(t, err)
	require.Equal(t, entity.OrderStatusCancelled, cancelled.Status)

	// A master may cancel only while the order sits at accepted.
	accepted, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	assign(t, conns, accepted.ID, 7)

	_, err = svc.Cancel(ctx, accepted.ID, 8, "master")
	require.True(t, errorbank.IsKind(err, errorbank.KindForbidden))

	cancelled, err = svc.Cancel(ctx, accepted.ID, 7, "master")
	require.NoError(t, err)
	require.Equal(t, entity.OrderStatusCancelled, cancelled.Status)

	// Terminal orders stay put.
	_, err = svc.Cancel(ctx, accepted.ID, 10, "customer")
	require.True(t, errorbank.IsKind(err, errorbank.KindConflict))
}

func TestListForCustomerAndBrowseValidation(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	_, err = svc.Create(ctx, validInput())
	require.NoError(t, err)

	orders, err := svc.ListForCustomer(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, orders, 2)

	orders, err = svc.ListForCustomer(ctx, 10, entity.OrderStatusCompleted)
	require.NoError(t, err)
	require.Empty(t, orders)

	_, err = svc.ListForCustomer(ctx, 10, "archived")
	require.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))

	browsable, err := svc.Browse(ctx, repo.BrowseFilter{District: "Yasamal"})
	require.NoError(t, err)
	require.Len(t, browsable, 2)
	require.Equal(t, first.Urgency, browsable[0].Urgency)

	_, err = svc.Browse(ctx, repo.BrowseFilter{Urgency: "whenever"})
	require.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))
}
