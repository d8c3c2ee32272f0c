package order_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ustabul/ustabul/internal/database"
	"github.com/ustabul/ustabul/internal/dbtest"
	"github.com/ustabul/ustabul/internal/entity"
	"github.com/ustabul/ustabul/internal/repository/order"
)

func seedOrder(t *testing.T, conns *database.Connections, i int, urgency entity.Urgency, status entity.OrderStatus, createdAt time.Time) *entity.Order {
	t.Helper()
	o := &entity.Order{
		Number:         fmt.Sprintf("UB-TEST%04d", i),
		CustomerID:     10,
		CategoryID:     1,
		Title:          "job",
		District:       "Yasamal",
		ScheduledAt:    createdAt.Add(24 * time.Hour),
		Urgency:        urgency,
		EstimatedPrice: decimal.NewFromInt(100),
		Status:         status,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	_, err := conns.Writer.NewInsert().Model(o).Exec(context.Background())
	require.NoError(t, err)
	return o
}

func TestListBrowsableOrdering(t *testing.T) {
	conns := dbtest.New(t)
	repo := order.NewRepository(conns)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	oldUrgent := seedOrder(t, conns, 1, entity.UrgencyUrgent, entity.OrderStatusPending, base)
	newPlanned := seedOrder(t, conns, 2, entity.UrgencyPlanned, entity.OrderStatusPending, base.Add(2*time.Hour))
	newToday := seedOrder(t, conns, 3, entity.UrgencyToday, entity.OrderStatusPending, base.Add(time.Hour))
	newUrgent := seedOrder(t, conns, 4, entity.UrgencyUrgent, entity.OrderStatusPending, base.Add(3*time.Hour))
	seedOrder(t, conns, 5, entity.UrgencyUrgent, entity.OrderStatusCompleted, base.Add(4*time.Hour))

	orders, err := repo.ListBrowsable(ctx, order.BrowseFilter{})
	require.NoError(t, err)
	require.Len(t, orders, 4)

	// Urgent before today before planned; newest first within a band.
	require.Equal(t, newUrgent.ID, orders[0].ID)
	require.Equal(t, oldUrgent.ID, orders[1].ID)
	require.Equal(t, newToday.ID, orders[2].ID)
	require.Equal(t, newPlanned.ID, orders[3].ID)
}

func TestListBrowsableFilters(t *testing.T) {
	conns := dbtest.New(t)
	repo := order.NewRepository(conns)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	yasamal := seedOrder(t, conns, 1, entity.UrgencyPlanned, entity.OrderStatusPending, base)
	other := seedOrder(t, conns, 2, entity.UrgencyUrgent, entity.OrderStatusPending, base)
	_, err := conns.Writer.NewUpdate().Model((*entity.Order)(nil)).
		Set("district = ?", "Nasimi").
		Set("category_id = ?", 2).
		Where("id = ?", other.ID).
		Exec(ctx)
	require.NoError(t, err)

	orders, err := repo.ListBrowsable(ctx, order.BrowseFilter{District: "Yasamal"})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, yasamal.ID, orders[0].ID)

	orders, err = repo.ListBrowsable(ctx, order.BrowseFilter{CategoryID: 2, Urgency: entity.UrgencyUrgent})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, other.ID, orders[0].ID)
}

func TestTransitionStatusGuard(t *testing.T) {
	conns := dbtest.New(t)
	repo := order.NewRepository(conns)
	ctx := context.Background()

	o := seedOrder(t, conns, 1, entity.UrgencyPlanned, entity.OrderStatusAccepted, time.Now().UTC())

	ok, err := repo.TransitionStatus(ctx, o.ID, entity.OrderStatusPending, entity.OrderStatusCancelled)
	require.NoError(t, err)
	require.False(t, ok, "guard must refuse a stale from-status")

	ok, err = repo.TransitionStatus(ctx, o.ID, entity.OrderStatusAccepted, entity.OrderStatusInProgress)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.TransitionStatus(ctx, o.ID, entity.OrderStatusInProgress, entity.OrderStatusCompleted)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, entity.OrderStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
}

func TestAssignGuard(t *testing.T) {
	conns := dbtest.New(t)
	repo := order.NewRepository(conns)
	ctx := context.Background()

	o := seedOrder(t, conns, 1, entity.UrgencyPlanned, entity.OrderStatusPending, time.Now().UTC())
	price := decimal.NewFromInt(450)

	ok, err := repo.Assign(ctx, conns.Writer, o.ID, 7, price)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, entity.OrderStatusAccepted, got.Status)
	require.NotNil(t, got.MasterID)
	require.Equal(t, int64(7), *got.MasterID)
	require.True(t, got.FinalPrice.Valid)
	require.True(t, got.FinalPrice.Decimal.Equal(price))

	ok, err = repo.Assign(ctx, conns.Writer, o.ID, 8, price)
	require.NoError(t, err)
	require.False(t, ok, "second assignment must lose the guard")
}

func TestGetByIDNotFound(t *testing.T) {
	conns := dbtest.New(t)
	repo := order.NewRepository(conns)

	_, err := repo.GetByID(context.Background(), 42)
	require.ErrorIs(t, err, order.ErrNotFound)
}
