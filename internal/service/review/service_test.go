package review_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ustabul/ustabul/internal/database"
	"github.com/ustabul/ustabul/internal/dbtest"
	"github.com/ustabul/ustabul/internal/entity"
	orderrepo "github.com/ustabul/ustabul/internal/repository/order"
	reviewrepo "github.com/ustabul/ustabul/internal/repository/review"
	"github.com/ustabul/ustabul/internal/service/review"
	"github.com/ustabul/ustabul/pkg/errorbank"
)

func newService(t *testing.T) (*review.Service, *database.Connections) {
	t.Helper()
	conns := dbtest.New(t)
	svc := review.NewService(review.Params{
		Reviews: reviewrepo.NewRepository(conns),
		Orders:  orderrepo.NewRepository(conns),
		Logger:  zap.NewNop(),
	})
	return svc, conns
}

func seedOrder(t *testing.T, conns *database.Connections, number string, customerID int64, masterID *int64, status entity.OrderStatus) *entity.Order {
	t.Helper()
	now := time.Now().UTC()
	o := &entity.Order{
		Number:         number,
		CustomerID:     customerID,
		MasterID:       masterID,
		CategoryID:     1,
		Title:          "job",
		ScheduledAt:    now,
		Urgency:        entity.UrgencyPlanned,
		EstimatedPrice: decimal.NewFromInt(100),
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if status == entity.OrderStatusCompleted {
		o.CompletedAt = &now
	}
	_, err := conns.Writer.NewInsert().Model(o).Exec(context.Background())
	require.NoError(t, err)
	return o
}

func TestCreateReview(t *testing.T) {
	svc, conns := newService(t)
	ctx := context.Background()

	masterID := int64(1)
	order := seedOrder(t, conns, "UB-REV00001", 10, &masterID, entity.OrderStatusCompleted)

	rev, err := svc.Create(ctx, review.CreateInput{OrderID: order.ID, CustomerID: 10, Rating: 5, Comment: "great work"})
	require.NoError(t, err)
	require.Equal(t, masterID, rev.MasterID)
	require.Equal(t, 5, rev.Rating)

	// One review per order.
	_, err = svc.Create(ctx, review.CreateInput{OrderID: order.ID, CustomerID: 10, Rating: 3})
	require.True(t, errorbank.IsKind(err, errorbank.KindConflict))
}

func TestCreateReviewGuards(t *testing.T) {
	svc, conns := newService(t)
	ctx := context.Background()

	masterID := int64(1)
	completed := seedOrder(t, conns, "UB-REV00002", 10, &masterID, entity.OrderStatusCompleted)
	inProgress := seedOrder(t, conns, "UB-REV00003", 10, &masterID, entity.OrderStatusInProgress)

	_, err := svc.Create(ctx, review.CreateInput{OrderID: completed.ID, CustomerID: 10, Rating: 0})
	require.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))

	_, err = svc.Create(ctx, review.CreateInput{OrderID: completed.ID, CustomerID: 10, Rating: 6})
	require.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))

	_, err = svc.Create(ctx, review.CreateInput{OrderID: 999, CustomerID: 10, Rating: 4})
	require.True(t, errorbank.IsKind(err, errorbank.KindNotFound))

	_, err = svc.Create(ctx, review.CreateInput{OrderID: completed.ID, CustomerID: 11, Rating: 4})
	require.True(t, errorbank.IsKind(err, errorbank.KindForbidden))

	_, err = svc.Create(ctx, review.CreateInput{OrderID: inProgress.ID, CustomerID: 10, Rating: 4})
	require.True(t, errorbank.IsKind(err, errorbank.KindConflict))
}

func TestListForMaster(t *testing.T) {
	svc, conns := newService(t)
	ctx := context.Background()

	masterID := int64(1)
	first := seedOrder(t, conns, "UB-REV00004", 10, &masterID, entity.OrderStatusCompleted)
	second := seedOrder(t, conns, "UB-REV00005", 10, &masterID, entity.OrderStatusCompleted)

	_, err := svc.Create(ctx, review.CreateInput{OrderID: first.ID, CustomerID: 10, Rating: 4})
	require.NoError(t, err)
	_, err = svc.Create(ctx, review.CreateInput{OrderID: second.ID, CustomerID: 10, Rating: 5})
	require.NoError(t, err)

	reviews, err := svc.ListForMaster(ctx, masterID)
	require.NoError(t, err)
	require.Len(t, reviews, 2)

	reviews, err = svc.ListForMaster(ctx, 99)
	require.NoError(t, err)
	require.Empty(t, reviews)
}
