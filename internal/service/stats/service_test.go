package stats_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ustabul/ustabul/internal/config"
	"github.com/ustabul/ustabul/internal/database"
	"github.com/ustabul/ustabul/internal/dbtest"
	"github.com/ustabul/ustabul/internal/entity"
	masterrepo "github.com/ustabul/ustabul/internal/repository/master"
	statsrepo "github.com/ustabul/ustabul/internal/repository/stats"
	"github.com/ustabul/ustabul/internal/service/stats"
	"github.com/ustabul/ustabul/pkg/errorbank"
)

func newService(t *testing.T) (*stats.Service, *database.Connections) {
	t.Helper()
	conns := dbtest.New(t)
	svc := stats.NewService(stats.Params{
		Stats:   statsrepo.NewRepository(conns),
		Masters: masterrepo.NewRepository(conns),
		Config:  config.Config{},
		Logger:  zap.NewNop(),
	})
	return svc, conns
}

func seedMaster(t *testing.T, conns *database.Connections, id int64, name string) {
	t.Helper()
	master := &entity.Master{ID: id, Name: name, CategoryID: 1, CreatedAt: time.Now().UTC()}
	_, err := conns.Writer.NewInsert().Model(master).Exec(context.Background())
	require.NoError(t, err)
}

var orderSeq int

func seedCompletedOrder(t *testing.T, conns *database.Connections, customerID, masterID int64, price int64, completedAt time.Time) *entity.Order {
	t.Helper()
	orderSeq++
	o := &entity.Order{
		Number:         fmt.Sprintf("UB-STAT%04d", orderSeq),
		CustomerID:     customerID,
		MasterID:       &masterID,
		CategoryID:     1,
		Title:          "job",
		ScheduledAt:    completedAt,
		Urgency:        entity.UrgencyPlanned,
		EstimatedPrice: decimal.NewFromInt(price),
		FinalPrice:     decimal.NullDecimal{Decimal: decimal.NewFromInt(price), Valid: true},
		Status:         entity.OrderStatusCompleted,
		CreatedAt:      completedAt.Add(-24 * time.Hour),
		UpdatedAt:      completedAt,
		CompletedAt:    &completedAt,
	}
	_, err := conns.Writer.NewInsert().Model(o).Exec(context.Background())
	require.NoError(t, err)
	return o
}

func seedOrderStatus(t *testing.T, conns *database.Connections, customerID int64, masterID *int64, status entity.OrderStatus) {
	t.Helper()
	orderSeq++
	now := time.Now().UTC()
	o := &entity.Order{
		Number:         fmt.Sprintf("UB-STAT%04d", orderSeq),
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
	_, err := conns.Writer.NewInsert().Model(o).Exec(context.Background())
	require.NoError(t, err)
}

func seedReview(t *testing.T, conns *database.Connections, orderID, masterID int64, rating int, createdAt time.Time) {
	t.Helper()
	review := &entity.Review{OrderID: orderID, MasterID: masterID, CustomerID: 10, Rating: rating, CreatedAt: createdAt}
	_, err := conns.Writer.NewInsert().Model(review).Exec(context.Background())
	require.NoError(t, err)
}

func TestMasterStats(t *testing.T) {
	svc, conns := newService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedMaster(t, conns, 1, "Ahmet Usta")
	masterID := int64(1)

	// 7 completed, 1 cancelled, 2 in progress: 70% completion rate.
	var lastCompleted *entity.Order
	for i := 0; i < 7; i++ {
		lastCompleted = seedCompletedOrder(t, conns, 10, masterID, 100, now.Add(-time.Duration(i)*time.Hour))
	}
	seedOrderStatus(t, conns, 10, &masterID, entity.OrderStatusCancelled)
	seedOrderStatus(t, conns, 10, &masterID, entity.OrderStatusInProgress)
	seedOrderStatus(t, conns, 10, &masterID, entity.OrderStatusInProgress)

	seedReview(t, conns, lastCompleted.ID, masterID, 5, now)
	seedReview(t, conns, lastCompleted.ID+1, masterID, 4, now)

	got, err := svc.MasterStats(ctx, masterID)
	require.NoError(t, err)
	require.Equal(t, 10, got.TotalOrders)
	require.Equal(t, 7, got.CompletedOrders)
	require.Equal(t, 1, got.CancelledOrders)
	require.InDelta(t, 70.0, got.CompletionRate, 0.001)
	require.InDelta(t, 4.5, got.AverageRating, 0.001)
	require.Equal(t, 2, got.ReviewCount)
	require.True(t, got.TotalEarnings.Equal(decimal.NewFromInt(700)))
}

func TestMasterStatsEmpty(t *testing.T) {
	svc, conns := newService(t)
	ctx := context.Background()

	seedMaster(t, conns, 1, "Ahmet Usta")

	got, err := svc.MasterStats(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, got.TotalOrders)
	require.Zero(t, got.CompletionRate)
	require.Zero(t, got.AverageRating)

	_, err = svc.MasterStats(ctx, 99)
	require.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}

func TestCustomerStats(t *testing.T) {
	svc, conns := newService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedMaster(t, conns, 1, "Ahmet Usta")
	masterID := int64(1)

	seedCompletedOrder(t, conns, 10, masterID, 250, now)
	seedCompletedOrder(t, conns, 10, masterID, 350, now)
	seedOrderStatus(t, conns, 10, nil, entity.OrderStatusPending)
	seedOrderStatus(t, conns, 10, &masterID, entity.OrderStatusInProgress)
	seedOrderStatus(t, conns, 11, &masterID, entity.OrderStatusInProgress)

	got, err := svc.CustomerStats(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 4, got.TotalOrders)
	require.Equal(t, 2, got.ActiveOrders)
	require.Equal(t, 2, got.CompletedOrders)
	require.True(t, got.TotalSpent.Equal(decimal.NewFromInt(600)))
}

func TestLeaderboardRankingAndTieBreak(t *testing.T) {
	svc, conns := newService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedMaster(t, conns, 1, "Ahmet Usta")
	seedMaster(t, conns, 2, "Mehmet Usta")
	seedMaster(t, conns, 3, "Hasan Usta")

	// Master 3 has two completed jobs, masters 1 and 2 one each.
	o1 := seedCompletedOrder(t, conns, 10, 1, 100, now)
	seedCompletedOrder(t, conns, 10, 2, 400, now)
	seedCompletedOrder(t, conns, 10, 3, 200, now)
	seedCompletedOrder(t, conns, 10, 3, 200, now)

	seedReview(t, conns, o1.ID, 1, 5, now)

	entries, err := svc.Leaderboard(ctx, stats.MetricCompletedJobs, stats.PeriodAll, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, int64(3), entries[0].MasterID)
	require.Equal(t, 1, entries[0].Rank)
	// Masters 1 and 2 tie on one job each; the lower id ranks first.
	require.Equal(t, int64(1), entries[1].MasterID)
	require.Equal(t, int64(2), entries[2].MasterID)

	entries, err = svc.Leaderboard(ctx, stats.MetricEarnings, stats.PeriodAll, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(2), entries[0].MasterID)
	require.Equal(t, int64(3), entries[1].MasterID)
}

func TestLeaderboardValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Leaderboard(ctx, "reputation", stats.PeriodAll, 10)
	require.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))

	_, err = svc.Leaderboard(ctx, stats.MetricRating, "decade", 10)
	require.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))
}

func TestLeaderboardPeriodWindow(t *testing.T) {
	svc, conns := newService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedMaster(t, conns, 1, "Ahmet Usta")
	seedMaster(t, conns, 2, "Mehmet Usta")

	// Master 1 finished long ago; master 2 this week.
	seedCompletedOrder(t, conns, 10, 1, 100, now.AddDate(0, -3, 0))
	seedCompletedOrder(t, conns, 10, 2, 100, now.Add(-24*time.Hour))

	entries, err := svc.Leaderboard(ctx, stats.MetricCompletedJobs, stats.PeriodWeek, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(2), entries[0].MasterID)
	require.Equal(t, 1, entries[0].CompletedJobs)
	require.Equal(t, 0, entries[1].CompletedJobs)
}
