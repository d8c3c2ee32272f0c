package stats

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ustabul/ustabul/internal/database"
	"github.com/ustabul/ustabul/internal/entity"
)

var repoTracer = otel.Tracer("github.com/ustabul/ustabul/repository/stats")

// OrderAgg is a per-master projection over the orders table. Counted once
// per status bucket; never persisted.
type OrderAgg struct {
	MasterID  int64           `bun:"master_id"`
	Total     int             `bun:"total"`
	Completed int             `bun:"completed"`
	Cancelled int             `bun:"cancelled"`
	Earnings  decimal.Decimal `bun:"earnings"`
}

// ReviewAgg is a per-master projection over the reviews table.
type ReviewAgg struct {
	MasterID    int64   `bun:"master_id"`
	AvgRating   float64 `bun:"avg_rating"`
	ReviewCount int     `bun:"review_count"`
}

// CustomerAgg is a per-customer projection over the orders table.
type CustomerAgg struct {
	Total     int             `bun:"total"`
	Active    int             `bun:"active"`
	Completed int             `bun:"completed"`
	Spent     decimal.Decimal `bun:"spent"`
}

// Repository runs the read-only aggregation queries behind dashboards and
// the leaderboard. Everything is recomputed from source rows per request.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires a repository backed by the read connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

// MasterOrders aggregates order counts and completed earnings for one master.
func (r *Repository) MasterOrders(ctx context.Context, masterID int64) (OrderAgg, error) {
	ctx, span := repoTracer.Start(ctx, "StatsRepository.MasterOrders", attributeMaster(masterID))
	defer span.End()

	agg := OrderAgg{MasterID: masterID}
	err := r.reader.NewSelect().
		Model((*entity.Order)(nil)).
		ColumnExpr("COUNT(*) AS total").
		ColumnExpr("COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0) AS completed").
		ColumnExpr("COALESCE(SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END), 0) AS cancelled").
		ColumnExpr("COALESCE(SUM(CASE WHEN status = 'completed' THEN final_price ELSE 0 END), 0) AS earnings").
		Where("master_id = ?", masterID).
		Scan(ctx, &agg.Total, &agg.Completed, &agg.Cancelled, &agg.Earnings)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate failed")
		return OrderAgg{MasterID: masterID}, err
	}
	return agg, nil
}

// MasterReviews aggregates rating and review count for one master.
func (r *Repository) MasterReviews(ctx context.Context, masterID int64) (ReviewAgg, error) {
	ctx, span := repoTracer.Start(ctx, "StatsRepository.MasterReviews", attributeMaster(masterID))
	defer span.End()

	agg := ReviewAgg{MasterID: masterID}
	err := r.reader.NewSelect().
		Model((*entity.Review)(nil)).
		ColumnExpr("COALESCE(AVG(rating), 0.0) AS avg_rating").
		ColumnExpr("COUNT(*) AS review_count").
		Where("master_id = ?", masterID).
		Scan(ctx, &agg.AvgRating, &agg.ReviewCount)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate failed")
		return ReviewAgg{MasterID: masterID}, err
	}
	return agg, nil
}

// CustomerOrders aggregates order counts and completed spend for one customer.
func (r *Repository) CustomerOrders(ctx context.Context, customerID int64) (CustomerAgg, error) {
	ctx, span := repoTracer.Start(ctx, "StatsRepository.CustomerOrders")
	defer span.End()

	var agg CustomerAgg
	err := r.reader.NewSelect().
		Model((*entity.Order)(nil)).
		ColumnExpr("COUNT(*) AS total").
		ColumnExpr("COALESCE(SUM(CASE WHEN status IN ('pending', 'accepted', 'in_progress') THEN 1 ELSE 0 END), 0) AS active").
		ColumnExpr("COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0) AS completed").
		ColumnExpr("COALESCE(SUM(CASE WHEN status = 'completed' THEN final_price ELSE 0 END), 0) AS spent").
		Where("customer_id = ?", customerID).
		Scan(ctx, &agg.Total, &agg.Active, &agg.Completed, &agg.Spent)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate failed")
		return CustomerAgg{}, err
	}
	return agg, nil
}

// CompletedByMaster groups completed-order counts and earnings per master,
// optionally restricted to a period window and a master id set.
func (r *Repository) CompletedByMaster(ctx context.Context, since time.Time, masterIDs []int64) (map[int64]OrderAgg, error) {
	ctx, span := repoTracer.Start(ctx, "StatsRepository.CompletedByMaster")
	defer span.End()

	var rows []OrderAgg
	q := r.reader.NewSelect().
		Model((*entity.Order)(nil)).
		ColumnExpr("master_id AS master_id").
		ColumnExpr("COUNT(*) AS total").
		ColumnExpr("COUNT(*) AS completed").
		ColumnExpr("0 AS cancelled").
		ColumnExpr("COALESCE(SUM(final_price), 0) AS earnings").
		Where("status = ?", entity.OrderStatusCompleted).
		Where("master_id IS NOT NULL").
		GroupExpr("master_id")
	if !since.IsZero() {
		q = q.Where("completed_at >= ?", since)
	}
	if len(masterIDs) > 0 {
		q = q.Where("master_id IN (?)", bun.In(masterIDs))
	}
	if err := q.Scan(ctx, &rows); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate failed")
		return nil, err
	}

	byMaster := make(map[int64]OrderAgg, len(rows))
	for _, row := range rows {
		byMaster[row.MasterID] = row
	}
	return byMaster, nil
}

// RatingsByMaster groups review aggregates per master, optionally restricted
// to a period window and a master id set.
func (r *Repository) RatingsByMaster(ctx context.Context, since time.Time, masterIDs []int64) (map[int64]ReviewAgg, error) {
	ctx, span := repoTracer.Start(ctx, "StatsRepository.RatingsByMaster")
	defer span.End()

	var rows []ReviewAgg
	q := r.reader.NewSelect().
		Model((*entity.Review)(nil)).
		ColumnExpr("master_id AS master_id").
		ColumnExpr("COALESCE(AVG(rating), 0.0) AS avg_rating").
		ColumnExpr("COUNT(*) AS review_count").
		GroupExpr("master_id")
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	if len(masterIDs) > 0 {
		q = q.Where("master_id IN (?)", bun.In(masterIDs))
	}
	if err := q.Scan(ctx, &rows); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate failed")
		return nil, err
	}

	byMaster := make(map[int64]ReviewAgg, len(rows))
	for _, row := range rows {
		byMaster[row.MasterID] = row
	}
	return byMaster, nil
}

func attributeMaster(id int64) trace.SpanStartOption {
	return trace.WithAttributes(attribute.Int64("master.id", id))
}
