package order

import (
	"context"
	"database/sql"
	"errors"
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

var repoTracer = otel.Tracer("github.com/ustabul/ustabul/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// BrowseFilter narrows the browsable (pending) order listing.
type BrowseFilter struct {
	CategoryID int64
	District   string
	Urgency    entity.Urgency
}

// Repository encapsulates read/write access for orders.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists a new order using the write connection.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.number", order.Number)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an order by primary key using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// ListForCustomer returns a customer's orders, newest first, optionally
// narrowed to one status.
func (r *Repository) ListForCustomer(ctx context.Context, customerID int64, status entity.OrderStatus) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListForCustomer", trace.WithAttributes(attribute.Int64("customer.id", customerID)))
	defer span.End()

	var orders []entity.Order
	q := r.reader.NewSelect().Model(&orders).
		Where("customer_id = ?", customerID).
		Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// ListForMaster returns orders assigned to a master, newest first.
func (r *Repository) ListForMaster(ctx context.Context, masterID int64) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListForMaster", trace.WithAttributes(attribute.Int64("master.id", masterID)))
	defer span.End()

	var orders []entity.Order
	err := r.reader.NewSelect().Model(&orders).
		Where("master_id = ?", masterID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// ListBrowsable returns pending orders for the "available jobs" listing,
// most urgent first and newest within the same urgency.
func (r *Repository) ListBrowsable(ctx context.Context, filter BrowseFilter) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListBrowsable")
	defer span.End()

	var orders []entity.Order
	q := r.reader.NewSelect().Model(&orders).
		Where("status = ?", entity.OrderStatusPending)
	if filter.CategoryID > 0 {
		q = q.Where("category_id = ?", filter.CategoryID)
	}
	if filter.District != "" {
		q = q.Where("district = ?", filter.District)
	}
	if filter.Urgency != "" {
		q = q.Where("urgency = ?", filter.Urgency)
	}
	q = q.OrderExpr("CASE urgency WHEN 'urgent' THEN 3 WHEN 'today' THEN 2 ELSE 1 END DESC").
		OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// TransitionStatus moves an order from one status to another with a guarded
// write. The WHERE clause on the previous status makes the update a no-op
// when another writer got there first; callers treat a false return as a
// state conflict. Completing an order also stamps completed_at.
func (r *Repository) TransitionStatus(ctx context.Context, orderID int64, from, to entity.OrderStatus) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.TransitionStatus", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("order.status.from", string(from)),
		attribute.String("order.status.to", string(to)),
	))
	defer span.End()

	now := time.Now().UTC()
	q := r.writer.NewUpdate().Model((*entity.Order)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", now).
		Where("id = ?", orderID).
		Where("status = ?", from)
	if to == entity.OrderStatusCompleted {
		q = q.Set("completed_at = ?", now)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// Assign records the accepted master and final price on a pending order,
// inside the caller's transaction. Returns false when the order was no
// longer pending, which is the at-most-one-acceptance guard.
func (r *Repository) Assign(ctx context.Context, tx bun.IDB, orderID, masterID int64, finalPrice decimal.Decimal) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Assign", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("master.id", masterID),
	))
	defer span.End()

	res, err := tx.NewUpdate().Model((*entity.Order)(nil)).
		Set("status = ?", entity.OrderStatusAccepted).
		Set("master_id = ?", masterID).
		Set("final_price = ?", finalPrice).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", orderID).
		Where("status = ?", entity.OrderStatusPending).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
