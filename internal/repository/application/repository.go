package application

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ustabul/ustabul/internal/database"
	"github.com/ustabul/ustabul/internal/entity"
)

var repoTracer = otel.Tracer("github.com/ustabul/ustabul/repository/application")

// ErrNotFound is returned when an application is missing.
var ErrNotFound = errors.New("application not found")

// Repository encapsulates read/write access for applications.
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

// RunInTx executes fn inside a single write transaction. The acceptance
// workflow runs through here so the order guard and the application updates
// commit or roll back together.
func (r *Repository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.IDB) error) error {
	return r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}

// Create persists a new application.
func (r *Repository) Create(ctx context.Context, app *entity.Application) error {
	if app == nil {
		return errors.New("nil application")
	}
	ctx, span := repoTracer.Start(ctx, "ApplicationRepository.Create", trace.WithAttributes(
		attribute.Int64("order.id", app.OrderID),
		attribute.Int64("master.id", app.MasterID),
	))
	defer span.End()

	_, err := r.writer.NewInsert().Model(app).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an application by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Application, error) {
	ctx, span := repoTracer.Start(ctx, "ApplicationRepository.GetByID", trace.WithAttributes(attribute.Int64("application.id", id)))
	defer span.End()

	app := new(entity.Application)
	err := r.reader.NewSelect().Model(app).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return app, nil
}

// ListForOrder returns all applications on an order, oldest first.
func (r *Repository) ListForOrder(ctx context.Context, orderID int64) ([]entity.Application, error) {
	ctx, span := repoTracer.Start(ctx, "ApplicationRepository.ListForOrder", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	var apps []entity.Application
	err := r.reader.NewSelect().Model(&apps).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return apps, nil
}

// ListForMaster returns a master's applications across orders, newest first.
func (r *Repository) ListForMaster(ctx context.Context, masterID int64) ([]entity.Application, error) {
	ctx, span := repoTracer.Start(ctx, "ApplicationRepository.ListForMaster", trace.WithAttributes(attribute.Int64("master.id", masterID)))
	defer span.End()

	var apps []entity.Application
	err := r.reader.NewSelect().Model(&apps).
		Where("master_id = ?", masterID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return apps, nil
}

// HasActive reports whether the master already holds a non-withdrawn
// application on the order. Withdrawn bids do not block re-applying.
func (r *Repository) HasActive(ctx context.Context, orderID, masterID int64) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "ApplicationRepository.HasActive", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("master.id", masterID),
	))
	defer span.End()

	count, err := r.reader.NewSelect().Model((*entity.Application)(nil)).
		Where("order_id = ?", orderID).
		Where("master_id = ?", masterID).
		Where("status != ?", entity.ApplicationStatusWithdrawn).
		Count(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
		return false, err
	}
	return count > 0, nil
}

// MarkStatus moves one application out of pending, inside the caller's
// transaction when tx is non-nil. Returns false when the row was not
// pending anymore.
func (r *Repository) MarkStatus(ctx context.Context, tx bun.IDB, id int64, to entity.ApplicationStatus, reason string) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "ApplicationRepository.MarkStatus", trace.WithAttributes(
		attribute.Int64("application.id", id),
		attribute.String("application.status.to", string(to)),
	))
	defer span.End()

	if tx == nil {
		tx = r.writer
	}
	q := tx.NewUpdate().Model((*entity.Application)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status = ?", entity.ApplicationStatusPending)
	if reason != "" {
		q = q.Set("rejected_reason = ?", reason)
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

// RejectSiblings marks every other pending application on the order as
// rejected, inside the caller's transaction.
func (r *Repository) RejectSiblings(ctx context.Context, tx bun.IDB, orderID, acceptedID int64, reason string) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "ApplicationRepository.RejectSiblings", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("application.accepted_id", acceptedID),
	))
	defer span.End()

	res, err := tx.NewUpdate().Model((*entity.Application)(nil)).
		Set("status = ?", entity.ApplicationStatusRejected).
		Set("rejected_reason = ?", reason).
		Set("updated_at = ?", time.Now().UTC()).
		Where("order_id = ?", orderID).
		Where("id != ?", acceptedID).
		Where("status = ?", entity.ApplicationStatusPending).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return 0, err
	}
	return res.RowsAffected()
}
