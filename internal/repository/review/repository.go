package review

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ustabul/ustabul/internal/database"
	"github.com/ustabul/ustabul/internal/entity"
)

var repoTracer = otel.Tracer("github.com/ustabul/ustabul/repository/review")

// ErrNotFound is returned when a review is missing.
var ErrNotFound = errors.New("review not found")

// Repository encapsulates read/write access for reviews.
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

// Create persists a new review.
func (r *Repository) Create(ctx context.Context, rev *entity.Review) error {
	if rev == nil {
		return errors.New("nil review")
	}
	ctx, span := repoTracer.Start(ctx, "ReviewRepository.Create", trace.WithAttributes(attribute.Int64("order.id", rev.OrderID)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(rev).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByOrder fetches the review attached to an order, if any.
func (r *Repository) GetByOrder(ctx context.Context, orderID int64) (*entity.Review, error) {
	ctx, span := repoTracer.Start(ctx, "ReviewRepository.GetByOrder", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	rev := new(entity.Review)
	err := r.reader.NewSelect().Model(rev).Where("order_id = ?", orderID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return rev, nil
}

// ListForMaster returns a master's reviews, newest first.
func (r *Repository) ListForMaster(ctx context.Context, masterID int64) ([]entity.Review, error) {
	ctx, span := repoTracer.Start(ctx, "ReviewRepository.ListForMaster", trace.WithAttributes(attribute.Int64("master.id", masterID)))
	defer span.End()

	var reviews []entity.Review
	err := r.reader.NewSelect().Model(&reviews).
		Where("master_id = ?", masterID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return reviews, nil
}
