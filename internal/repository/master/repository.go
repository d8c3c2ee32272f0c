package master

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

var repoTracer = otel.Tracer("github.com/ustabul/ustabul/repository/master")

// ErrNotFound is returned when a master is missing.
var ErrNotFound = errors.New("master not found")

// Repository provides read access to master accounts.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires a repository backed by the read connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

// GetByID fetches a master by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Master, error) {
	ctx, span := repoTracer.Start(ctx, "MasterRepository.GetByID", trace.WithAttributes(attribute.Int64("master.id", id)))
	defer span.End()

	m := new(entity.Master)
	err := r.reader.NewSelect().Model(m).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return m, nil
}

// ListByIDs fetches the given masters keyed by id.
func (r *Repository) ListByIDs(ctx context.Context, ids []int64) (map[int64]entity.Master, error) {
	ctx, span := repoTracer.Start(ctx, "MasterRepository.ListByIDs", trace.WithAttributes(attribute.Int("master.count", len(ids))))
	defer span.End()

	if len(ids) == 0 {
		return map[int64]entity.Master{}, nil
	}

	var masters []entity.Master
	err := r.reader.NewSelect().Model(&masters).
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}

	byID := make(map[int64]entity.Master, len(masters))
	for _, m := range masters {
		byID[m.ID] = m
	}
	return byID, nil
}

// List returns all masters, ordered by id for stable downstream ranking.
func (r *Repository) List(ctx context.Context) ([]entity.Master, error) {
	ctx, span := repoTracer.Start(ctx, "MasterRepository.List")
	defer span.End()

	var masters []entity.Master
	err := r.reader.NewSelect().Model(&masters).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return masters, nil
}
