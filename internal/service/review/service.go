package review

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ustabul/ustabul/internal/entity"
	orderrepo "github.com/ustabul/ustabul/internal/repository/order"
	reviewrepo "github.com/ustabul/ustabul/internal/repository/review"
	"github.com/ustabul/ustabul/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/ustabul/ustabul/service/review")

// CreateInput carries the customer-supplied fields of a new review.
type CreateInput struct {
	OrderID    int64
	CustomerID int64
	Rating     int
	Comment    string
}

// Service owns review creation and listing. One review per completed order.
type Service struct {
	reviews *reviewrepo.Repository
	orders  *orderrepo.Repository
	logger  *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Reviews *reviewrepo.Repository
	Orders  *orderrepo.Repository
	Logger  *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		reviews: p.Reviews,
		orders:  p.Orders,
		logger:  p.Logger,
	}
}

// Create records a review against a completed order the customer owns.
func (s *Service) Create(ctx context.Context, input CreateInput) (*entity.Review, error) {
	ctx, span := serviceTracer.Start(ctx, "ReviewService.Create", trace.WithAttributes(attribute.Int64("order.id", input.OrderID)))
	defer span.End()

	if input.Rating < 1 || input.Rating > 5 {
		return nil, errorbank.BadRequest("rating must be between 1 and 5")
	}

	order, err := s.orders.GetByID(ctx, input.OrderID)
	if errors.Is(err, orderrepo.ErrNotFound) {
		return nil, errorbank.NotFound("order not found")
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	if order.CustomerID != input.CustomerID {
		return nil, errorbank.Forbidden("only the owning customer may review this order")
	}
	if order.Status != entity.OrderStatusCompleted {
		return nil, errorbank.Conflict("only completed orders can be reviewed",
			errorbank.WithDetail("status", string(order.Status)))
	}
	if order.MasterID == nil {
		return nil, errorbank.Conflict("order has no assigned master")
	}

	if _, err := s.reviews.GetByOrder(ctx, input.OrderID); err == nil {
		return nil, errorbank.Conflict("order already has a review")
	} else if !errors.Is(err, reviewrepo.ErrNotFound) {
		return nil, errorbank.Internal("failed to check existing review", errorbank.WithCause(err))
	}

	rev := &entity.Review{
		OrderID:    input.OrderID,
		MasterID:   *order.MasterID,
		CustomerID: input.CustomerID,
		Rating:     input.Rating,
		Comment:    input.Comment,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.reviews.Create(ctx, rev); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create review", errorbank.WithCause(err))
	}
	return rev, nil
}

// ListForMaster returns a master's reviews, newest first.
func (s *Service) ListForMaster(ctx context.Context, masterID int64) ([]entity.Review, error) {
	ctx, span := serviceTracer.Start(ctx, "ReviewService.ListForMaster", trace.WithAttributes(attribute.Int64("master.id", masterID)))
	defer span.End()

	reviews, err := s.reviews.ListForMaster(ctx, masterID)
	if err != nil {
		return nil, errorbank.Internal("failed to list reviews", errorbank.WithCause(err))
	}
	return reviews, nil
}
