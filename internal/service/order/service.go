package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ustabul/ustabul/internal/cache"
	"github.com/ustabul/ustabul/internal/config"
	"github.com/ustabul/ustabul/internal/entity"
	"github.com/ustabul/ustabul/internal/event"
	"github.com/ustabul/ustabul/internal/messaging"
	repo "github.com/ustabul/ustabul/internal/repository/order"
	"github.com/ustabul/ustabul/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/ustabul/ustabul/service/order")

// CreateInput carries the customer-supplied fields of a new order.
type CreateInput struct {
	CustomerID     int64
	CategoryID     int64
	Title          string
	Description    string
	District       string
	Address        string
	ScheduledAt    time.Time
	Urgency        entity.Urgency
	EstimatedPrice decimal.Decimal
}

// Service encapsulates business logic around orders.
type Service struct {
	repo      *repo.Repository
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	msgOn     bool
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		repo:      p.Repository,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    p.Logger,
		publisher: p.Publisher,
		msgOn:     p.Config.Messaging.Enabled,
	}
}

// Create validates and persists a new pending order.
func (s *Service) Create(ctx context.Context, input CreateInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(attribute.Int64("customer.id", input.CustomerID)))
	defer span.End()

	if err := validateCreate(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &entity.Order{
		Number:         newOrderNumber(),
		CustomerID:     input.CustomerID,
		CategoryID:     input.CategoryID,
		Title:          strings.TrimSpace(input.Title),
		Description:    strings.TrimSpace(input.Description),
		District:       input.District,
		Address:        input.Address,
		ScheduledAt:    input.ScheduledAt,
		Urgency:        input.Urgency,
		EstimatedPrice: input.EstimatedPrice,
		Status:         entity.OrderStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}

	return order, nil
}

func validateCreate(input CreateInput) error {
	switch {
	case input.CustomerID <= 0:
		return errorbank.BadRequest("customer id is required")
	case strings.TrimSpace(input.Title) == "":
		return errorbank.BadRequest("title is required")
	case input.CategoryID <= 0:
		return errorbank.BadRequest("category is required")
	case input.ScheduledAt.IsZero():
		return errorbank.BadRequest("scheduled date is required")
	case !input.Urgency.Valid():
		return errorbank.BadRequest("urgency must be planned, today, or urgent", errorbank.WithDetail("urgency", string(input.Urgency)))
	case !input.EstimatedPrice.IsPositive():
		return errorbank.BadRequest("estimated price must be positive")
	}
	return nil
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", id), zap.Error(err))
	}

	return order, nil
}

// ListForCustomer returns a customer's orders, newest first.
func (s *Service) ListForCustomer(ctx context.Context, customerID int64, status entity.OrderStatus) ([]entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ListForCustomer", trace.WithAttributes(attribute.Int64("customer.id", customerID)))
	defer span.End()

	if status != "" && !validOrderStatus(status) {
		return nil, errorbank.BadRequest("unknown order status", errorbank.WithDetail("status", string(status)))
	}

	orders, err := s.repo.ListForCustomer(ctx, customerID, status)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// ListForMaster returns the orders assigned to a master, newest first.
func (s *Service) ListForMaster(ctx context.Context, masterID int64) ([]entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ListForMaster", trace.WithAttributes(attribute.Int64("master.id", masterID)))
	defer span.End()

	orders, err := s.repo.ListForMaster(ctx, masterID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// Browse returns pending orders for masters looking for work, most urgent
// first and newest within the same urgency.
func (s *Service) Browse(ctx context.Context, filter repo.BrowseFilter) ([]entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Browse")
	defer span.End()

	if filter.Urgency != "" && !filter.Urgency.Valid() {
		return nil, errorbank.BadRequest("unknown urgency", errorbank.WithDetail("urgency", string(filter.Urgency)))
	}

	orders, err := s.repo.ListBrowsable(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to browse orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// Start moves an accepted order into in_progress. Only the assigned master
// may start the work.
func (s *Service) Start(ctx context.Context, orderID, masterID int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Start", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	return s.masterTransition(ctx, orderID, masterID, entity.OrderStatusAccepted, entity.OrderStatusInProgress)
}

// Complete marks an in-progress order as done and notifies the customer.
func (s *Service) Complete(ctx context.Context, orderID, masterID int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Complete", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	order, err := s.masterTransition(ctx, orderID, masterID, entity.OrderStatusInProgress, entity.OrderStatusCompleted)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, event.Notification{
		Type:    event.TypeOrderCompleted,
		OrderID: order.ID,
		UserID:  order.CustomerID,
		Role:    "customer",
	})
	return order, nil
}

func (s *Service) masterTransition(ctx context.Context, orderID, masterID int64, from, to entity.OrderStatus) (*entity.Order, error) {
	order, err := s.loadForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.MasterID == nil || *order.MasterID != masterID {
		return nil, errorbank.Forbidden("only the assigned master may update this order")
	}

	ok, err := s.repo.TransitionStatus(ctx, orderID, from, to)
	if err != nil {
		return nil, errorbank.Internal("failed to update order", errorbank.WithCause(err))
	}
	if !ok {
		return nil, invalidTransition(order.Status, to)
	}

	s.dropFromCache(ctx, orderID)
	return s.loadForUpdate(ctx, orderID)
}

// Cancel moves a pending or accepted order to cancelled. Customers may
// cancel their own orders; the assigned master may cancel an accepted one.
func (s *Service) Cancel(ctx context.Context, orderID, actorID int64, role string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Cancel", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("actor.role", role),
	))
	defer span.End()

	order, err := s.loadForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch role {
	case "customer":
		if order.CustomerID != actorID {
			return nil, errorbank.Forbidden("only the owning customer may cancel this order")
		}
	case "master":
		if order.MasterID == nil || *order.MasterID != actorID {
			return nil, errorbank.Forbidden("only the assigned master may cancel this order")
		}
		if order.Status != entity.OrderStatusAccepted {
			return nil, invalidTransition(order.Status, entity.OrderStatusCancelled)
		}
	default:
		return nil, errorbank.BadRequest("role must be customer or master", errorbank.WithDetail("role", role))
	}

	if order.Status != entity.OrderStatusPending && order.Status != entity.OrderStatusAccepted {
		return nil, invalidTransition(order.Status, entity.OrderStatusCancelled)
	}

	ok, err := s.repo.TransitionStatus(ctx, orderID, order.Status, entity.OrderStatusCancelled)
	if err != nil {
		return nil, errorbank.Internal("failed to cancel order", errorbank.WithCause(err))
	}
	if !ok {
		return nil, invalidTransition(order.Status, entity.OrderStatusCancelled)
	}

	s.dropFromCache(ctx, orderID)
	return s.loadForUpdate(ctx, orderID)
}

func (s *Service) loadForUpdate(ctx context.Context, orderID int64) (*entity.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, errorbank.NotFound("order not found")
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	return order, nil
}

func invalidTransition(from, to entity.OrderStatus) error {
	return errorbank.Conflict("order status does not allow this transition",
		errorbank.WithDetail("from", string(from)),
		errorbank.WithDetail("to", string(to)),
	)
}

func validOrderStatus(status entity.OrderStatus) bool {
	switch status {
	case entity.OrderStatusPending, entity.OrderStatusAccepted, entity.OrderStatusInProgress,
		entity.OrderStatusCompleted, entity.OrderStatusCancelled:
		return true
	}
	return false
}

func newOrderNumber() string {
	id := uuid.New()
	return "UB-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}

func (s *Service) publish(ctx context.Context, n event.Notification) {
	if !s.msgOn || s.publisher == nil {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		s.logger.Error("marshal notification", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, n.Key(), payload); err != nil {
		s.logger.Error("publish notification", zap.String("type", string(n.Type)), zap.Error(err))
	}
}

// CacheKey returns the cache key under which an order is stored. The
// acceptance workflow invalidates through this too, since it rewrites
// order rows outside this service.
func CacheKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, CacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if s.cache == nil || order == nil {
		return nil
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, CacheKey(order.ID), bytes, s.cacheTTL)
}

func (s *Service) dropFromCache(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, CacheKey(id)); err != nil {
		s.logger.Warn("orders cache delete failed", zap.Int64("id", id), zap.Error(err))
	}
}
