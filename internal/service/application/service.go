package application

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
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
	apprepo "github.com/ustabul/ustabul/internal/repository/application"
	masterrepo "github.com/ustabul/ustabul/internal/repository/master"
	orderrepo "github.com/ustabul/ustabul/internal/repository/order"
	statsrepo "github.com/ustabul/ustabul/internal/repository/stats"
	ordersvc "github.com/ustabul/ustabul/internal/service/order"
	"github.com/ustabul/ustabul/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/ustabul/ustabul/service/application")

// siblingRejectedReason is stamped on pending bids displaced by an acceptance.
const siblingRejectedReason = "another application was accepted"

// SubmitInput carries the master-supplied fields of a new bid.
type SubmitInput struct {
	OrderID        int64
	MasterID       int64
	Price          decimal.Decimal
	Message        string
	EstimatedHours *int
}

// WithMaster pairs an application with the master card rendered next to it.
// The rating and counters are recomputed projections, never stored fields.
type WithMaster struct {
	Application   entity.Application
	Master        entity.Master
	Rating        float64
	ReviewCount   int
	CompletedJobs int
}

// Service owns the bid lifecycle and the acceptance workflow.
type Service struct {
	apps      *apprepo.Repository
	orders    *orderrepo.Repository
	masters   *masterrepo.Repository
	stats     *statsrepo.Repository
	cache     cache.Store
	logger    *zap.Logger
	publisher messaging.Client
	msgOn     bool
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Applications *apprepo.Repository
	Orders       *orderrepo.Repository
	Masters      *masterrepo.Repository
	Stats        *statsrepo.Repository
	Cache        cache.Store
	Config       config.Config
	Logger       *zap.Logger
	Publisher    messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		apps:      p.Applications,
		orders:    p.Orders,
		masters:   p.Masters,
		stats:     p.Stats,
		cache:     p.Cache,
		logger:    p.Logger,
		publisher: p.Publisher,
		msgOn:     p.Config.Messaging.Enabled,
	}
}

// Submit records a master's bid against a pending order.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*entity.Application, error) {
	ctx, span := serviceTracer.Start(ctx, "ApplicationService.Submit", trace.WithAttributes(
		attribute.Int64("order.id", input.OrderID),
		attribute.Int64("master.id", input.MasterID),
	))
	defer span.End()

	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	// A closed order reports the conflict regardless of the bid contents.
	if order.Status != entity.OrderStatusPending {
		return nil, errorbank.Conflict("order is not open for applications",
			errorbank.WithDetail("status", string(order.Status)))
	}

	if !input.Price.IsPositive() {
		return nil, errorbank.BadRequest("price must be positive")
	}
	if input.EstimatedHours != nil && *input.EstimatedHours <= 0 {
		return nil, errorbank.BadRequest("estimated hours must be positive")
	}

	if _, err := s.masters.GetByID(ctx, input.MasterID); err != nil {
		if errors.Is(err, masterrepo.ErrNotFound) {
			return nil, errorbank.NotFound("master not found")
		}
		return nil, errorbank.Internal("failed to load master", errorbank.WithCause(err))
	}

	exists, err := s.apps.HasActive(ctx, input.OrderID, input.MasterID)
	if err != nil {
		return nil, errorbank.Internal("failed to check existing applications", errorbank.WithCause(err))
	}
	if exists {
		return nil, errorbank.Conflict("master already applied to this order",
			errorbank.WithDetail("reason", "duplicate_application"))
	}

	now := time.Now().UTC()
	app := &entity.Application{
		OrderID:        input.OrderID,
		MasterID:       input.MasterID,
		Price:          input.Price,
		Message:        input.Message,
		EstimatedHours: input.EstimatedHours,
		Status:         entity.ApplicationStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.apps.Create(ctx, app); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create application", errorbank.WithCause(err))
	}
	return app, nil
}

// ListForOrder returns an order's applications, oldest first, each joined
// with a master summary.
func (s *Service) ListForOrder(ctx context.Context, orderID int64) ([]WithMaster, error) {
	ctx, span := serviceTracer.Start(ctx, "ApplicationService.ListForOrder", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	if _, err := s.loadOrder(ctx, orderID); err != nil {
		return nil, err
	}

	apps, err := s.apps.ListForOrder(ctx, orderID)
	if err != nil {
		return nil, errorbank.Internal("failed to list applications", errorbank.WithCause(err))
	}
	if len(apps) == 0 {
		return []WithMaster{}, nil
	}

	ids := make([]int64, 0, len(apps))
	seen := make(map[int64]struct{}, len(apps))
	for _, a := range apps {
		if _, ok := seen[a.MasterID]; ok {
			continue
		}
		seen[a.MasterID] = struct{}{}
		ids = append(ids, a.MasterID)
	}

	masters, err := s.masters.ListByIDs(ctx, ids)
	if err != nil {
		return nil, errorbank.Internal("failed to load masters", errorbank.WithCause(err))
	}
	completed, err := s.stats.CompletedByMaster(ctx, time.Time{}, ids)
	if err != nil {
		return nil, errorbank.Internal("failed to aggregate completed jobs", errorbank.WithCause(err))
	}
	ratings, err := s.stats.RatingsByMaster(ctx, time.Time{}, ids)
	if err != nil {
		return nil, errorbank.Internal("failed to aggregate ratings", errorbank.WithCause(err))
	}

	out := make([]WithMaster, 0, len(apps))
	for _, a := range apps {
		row := WithMaster{
			Application:   a,
			Master:        masters[a.MasterID],
			CompletedJobs: completed[a.MasterID].Completed,
			Rating:        ratings[a.MasterID].AvgRating,
			ReviewCount:   ratings[a.MasterID].ReviewCount,
		}
		out = append(out, row)
	}
	return out, nil
}

// ListForMaster returns a master's own applications, newest first. The
// browse UI derives its "already applied" set from this.
func (s *Service) ListForMaster(ctx context.Context, masterID int64) ([]entity.Application, error) {
	ctx, span := serviceTracer.Start(ctx, "ApplicationService.ListForMaster", trace.WithAttributes(attribute.Int64("master.id", masterID)))
	defer span.End()

	apps, err := s.apps.ListForMaster(ctx, masterID)
	if err != nil {
		return nil, errorbank.Internal("failed to list applications", errorbank.WithCause(err))
	}
	return apps, nil
}

// Withdraw retracts a pending bid. Only the owning master may withdraw.
func (s *Service) Withdraw(ctx context.Context, applicationID, masterID int64) (*entity.Application, error) {
	ctx, span := serviceTracer.Start(ctx, "ApplicationService.Withdraw", trace.WithAttributes(attribute.Int64("application.id", applicationID)))
	defer span.End()

	app, err := s.loadApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.MasterID != masterID {
		return nil, errorbank.Forbidden("only the owning master may withdraw this application")
	}
	if app.Status != entity.ApplicationStatusPending {
		return nil, errorbank.Conflict("only pending applications can be withdrawn",
			errorbank.WithDetail("status", string(app.Status)))
	}

	ok, err := s.apps.MarkStatus(ctx, nil, applicationID, entity.ApplicationStatusWithdrawn, "")
	if err != nil {
		return nil, errorbank.Internal("failed to withdraw application", errorbank.WithCause(err))
	}
	if !ok {
		return nil, errorbank.Conflict("application is no longer pending")
	}
	return s.loadApplication(ctx, applicationID)
}

// Accept finalises exactly one application on a pending order: the chosen
// bid becomes accepted, the order becomes accepted with the master assigned
// at the bid price, and every sibling pending bid is rejected. The three
// writes commit atomically; the guarded order update makes a concurrent
// second acceptance fail instead of double-assigning.
func (s *Service) Accept(ctx context.Context, orderID, applicationID, customerID int64) (*entity.Application, error) {
	ctx, span := serviceTracer.Start(ctx, "ApplicationService.Accept", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("application.id", applicationID),
	))
	defer span.End()

	order, app, err := s.guardDecision(ctx, orderID, applicationID, customerID)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.OrderStatusPending {
		return nil, errorbank.Conflict("order is no longer pending",
			errorbank.WithDetail("status", string(order.Status)))
	}
	if app.Status != entity.ApplicationStatusPending {
		return nil, errorbank.Conflict("application is not pending",
			errorbank.WithDetail("status", string(app.Status)))
	}

	err = s.apps.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		assigned, err := s.orders.Assign(ctx, tx, orderID, app.MasterID, app.Price)
		if err != nil {
			return err
		}
		if !assigned {
			return errorbank.Conflict("order is no longer pending")
		}

		accepted, err := s.apps.MarkStatus(ctx, tx, applicationID, entity.ApplicationStatusAccepted, "")
		if err != nil {
			return err
		}
		if !accepted {
			return errorbank.Conflict("application is no longer pending")
		}

		if _, err := s.apps.RejectSiblings(ctx, tx, orderID, applicationID, siblingRejectedReason); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if errorbank.IsKind(err, errorbank.KindConflict) {
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "acceptance transaction failed")
		return nil, errorbank.Internal("failed to accept application", errorbank.WithCause(err))
	}

	s.dropOrderCache(ctx, orderID)
	s.publish(ctx, event.Notification{Type: event.TypeOrderAccepted, OrderID: orderID, UserID: app.MasterID, Role: "master"})
	s.publish(ctx, event.Notification{Type: event.TypeOrderAccepted, OrderID: orderID, UserID: customerID, Role: "customer"})

	return s.loadApplication(ctx, applicationID)
}

// Decide resolves the customer's accept/reject action on a bid addressed by
// id alone, the shape the PATCH endpoint uses.
func (s *Service) Decide(ctx context.Context, applicationID, customerID int64, status entity.ApplicationStatus, reason string) (*entity.Application, error) {
	app, err := s.loadApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	switch status {
	case entity.ApplicationStatusAccepted:
		return s.Accept(ctx, app.OrderID, applicationID, customerID)
	case entity.ApplicationStatusRejected:
		return s.Reject(ctx, app.OrderID, applicationID, customerID, reason)
	default:
		return nil, errorbank.BadRequest("status must be accepted or rejected", errorbank.WithDetail("status", string(status)))
	}
}

// Reject declines one pending bid without touching the order or its other
// applications. Allowed while the order itself stays pending.
func (s *Service) Reject(ctx context.Context, orderID, applicationID, customerID int64, reason string) (*entity.Application, error) {
	ctx, span := serviceTracer.Start(ctx, "ApplicationService.Reject", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("application.id", applicationID),
	))
	defer span.End()

	_, app, err := s.guardDecision(ctx, orderID, applicationID, customerID)
	if err != nil {
		return nil, err
	}
	if app.Status != entity.ApplicationStatusPending {
		return nil, errorbank.Conflict("application is not pending",
			errorbank.WithDetail("status", string(app.Status)))
	}

	ok, err := s.apps.MarkStatus(ctx, nil, applicationID, entity.ApplicationStatusRejected, reason)
	if err != nil {
		return nil, errorbank.Internal("failed to reject application", errorbank.WithCause(err))
	}
	if !ok {
		return nil, errorbank.Conflict("application is no longer pending")
	}

	s.publish(ctx, event.Notification{Type: event.TypeApplicationRejected, OrderID: orderID, UserID: app.MasterID, Role: "master"})

	return s.loadApplication(ctx, applicationID)
}

// guardDecision runs the shared ownership and linkage checks for the
// customer's accept/reject actions.
func (s *Service) guardDecision(ctx context.Context, orderID, applicationID, customerID int64) (*entity.Order, *entity.Application, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order.CustomerID != customerID {
		return nil, nil, errorbank.Forbidden("only the owning customer may decide on applications")
	}

	app, err := s.loadApplication(ctx, applicationID)
	if err != nil {
		return nil, nil, err
	}
	if app.OrderID != orderID {
		return nil, nil, errorbank.NotFound("application does not belong to this order")
	}
	return order, app, nil
}

func (s *Service) loadOrder(ctx context.Context, orderID int64) (*entity.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, orderrepo.ErrNotFound) {
		return nil, errorbank.NotFound("order not found")
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	return order, nil
}

func (s *Service) loadApplication(ctx context.Context, id int64) (*entity.Application, error) {
	app, err := s.apps.GetByID(ctx, id)
	if errors.Is(err, apprepo.ErrNotFound) {
		return nil, errorbank.NotFound("application not found")
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load application", errorbank.WithCause(err))
	}
	return app, nil
}

func (s *Service) dropOrderCache(ctx context.Context, orderID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, ordersvc.CacheKey(orderID)); err != nil {
		s.logger.Warn("orders cache delete failed", zap.Int64("id", orderID), zap.Error(err))
	}
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
