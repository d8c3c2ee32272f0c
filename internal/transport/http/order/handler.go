package order

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ustabul/ustabul/internal/dto"
	"github.com/ustabul/ustabul/internal/entity"
	"github.com/ustabul/ustabul/internal/presentation/http/request"
	"github.com/ustabul/ustabul/internal/presentation/http/response"
	repo "github.com/ustabul/ustabul/internal/repository/order"
	service "github.com/ustabul/ustabul/internal/service/order"
	"github.com/ustabul/ustabul/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/ustabul/ustabul/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.POST("", h.create)
	g.GET("", h.browse)
	g.GET("/:id", h.getByID)
	g.POST("/:id/start", h.start)
	g.POST("/:id/complete", h.complete)
	g.POST("/:id/cancel", h.cancel)

	e.GET("/customers/:id/orders", h.listForCustomer)
	e.GET("/masters/:id/orders", h.listForMaster)
}

type createPayload struct {
	CategoryID     int64           `json:"category_id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	District       string          `json:"district"`
	Address        string          `json:"address"`
	ScheduledAt    time.Time       `json:"scheduled_at"`
	Urgency        string          `json:"urgency"`
	EstimatedPrice decimal.Decimal `json:"estimated_price"`
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	customerID, err := request.ActorID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload createPayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create", trace.WithAttributes(attribute.Int64("customer.id", customerID)))
	defer span.End()

	order, err := h.svc.Create(ctx, service.CreateInput{
		CustomerID:     customerID,
		CategoryID:     payload.CategoryID,
		Title:          payload.Title,
		Description:    payload.Description,
		District:       payload.District,
		Address:        payload.Address,
		ScheduledAt:    payload.ScheduledAt,
		Urgency:        entity.Urgency(payload.Urgency),
		EstimatedPrice: payload.EstimatedPrice,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := request.PathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) browse(c echo.Context) error {
	b := response.New(c)

	if c.QueryParam("role") != "browse" {
		return b.WithError(errorbank.BadRequest("role=browse is required on the listing endpoint")).Build()
	}

	filter := repo.BrowseFilter{
		District: c.QueryParam("district"),
		Urgency:  entity.Urgency(c.QueryParam("urgency")),
	}
	if raw := c.QueryParam("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return b.WithError(errorbank.BadRequest("invalid category_id")).Build()
		}
		filter.CategoryID = id
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.browse")
	defer span.End()

	orders, err := h.svc.Browse(ctx, filter)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromOrders(orders)).WithMeta("count", len(orders)).Build()
}

func (h *Handler) listForCustomer(c echo.Context) error {
	b := response.New(c)

	customerID, err := request.PathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.listForCustomer", trace.WithAttributes(attribute.Int64("customer.id", customerID)))
	defer span.End()

	orders, err := h.svc.ListForCustomer(ctx, customerID, entity.OrderStatus(c.QueryParam("status")))
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromOrders(orders)).Build()
}

func (h *Handler) listForMaster(c echo.Context) error {
	b := response.New(c)

	masterID, err := request.PathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.listForMaster", trace.WithAttributes(attribute.Int64("master.id", masterID)))
	defer span.End()

	orders, err := h.svc.ListForMaster(ctx, masterID)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromOrders(orders)).Build()
}

func (h *Handler) start(c echo.Context) error {
	return h.masterAction(c, "orders.start", h.svc.Start)
}

func (h *Handler) complete(c echo.Context) error {
	return h.masterAction(c, "orders.complete", h.svc.Complete)
}

func (h *Handler) masterAction(c echo.Context, spanName string, action func(ctx context.Context, orderID, masterID int64) (*entity.Order, error)) error {
	b := response.New(c)

	orderID, err := request.PathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	masterID, err := request.ActorID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), spanName, trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	order, err := action(ctx, orderID, masterID)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) cancel(c echo.Context) error {
	b := response.New(c)

	orderID, err := request.PathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	actorID, err := request.ActorID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.cancel", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	order, err := h.svc.Cancel(ctx, orderID, actorID, payload.Role)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromOrder(order)).Build()
}
