package application

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ustabul/ustabul/internal/dto"
	"github.com/ustabul/ustabul/internal/entity"
	"github.com/ustabul/ustabul/internal/presentation/http/request"
	"github.com/ustabul/ustabul/internal/presentation/http/response"
	service "github.com/ustabul/ustabul/internal/service/application"
	"github.com/ustabul/ustabul/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/ustabul/ustabul/transport/http/application")

// Handler exposes application endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an application Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/applications")
	g.POST("", h.submit)
	g.GET("", h.listForOrder)
	g.PATCH("/:id", h.decide)
	g.POST("/:id/withdraw", h.withdraw)

	e.GET("/masters/:id/applications", h.listForMaster)
}

type submitPayload struct {
	OrderID        int64           `json:"order_id"`
	Price          decimal.Decimal `json:"price"`
	Message        string          `json:"message"`
	EstimatedHours *int            `json:"estimated_hours"`
}

func (h *Handler) submit(c echo.Context) error {
	b := response.New(c)

	masterID, err := request.ActorID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload submitPayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.OrderID <= 0 {
		return b.WithError(errorbank.BadRequest("order_id is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "applications.submit", trace.WithAttributes(
		attribute.Int64("order.id", payload.OrderID),
		attribute.Int64("master.id", masterID),
	))
	defer span.End()

	app, err := h.svc.Submit(ctx, service.SubmitInput{
		OrderID:        payload.OrderID,
		MasterID:       masterID,
		Price:          payload.Price,
		Message:        payload.Message,
		EstimatedHours: payload.EstimatedHours,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(dto.FromApplication(app)).Build()
}

func (h *Handler) listForOrder(c echo.Context) error {
	b := response.New(c)

	orderID, err := strconv.ParseInt(c.QueryParam("order_id"), 10, 64)
	if err != nil || orderID <= 0 {
		return b.WithError(errorbank.BadRequest("order_id query parameter is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "applications.listForOrder", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	rows, err := h.svc.ListForOrder(ctx, orderID)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.ApplicationResponse, 0, len(rows))
	for _, row := range rows {
		resp := dto.FromApplication(&row.Application)
		resp.Master = &dto.MasterSummary{
			ID:            row.Master.ID,
			Name:          row.Master.Name,
			AvatarURL:     row.Master.AvatarURL,
			Verified:      row.Master.Verified,
			Rating:        row.Rating,
			ReviewCount:   row.ReviewCount,
			CompletedJobs: row.CompletedJobs,
		}
		out = append(out, resp)
	}

	return b.WithData(out).WithMeta("count", len(out)).Build()
}

func (h *Handler) listForMaster(c echo.Context) error {
	b := response.New(c)

	masterID, err := request.PathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "applications.listForMaster", trace.WithAttributes(attribute.Int64("master.id", masterID)))
	defer span.End()

	apps, err := h.svc.ListForMaster(ctx, masterID)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.ApplicationResponse, 0, len(apps))
	for i := range apps {
		out = append(out, dto.FromApplication(&apps[i]))
	}
	return b.WithData(out).Build()
}

type decidePayload struct {
	Status         string `json:"status"`
	RejectedReason string `json:"rejected_reason"`
}

func (h *Handler) decide(c echo.Context) error {
	b := response.New(c)

	applicationID, err := request.PathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	customerID, err := request.ActorID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload decidePayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "applications.decide", trace.WithAttributes(
		attribute.Int64("application.id", applicationID),
		attribute.String("application.decision", payload.Status),
	))
	defer span.End()

	app, err := h.svc.Decide(ctx, applicationID, customerID, entity.ApplicationStatus(payload.Status), payload.RejectedReason)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromApplication(app)).Build()
}

func (h *Handler) withdraw(c echo.Context) error {
	b := response.New(c)

	applicationID, err := request.PathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	masterID, err := request.ActorID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "applications.withdraw", trace.WithAttributes(attribute.Int64("application.id", applicationID)))
	defer span.End()

	app, err := h.svc.Withdraw(ctx, applicationID, masterID)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromApplication(app)).Build()
}
