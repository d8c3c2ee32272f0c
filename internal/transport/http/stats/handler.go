package stats

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ustabul/ustabul/internal/presentation/http/request"
	"github.com/ustabul/ustabul/internal/presentation/http/response"
	service "github.com/ustabul/ustabul/internal/service/stats"
)

var httpTracer = otel.Tracer("github.com/ustabul/ustabul/transport/http/stats")

// Handler exposes the derived dashboard endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a stats Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/masters/:id/stats", h.masterStats)
	e.GET("/customers/:id/stats", h.customerStats)
	e.GET("/leaderboard", h.leaderboard)
}

func (h *Handler) masterStats(c echo.Context) error {
	b := response.New(c)

	masterID, err := request.PathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "stats.master", trace.WithAttributes(attribute.Int64("master.id", masterID)))
	defer span.End()

	stats, err := h.svc.MasterStats(ctx, masterID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(stats).Build()
}

func (h *Handler) customerStats(c echo.Context) error {
	b := response.New(c)

	customerID, err := request.PathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "stats.customer", trace.WithAttributes(attribute.Int64("customer.id", customerID)))
	defer span.End()

	stats, err := h.svc.CustomerStats(ctx, customerID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(stats).Build()
}

func (h *Handler) leaderboard(c echo.Context) error {
	b := response.New(c)

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "stats.leaderboard")
	defer span.End()

	entries, err := h.svc.Leaderboard(ctx, c.QueryParam("metric"), c.QueryParam("period"), limit)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(entries).WithMeta("count", len(entries)).Build()
}
