package review

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ustabul/ustabul/internal/dto"
	"github.com/ustabul/ustabul/internal/presentation/http/request"
	"github.com/ustabul/ustabul/internal/presentation/http/response"
	service "github.com/ustabul/ustabul/internal/service/review"
	"github.com/ustabul/ustabul/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/ustabul/ustabul/transport/http/review")

// Handler exposes review endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a review Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.POST("/reviews", h.create)
	e.GET("/masters/:id/reviews", h.listForMaster)
}

type createPayload struct {
	OrderID int64  `json:"order_id"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
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
	if payload.OrderID <= 0 {
		return b.WithError(errorbank.BadRequest("order_id is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "reviews.create", trace.WithAttributes(attribute.Int64("order.id", payload.OrderID)))
	defer span.End()

	rev, err := h.svc.Create(ctx, service.CreateInput{
		OrderID:    payload.OrderID,
		CustomerID: customerID,
		Rating:     payload.Rating,
		Comment:    payload.Comment,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(dto.FromReview(rev)).Build()
}

func (h *Handler) listForMaster(c echo.Context) error {
	b := response.New(c)

	masterID, err := request.PathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "reviews.listForMaster", trace.WithAttributes(attribute.Int64("master.id", masterID)))
	defer span.End()

	reviews, err := h.svc.ListForMaster(ctx, masterID)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.ReviewResponse, 0, len(reviews))
	for i := range reviews {
		out = append(out, dto.FromReview(&reviews[i]))
	}
	return b.WithData(out).Build()
}
