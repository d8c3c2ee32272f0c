package request

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ustabul/ustabul/pkg/errorbank"
)

// ActorHeader carries the already-authenticated caller id. Session
// resolution happens upstream; the core only ever sees explicit actor ids.
const ActorHeader = "X-Actor-ID"

// ActorID extracts the verified actor id from the request.
func ActorID(c echo.Context) (int64, error) {
	raw := c.Request().Header.Get(ActorHeader)
	if raw == "" {
		return 0, errorbank.BadRequest("actor id header is required", errorbank.WithDetail("header", ActorHeader))
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("actor id must be a positive integer", errorbank.WithDetail("header", ActorHeader))
	}
	return id, nil
}

// PathID parses a positive integer path parameter.
func PathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid "+name, errorbank.WithDetail("param", name))
	}
	return id, nil
}
