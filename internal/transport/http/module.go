package http

import (
	"go.uber.org/fx"

	applicationtransport "github.com/ustabul/ustabul/internal/transport/http/application"
	ordertransport "github.com/ustabul/ustabul/internal/transport/http/order"
	reviewtransport "github.com/ustabul/ustabul/internal/transport/http/review"
	statstransport "github.com/ustabul/ustabul/internal/transport/http/stats"
)

// Module aggregates every HTTP transport package.
var Module = fx.Options(
	ordertransport.Module,
	applicationtransport.Module,
	statstransport.Module,
	reviewtransport.Module,
)
