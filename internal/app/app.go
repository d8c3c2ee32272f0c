package app

import (
	"go.uber.org/fx"

	"github.com/ustabul/ustabul/internal/cache"
	"github.com/ustabul/ustabul/internal/config"
	"github.com/ustabul/ustabul/internal/database"
	"github.com/ustabul/ustabul/internal/logger"
	"github.com/ustabul/ustabul/internal/messaging"
	"github.com/ustabul/ustabul/internal/observability"
	repositoryapplication "github.com/ustabul/ustabul/internal/repository/application"
	repositorymaster "github.com/ustabul/ustabul/internal/repository/master"
	repositoryorder "github.com/ustabul/ustabul/internal/repository/order"
	repositoryreview "github.com/ustabul/ustabul/internal/repository/review"
	repositorystats "github.com/ustabul/ustabul/internal/repository/stats"
	grpcserver "github.com/ustabul/ustabul/internal/server/grpc"
	httpserver "github.com/ustabul/ustabul/internal/server/http"
	serviceapplication "github.com/ustabul/ustabul/internal/service/application"
	serviceorder "github.com/ustabul/ustabul/internal/service/order"
	servicereview "github.com/ustabul/ustabul/internal/service/review"
	servicestats "github.com/ustabul/ustabul/internal/service/stats"
	transporthttp "github.com/ustabul/ustabul/internal/transport/http"
	"github.com/ustabul/ustabul/internal/worker"
	workernotification "github.com/ustabul/ustabul/internal/worker/notification"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	repositoryorder.Module,
	repositoryapplication.Module,
	repositorymaster.Module,
	repositoryreview.Module,
	repositorystats.Module,
	serviceorder.Module,
	serviceapplication.Module,
	servicestats.Module,
	servicereview.Module,
)

// HTTP wires the HTTP and gRPC transports on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workernotification.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
