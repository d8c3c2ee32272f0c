package application

import "go.uber.org/fx"

// Module provides the application service to Fx.
var Module = fx.Provide(NewService)
