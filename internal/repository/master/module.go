package master

import "go.uber.org/fx"

// Module provides the master repository to Fx.
var Module = fx.Provide(NewRepository)
