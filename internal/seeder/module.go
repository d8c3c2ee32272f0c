package seeder

import "go.uber.org/fx"

// Module provides the Seeder to CLI commands.
var Module = fx.Options(
	fx.Provide(New),
)
