package migration

import "go.uber.org/fx"

// Module provides the Migrator to CLI commands.
var Module = fx.Options(
	fx.Provide(New),
)
