package core

import (
	"go.uber.org/fx"
)

// Module is the fx module for the core API façade.
var Module = fx.Module("core",
	fx.Provide(New),
)
