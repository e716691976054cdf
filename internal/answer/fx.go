package answer

import (
	"go.uber.org/fx"

	"github.com/velocibid/velocibid/internal/answer/service"
)

var Module = fx.Module("answer",
	fx.Provide(
		service.New,
	),
)
