package llm

import "go.uber.org/fx"

var Module = fx.Module("llm",
	fx.Provide(func(f *OpenAIFactory) Factory { return f }),
	fx.Provide(NewOpenAIFactory),
)
