package analysis

import "context"

// Engine is one remote multimodal model able to answer a Request with web search.
type Engine interface {
	Name() string
	GetModel() string
	Analyze(ctx context.Context, in Request) (Result, error)
}
