package recommendations

import "context"

// Generator produces a fresh recommendation list. Implementations close over whatever
// domain data they need.
type Generator interface {
	Generate(ctx context.Context) ([]Item, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context) ([]Item, error)

// Generate calls f(ctx).
func (f GeneratorFunc) Generate(ctx context.Context) ([]Item, error) {
	return f(ctx)
}

// GeneratorFactory builds the generator for a kind from the current source data.
type GeneratorFactory func(kind Kind, source any) Generator
