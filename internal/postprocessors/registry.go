// Package postprocessors builds chunkers by name from recorded parameters.
package postprocessors

import (
	"fmt"
	"sort"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driven"
)

// BuilderFunc creates a Chunker from recorded processing params.
// Params usually come from a CHUNK provenance record, so numbers may
// arrive as float64 after a JSON round trip.
type BuilderFunc func(params domain.ProcessingParams) (driven.Chunker, error)

// Ensure Registry implements the interface.
var _ driven.ChunkerFactory = (*Registry)(nil)

// Registry maps processor names to their builders.
// It allows a chunker to be rebuilt from the name and params recorded
// on provenance.
type Registry struct {
	builders map[string]BuilderFunc
}

// NewRegistry creates a new processor registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]BuilderFunc),
	}
}

// Register adds a processor builder to the registry.
// Name should be unique and match the processor's Name() return value.
func (r *Registry) Register(name string, builder BuilderFunc) {
	r.builders[name] = builder
}

// Build creates a processor by name with the given params.
func (r *Registry) Build(name string, params domain.ProcessingParams) (driven.Chunker, error) {
	builder, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown processor: %s", domain.ErrInvalidInput, name)
	}
	return builder(params)
}

// Has returns true if a processor with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.builders[name]
	return ok
}

// Names returns all registered processor names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
