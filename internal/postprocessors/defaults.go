package postprocessors

import (
	"fmt"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driven"
	"github.com/custodia-labs/ocrprov/internal/postprocessors/chunker"
)

// RegisterDefaults registers all built-in processors with the registry.
func RegisterDefaults(r *Registry) {
	r.Register(chunker.ProcessorName, buildChunker)
}

// NewDefaultRegistry returns a registry with the built-in processors.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}

// ChunkingConfigFromParams is the inverse of domain.ChunkingConfig.Params.
// Missing keys are an error: a recorded configuration is replayed whole or
// not at all.
func ChunkingConfigFromParams(params domain.ProcessingParams) (domain.ChunkingConfig, error) {
	var cfg domain.ChunkingConfig
	var err error
	if cfg.ChunkSize, err = getIntFromConfig(params, domain.ParamChunkSize); err != nil {
		return cfg, err
	}
	if cfg.OverlapPercent, err = getIntFromConfig(params, domain.ParamOverlapPercent); err != nil {
		return cfg, err
	}
	if cfg.MaxChunkSize, err = getIntFromConfig(params, domain.ParamMaxChunkSize); err != nil {
		return cfg, err
	}
	enabled, ok := params[domain.ParamHeadingNormalization].(bool)
	if !ok {
		return cfg, fmt.Errorf("%w: param %s missing or not a bool", domain.ErrInvalidInput, domain.ParamHeadingNormalization)
	}
	cfg.HeadingNormalization.Enabled = enabled
	if cfg.HeadingNormalization.MinPatternCount, err = getIntFromConfig(params, domain.ParamMinPatternCount); err != nil {
		return cfg, err
	}
	return cfg.Normalized(), nil
}

// buildChunker creates a chunker from recorded params.
func buildChunker(params domain.ProcessingParams) (driven.Chunker, error) {
	cfg, err := ChunkingConfigFromParams(params)
	if err != nil {
		return nil, err
	}
	return chunker.New(chunker.WithConfig(cfg)), nil
}

// getIntFromConfig extracts an int from a generic params map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(params domain.ProcessingParams, key string) (int, error) {
	val, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("%w: param %s missing", domain.ErrInvalidInput, key)
	}

	switch v := val.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%w: param %s is not an integer: %v", domain.ErrInvalidInput, key, v)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("%w: param %s has type %T", domain.ErrInvalidInput, key, val)
	}
}
