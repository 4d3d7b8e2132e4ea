package services

import (
	"fmt"
	"slices"
	"strings"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
)

// ChunkFilterSpec describes chunk constraints in typed form. Build turns it
// into SQL conditions over the chunk table and an equivalent in-memory
// predicate.
type ChunkFilterSpec struct {
	// ContentTypes keeps chunks containing any of these block kinds.
	ContentTypes []domain.BlockKind

	// SectionPrefix keeps chunks whose section path starts with this value.
	SectionPrefix string

	// Heading keeps chunks with exactly this heading context.
	Heading string

	// AtomicOnly keeps only whole-table and whole-code chunks.
	AtomicOnly bool
}

// IsEmpty reports whether no field constrains the filter.
func (s ChunkFilterSpec) IsEmpty() bool {
	return len(s.ContentTypes) == 0 && s.SectionPrefix == "" && s.Heading == "" && !s.AtomicOnly
}

// Build returns the filter, or nil when IsEmpty.
func (s ChunkFilterSpec) Build() (*domain.ChunkFilter, error) {
	if s.IsEmpty() {
		return nil, nil
	}
	a := domain.DefaultChunkAlias
	f := &domain.ChunkFilter{Alias: a}

	if len(s.ContentTypes) > 0 {
		ors := make([]string, 0, len(s.ContentTypes))
		for _, k := range s.ContentTypes {
			if !k.IsValid() {
				return nil, fmt.Errorf("%w: unknown content type %q", domain.ErrInvalidInput, k)
			}
			ors = append(ors, a+".content_types LIKE ?")
			// content_types is stored as a JSON array of strings.
			f.Params = append(f.Params, `%"`+string(k)+`"%`)
		}
		f.Conditions = append(f.Conditions, "("+strings.Join(ors, " OR ")+")")
	}
	if s.SectionPrefix != "" {
		f.Conditions = append(f.Conditions, a+`.section_path LIKE ? ESCAPE '\'`)
		f.Params = append(f.Params, escapeLike(s.SectionPrefix)+"%")
	}
	if s.Heading != "" {
		f.Conditions = append(f.Conditions, a+".heading_context = ?")
		f.Params = append(f.Params, s.Heading)
	}
	if s.AtomicOnly {
		f.Conditions = append(f.Conditions, a+".is_atomic = 1")
	}
	f.Match = s.Match
	return f, nil
}

// Match reports whether c satisfies every constraint.
func (s ChunkFilterSpec) Match(c domain.Chunk) bool {
	if len(s.ContentTypes) > 0 && !slices.ContainsFunc(s.ContentTypes, func(k domain.BlockKind) bool {
		return slices.Contains(c.ContentTypes, k)
	}) {
		return false
	}
	if s.SectionPrefix != "" && !strings.HasPrefix(c.SectionPath, s.SectionPrefix) {
		return false
	}
	if s.Heading != "" && c.HeadingContext != s.Heading {
		return false
	}
	return !s.AtomicOnly || c.IsAtomic
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
