package normalisers

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driven"
	"github.com/custodia-labs/ocrprov/internal/normalisers/markdown"
	"github.com/custodia-labs/ocrprov/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// FallbackMIMEType is used when an input's MIME type has no normaliser.
const FallbackMIMEType = "text/plain"

// Registry dispatches inputs to normalisers by MIME type.
type Registry struct {
	byMIME map[string]driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byMIME: make(map[string]driven.Normaliser)}
}

// NewDefaultRegistry creates a registry with the built-in normalisers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(plaintext.New())
	r.Register(markdown.New())
	return r
}

// Register adds a normaliser for each of its MIME types. Later
// registrations win.
func (r *Registry) Register(n driven.Normaliser) {
	for _, mt := range n.SupportedMIMETypes() {
		r.byMIME[mt] = n
	}
}

// SupportedMIMETypes returns all registered MIME types, sorted.
func (r *Registry) SupportedMIMETypes() []string {
	types := make([]string, 0, len(r.byMIME))
	for mt := range r.byMIME {
		types = append(types, mt)
	}
	sort.Strings(types)
	return types
}

// Normalise runs the normaliser registered for input.MIMEType, or the
// plain text one when there is none.
func (r *Registry) Normalise(ctx context.Context, input *driven.NormaliseInput) (*driven.NormaliseResult, error) {
	if input == nil {
		return nil, domain.ErrInvalidInput
	}
	n, ok := r.byMIME[baseMIME(input.MIMEType)]
	if !ok {
		n, ok = r.byMIME[FallbackMIMEType]
	}
	if !ok {
		return nil, fmt.Errorf("%w: no normaliser for %q", domain.ErrInvalidInput, input.MIMEType)
	}
	return n.Normalise(ctx, input)
}

// baseMIME strips parameters such as "; charset=utf-8".
func baseMIME(mt string) string {
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

var extMIME = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".mmd":      "text/markdown",
	".txt":      "text/plain",
	".text":     "text/plain",
}

// MIMETypeForPath guesses the MIME type of an OCR output file from its
// extension. Unknown extensions are treated as markdown, the format OCR
// providers emit by default.
func MIMETypeForPath(path string) string {
	if mt, ok := extMIME[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return "text/markdown"
}
