package driven

import "context"

// NormaliserRegistry selects the appropriate normaliser for an OCR output.
// It dispatches on MIME type and falls back to plain text.
type NormaliserRegistry interface {
	// Normalise transforms an input using the best matching normaliser.
	Normalise(ctx context.Context, input *NormaliseInput) (*NormaliseResult, error)

	// Register adds a normaliser to the registry.
	Register(normaliser Normaliser)

	// SupportedMIMETypes returns all MIME types that can be normalised.
	SupportedMIMETypes() []string
}
