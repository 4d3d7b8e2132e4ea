// Package markdown parses OCR-derived markdown into typed, offset-exact
// blocks and derives the structure the chunker needs from them: the
// heading outline of every block and the page that owns every offset.
//
// Everything here is pure and reentrant. Malformed input never produces
// an error; unrecognised constructs degrade to paragraphs or empty blocks.
package markdown
