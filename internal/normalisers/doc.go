// Package normalisers provides implementations of the Normaliser interface
// for the text formats OCR providers emit. Each normaliser turns one OCR
// output into a Document and its OCRResult.
//
// Normalisers are registered with the Registry at startup.
package normalisers
