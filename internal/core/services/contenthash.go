package services

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
)

// HashPrefix marks the algorithm of every content hash.
const HashPrefix = "sha256:"

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// CanonicalText returns text in the form that is hashed: Unicode NFC with
// "\n" line endings.
func CanonicalText(text string) string {
	return norm.NFC.String(lineEndings.Replace(text))
}

// HashBytes hashes raw bytes.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return HashPrefix + hex.EncodeToString(sum[:])
}

// HashText hashes the canonical form of text.
func HashText(text string) string {
	return HashBytes([]byte(CanonicalText(text)))
}

// HashJSON hashes the JSON encoding of v. Map keys are encoded in sorted
// order, so equal values always hash equally.
func HashJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: hash value: %v", domain.ErrInvalidInput, err)
	}
	return HashBytes(data), nil
}

// HashVector hashes a vector as little-endian float32 values.
func HashVector(v []float32) string {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return HashBytes(buf)
}

// IsContentHash reports whether h has the content hash format.
func IsContentHash(h string) bool {
	if !strings.HasPrefix(h, HashPrefix) {
		return false
	}
	digest := h[len(HashPrefix):]
	if len(digest) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(digest)
	return err == nil
}
