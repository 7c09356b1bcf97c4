// Package checksum computes content digests and guide content signatures.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Normalize collapses runs of whitespace and lowercases text, so that
// signatures are stable across formatting differences.
func Normalize(text string) string {
	return strings.ToLower(whitespaceRe.ReplaceAllString(strings.TrimSpace(text), " "))
}

// Signature returns the content signature for a set of section bodies:
// the SHA-256 of the normalized bodies joined by "||". Empty bodies are
// skipped so padding sections cannot change the signature.
func Signature(bodies []string) string {
	normalized := make([]string, 0, len(bodies))
	for _, b := range bodies {
		n := Normalize(b)
		if n == "" {
			continue
		}
		normalized = append(normalized, n)
	}
	return Sum([]byte(strings.Join(normalized, "||")))
}
