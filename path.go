package trfs

import (
	"strings"

	"github.com/meigma/trfs/internal/alphabet"
)

// NormalizePath converts a user-provided virtual path to the form stored in
// the trie.
//
// It performs the following transformations:
//   - Converts backslashes to slashes: `images\car.png` → "images/car.png"
//   - Strips leading and trailing slashes: "/images/" → "images"
//   - Collapses consecutive slashes: "images//car.png" → "images/car.png"
//
// Case is preserved; lookups are case-insensitive regardless. An input made
// only of separators normalizes to "".
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	if !strings.Contains(p, "//") {
		return p
	}

	parts := strings.Split(p, "/")
	result := parts[:0] // reuse backing array
	for _, part := range parts {
		if part != "" {
			result = append(result, part)
		}
	}
	return strings.Join(result, "/")
}

// ValidPath reports whether p, after normalization, can be stored in an
// archive. The returned error wraps ErrInvalidPathCharacter and names the
// first offending character.
func ValidPath(p string) error {
	_, err := alphabet.EncodePath(NormalizePath(p))
	return err
}

// encodePath normalizes p and encodes it into trie symbols.
func encodePath(p string) (string, []alphabet.Symbol, error) {
	name := NormalizePath(p)
	syms, err := alphabet.EncodePath(name)
	if err != nil {
		return name, nil, err
	}
	return name, syms, nil
}
