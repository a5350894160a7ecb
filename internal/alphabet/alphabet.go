// Package alphabet maps virtual path characters to the 29 trie symbols.
//
// Letters are case-insensitive and occupy symbols 0 through 25. The three
// punctuation symbols follow the ASCII characters that sit directly after
// 'Z': '.' takes the slot of '[', the path separator takes the slot of '\'
// and '_' takes the slot of ']'. Both '/' and '\' encode to the separator
// symbol; it always decodes to '/'.
package alphabet

import (
	"fmt"

	"github.com/meigma/trfs/internal/trfstype"
)

// Size is the number of symbols, and therefore the fan-out of every trie node.
const Size = 29

// Symbol is one alphabet code in the range [0, Size).
type Symbol uint8

// Punctuation symbols.
const (
	Dot        Symbol = 26
	Separator  Symbol = 27
	Underscore Symbol = 28
)

// Encode returns the symbol for c.
func Encode(c byte) (Symbol, error) {
	switch {
	case c >= 'A' && c <= 'Z':
		return Symbol(c - 'A'), nil
	case c >= 'a' && c <= 'z':
		return Symbol(c - 'a'), nil
	case c == '.':
		return Dot, nil
	case c == '/' || c == '\\':
		return Separator, nil
	case c == '_':
		return Underscore, nil
	}
	return 0, fmt.Errorf("%w: %q", trfstype.ErrInvalidPathCharacter, c)
}

// Decode returns the canonical character for s. Letters decode upper-case.
func Decode(s Symbol) (byte, error) {
	switch {
	case s < 26:
		return 'A' + byte(s), nil
	case s == Dot:
		return '.', nil
	case s == Separator:
		return '/', nil
	case s == Underscore:
		return '_', nil
	}
	return 0, fmt.Errorf("alphabet: symbol %d out of range", s)
}

// EncodePath encodes every byte of p. The whole path is validated before
// anything is returned, so callers never act on a partial encoding.
func EncodePath(p string) ([]Symbol, error) {
	if p == "" {
		return nil, fmt.Errorf("%w: empty path", trfstype.ErrInvalidPathCharacter)
	}
	syms := make([]Symbol, len(p))
	for i := 0; i < len(p); i++ {
		s, err := Encode(p[i])
		if err != nil {
			return nil, fmt.Errorf("%w at position %d", err, i)
		}
		syms[i] = s
	}
	return syms, nil
}

// DecodePath returns the canonical spelling of syms.
func DecodePath(syms []Symbol) (string, error) {
	buf := make([]byte, len(syms))
	for i, s := range syms {
		c, err := Decode(s)
		if err != nil {
			return "", err
		}
		buf[i] = c
	}
	return string(buf), nil
}
