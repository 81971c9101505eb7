// Package identifier validates and extracts the 128-bit content-derived
// identifiers minted by the ledger. The client never constructs these values;
// it only checks their shape and canonicalizes the encodings in which they
// arrive from the node.
package identifier

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

const (
	// prefix is the literal two-character prefix of the rendered form.
	prefix = "0x"

	// hexLen is the number of hex characters following the prefix.
	hexLen = 32

	// totalLen is the full rendered length: prefix plus 32 hex characters.
	totalLen = len(prefix) + hexLen

	// rawByteLen is the binary width of the identifier.
	rawByteLen = 16
)

// Identifier128 is the canonical rendering of a 128-bit content-derived
// identifier: "0x" followed by exactly 32 lowercase hex characters.
type Identifier128 string

// String implements fmt.Stringer.
func (id Identifier128) String() string {
	return string(id)
}

// IsValid128 reports whether s is a well-formed rendered identifier: the
// literal "0x" prefix followed by exactly 32 hex characters, case-insensitive.
func IsValid128(s string) bool {
	if len(s) != totalLen {
		return false
	}
	if s[:len(prefix)] != prefix {
		return false
	}

	for i := len(prefix); i < totalLen; i++ {
		if !isHexDigit(s[i]) {
			return false
		}
	}
	return true
}

func isHexDigit(c byte) bool {
	switch {
	case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		return true
	}
	return false
}

// Parse validates s and returns it in canonical lowercase form.
func Parse(s string) (Identifier128, error) {
	if !IsValid128(s) {
		return "", fmt.Errorf("malformed 128-bit identifier %q", s)
	}
	return Identifier128(strings.ToLower(s)), nil
}

// Extract normalizes an event payload field into an Identifier128. The node
// has historically delivered the value as raw 16-byte binary, an
// already-rendered hex string (with or without the prefix), or a decimal
// numeric string. Extraction never coerces a malformed value: it returns
// ok=false and the caller must treat the identifier as absent.
func Extract(field any) (Identifier128, bool) {
	switch v := field.(type) {
	case Identifier128:
		return canonicalize(string(v))
	case []byte:
		if len(v) != rawByteLen {
			return "", false
		}
		return Identifier128(prefix + hex.EncodeToString(v)), true
	case string:
		return extractString(v)
	case json.RawMessage:
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", false
		}
		return extractString(s)
	default:
		return "", false
	}
}

// extractString handles the string encodings: hex (prefixed or bare) first,
// then a decimal numeric string rendered back into 128-bit hex.
func extractString(s string) (Identifier128, bool) {
	if id, ok := canonicalize(s); ok {
		return id, ok
	}

	if id, ok := canonicalize(prefix + s); ok {
		return id, ok
	}

	return fromDecimal(s)
}

// canonicalize lowercases a candidate rendered identifier after validation.
func canonicalize(s string) (Identifier128, bool) {
	if !IsValid128(s) {
		return "", false
	}
	return Identifier128(strings.ToLower(s)), true
}

// fromDecimal converts a base-10 numeric string into the canonical rendering,
// provided it is non-negative and fits in 128 bits.
func fromDecimal(s string) (Identifier128, bool) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 || n.BitLen() > 128 {
		return "", false
	}

	return Identifier128(fmt.Sprintf("%s%032x", prefix, n)), true
}
