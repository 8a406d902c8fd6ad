package id

import (
	"fmt"
	"regexp"
	"strings"

	clierr "github.com/ggonzalez94/defai/internal/errors"
)

var evmAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsAddress reports whether v is exactly "0x" followed by 40 hex characters.
// Checksums are not enforced.
func IsAddress(v string) bool {
	return evmAddressPattern.MatchString(v)
}

// ParseAddress validates an address as supplied by a user or a model.
func ParseAddress(v string) (string, error) {
	if !IsAddress(v) {
		return "", clierr.New(clierr.CodeValidation, fmt.Sprintf("invalid address %q: expected 0x followed by 40 hex characters", v))
	}
	return v, nil
}

// ShortAddress renders 0x1234...abcd.
func ShortAddress(v string) string {
	if len(v) < 10 {
		return v
	}
	return v[:6] + "..." + v[len(v)-4:]
}

// NormalizeSymbol upper-cases a token symbol and strips whitespace.
func NormalizeSymbol(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}
