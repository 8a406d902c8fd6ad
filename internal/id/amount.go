package id

import (
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	clierr "github.com/ggonzalez94/defai/internal/errors"
)

// NativeDecimals is the precision of every native asset in the registry.
const NativeDecimals = 18

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ToBaseUnits converts a positive amount to base units at the given precision.
// The float is rendered in its shortest decimal form first so 1.5 becomes
// exactly 1500000000000000000 at 18 decimals.
func ToBaseUnits(amount float64, decimals int) (*big.Int, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return nil, clierr.New(clierr.CodeValidation, "amount must be a positive number")
	}
	base, err := DecimalToBaseUnits(strconv.FormatFloat(amount, 'f', -1, 64), decimals)
	if err != nil {
		return nil, err
	}
	if base.Sign() == 0 {
		return nil, clierr.New(clierr.CodeValidation, "amount is below the smallest unit")
	}
	return base, nil
}

// DecimalToBaseUnits converts a decimal string like "1.25" into base units.
func DecimalToBaseUnits(decimal string, decimals int) (*big.Int, error) {
	if decimals < 0 {
		return nil, clierr.New(clierr.CodeValidation, "decimals must be >= 0")
	}
	decimal = strings.TrimSpace(decimal)
	if !decimalPattern.MatchString(decimal) {
		return nil, clierr.New(clierr.CodeValidation, fmt.Sprintf("invalid decimal amount %q", decimal))
	}
	parts := strings.SplitN(decimal, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if len(fracPart) > decimals {
		return nil, clierr.New(clierr.CodeValidation, fmt.Sprintf("decimal precision exceeds token decimals (%d)", decimals))
	}

	fracPart = fracPart + strings.Repeat("0", decimals-len(fracPart))
	combined := strings.TrimLeft(intPart+fracPart, "0")
	if combined == "" {
		return big.NewInt(0), nil
	}
	out, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, clierr.New(clierr.CodeValidation, "invalid decimal amount")
	}
	return out, nil
}

// FormatUnits renders base units as a trimmed decimal string.
func FormatUnits(baseUnits *big.Int, decimals int) string {
	if baseUnits == nil {
		return "0"
	}
	if decimals == 0 {
		return baseUnits.String()
	}
	neg := baseUnits.Sign() < 0
	s := new(big.Int).Abs(baseUnits).String()
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	intPart := s[:len(s)-decimals]
	fracPart := strings.TrimRight(s[len(s)-decimals:], "0")
	out := intPart
	if fracPart != "" {
		out = intPart + "." + fracPart
	}
	if neg {
		return "-" + out
	}
	return out
}

// FormatAmount renders a float amount the way users typed it (1.5, not 1.500000).
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

// ParseQuantity accepts either a 0x-prefixed hex quantity or a base-10
// integer string. Empty input is zero.
func ParseQuantity(v string) (*big.Int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return new(big.Int), nil
	}
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		digits := strings.TrimLeft(v[2:], "0")
		if digits == "" {
			return new(big.Int), nil
		}
		out, ok := new(big.Int).SetString(digits, 16)
		if !ok {
			return nil, clierr.New(clierr.CodeValidation, fmt.Sprintf("invalid hex quantity %q", v))
		}
		return out, nil
	}
	out, ok := new(big.Int).SetString(v, 10)
	if !ok || out.Sign() < 0 {
		return nil, clierr.New(clierr.CodeValidation, fmt.Sprintf("invalid integer quantity %q", v))
	}
	return out, nil
}
