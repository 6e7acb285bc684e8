package storage

import (
	"regexp"
	"strings"

	apperrors "github.com/paper-trader/internal/errors"
)

// Ticker symbols: 1-10 uppercase letters, digits, dots or hyphens
// (covers BRK.B, BF-B style listings).
var symbolPattern = regexp.MustCompile(`^[A-Z0-9.\-]{1,10}$`)

// NormalizeSymbol upper-cases and trims a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ValidateSymbol checks a ticker symbol and returns the normalized form.
func ValidateSymbol(symbol string) (string, error) {
	normalized := NormalizeSymbol(symbol)
	if !symbolPattern.MatchString(normalized) {
		return "", apperrors.NewInvalidSymbolError(symbol)
	}
	return normalized, nil
}
