package config

import (
	"fmt"
	"regexp"
)

var (
	symbolPattern = regexp.MustCompile(`^[A-Z][A-Z0-9._]{0,11}$`)
	datePattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// ValidateSymbol checks a ticker symbol as accepted by the upstream feed:
// uppercase, leading letter, at most 12 characters.
func ValidateSymbol(symbol string) error {
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("invalid symbol %q", symbol)
	}
	return nil
}

// ValidateDate checks a YYYY-MM-DD playback date string.
func ValidateDate(date string) error {
	if !datePattern.MatchString(date) {
		return fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", date)
	}
	return nil
}
