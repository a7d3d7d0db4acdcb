// Package validation holds input rules shared by the service layer.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

var usernamePattern = regexp.MustCompile(fmt.Sprintf(`^[A-Za-z0-9_-]{%d,%d}$`, MinUsernameLength, MaxUsernameLength))

// IsUsername reports whether s is 3-50 ASCII letters, digits, underscores or dashes.
func IsUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

// IsPassword reports whether s has an acceptable length in characters and
// mixes at least one letter with one digit.
func IsPassword(s string) bool {
	if n := utf8.RuneCountInString(s); n < MinPasswordLength || n > MaxPasswordLength {
		return false
	}
	return strings.IndexFunc(s, unicode.IsLetter) >= 0 && strings.IndexFunc(s, unicode.IsDigit) >= 0
}

// IsBlank reports whether s is empty after trimming whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
