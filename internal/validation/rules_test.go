package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rule  string
		check func(string) bool
		in    string
		want  bool
	}{
		{"username", IsUsername, "test_user-123", true},
		{"username", IsUsername, "abc", true},
		{"username", IsUsername, strings.Repeat("a", MaxUsernameLength), true},
		{"username", IsUsername, "ab", false},
		{"username", IsUsername, strings.Repeat("a", MaxUsernameLength+1), false},
		{"username", IsUsername, "user@123", false},
		{"username", IsUsername, "two words", false},
		{"username", IsUsername, "jürgen", false},

		{"password", IsPassword, "secret123", true},
		{"password", IsPassword, "abcdefg1", true},
		{"password", IsPassword, strings.Repeat("b", MaxPasswordLength-1) + "1", true},
		{"password", IsPassword, "Ångström1", true},
		{"password", IsPassword, "abc1234", false},
		{"password", IsPassword, strings.Repeat("b", MaxPasswordLength) + "1", false},
		{"password", IsPassword, "passwordonly", false},
		{"password", IsPassword, "1234567890", false},

		{"blank", IsBlank, "", true},
		{"blank", IsBlank, " \t\n", true},
		{"blank", IsBlank, " x ", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.check(tt.in), "%s(%q)", tt.rule, tt.in)
	}
}
