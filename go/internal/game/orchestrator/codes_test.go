package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code := generateCode(codeLength)
		assert.Len(t, code, codeLength)
		assert.True(t, ValidCode(code), code)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(codeChars, c), "unexpected char %q", c)
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "ABC123", NormalizeCode("  abc123 "))
	assert.Equal(t, "", NormalizeCode("   "))
}

func TestValidCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"ABC123", true},
		{"A", true},
		{"", false},
		{"abc", false},
		{"AB-12", false},
		{"ROOM CODE", false},
		{strings.Repeat("A", maxCodeLength), true},
		{strings.Repeat("A", maxCodeLength+1), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidCode(tt.code), tt.code)
	}
}
