package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateText(t *testing.T) {
	t.Run("short text untouched", func(t *testing.T) {
		assert.Equal(t, "hello", TruncateText("hello", 100))
	})

	t.Run("zero max size untouched", func(t *testing.T) {
		assert.Equal(t, "hello", TruncateText("hello", 0))
	})

	t.Run("long text truncated with marker", func(t *testing.T) {
		out := TruncateText(strings.Repeat("a", 200), 50)
		assert.True(t, strings.HasPrefix(out, strings.Repeat("a", 50)))
		assert.Contains(t, out, "Content truncated")
	})

	t.Run("never splits a rune", func(t *testing.T) {
		out := TruncateText(strings.Repeat("é", 100), 51)
		assert.True(t, utf8.ValidString(out))
	})
}

func TestSanitizeUTF8(t *testing.T) {
	t.Run("valid text untouched", func(t *testing.T) {
		assert.Equal(t, "héllo", SanitizeUTF8("héllo"))
	})

	t.Run("invalid bytes dropped", func(t *testing.T) {
		out := SanitizeUTF8("he\xffllo")
		assert.Equal(t, "hello", out)
		assert.True(t, utf8.ValidString(out))
	})
}
