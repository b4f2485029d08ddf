package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "shorter than limit", input: "abc", maxLen: 10, want: "abc"},
		{name: "exactly at limit", input: "abcde", maxLen: 5, want: "abcde"},
		{name: "cut at limit", input: "abcdef", maxLen: 3, want: "abc"},
		{name: "multibyte runes kept whole", input: "héllo wörld", maxLen: 4, want: "héll"},
		{name: "empty", input: "", maxLen: 5, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.input, tt.maxLen))
		})
	}
}

func TestHashString(t *testing.T) {
	h1 := HashString("content")
	h2 := HashString("content")
	h3 := HashString("changed")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 32)
	assert.Equal(t, strings.ToLower(h1), h1)
}
