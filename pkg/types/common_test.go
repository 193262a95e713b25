package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		input Hash
		want  bool
	}{
		{
			name:  "Valid Hash (uppercase hex)",
			input: Hash(strings.Repeat("A", 64)),
			want:  true,
		},
		{
			name:  "Lowercase rejected",
			input: Hash("abc"),
			want:  false,
		},
		{
			name:  "Empty",
			input: Hash(""),
			want:  false,
		},
		{
			name:  "Non hex",
			input: Hash("XYZ"),
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.input.IsValid())
		})
	}
}

func TestHash_String(t *testing.T) {
	s := "AABBCC"
	h := Hash(s)
	assert.Equal(t, s, h.String())
	assert.False(t, h.IsZero())

	var zero Hash
	assert.True(t, zero.IsZero())
}

func TestID_Prefix(t *testing.T) {
	fileID := NewID(TypeFile, "ABC")
	dirID := NewID(TypeDirectory, "ABC")

	assert.Equal(t, "yABC", fileID.String())
	assert.Equal(t, "xABC", dirID.String())

	assert.Equal(t, TypeFile, fileID.Type())
	assert.Equal(t, TypeDirectory, dirID.Type())
	assert.Equal(t, Hash("ABC"), fileID.Hash())
	assert.Equal(t, Hash("ABC"), dirID.Hash())

	// 未知前缀：原样返回
	assert.Equal(t, ItemType(""), ID("ABC").Type())
	assert.Equal(t, Hash("ABC"), ID("ABC").Hash())
}
