package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewOpaqueKey_Format(t *testing.T) {
	key := NewOpaqueKey()

	assert.True(t, strings.HasPrefix(key, KeyPrefix))
	assert.Equal(t, len(KeyPrefix)+40, len(key))

	opaque := strings.TrimPrefix(key, KeyPrefix)
	for _, r := range opaque {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		assert.True(t, ok, "unexpected character %q in key", r)
	}
}

func TestNewOpaqueKey_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key := NewOpaqueKey()
		assert.False(t, seen[key])
		seen[key] = true
	}
}

func TestMaskKey(t *testing.T) {
	key := "aegis_AbCdEfGhIjKlMnOpQrStUvWxYz0123456789abcd"
	masked := MaskKey(key)

	assert.Equal(t, "aegis_Ab...abcd", masked)
	assert.NotContains(t, masked, "CdEfGh")
}

func TestMaskKey_ShortInput(t *testing.T) {
	assert.Equal(t, "short", MaskKey("short"))
	assert.Equal(t, "twelve_chars", MaskKey("twelve_chars"))
}
