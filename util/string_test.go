package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHexEncode(t *testing.T) {
	str := "test"
	encoded := HexEncodeToString(str)
	if encoded != "74657374" {
		t.Errorf("Expected %s, got %s", "74657374", encoded)
	}
}

func TestChunk(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	chunks := Chunk(items, 2)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, chunks)

	assert.Empty(t, Chunk([]string{}, 25))
	assert.Len(t, Chunk(items, 25), 1)
}

func TestTrimServiceURL(t *testing.T) {
	assert.Equal(t, "https://pds.example.com", TrimServiceURL(" https://pds.example.com// "))
}

func TestDeepCopy(t *testing.T) {
	type doc struct {
		Keys []string `json:"keys"`
	}
	src := doc{Keys: []string{"a"}}
	var dst doc
	assert.NoError(t, DeepCopy(src, &dst))
	dst.Keys[0] = "b"
	assert.Equal(t, "a", src.Keys[0])
}
