package util

import (
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Encodes a string to hex
func HexEncodeToString(str string) string {
	return hex.EncodeToString([]byte(str))
}

func IsNilOrEmpty(s *string) bool {
	return s == nil || *s == ""
}

// DeepCopy copies src into dest through its JSON form
func DeepCopy(src, dest interface{}) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Chunk splits items into slices of at most size elements
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		return [][]T{items}
	}
	var chunks [][]T
	for size < len(items) {
		items, chunks = items[size:], append(chunks, items[0:size:size])
	}
	if len(items) > 0 {
		chunks = append(chunks, items)
	}
	return chunks
}

// TrimServiceURL removes trailing slashes so XRPC paths can be appended
func TrimServiceURL(serviceURL string) string {
	return strings.TrimRight(strings.TrimSpace(serviceURL), "/")
}
