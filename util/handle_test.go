package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsProbablyHandle(t *testing.T) {
	valid := []string{
		"alice.bsky.social",
		"  alice.bsky.social  ",
		"xn--ls8h.test",
		"a.co",
		"sub.domain.example.com",
	}
	for _, h := range valid {
		assert.True(t, IsProbablyHandle(h), h)
	}

	invalid := []string{
		"",
		"   ",
		"alice",
		"-alice.bsky.social",
		"alice.bsky.social-",
		"alice..social",
		"alice.123",
		"did:plc:abc123",
		"alice@bsky.social",
	}
	for _, h := range invalid {
		assert.False(t, IsProbablyHandle(h), h)
	}
}

func TestDIDMethod(t *testing.T) {
	assert.Equal(t, "plc", DIDMethod("did:plc:ewvi7nxzyoun6zhxrhs64oiz"))
	assert.Equal(t, "web", DIDMethod("did:web:example.com"))
	assert.Equal(t, "", DIDMethod("alice.bsky.social"))
	assert.Equal(t, "", DIDMethod("did:plc"))
}
