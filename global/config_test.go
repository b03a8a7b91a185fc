package global

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults(t *testing.T) {
	var c Config
	c.Demesne.MaxRotationKeys = 4
	c.ApplyDefaults()

	assert.Equal(t, DefaultPlcDirectoryURL, c.Demesne.PlcDirectoryURL)
	assert.Equal(t, DefaultPublicApiURL, c.Demesne.PublicApiURL)
	assert.Equal(t, 4, c.Demesne.MaxRotationKeys)
	assert.Equal(t, DefaultResolveDebounceMs, c.Demesne.ResolveDebounceMs)
	assert.Equal(t, DefaultQueueConcurrency, c.Queue.Concurrency)
	assert.Equal(t, DefaultSessionRefreshMinutes, c.Demesne.SessionRefreshMinutes)
	assert.Equal(t, "couchdb", c.Demesne.AccountStore)
	assert.Equal(t, "memory", c.Keystore.Type)
}
