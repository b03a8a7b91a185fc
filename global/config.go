package global

import (
	"crypto/ed25519"

	"github.com/go-redis/redis_rate/v10"
	cfg "github.com/mailio/go-web3-kit/config"
)

// Conf global config
var Conf Config

// Global rate limiter (nil when redis is not configured)
var RateLimiter *redis_rate.Limiter

// server keys signing the account route tokens
var PublicKey ed25519.PublicKey
var PrivateKey ed25519.PrivateKey

const (
	DefaultPlcDirectoryURL       = "https://plc.directory"
	DefaultPublicApiURL          = "https://public.api.bsky.app"
	DefaultMaxRotationKeys       = 10
	DefaultResolveDebounceMs     = 500
	DefaultQueueConcurrency      = 5
	DefaultIdentityCacheSeconds  = 60
	DefaultSessionRefreshMinutes = 30
)

type Config struct {
	cfg.YamlConfig `yaml:",inline"`
	Demesne        DemesneConfig    `yaml:"demesne"`
	CouchDB        CouchDBConfig    `yaml:"couchdb"`
	Postgres       PostgresConfig   `yaml:"postgres"`
	Redis          RedisConfig      `yaml:"redis"`
	Keystore       KeystoreConfig   `yaml:"keystore"`
	Prometheus     PrometheusConfig `yaml:"prometheus"`
	Queue          Queue            `yaml:"queue"`
	Storage        StorageConfig    `yaml:"storage"`
}

type DemesneConfig struct {
	PlcDirectoryURL       string   `yaml:"plcDirectoryUrl"`
	PublicApiURL          string   `yaml:"publicApiUrl"`
	MaxRotationKeys       int      `yaml:"maxRotationKeys"`
	ResolveDebounceMs     int      `yaml:"resolveDebounceMs"`
	IdentityCacheSeconds  int      `yaml:"identityCacheSeconds"`
	VerifyAuditCids       bool     `yaml:"verifyAuditCids"`
	AccountStore          string   `yaml:"accountStore"` // couchdb (default) or postgres
	SessionRefreshMinutes int      `yaml:"sessionRefreshMinutes"`
	CorsOrigins           []string `yaml:"corsOrigins"`    // same origin only when empty
	ServerKeysPath        string   `yaml:"serverKeysPath"` // ephemeral keys when empty
}

type CouchDBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Scheme   string `yaml:"scheme"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	Username string `yaml:"username"`
}

// KeystoreConfig configures where rotation private keys are held and whether
// releasing them requires a passcode.
type KeystoreConfig struct {
	Type                  string `yaml:"type"` // redis or memory
	EncryptionKeyHex      string `yaml:"encryptionKeyHex"`
	RequireAuthentication bool   `yaml:"requireAuthentication"`
	PasscodeHashHex       string `yaml:"passcodeHashHex"`
	PasscodeSaltHex       string `yaml:"passcodeSaltHex"`
}

type PrometheusConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type Queue struct {
	Concurrency int `yaml:"concurrency"`
}

type StorageConfig struct {
	Type   string `yaml:"type"`
	Key    string `yaml:"key"`
	Secret string `yaml:"secret"`
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
}

// ApplyDefaults fills in the values left empty in conf.yaml
func (c *Config) ApplyDefaults() {
	if c.Demesne.PlcDirectoryURL == "" {
		c.Demesne.PlcDirectoryURL = DefaultPlcDirectoryURL
	}
	if c.Demesne.PublicApiURL == "" {
		c.Demesne.PublicApiURL = DefaultPublicApiURL
	}
	if c.Demesne.MaxRotationKeys <= 0 {
		c.Demesne.MaxRotationKeys = DefaultMaxRotationKeys
	}
	if c.Demesne.ResolveDebounceMs <= 0 {
		c.Demesne.ResolveDebounceMs = DefaultResolveDebounceMs
	}
	if c.Demesne.IdentityCacheSeconds <= 0 {
		c.Demesne.IdentityCacheSeconds = DefaultIdentityCacheSeconds
	}
	if c.Demesne.AccountStore == "" {
		c.Demesne.AccountStore = "couchdb"
	}
	if c.Demesne.SessionRefreshMinutes <= 0 {
		c.Demesne.SessionRefreshMinutes = DefaultSessionRefreshMinutes
	}
	if c.Queue.Concurrency <= 0 {
		c.Queue.Concurrency = DefaultQueueConcurrency
	}
	if c.Keystore.Type == "" {
		c.Keystore.Type = "memory"
	}
}
