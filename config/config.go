// Package config loads the moviecache settings from the environment and command line flags.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable
const EnvPrefix = "MOVIECACHE_"

// Store backends
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config represents the client and development server settings
type Config struct {
	BaseURL    string        `env:"BASE_URL"    envDefault:"http://localhost:8080"`
	Timeout    time.Duration `env:"TIMEOUT"     envDefault:"10s"`
	Retries    int           `env:"RETRIES"     envDefault:"1"`
	RetryDelay time.Duration `env:"RETRY_DELAY" envDefault:"500ms"`

	CacheTTL    time.Duration `env:"CACHE_TTL"    envDefault:"5m"`
	CachePrefix string        `env:"CACHE_PREFIX" envDefault:"CACHE_"`

	Store         string `env:"STORE"          envDefault:"file"`
	StorePath     string `env:"STORE_PATH"     envDefault:"moviecache.json"`
	StoreID       string `env:"STORE_ID"       envDefault:"app_info"`
	EncryptionKey string `env:"ENCRYPTION_KEY"`

	ListenAddr    string        `env:"LISTEN_ADDR"     envDefault:":8080"`
	TLSListenAddr string        `env:"TLS_LISTEN_ADDR" envDefault:":8443"`
	TLSKey        string        `env:"TLS_KEY"`
	TLSCert       string        `env:"TLS_CERT"`
	TLSOnly       bool          `env:"TLS_ONLY"`
	FixturesFile  string        `env:"FIXTURES"`
	Latency       time.Duration `env:"LATENCY"`

	Verbose bool `env:"VERBOSE"`
}

// Load reads the configuration from the environment
func Load() (Config, error) {
	var c Config
	if err := env.ParseWithOptions(&c, env.Options{Prefix: EnvPrefix}); err != nil {
		return c, errors.Wrap(err, "failed to parse environment")
	}
	return c, nil
}

// Parse loads the environment, then applies the flags found in args on top of it.
// The returned config is validated.
func Parse(fs *pflag.FlagSet, args []string) (Config, error) {
	c, err := Load()
	if err != nil {
		return c, err
	}
	c.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, errors.Wrap(err, "invalid configuration")
	}
	return c, nil
}

// BindFlags registers a flag per setting, defaulting to the current values
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.BaseURL, "baseurl", "u", c.BaseURL, "movies API base URL")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "timeout per request attempt")
	fs.IntVar(&c.Retries, "retries", c.Retries, "retries after a failed attempt")
	fs.DurationVar(&c.RetryDelay, "retrydelay", c.RetryDelay, "delay between attempts")

	fs.DurationVar(&c.CacheTTL, "ttl", c.CacheTTL, "cache entry lifetime")
	fs.StringVar(&c.CachePrefix, "cacheprefix", c.CachePrefix, "cache key prefix")

	fs.StringVar(&c.Store, "store", c.Store, "storage backend: file, sqlite or memory")
	fs.StringVarP(&c.StorePath, "storepath", "p", c.StorePath, "storage file or database path")
	fs.StringVar(&c.StoreID, "storeid", c.StoreID, "storage namespace")
	fs.StringVar(&c.EncryptionKey, "key", c.EncryptionKey, "encrypt stored values with this key")

	fs.StringVarP(&c.ListenAddr, "listenaddr", "l", c.ListenAddr, "http listen address")
	fs.StringVarP(&c.TLSListenAddr, "tlsaddr", "t", c.TLSListenAddr, "https listen address")
	fs.StringVarP(&c.TLSKey, "tlskey", "k", c.TLSKey, "TLS private key file path")
	fs.StringVarP(&c.TLSCert, "tlscert", "c", c.TLSCert, "TLS certificate file path")
	fs.BoolVarP(&c.TLSOnly, "tlsonly", "s", c.TLSOnly, "Only serve TLS")
	fs.StringVar(&c.FixturesFile, "fixtures", c.FixturesFile, "JSON file with the served movies and users")
	fs.DurationVar(&c.Latency, "latency", c.Latency, "delay every served response")

	fs.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "Verbose output")
}

// Validate implements validation.Validatable
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.Retries, validation.Min(0)),
		validation.Field(&c.RetryDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.Store, validation.Required, validation.In(StoreFile, StoreSQLite, StoreMemory)),
		validation.Field(&c.StorePath, validation.When(c.Store != StoreMemory, validation.Required)),
		validation.Field(&c.StoreID, validation.Required),
		validation.Field(&c.Latency, validation.Min(time.Duration(0))),
		validation.Field(&c.TLSCert, validation.When(c.TLSOnly, validation.Required)),
		validation.Field(&c.TLSKey, validation.When(c.TLSOnly, validation.Required)),
	)
}
