package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *pflag.FlagSet {
	return pflag.NewFlagSet("moviecache", pflag.ContinueOnError)
}

func TestParseDefaults(t *testing.T) {
	assert := assert.New(t)

	c, err := Parse(newFlagSet(), nil)
	require.NoError(t, err)

	assert.Equal("http://localhost:8080", c.BaseURL)
	assert.Equal(10*time.Second, c.Timeout)
	assert.Equal(1, c.Retries)
	assert.Equal(500*time.Millisecond, c.RetryDelay)
	assert.Equal(5*time.Minute, c.CacheTTL)
	assert.Equal("CACHE_", c.CachePrefix)
	assert.Equal(StoreFile, c.Store)
	assert.Equal("app_info", c.StoreID)
	assert.Equal(":8080", c.ListenAddr)
	assert.False(c.Verbose)
}

func TestParseEnvAndFlags(t *testing.T) {
	assert := assert.New(t)
	t.Setenv("MOVIECACHE_BASE_URL", "http://api.example.com")
	t.Setenv("MOVIECACHE_RETRIES", "3")
	t.Setenv("MOVIECACHE_STORE", "sqlite")

	fs := newFlagSet()
	c, err := Parse(fs, []string{"movies", "--retries", "0", "-v", "--ttl=1m", "nolan"})
	require.NoError(t, err)

	assert.Equal("http://api.example.com", c.BaseURL)
	assert.Equal(StoreSQLite, c.Store)
	// flags win over the environment
	assert.Equal(0, c.Retries)
	assert.Equal(time.Minute, c.CacheTTL)
	assert.True(c.Verbose)
	assert.Equal([]string{"movies", "nolan"}, fs.Args())
}

func TestParseInvalid(t *testing.T) {
	assert := assert.New(t)

	_, err := Parse(newFlagSet(), []string{"--store", "redis"})
	require.Error(t, err)
	assert.Contains(err.Error(), "Store")

	_, err = Parse(newFlagSet(), []string{"--baseurl", "not a url"})
	require.Error(t, err)
	assert.Contains(err.Error(), "BaseURL")

	_, err = Parse(newFlagSet(), []string{"--retries", "-1"})
	require.Error(t, err)
	assert.Contains(err.Error(), "Retries")

	_, err = Parse(newFlagSet(), []string{"--unknown"})
	assert.Error(err)

	t.Setenv("MOVIECACHE_TIMEOUT", "soon")
	_, err = Load()
	assert.Error(err)
}

func TestValidateStorePath(t *testing.T) {
	assert := assert.New(t)

	c, err := Load()
	require.NoError(t, err)

	c.StorePath = ""
	assert.Error(c.Validate())

	c.Store = StoreMemory
	assert.NoError(c.Validate())
}

func TestValidateTLSOnly(t *testing.T) {
	assert := assert.New(t)

	_, err := Parse(newFlagSet(), []string{"serve", "--tlsonly"})
	require.Error(t, err)
	assert.Contains(err.Error(), "TLSCert")
	assert.Contains(err.Error(), "TLSKey")

	c, err := Parse(newFlagSet(), []string{"serve", "-s", "--tlscert", "cert.pem", "--tlskey", "key.pem"})
	require.NoError(t, err)
	assert.True(c.TLSOnly)
}
