package server

import "time"

// Config represents a server config
type Config struct {
	ListenAddr    string
	TLSListenAddr string
	TLSOnly       bool
	TLS           *TLSConfig
	// FixturesFile is a JSON file with movies and users, the built-in seed is served when empty
	FixturesFile string
	// Latency delays every response, to exercise client timeouts
	Latency time.Duration
}

// TLSConfig represents a TLS configuration
type TLSConfig struct {
	KeyFile  string
	CertFile string
}
