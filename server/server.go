package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// New creates a new server instance
func New(c *Config) (*Server, error) {
	if c == nil {
		return nil, errors.New("no server config provided")
	}
	if c.ListenAddr == "" && !c.TLSOnly {
		return nil, errors.New("no listen address provided")
	}

	f, err := LoadFixtures(c.FixturesFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load fixtures")
	}

	return &Server{
		c:        c,
		fixtures: f,
	}, nil
}

// Server represents a development movies API server
type Server struct {
	c        *Config
	fixtures *Fixtures
}

// Router returns the API routes
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	h := newHandlers(s.fixtures, s.c.Latency)

	r.HandleFunc("/movies", h.ListMovies).Methods("GET")
	r.HandleFunc("/movies/{id}", h.GetMovie).Methods("GET")
	r.HandleFunc("/users", h.ListUsers).Methods("GET")
	r.Use(logRequests)

	return r
}

// ListenAndServe listens for new requests and serves them
func (s *Server) ListenAndServe() {
	r := s.Router()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tlsEnabled := s.c.TLS != nil && s.c.TLS.CertFile != "" && s.c.TLS.KeyFile != ""
	if !s.c.TLSOnly {
		go listenAndServe(ctx, cancel, s.c.ListenAddr, r)
	}

	if tlsEnabled {
		go listenAndServeTLS(ctx, cancel, s.c.TLSListenAddr, s.c.TLS, r)
	}

	<-ctx.Done()
}

// listenAndServe serves a plain http webserver
func listenAndServe(ctx context.Context, cancel func(), addr string, handler http.Handler) {
	defer cancel()
	addrStr := getAddrString(addr)
	log.Infof("http server listening on: http://%s", addrStr)
	log.Error(http.ListenAndServe(addr, handler))
}

// listenAndServeTLS serves a tls webserver
func listenAndServeTLS(ctx context.Context, cancel func(), addr string, tls *TLSConfig, handler http.Handler) {
	defer cancel()
	addrStr := getAddrString(addr)
	log.Infof("https server listening on: https://%s", addrStr)
	log.Error(http.ListenAndServeTLS(addr, tls.CertFile, tls.KeyFile, handler))
}

func getAddrString(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = fmt.Sprintf("0.0.0.0%s", addr)
	}
	return addr
}
