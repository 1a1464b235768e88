package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chrisvdg/moviecache/movies"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

func newHandlers(f *Fixtures, latency time.Duration) *handlers {
	return &handlers{
		fixtures: f,
		latency:  latency,
	}
}

type handlers struct {
	fixtures *Fixtures
	latency  time.Duration
}

// ListMovies serves the movies matching the search query param
func (h *handlers) ListMovies(res http.ResponseWriter, req *http.Request) {
	if !h.wait(req) {
		return
	}
	search := strings.ToLower(strings.TrimSpace(req.URL.Query().Get("search")))
	out := []movies.Movie{}
	for _, m := range h.fixtures.Movies {
		if search == "" || matches(m, search) {
			out = append(out, m)
		}
	}
	writeJSON(res, http.StatusOK, out)
}

// GetMovie serves a single movie
func (h *handlers) GetMovie(res http.ResponseWriter, req *http.Request) {
	if !h.wait(req) {
		return
	}
	id, err := strconv.Atoi(mux.Vars(req)["id"])
	if err != nil {
		writeJSON(res, http.StatusBadRequest, errorBody{Error: "invalid movie id"})
		return
	}
	for _, m := range h.fixtures.Movies {
		if m.ID == id {
			writeJSON(res, http.StatusOK, m)
			return
		}
	}
	writeJSON(res, http.StatusNotFound, errorBody{Error: "movie not found"})
}

// ListUsers serves every user
func (h *handlers) ListUsers(res http.ResponseWriter, req *http.Request) {
	if !h.wait(req) {
		return
	}
	writeJSON(res, http.StatusOK, h.fixtures.Users)
}

// wait applies the configured latency, it returns false when the client went away
func (h *handlers) wait(req *http.Request) bool {
	if h.latency <= 0 {
		return true
	}
	t := time.NewTimer(h.latency)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-req.Context().Done():
		log.Debugf("client left before %s %s was served", req.Method, req.URL.Path)
		return false
	}
}

func matches(m movies.Movie, search string) bool {
	if strings.Contains(strings.ToLower(m.Title), search) ||
		strings.Contains(strings.ToLower(m.Director), search) {
		return true
	}
	for _, a := range m.Actors {
		if strings.Contains(strings.ToLower(a), search) {
			return true
		}
	}
	return false
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(res http.ResponseWriter, status int, v any) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(status)
	if err := json.NewEncoder(res).Encode(v); err != nil {
		log.Errorf("failed to write response: %s", err)
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		start := time.Now()
		next.ServeHTTP(res, req)
		log.WithFields(log.Fields{
			"method":     req.Method,
			"path":       req.URL.Path,
			"request_id": req.Header.Get("X-Request-Id"),
			"took":       time.Since(start),
		}).Debug("served request")
	})
}
