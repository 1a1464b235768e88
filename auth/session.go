// Package auth holds the signed in user of the client.
package auth

import (
	"context"
	"crypto/subtle"
	"strings"
	"sync"

	"github.com/chrisvdg/moviecache/api"
	"github.com/chrisvdg/moviecache/notify"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is reported when no user matches the email and password
var ErrInvalidCredentials = errors.New("invalid email or password")

const usersEndpoint = "users"

// User is the signed in account, without its password
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// account is a user as served by the API
type account struct {
	User
	Password string `json:"password"`
}

// State is a snapshot of the session
type State struct {
	User            *User
	IsAuthenticated bool
	IsLoading       bool
	Error           string
}

type actionKind int

const (
	loginStart actionKind = iota
	loginSuccess
	loginFailure
	logout
	clearError
)

type action struct {
	kind  actionKind
	user  *User
	error string
}

// reduce returns the state following a
func reduce(s State, a action) State {
	switch a.kind {
	case loginStart:
		s.IsLoading = true
		s.Error = ""
	case loginSuccess:
		s.User = a.user
		s.IsAuthenticated = true
		s.IsLoading = false
		s.Error = ""
	case loginFailure:
		s.IsLoading = false
		s.Error = a.error
	case logout:
		s = State{}
	case clearError:
		s.Error = ""
	}
	return s
}

// NewSession returns a signed out session authenticating against client
func NewSession(client *api.Client, n notify.Notifier) *Session {
	if n == nil {
		n = notify.Discard
	}
	return &Session{client: client, notifier: n}
}

// Session tracks the signed in user
type Session struct {
	client   *api.Client
	notifier notify.Notifier

	m     sync.Mutex
	state State
}

// State returns the current state
func (s *Session) State() State {
	s.m.Lock()
	defer s.m.Unlock()
	return s.state
}

// Login signs in the user matching email and password.
// Failures are kept in the state Error and returned.
func (s *Session) Login(ctx context.Context, email, password string) error {
	s.dispatch(action{kind: loginStart})

	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		log.Debugf("login of %s failed: %s", email, err)
		s.dispatch(action{kind: loginFailure, error: err.Error()})
		s.notifier.Error("Sign in failed", err.Error())
		return err
	}

	s.dispatch(action{kind: loginSuccess, user: user})
	s.notifier.Success("Signed in", user.Email)
	return nil
}

// Logout forgets the signed in user
func (s *Session) Logout() {
	s.dispatch(action{kind: logout})
}

// ClearError drops the last login error
func (s *Session) ClearError() {
	s.dispatch(action{kind: clearError})
}

func (s *Session) dispatch(a action) {
	s.m.Lock()
	s.state = reduce(s.state, a)
	s.m.Unlock()
}

func (s *Session) authenticate(ctx context.Context, email, password string) (*User, error) {
	accounts, err := api.GetJSON[[]account](ctx, s.client, usersEndpoint, nil)
	if err != nil {
		return nil, err
	}

	email = strings.TrimSpace(email)
	for _, a := range accounts {
		if !strings.EqualFold(a.Email, email) {
			continue
		}
		if checkPassword(a.Password, password) {
			u := a.User
			return &u, nil
		}
	}
	return nil, ErrInvalidCredentials
}

// checkPassword accepts bcrypt hashes and plain text passwords
func checkPassword(stored, given string) bool {
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}
