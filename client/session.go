package client

import (
	"context"
	"net/http"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/user"
)

// Auth states. A session starts Unknown; the one-time resolve settles it to
// Anonymous or Authenticated.
type State int

const (
	StateUnknown State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

// Session owns the client's auth state: the token, the resolved profile and
// auth-state-change listeners. It is explicit and injectable; nothing in the
// SDK reaches for a global.
//
// Profile writes always carry the whole object; concurrent resolutions are
// idempotent and the last writer wins.
type Session struct {
	gw    *Gateway
	cache *Cache

	mu        sync.Mutex
	state     State
	token     string
	profile   user.Profile
	seq       uint64 // write generation, guards stale resolutions
	listeners map[int]func(State, user.Profile)
	nextID    int
}

type SessionOption func(*Session)

// WithCache persists the token across processes; the restored session resolves
// via the one-time session check.
func WithCache(c *Cache) SessionOption {
	return func(s *Session) { s.cache = c }
}

func NewSession(gw *Gateway, opts ...SessionOption) *Session {
	s := &Session{
		gw:        gw,
		listeners: make(map[int]func(State, user.Profile)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache != nil {
		s.token = s.cache.Token() // state stays Unknown until resolved
	}
	gw.UseTokenSource(s.Token)
	return s
}

// Resolve settles an Unknown session: a cached token is checked against the
// server once; no token means Anonymous. Safe to call concurrently.
func (s *Session) Resolve(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateUnknown {
		s.mu.Unlock()
		return nil
	}
	token := s.token
	seq := s.seq
	s.mu.Unlock()

	if token == "" {
		s.write(seq, StateAnonymous, "", user.Profile{})
		return nil
	}

	profile, err := s.gw.Me(ctx)
	if err != nil {
		switch KindOf(err) {
		case KindUnauthorized, KindForbidden, KindNotFound:
			s.write(seq, StateAnonymous, "", user.Profile{})
			return nil
		}
		return errors.Wrap(err, "checking session")
	}
	s.write(seq, StateAuthenticated, token, profile)
	return nil
}

func (s *Session) SignUp(ctx context.Context, nu user.NewUser) (user.User, error) {
	var usr user.User
	err := s.gw.do(ctx, http.MethodPost, "/v1/users/signup", nu, &usr)
	return usr, errors.Wrap(err, "signing up")
}

func (s *Session) SignIn(ctx context.Context, username, password string) error {
	var resp struct {
		Token string `json:"token"`
	}
	in := map[string]string{"username": username, "password": password}
	if err := s.gw.do(ctx, http.MethodPost, "/v1/users/login", in, &resp); err != nil {
		return errors.Wrap(err, "signing in")
	}

	s.mu.Lock()
	s.token = resp.Token
	seq := s.seq
	s.mu.Unlock()

	profile, err := s.gw.Me(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching profile")
	}
	s.write(seq, StateAuthenticated, resp.Token, profile)
	return nil
}

func (s *Session) SignOut() {
	s.mu.Lock()
	seq := s.seq
	s.mu.Unlock()
	s.write(seq, StateAnonymous, "", user.Profile{})
}

// RefreshProfile re-fetches the whole profile; partial patches are never
// written locally.
func (s *Session) RefreshProfile(ctx context.Context) (user.Profile, error) {
	s.mu.Lock()
	seq := s.seq
	token := s.token
	s.mu.Unlock()

	profile, err := s.gw.Me(ctx)
	if err != nil {
		return user.Profile{}, errors.Wrap(err, "fetching profile")
	}
	s.write(seq, StateAuthenticated, token, profile)
	return profile, nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) Profile() user.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// OnAuthChange registers a listener; the returned func unsubscribes it.
func (s *Session) OnAuthChange(fn func(State, user.Profile)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// write commits a state transition started at generation seq. A racing writer
// that already committed wins; the stale write is dropped whole.
func (s *Session) write(seq uint64, state State, token string, profile user.Profile) {
	s.mu.Lock()
	if s.seq != seq {
		s.mu.Unlock()
		return
	}
	s.seq++
	s.state = state
	s.token = token
	s.profile = profile
	listeners := make([]func(State, user.Profile), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	if s.cache != nil {
		if state == StateAuthenticated {
			_ = s.cache.SetToken(token)
			_ = s.cache.SetProfile(profile)
		} else {
			_ = s.cache.Clear()
		}
	}
	for _, fn := range listeners {
		fn(state, profile)
	}
}

// Me fetches the caller's resolved profile.
func (g *Gateway) Me(ctx context.Context) (user.Profile, error) {
	var profile user.Profile
	err := g.do(ctx, http.MethodGet, "/v1/users/me", nil, &profile)
	return profile, err
}
