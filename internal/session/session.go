// Package session tracks the store account the backend CLI is logged into.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tinoosan/gamedock/internal/legendary"
)

// ErrAuthNotEstablished is returned when a login attempt did not produce a
// usable session. Callers may prompt again.
var ErrAuthNotEstablished = errors.New("login did not establish a session")

const notLoggedIn = "<not logged in>"

// State is a snapshot of the session.
type State struct {
	LoggedIn bool   `json:"loggedIn"`
	Offline  bool   `json:"offline"`
	Account  string `json:"account,omitempty"`
}

// Session queries and changes the backend's login state.
type Session struct {
	cl           *legendary.Client
	forceOffline bool
	log          *slog.Logger

	mu    sync.RWMutex
	state State
}

// New creates a Session. When offline is set the backend is never asked to
// reach the network.
func New(cl *legendary.Client, offline bool) *Session {
	return &Session{cl: cl, forceOffline: offline, log: slog.Default()}
}

// SetLogger allows wiring a shared application logger into the session.
func (s *Session) SetLogger(l *slog.Logger) {
	if l != nil {
		s.log = l
	}
}

// State returns the last known session state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

type statusResponse struct {
	Account        string `json:"account"`
	GamesAvailable int    `json:"games_available"`
	GamesInstalled int    `json:"games_installed"`
}

// Refresh asks the backend for the current account. An online check that
// fails falls back to offline mode.
func (s *Session) Refresh(ctx context.Context) (State, error) {
	st, err := s.status(ctx, s.forceOffline)
	if err != nil && !s.forceOffline {
		s.log.Warn("online status check failed, retrying offline", "err", err)
		st, err = s.status(ctx, true)
	}
	if err != nil {
		st = State{}
	}
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return st, err
}

func (s *Session) status(ctx context.Context, offline bool) (State, error) {
	args := []string{"status", "--json"}
	if offline {
		args = append(args, "--offline")
	}
	res, err := s.cl.Run(ctx, args...)
	if err != nil {
		return State{}, err
	}
	var resp statusResponse
	if err := json.Unmarshal(res.Stdout, &resp); err != nil {
		return State{}, fmt.Errorf("decode status: %w", err)
	}
	if resp.Account == "" || resp.Account == notLoggedIn {
		return State{Offline: offline}, nil
	}
	return State{LoggedIn: true, Offline: offline, Account: resp.Account}, nil
}

// Authenticate exchanges an authorization code for a session.
func (s *Session) Authenticate(ctx context.Context, code string) (State, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return State{}, fmt.Errorf("%w: empty authorization code", ErrAuthNotEstablished)
	}
	if _, err := s.cl.Run(ctx, "auth", "--code", code); err != nil {
		var ee *legendary.ExitError
		if errors.As(err, &ee) && ee.Message != "" {
			return State{}, fmt.Errorf("%w: %s", ErrAuthNotEstablished, ee.Message)
		}
		return State{}, fmt.Errorf("%w: %v", ErrAuthNotEstablished, err)
	}
	st, err := s.Refresh(ctx)
	if err != nil {
		return st, fmt.Errorf("%w: %v", ErrAuthNotEstablished, err)
	}
	if !st.LoggedIn {
		return st, ErrAuthNotEstablished
	}
	s.log.Info("logged in", "account", st.Account, "offline", st.Offline)
	return st, nil
}

// Logout removes the stored credentials.
func (s *Session) Logout(ctx context.Context) error {
	if _, err := s.cl.Run(ctx, "auth", "--delete"); err != nil {
		return err
	}
	s.mu.Lock()
	s.state = State{}
	s.mu.Unlock()
	s.log.Info("logged out")
	return nil
}
