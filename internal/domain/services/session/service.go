package session

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// AuthClient performs the actual credential exchange against the brokerage
type AuthClient interface {
	// Login exchanges credentials for a session token
	Login(ctx context.Context) (string, error)
	// Validate makes a lightweight authenticated call to check a token
	Validate(ctx context.Context, token string) error
}

// TokenStore persists the session token across process restarts. A nil store
// is tolerated; logins then happen fresh on every start.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
}

// Service owns the process-wide login state: the logged-in flag, the session
// token and the brokerage credentials all live behind one lock. It is the
// only cross-cutting shared mutable resource besides the caches.
type Service struct {
	auth   AuthClient
	store  TokenStore
	logger *zap.Logger

	mu       sync.Mutex
	loggedIn bool
	token    string
}

// NewService creates a session manager
func NewService(auth AuthClient, store TokenStore, logger *zap.Logger) *Service {
	return &Service{
		auth:   auth,
		store:  store,
		logger: logger,
	}
}

// Token returns the current session token, empty when logged out
func (s *Service) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// LoggedIn reports the current login flag
func (s *Service) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn
}

// EnsureLoggedIn logs in if not already logged in. Idempotent. A persisted
// token is tried and validated before falling back to a credential login.
func (s *Service) EnsureLoggedIn(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loggedIn {
		return nil
	}
	return s.loginLocked(ctx)
}

// Reauthenticate drops the current session and logs in again. Called by the
// retry layer after an auth-class failure.
func (s *Service) Reauthenticate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedIn = false
	s.token = ""
	return s.loginLocked(ctx)
}

// KeepAlive verifies the session is still valid and re-logs-in when it is
// not. Called periodically by the sync worker; a failed re-login is returned
// but the next caller will retry.
func (s *Service) KeepAlive(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loggedIn {
		return nil
	}
	if err := s.auth.Validate(ctx, s.token); err == nil {
		return nil
	}
	s.logger.Info("session no longer valid, logging in again")
	s.loggedIn = false
	s.token = ""
	return s.loginLocked(ctx)
}

// loginLocked performs the login flow; s.mu must be held
func (s *Service) loginLocked(ctx context.Context) error {
	if s.store != nil {
		if token, err := s.store.Load(ctx); err == nil && token != "" {
			if err := s.auth.Validate(ctx, token); err == nil {
				s.token = token
				s.loggedIn = true
				s.logger.Info("using persisted session, no login required")
				return nil
			}
			s.logger.Info("persisted session expired, logging in fresh")
		}
	}

	token, err := s.auth.Login(ctx)
	if err != nil {
		return err
	}
	s.token = token
	s.loggedIn = true

	if s.store != nil {
		if err := s.store.Save(ctx, token); err != nil {
			s.logger.Warn("failed to persist session token", zap.Error(err))
		}
	}
	return nil
}
