package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/psds-microservice/helpdesk-client/internal/errs"
	"github.com/psds-microservice/helpdesk-client/internal/model"
)

// MinPasswordLength mirrors the server's registration rule.
const MinPasswordLength = 8

// AuthAPI — серверные операции аутентификации (реализует apiclient.Client).
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*model.Token, error)
	Register(ctx context.Context, email, password string, fullName *string) (*model.User, error)
	Me(ctx context.Context) (*model.User, error)
}

// Store drives the authentication lifecycle of a Context.
type Store struct {
	sess   *Context
	api    AuthAPI
	logger *slog.Logger
}

func NewStore(sess *Context, api AuthAPI, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{sess: sess, api: api, logger: logger}
}

// Context returns the session context the store drives.
func (s *Store) Context() *Context { return s.sess }

// Login authenticates, persists the credential and loads the current
// user. Concurrent logins are not coalesced; the last credential wins.
func (s *Store) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if err := validateCredentials(email, password); err != nil {
		return s.sess.Snapshot(), err
	}

	s.sess.begin()
	token, err := s.api.Login(ctx, email, password)
	if err != nil {
		s.sess.reject(err)
		s.logger.Info("login rejected", "email", email, "error", err)
		return s.sess.Snapshot(), fmt.Errorf("session: login: %w", err)
	}

	epoch, err := s.sess.create(token.AccessToken)
	if err != nil {
		s.sess.reject(err)
		return s.sess.Snapshot(), fmt.Errorf("session: persist credential: %w", err)
	}

	user, err := s.api.Me(ctx)
	if err != nil {
		s.sess.fail(epoch, err)
		return s.sess.Snapshot(), fmt.Errorf("session: current user: %w", err)
	}
	if s.sess.establish(epoch, user) {
		s.logger.Info("logged in", "user_id", user.ID, "admin", user.IsAdmin)
	}
	return s.sess.Snapshot(), nil
}

// Register creates the account and then logs in with the same
// credentials. Registration alone does not establish a session.
func (s *Store) Register(ctx context.Context, email, password string, displayName *string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, errs.Invalid("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	if displayName != nil {
		trimmed := strings.TrimSpace(*displayName)
		if trimmed == "" {
			displayName = nil
		} else {
			displayName = &trimmed
		}
	}

	s.sess.begin()
	user, err := s.api.Register(ctx, email, password, displayName)
	if err != nil {
		s.sess.reject(err)
		return nil, fmt.Errorf("session: register: %w", err)
	}
	s.logger.Info("registered", "user_id", user.ID)

	if _, err := s.Login(ctx, email, password); err != nil {
		return user, err
	}
	return user, nil
}

// Logout clears the persisted credential. There is no server call.
func (s *Store) Logout() {
	s.sess.destroy()
	s.logger.Info("logged out")
}

// RestoreSession reloads a persisted credential on process start. Any
// failure discards the credential and leaves the session
// unauthenticated; with nothing persisted no request is made.
func (s *Store) RestoreSession(ctx context.Context) Session {
	epoch, ok, err := s.sess.restore()
	if err != nil {
		s.logger.Warn("restore: read persisted credential", "error", err)
		s.sess.destroy()
		return s.sess.Snapshot()
	}
	if !ok {
		return s.sess.Snapshot()
	}

	user, err := s.api.Me(ctx)
	if err != nil {
		s.logger.Info("restore: credential rejected", "error", err)
		s.sess.discard(epoch)
		return s.sess.Snapshot()
	}
	s.sess.establish(epoch, user)
	return s.sess.Snapshot()
}

func validateCredentials(email, password string) error {
	if email == "" || !strings.Contains(email, "@") {
		return errs.Invalid("email", "must be a valid address")
	}
	if password == "" {
		return errs.Invalid("password", "is required")
	}
	return nil
}
