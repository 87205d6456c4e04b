// Package backend is an in-memory helpdesk server state used by the
// development server and by tests. It keeps users, tickets and messages
// in maps and applies the same status rules the client enforces.
package backend

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/psds-microservice/helpdesk-client/internal/clock"
	"github.com/psds-microservice/helpdesk-client/internal/errs"
	"github.com/psds-microservice/helpdesk-client/internal/model"
)

// DefaultTokenTTL is the lifetime of issued access tokens.
const DefaultTokenTTL = 30 * time.Minute

// Error carries the detail text returned to HTTP clients. Kind is one
// of the errs sentinels and decides the status code.
type Error struct {
	Kind   error
	Detail string
}

func (e *Error) Error() string { return e.Detail }

func (e *Error) Unwrap() error { return e.Kind }

func fail(kind error, detail string) error { return &Error{Kind: kind, Detail: detail} }

type Options struct {
	// Secret signs access tokens. A random one is generated when empty.
	Secret   []byte
	TokenTTL time.Duration
	Clock    clock.Clock
	Agent    Agent
	Logger   *slog.Logger
}

type account struct {
	user model.User
	hash []byte
}

// Store — состояние dev-сервера в памяти.
type Store struct {
	secret []byte
	ttl    time.Duration
	clk    clock.Clock
	agent  Agent
	logger *slog.Logger

	mu       sync.Mutex
	users    map[string]*account
	byEmail  map[string]string
	tickets  map[string]*ticketRecord
	messages map[string][]model.Message
	// last issued timestamp, kept strictly increasing for stable ordering
	last time.Time
}

func NewStore(opts Options) *Store {
	if len(opts.Secret) == 0 {
		opts.Secret = []byte(uuid.NewString())
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = DefaultTokenTTL
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Agent == nil {
		opts.Agent = CannedAgent{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		secret:   opts.Secret,
		ttl:      opts.TokenTTL,
		clk:      opts.Clock,
		agent:    opts.Agent,
		logger:   opts.Logger,
		users:    make(map[string]*account),
		byEmail:  make(map[string]string),
		tickets:  make(map[string]*ticketRecord),
		messages: make(map[string][]model.Message),
	}
}

// nowLocked returns the current time, nudged forward when the clock has
// not advanced since the previous call.
func (s *Store) nowLocked() time.Time {
	now := s.clk.Now().UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}

// Register creates a user account.
func (s *Store) Register(email, password string, fullName *string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return nil, fail(errs.ErrValidation, "Email inválido")
	}
	if password == "" {
		return nil, fail(errs.ErrValidation, "La contraseña es obligatoria")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("backend: hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[email]; ok {
		return nil, fail(errs.ErrBadRequest, "El email ya está registrado")
	}
	now := s.nowLocked()
	u := model.User{
		ID:        uuid.NewString(),
		Email:     email,
		FullName:  fullName,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.users[u.ID] = &account{user: u, hash: hash}
	s.byEmail[email] = u.ID
	s.logger.Info("user registered", "user_id", u.ID)
	return &u, nil
}

// Promote grants the operator role to the account with the given email.
func (s *Store) Promote(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return fmt.Errorf("backend: promote %s: no such user", email)
	}
	s.users[id].user.IsAdmin = true
	return nil
}

// Login checks the password and issues a signed access token.
func (s *Store) Login(email, password string) (*model.Token, error) {
	s.mu.Lock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	var acc account
	if ok {
		acc = *s.users[id]
	}
	s.mu.Unlock()

	bad := fail(errs.ErrInvalidCredentials, "Email o contraseña incorrectos")
	if !ok {
		return nil, bad
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return nil, bad
	}
	if !acc.user.IsActive {
		return nil, fail(errs.ErrForbidden, "Usuario inactivo")
	}

	now := s.clk.Now()
	claims := jwt.RegisteredClaims{
		Subject:   acc.user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("backend: sign token: %w", err)
	}
	return &model.Token{AccessToken: signed, TokenType: "bearer"}, nil
}

// Authenticate resolves a bearer token to its user.
func (s *Store) Authenticate(token string) (*model.User, error) {
	invalid := fail(errs.ErrAuthExpired, "No se pudieron validar las credenciales")
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.clk.Now))
	if err != nil {
		s.logger.Debug("token rejected", "error", err)
		return nil, invalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.users[claims.Subject]
	if !ok || !acc.user.IsActive {
		return nil, invalid
	}
	u := acc.user
	return &u, nil
}

