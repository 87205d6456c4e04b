package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/psds-microservice/helpdesk-client/internal/credstore"
	"github.com/psds-microservice/helpdesk-client/internal/model"
)

type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusAuthenticating  Status = "authenticating"
	StatusAuthenticated   Status = "authenticated"
	StatusFailed          Status = "failed"
)

// Session — снимок состояния аутентификации.
type Session struct {
	Token     string
	User      *model.User
	Status    Status
	ExpiresAt *time.Time
	// Err is the reason of the last failed login, set only in StatusFailed.
	Err error
}

// Context owns the credential for one running client. Only Store and
// the 401 handler (through Expire) mutate it; everything else reads.
//
// Every credential change bumps the epoch. Requests capture the epoch
// with the token, which lets Expire tell a stale 401 from a live one.
type Context struct {
	mu      sync.Mutex
	persist credstore.Store
	logger  *slog.Logger

	token     string
	user      *model.User
	status    Status
	expiresAt *time.Time
	lastErr   error
	epoch     uint64
	ended     chan struct{}
}

// NewContext returns an unauthenticated context backed by persist.
func NewContext(persist credstore.Store, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	ended := make(chan struct{})
	close(ended)
	return &Context{
		persist: persist,
		logger:  logger,
		status:  StatusUnauthenticated,
		ended:   ended,
	}
}

// Token returns the current credential and its epoch. The token is ""
// when no credential is held.
func (c *Context) Token() (string, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.epoch
}

func (c *Context) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Context) User() *model.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

func (c *Context) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Session{
		Token:     c.token,
		User:      c.user,
		Status:    c.status,
		ExpiresAt: c.expiresAt,
		Err:       c.lastErr,
	}
}

// Ended returns a channel closed when the current session ends. With
// no credential held the channel is already closed.
func (c *Context) Ended() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}

// begin marks a login attempt in flight.
func (c *Context) begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = StatusAuthenticating
	c.lastErr = nil
}

// create persists token and makes it the current credential. The
// session stays authenticating until establish succeeds.
func (c *Context) create(token string) (uint64, error) {
	if err := c.persist.Save(token); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adoptLocked(token)
	c.status = StatusAuthenticating
	return c.epoch, nil
}

// restore loads the persisted credential into memory. ok is false when
// nothing is persisted.
func (c *Context) restore() (epoch uint64, ok bool, err error) {
	token, err := c.persist.Load()
	if err != nil {
		return 0, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if token == "" {
		c.resetLocked()
		return c.epoch, false, nil
	}
	c.adoptLocked(token)
	c.status = StatusAuthenticating
	return c.epoch, true, nil
}

// establish attaches the fetched user and completes authentication.
// It is a no-op when a newer credential replaced epoch meanwhile.
func (c *Context) establish(epoch uint64, user *model.User) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch || c.token == "" {
		return false
	}
	c.user = user
	c.status = StatusAuthenticated
	return true
}

// fail drops the credential and leaves the session in StatusFailed.
func (c *Context) fail(epoch uint64, err error) {
	c.mu.Lock()
	if epoch != 0 && epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	hadToken := c.token != ""
	c.resetLocked()
	c.status = StatusFailed
	c.lastErr = err
	c.mu.Unlock()
	if hadToken {
		c.clearPersisted()
	}
}

// reject records a refused login. A credential already held stays in
// place, in memory and on disk.
func (c *Context) reject(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = StatusFailed
	c.lastErr = err
}

// destroy ends the session unconditionally.
func (c *Context) destroy() {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
	c.clearPersisted()
}

// discard ends the session only if epoch is still current.
func (c *Context) discard(epoch uint64) bool {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return false
	}
	c.resetLocked()
	c.mu.Unlock()
	c.clearPersisted()
	return true
}

// Expire handles an authentication failure observed by a request made
// with the credential of epoch. It returns true for exactly one caller
// per credential: later or stale observers get false.
func (c *Context) Expire(epoch uint64) bool {
	c.mu.Lock()
	if epoch != c.epoch || c.token == "" {
		c.mu.Unlock()
		return false
	}
	c.resetLocked()
	c.mu.Unlock()
	c.clearPersisted()
	c.logger.Info("session expired", "epoch", epoch)
	return true
}

func (c *Context) clearPersisted() {
	if err := c.persist.Clear(); err != nil {
		c.logger.Warn("session: clear persisted credential", "error", err)
	}
}

func (c *Context) adoptLocked(token string) {
	c.closeEndedLocked()
	c.token = token
	c.user = nil
	c.lastErr = nil
	c.expiresAt = tokenExpiry(token)
	c.epoch++
	c.ended = make(chan struct{})
}

func (c *Context) resetLocked() {
	if c.token != "" {
		c.epoch++
	}
	c.token = ""
	c.user = nil
	c.expiresAt = nil
	c.lastErr = nil
	c.status = StatusUnauthenticated
	c.closeEndedLocked()
}

func (c *Context) closeEndedLocked() {
	select {
	case <-c.ended:
	default:
		close(c.ended)
	}
}

// tokenExpiry reads the exp claim without verifying the signature. The
// server stays the judge of validity; this is for display only.
func tokenExpiry(token string) *time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	t := claims.ExpiresAt.Time
	return &t
}
