package auth

import (
	"bizdesk/pkg/domain"
	"context"
	"fmt"
)

// Access refusals surfaced by the HTTP layer.
var (
	ErrUnauthenticated    = domain.DeniedError{Message: "Unauthorized", Kind: domain.ErrUnauthorized}
	ErrInvalidCredentials = domain.DeniedError{Message: "Invalid credentials", Kind: domain.ErrUnauthorized}
	ErrDemoReadOnly       = domain.DeniedError{Message: "Write operations are disabled in demo mode.", Kind: domain.ErrForbidden}
	ErrDemoEmail          = domain.DeniedError{Message: "Email sending is disabled in demo mode.", Kind: domain.ErrForbidden}
)

const demoPassword = "demo"

// UserDirectory is the user lookup surface the authenticator needs.
type UserDirectory interface {
	FindUserByUsername(ctx context.Context, username string) (domain.User, bool, error)
	EnsureRoleUser(ctx context.Context, role domain.Role, fallback domain.User) (domain.User, error)
	GetUser(ctx context.Context, id int) (domain.User, error)
}

// Authenticator verifies credentials and issues sessions.
type Authenticator struct {
	users    UserDirectory
	hasher   BcryptHasher
	sessions *SessionStore
}

// NewAuthenticator wires the directory, hasher and session store.
func NewAuthenticator(users UserDirectory, hasher BcryptHasher, sessions *SessionStore) *Authenticator {
	return &Authenticator{users: users, hasher: hasher, sessions: sessions}
}

// Sessions exposes the session store.
func (a *Authenticator) Sessions() *SessionStore { return a.sessions }

// Login checks username and password. Usernames match exactly.
func (a *Authenticator) Login(ctx context.Context, username, password string) (Session, domain.User, error) {
	if username == "" || password == "" {
		return Session{}, domain.User{}, ErrInvalidCredentials
	}
	user, ok, err := a.users.FindUserByUsername(ctx, username)
	if err != nil {
		return Session{}, domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok || !a.hasher.Compare(user.PasswordHash, password) {
		return Session{}, domain.User{}, ErrInvalidCredentials
	}
	return a.sessions.Create(user), user.Public(), nil
}

// DemoLogin opens a read-only session for the first demo user, creating one
// when none exists.
func (a *Authenticator) DemoLogin(ctx context.Context) (Session, domain.User, error) {
	hash, err := a.hasher.Hash(demoPassword)
	if err != nil {
		return Session{}, domain.User{}, err
	}
	user, err := a.users.EnsureRoleUser(ctx, domain.RoleDemo, domain.User{Username: "demo", PasswordHash: hash})
	if err != nil {
		return Session{}, domain.User{}, fmt.Errorf("ensure demo user: %w", err)
	}
	return a.sessions.Create(user), user.Public(), nil
}

// Logout drops the session for token. Unknown tokens are ignored.
func (a *Authenticator) Logout(token string) {
	if token != "" {
		a.sessions.Delete(token)
	}
}

// Check resolves token to its session and user. A session whose user has
// been removed is dropped.
func (a *Authenticator) Check(ctx context.Context, token string) (Session, domain.User, bool) {
	sess, ok := a.sessions.Get(token)
	if !ok {
		return Session{}, domain.User{}, false
	}
	user, err := a.users.GetUser(ctx, sess.UserID)
	if err != nil {
		a.sessions.Delete(token)
		return Session{}, domain.User{}, false
	}
	return sess, user, true
}
