// Package auth provides the reference AuthValidator for boltd: bcrypt
// credential storage, user roles, and account lockout, wired
// to Bolt's LOGON auth dict instead of an HTTP bearer/cookie flow.
//
// This package follows the teacher's authentication patterns (bcrypt
// password hashing, roles, audit callback) adapted to the
// shape LOGON actually sends: a scheme/principal/credentials/realm dict,
// validated once per session rather than as a bearer token on every call.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nornicgraph/boltd/pkg/backend"
)

// Errors for authentication operations.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserExists        = errors.New("user already exists")
	ErrAccountLocked     = errors.New("account locked due to failed login attempts")
	ErrPasswordTooShort  = errors.New("password does not meet minimum length requirement")
	ErrUnsupportedScheme = errors.New("unsupported auth scheme")
)

// Role represents a user role with associated permissions.
type Role string

const (
	RoleAdmin  Role = "admin"  // Full access including user management
	RoleEditor Role = "editor" // Read/write data
	RoleViewer Role = "viewer" // Read only (default)
	RoleNone   Role = "none"   // No access
)

// ValidRole reports whether r is one of the predefined roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer, RoleNone:
		return true
	default:
		return false
	}
}

// RoleFromString converts a string to a Role, rejecting anything not a
// predefined role.
func RoleFromString(s string) (Role, error) {
	r := Role(s)
	if !ValidRole(r) {
		return RoleNone, fmt.Errorf("invalid role: %s", s)
	}
	return r, nil
}

// User is an authenticated principal. Validate returns a *User (via
// backend.AuthContext) so the session core and a backend can both read its
// roles without a second lookup.
type User struct {
	ID           string
	Username     string
	PasswordHash string `json:"-"`
	Roles        []Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLogin    time.Time
	FailedLogins int
	LockedUntil  time.Time
}

// HasRole reports whether u has role.
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuditEvent is one authentication-related event for compliance logging,
// handed to the optional pkg/audit sink.
type AuditEvent struct {
	Timestamp time.Time
	EventType string
	Username  string
	UserID    string
	Success   bool
	Details   string
}

// Config holds authentication policy.
type Config struct {
	MinPasswordLength int
	BcryptCost        int
	MaxFailedLogins   int
	LockoutDuration   time.Duration

	// SecurityEnabled gates whether LOGON's "none" scheme is accepted.
	// When false, a LOGON with scheme "none" authenticates as an implicit
	// admin; "basic" LOGONs are still checked against registered users.
	// DefaultConfig sets it to true.
	SecurityEnabled bool
}

// DefaultConfig returns the teacher's default authentication policy.
func DefaultConfig() Config {
	return Config{
		MinPasswordLength: 8,
		BcryptCost:        bcrypt.DefaultCost,
		MaxFailedLogins:   5,
		LockoutDuration:   15 * time.Minute,
		SecurityEnabled:   true,
	}
}

// Authenticator manages users and validates Bolt LOGON auth dicts. It
// implements backend.AuthValidator.
type Authenticator struct {
	mu       sync.RWMutex
	users    map[string]*User // keyed by username
	config   Config
	auditLog func(AuditEvent)
}

// NewAuthenticator creates an Authenticator with the given policy.
func NewAuthenticator(config Config) *Authenticator {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if config.MinPasswordLength == 0 {
		config.MinPasswordLength = 8
	}
	if config.MaxFailedLogins == 0 {
		config.MaxFailedLogins = 5
	}
	if config.LockoutDuration == 0 {
		config.LockoutDuration = 15 * time.Minute
	}
	return &Authenticator{users: make(map[string]*User), config: config}
}

// SetAuditLogger sets the audit logging callback.
func (a *Authenticator) SetAuditLogger(fn func(AuditEvent)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.auditLog = fn
}

func (a *Authenticator) logAudit(event AuditEvent) {
	if a.auditLog != nil {
		event.Timestamp = time.Now()
		a.auditLog(event)
	}
}

// CreateUser registers a new user with the given credentials.
func (a *Authenticator) CreateUser(username, password string, roles []Role) (*User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.users[username]; exists {
		return nil, ErrUserExists
	}
	if len(password) < a.config.MinPasswordLength {
		return nil, fmt.Errorf("%w: minimum %d characters required", ErrPasswordTooShort, a.config.MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	if len(roles) == 0 {
		roles = []Role{RoleViewer}
	}

	now := time.Now()
	user := &User{
		ID:           generateID(),
		Username:     username,
		PasswordHash: string(hash),
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	a.users[username] = user

	a.logAudit(AuditEvent{EventType: "user_create", Username: username, UserID: user.ID, Success: true,
		Details: fmt.Sprintf("created with roles %v", roles)})
	return a.copyUserSafe(user), nil
}

// Validate implements backend.AuthValidator against a decoded LOGON auth
// dict (spec.md §6): {scheme, principal, credentials, realm}. Scheme
// "none" succeeds only when SecurityEnabled is false; scheme "basic"
// checks principal/credentials against a registered user with lockout
// accounting.
func (a *Authenticator) Validate(ctx context.Context, auth map[string]any) (backend.AuthContext, error) {
	scheme, _ := auth["scheme"].(string)
	switch scheme {
	case "none":
		if a.config.SecurityEnabled {
			return nil, backend.NewFailure(backend.FailureKindUnauthorized, backend.CodeUnauthorized,
				"auth: anonymous access is disabled")
		}
		return &User{ID: "anonymous", Username: "anonymous", Roles: []Role{RoleAdmin}}, nil
	case "basic":
		principal, _ := auth["principal"].(string)
		credentials, _ := auth["credentials"].(string)
		return a.validateBasic(principal, credentials)
	case "":
		return nil, backend.NewFailure(backend.FailureKindUnauthorized, backend.CodeUnauthorized,
			"auth: missing scheme")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
}

func (a *Authenticator) validateBasic(username, password string) (*User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	user, exists := a.users[username]
	if !exists {
		a.logAudit(AuditEvent{EventType: "login", Username: username, Success: false, Details: "user not found"})
		return nil, backend.NewFailure(backend.FailureKindUnauthorized, backend.CodeUnauthorized, "The client is unauthorized due to authentication failure.")
	}

	// A locked account is rejected as Forbidden rather than Unauthorized:
	// the principal is known and the credentials may well be correct, but
	// access is denied for a separate reason pkg/bolt's audit trail needs
	// to tell apart from a plain bad-password attempt.
	if !user.LockedUntil.IsZero() && time.Now().Before(user.LockedUntil) {
		a.logAudit(AuditEvent{EventType: "login", Username: username, UserID: user.ID, Success: false, Details: "account locked"})
		return nil, backend.NewFailure(backend.FailureKindForbidden, backend.CodeForbidden, ErrAccountLocked.Error())
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		user.FailedLogins++
		if user.FailedLogins >= a.config.MaxFailedLogins {
			user.LockedUntil = time.Now().Add(a.config.LockoutDuration)
		}
		user.UpdatedAt = time.Now()
		a.logAudit(AuditEvent{EventType: "login", Username: username, UserID: user.ID, Success: false,
			Details: fmt.Sprintf("invalid password (attempt %d/%d)", user.FailedLogins, a.config.MaxFailedLogins)})
		return nil, backend.NewFailure(backend.FailureKindUnauthorized, backend.CodeUnauthorized, "The client is unauthorized due to authentication failure.")
	}

	user.FailedLogins = 0
	user.LockedUntil = time.Time{}
	user.LastLogin = time.Now()
	user.UpdatedAt = time.Now()

	a.logAudit(AuditEvent{EventType: "login", Username: username, UserID: user.ID, Success: true})
	return a.copyUserSafe(user), nil
}

// UnlockUser manually unlocks a locked user account.
func (a *Authenticator) UnlockUser(username string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	user, exists := a.users[username]
	if !exists {
		return ErrUserNotFound
	}
	user.FailedLogins = 0
	user.LockedUntil = time.Time{}
	user.UpdatedAt = time.Now()
	return nil
}

func (a *Authenticator) copyUserSafe(u *User) *User {
	roles := make([]Role, len(u.Roles))
	copy(roles, u.Roles)
	return &User{
		ID: u.ID, Username: u.Username, Roles: roles,
		CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt, LastLogin: u.LastLogin,
	}
}

func generateID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
