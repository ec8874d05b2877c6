package auth

import (
	"context"
	"testing"

	"github.com/nornicgraph/boltd/pkg/backend"
)

func TestValidateBasicSuccess(t *testing.T) {
	a := NewAuthenticator(DefaultConfig())
	if _, err := a.CreateUser("alice", "hunter22", []Role{RoleEditor}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	got, err := a.Validate(context.Background(), map[string]any{
		"scheme": "basic", "principal": "alice", "credentials": "hunter22",
	})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	u, ok := got.(*User)
	if !ok {
		t.Fatalf("expected *User, got %T", got)
	}
	if u.Username != "alice" || !u.HasRole(RoleEditor) {
		t.Fatalf("unexpected user %+v", u)
	}
	if u.PasswordHash != "" {
		t.Fatal("Validate must not leak the password hash")
	}
}

func TestValidateBasicWrongPasswordLocksAfterMaxAttempts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFailedLogins = 2
	a := NewAuthenticator(cfg)
	_, _ = a.CreateUser("bob", "correcthorse", nil)

	for i := 0; i < 2; i++ {
		_, err := a.Validate(context.Background(), map[string]any{
			"scheme": "basic", "principal": "bob", "credentials": "wrong",
		})
		if err == nil {
			t.Fatal("expected failure on wrong password")
		}
	}

	_, err := a.Validate(context.Background(), map[string]any{
		"scheme": "basic", "principal": "bob", "credentials": "correcthorse",
	})
	if err == nil {
		t.Fatal("expected account to be locked after max failed attempts")
	}
	f, ok := backend.AsFailure(err)
	if !ok || f.Kind != backend.FailureKindForbidden || f.Code != backend.CodeForbidden {
		t.Fatalf("expected a Forbidden Failure distinguishing lockout from bad credentials, got %v", err)
	}
}

func TestValidateUnknownUserIsUnauthorizedNotNotFound(t *testing.T) {
	a := NewAuthenticator(DefaultConfig())
	_, err := a.Validate(context.Background(), map[string]any{
		"scheme": "basic", "principal": "ghost", "credentials": "whatever",
	})
	f, ok := backend.AsFailure(err)
	if !ok || f.Code != backend.CodeUnauthorized {
		t.Fatalf("expected unauthorized Failure, got %v", err)
	}
}

func TestValidateNoneSchemeRequiresSecurityDisabled(t *testing.T) {
	secure := NewAuthenticator(DefaultConfig())
	if _, err := secure.Validate(context.Background(), map[string]any{"scheme": "none"}); err == nil {
		t.Fatal("expected anonymous auth to fail when SecurityEnabled is true")
	}

	cfg := DefaultConfig()
	cfg.SecurityEnabled = false
	open := NewAuthenticator(cfg)
	got, err := open.Validate(context.Background(), map[string]any{"scheme": "none"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if u, ok := got.(*User); !ok || u.Username != "anonymous" {
		t.Fatalf("expected anonymous user, got %+v", got)
	}
}

func TestValidateUnsupportedScheme(t *testing.T) {
	a := NewAuthenticator(DefaultConfig())
	if _, err := a.Validate(context.Background(), map[string]any{"scheme": "kerberos"}); err == nil {
		t.Fatal("expected unsupported scheme to error")
	}
}

func TestUnlockUserResetsLockout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFailedLogins = 1
	a := NewAuthenticator(cfg)
	_, _ = a.CreateUser("carol", "swordfish1", nil)

	_, _ = a.Validate(context.Background(), map[string]any{
		"scheme": "basic", "principal": "carol", "credentials": "wrong",
	})
	if err := a.UnlockUser("carol"); err != nil {
		t.Fatalf("UnlockUser: %v", err)
	}
	if _, err := a.Validate(context.Background(), map[string]any{
		"scheme": "basic", "principal": "carol", "credentials": "swordfish1",
	}); err != nil {
		t.Fatalf("expected unlock to clear lockout, got %v", err)
	}
}

func TestCreateUserRejectsShortPassword(t *testing.T) {
	a := NewAuthenticator(DefaultConfig())
	if _, err := a.CreateUser("dave", "short", nil); err == nil {
		t.Fatal("expected short password to be rejected")
	}
}

func TestAuditLoggerReceivesLoginEvents(t *testing.T) {
	a := NewAuthenticator(DefaultConfig())
	_, _ = a.CreateUser("erin", "longenoughpw", nil)

	var events []AuditEvent
	a.SetAuditLogger(func(e AuditEvent) { events = append(events, e) })

	_, _ = a.Validate(context.Background(), map[string]any{
		"scheme": "basic", "principal": "erin", "credentials": "longenoughpw",
	})
	if len(events) != 1 || !events[0].Success || events[0].EventType != "login" {
		t.Fatalf("unexpected audit events: %+v", events)
	}
}
