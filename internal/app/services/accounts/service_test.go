package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tradevault/platform/internal/app/domain/account"
	"github.com/tradevault/platform/internal/app/storage/memory"
)

func newTestService() *Service {
	return New(memory.New(), nil, []byte("test-secret"), time.Hour, nil)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	acct, token, err := svc.Register(ctx, "alice@example.com", "correct horse", "Alice", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if acct.ID == "" {
		t.Fatal("expected id to be generated")
	}
	if acct.Tier != account.TierFree {
		t.Fatalf("expected free tier, got %s", acct.Tier)
	}
	if token == "" {
		t.Fatal("expected a session token")
	}

	if _, _, err := svc.Register(ctx, "alice@example.com", "correct horse", "Alice", ""); err == nil {
		t.Fatal("expected duplicate email to be rejected")
	}

	if _, _, err := svc.Login(ctx, "alice@example.com", "wrong password"); err == nil {
		t.Fatal("expected wrong password to be rejected")
	}

	logged, token, err := svc.Login(ctx, "Alice@Example.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if logged.ID != acct.ID {
		t.Fatalf("expected account %s, got %s", acct.ID, logged.ID)
	}

	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != acct.ID {
		t.Fatalf("expected user_id %s, got %s", acct.ID, claims.UserID)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "not-an-email", "long enough pass", "", ""); err == nil {
		t.Fatal("expected invalid email to be rejected")
	}
	if _, _, err := svc.Register(ctx, "bob@example.com", "short", "", ""); err == nil {
		t.Fatal("expected short password to be rejected")
	}
}

func TestChangePassword(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	acct, _, err := svc.Register(ctx, "carol@example.com", "first password", "", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := svc.ChangePassword(ctx, acct.ID, "wrong", "second password"); err == nil {
		t.Fatal("expected wrong current password to be rejected")
	}
	if err := svc.ChangePassword(ctx, acct.ID, "first password", "second password"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, _, err := svc.Login(ctx, "carol@example.com", "second password"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestSetRole(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	acct, _, err := svc.Register(ctx, "alice@example.com", "correct horse", "Alice", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	promoted, err := svc.SetRole(ctx, acct.ID, account.RoleAdmin)
	if err != nil {
		t.Fatalf("set role: %v", err)
	}
	if promoted.Role != account.RoleAdmin {
		t.Fatalf("expected admin role, got %s", promoted.Role)
	}

	if _, err := svc.SetRole(ctx, acct.ID, account.Role("superuser")); err == nil {
		t.Fatal("expected unknown role to be rejected")
	}
}

func TestRegisterNormalizesEmail(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	acct, _, err := svc.Register(ctx, "  Alice@Example.COM ", "correct horse", "Alice", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if acct.Email != "alice@example.com" {
		t.Fatalf("expected lowercased email, got %s", acct.Email)
	}

	if _, _, err := svc.Register(ctx, "alice@example.com", "correct horse", "Alice", ""); err == nil {
		t.Fatal("expected case-insensitive duplicate to be rejected")
	}
	if _, _, err := svc.Login(ctx, "ALICE@example.com", "correct horse"); err != nil {
		t.Fatalf("login with differently-cased email: %v", err)
	}
}
