package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"animelist_service/internal/auth"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAuthService(t *testing.T) (*AuthService, *memStorage, *fakeRegistry, *auth.Issuer) {
	t.Helper()

	st := newMemStorage()
	reg := newFakeRegistry()
	issuer := auth.NewIssuer("test-secret", 15*time.Minute, 14*24*time.Hour)
	svc := NewAuthService(st, reg, issuer, auth.NewArgon2Hasher(), testLogger())

	return svc, st, reg, issuer
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, _, issuer := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "secret-password")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	pair, err := svc.Login(ctx, "alice", "secret-password")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	claims, err := issuer.Verify(pair.AccessToken, auth.TokenTypeAccess)
	if err != nil {
		t.Fatalf("Verify(access) error = %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("access token resolves to %s, want %s", claims.UserID, user.ID)
	}

	if _, err := issuer.Verify(pair.RefreshToken, auth.TokenTypeRefresh); err != nil {
		t.Errorf("Verify(refresh) error = %v", err)
	}
}

func TestRegisterDuplicateLogin(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "password1"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, err := svc.Register(ctx, "alice", "password2")
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("Register() error = %v, want ErrAlreadyExists", err)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "secret-password"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tests := []struct {
		name     string
		login    string
		password string
	}{
		{name: "wrong password", login: "alice", password: "wrong"},
		{name: "unknown login", login: "bob", password: "secret-password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tt.login, tt.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestLoginDisplacesPriorSession(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "secret-password"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	first, err := svc.Login(ctx, "alice", "secret-password")
	if err != nil {
		t.Fatalf("first Login() error = %v", err)
	}

	if _, err := svc.Login(ctx, "alice", "secret-password"); err != nil {
		t.Fatalf("second Login() error = %v", err)
	}

	// The refresh token from the first login is now superseded, so using
	// it is reuse and must revoke the session.
	_, err = svc.Refresh(ctx, first.RefreshToken)
	if !errors.Is(err, ErrSessionRevoked) {
		t.Errorf("Refresh(old token) error = %v, want ErrSessionRevoked", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "secret-password"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	pair1, err := svc.Login(ctx, "alice", "secret-password")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	pair2, err := svc.Refresh(ctx, pair1.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	// Replaying the rotated token is reuse.
	_, err = svc.Refresh(ctx, pair1.RefreshToken)
	if !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("Refresh(reused token) error = %v, want ErrSessionRevoked", err)
	}

	// Reuse detection revoked the whole session, so the token issued by
	// the successful rotation is dead too.
	_, err = svc.Refresh(ctx, pair2.RefreshToken)
	if !errors.Is(err, ErrSessionRevoked) {
		t.Errorf("Refresh(post-revocation token) error = %v, want ErrSessionRevoked", err)
	}
}

func TestRefreshInvalidToken(t *testing.T) {
	svc, _, _, issuer := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "secret-password")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	accessToken, err := issuer.IssueAccess(user.ID)
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "access token as refresh", token: accessToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Refresh(ctx, tt.token)
			if !errors.Is(err, auth.ErrInvalidToken) {
				t.Errorf("Refresh() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestRefreshFailsClosedOnRegistryOutage(t *testing.T) {
	svc, _, reg, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "secret-password"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	pair, err := svc.Login(ctx, "alice", "secret-password")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	reg.isActiveErr = errors.New("connection refused")

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	if err == nil {
		t.Fatal("Refresh() error = nil with the registry down, want error")
	}
	if errors.Is(err, ErrSessionRevoked) || errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("Refresh() error = %v, outage must not look like an auth failure", err)
	}

	// The session itself must be untouched.
	reg.isActiveErr = nil
	if _, err := svc.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Errorf("Refresh() after outage error = %v, want success", err)
	}
}

func TestLogout(t *testing.T) {
	svc, _, reg, _ := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "secret-password")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	pair, err := svc.Login(ctx, "alice", "secret-password")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if err := svc.Logout(ctx, user.ID); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	if _, ok := reg.activeJTI(user.ID); ok {
		t.Error("session still registered after logout")
	}

	// Idempotent.
	if err := svc.Logout(ctx, user.ID); err != nil {
		t.Errorf("second Logout() error = %v", err)
	}

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	if !errors.Is(err, ErrSessionRevoked) {
		t.Errorf("Refresh() after logout error = %v, want ErrSessionRevoked", err)
	}
}

func TestProfile(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "secret-password")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, err := svc.Profile(ctx, user.ID)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if got.Login != "alice" {
		t.Errorf("Profile().Login = %s, want alice", got.Login)
	}
}
