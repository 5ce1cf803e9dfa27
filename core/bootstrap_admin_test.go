package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBootstrapAdminCreatesOnce(t *testing.T) {
	repo := newFakeUserRepo()
	hasher := NewBcryptHasher(bcrypt.MinCost)
	cfg := Config{
		BootstrapAdminEnabled:    true,
		InitialAdminPasswordPath: filepath.Join(t.TempDir(), "admin.secret"),
	}
	ctx := context.Background()

	if err := BootstrapAdmin(ctx, repo, hasher, cfg); err != nil {
		t.Fatalf("BootstrapAdmin error: %v", err)
	}

	rec, err := repo.FindByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("admin not created: %v", err)
	}
	if len(rec.Roles) != 1 || rec.Roles[0] != "ADMIN" {
		t.Fatalf("admin roles = %v", rec.Roles)
	}

	secret, err := os.ReadFile(cfg.InitialAdminPasswordPath)
	if err != nil {
		t.Fatalf("password file not written: %v", err)
	}
	password := strings.TrimSpace(string(secret))
	if password == "" {
		t.Fatal("empty generated password")
	}
	if !hasher.Verify(password, rec.PasswordHash) {
		t.Fatal("stored hash does not match generated password")
	}

	// Idempotent: a second run must not replace the account.
	firstHash := rec.PasswordHash
	if err := BootstrapAdmin(ctx, repo, hasher, cfg); err != nil {
		t.Fatalf("second BootstrapAdmin error: %v", err)
	}
	rec, _ = repo.FindByUsername(ctx, "admin")
	if rec.PasswordHash != firstHash {
		t.Fatal("second bootstrap replaced the admin credentials")
	}
}

func TestBootstrapAdminDisabled(t *testing.T) {
	repo := newFakeUserRepo()
	cfg := Config{BootstrapAdminEnabled: false}

	if err := BootstrapAdmin(context.Background(), repo, NewBcryptHasher(bcrypt.MinCost), cfg); err != nil {
		t.Fatalf("BootstrapAdmin error: %v", err)
	}
	if _, err := repo.FindByUsername(context.Background(), "admin"); err == nil {
		t.Fatal("admin created despite bootstrap being disabled")
	}
}
