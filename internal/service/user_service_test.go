package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/auth"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/models"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/repository"
)

func newUserService(h *harness) (*UserService, *auth.Issuer) {
	tokens := auth.NewIssuer("test-secret", time.Hour)
	return NewUserService(discardLogger(), h.users, h.ledgerRepo, h.notify, tokens, 50), tokens
}

func TestRegisterGrantsStartingCoins(t *testing.T) {
	h := newHarness(t)
	svc, tokens := newUserService(h)
	ctx := context.Background()

	user, token, err := svc.Register(ctx, RegisterInput{Email: "New@Example.com", Password: "secret1", Name: "Nova", BirthDate: "1990-04-01"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Coins != 50 || user.TotalCoinsEarned != 50 {
		t.Errorf("unexpected starting balance %+v", user)
	}
	if id, err := tokens.Verify(token, auth.RoleUser); err != nil || id != user.ID {
		t.Errorf("token does not identify user: %d %v", id, err)
	}
	if n := h.notificationsOfType(t, user.ID, models.NotificationSystem); n != 1 {
		t.Errorf("expected welcome notification, got %d", n)
	}
	history, _ := svc.Transactions(ctx, user.ID, 10, 0)
	if len(history) != 1 || history[0].Type != models.TxSignupGrant || history[0].Amount != 50 {
		t.Errorf("unexpected ledger %+v", history)
	}

	if _, _, err := svc.Register(ctx, RegisterInput{Email: "new@example.com", Password: "secret1", Name: "Dup"}); !errors.Is(err, repository.ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
	if _, _, err := svc.Register(ctx, RegisterInput{Email: "short@example.com", Password: "123", Name: "S"}); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("expected ErrWeakPassword, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	svc, _ := newUserService(h)
	ctx := context.Background()
	if _, _, err := svc.Register(ctx, RegisterInput{Email: "l@example.com", Password: "hunter22", Name: "L"}); err != nil {
		t.Fatal(err)
	}

	if _, token, err := svc.Login(ctx, "L@example.com", "hunter22"); err != nil || token == "" {
		t.Errorf("login: %v", err)
	}
	if _, _, err := svc.Login(ctx, "l@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	h := newHarness(t)
	svc, _ := newUserService(h)
	u := h.user(t, "p@example.com", 0)

	got, err := svc.UpdateProfile(context.Background(), u.ID, ProfileInput{Name: "Renamed", City: " Izmir ", BirthTime: "07:30"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != "Renamed" || got.City != "Izmir" || got.BirthTime != "07:30" {
		t.Errorf("unexpected profile %+v", got)
	}
}
