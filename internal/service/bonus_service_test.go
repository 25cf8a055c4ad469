package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/models"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/repository"
)

func TestClaimDailyBonusOncePerDay(t *testing.T) {
	h := newHarness(t)
	bonus := NewBonusService(discardLogger(), h.users, h.ledgerRepo, h.notify, 10, time.UTC)
	ctx := context.Background()
	u := h.user(t, "bonus@example.com", 50)
	now := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

	g, err := bonus.ClaimDailyBonus(ctx, u.ID, now)
	if err != nil || g == nil || g.Amount != 10 || g.Day != "2026-05-10" {
		t.Fatalf("first claim: %+v %v", g, err)
	}
	g, err = bonus.ClaimDailyBonus(ctx, u.ID, now.Add(15*time.Hour))
	if err != nil || g != nil {
		t.Fatalf("second claim same day should be a no-op: %+v %v", g, err)
	}
	if b := h.balance(t, u.ID); b.Coins != 60 || b.TotalCoinsEarned != 60 || b.LastDailyBonus == nil {
		t.Errorf("unexpected balance %+v", b)
	}
	if n := h.notificationsOfType(t, u.ID, models.NotificationDailyBonus); n != 1 {
		t.Errorf("expected one daily_bonus notification, got %d", n)
	}
}

func TestClaimDailyBonusUsesConfiguredZone(t *testing.T) {
	h := newHarness(t)
	zone := time.FixedZone("UTC+3", 3*60*60)
	bonus := NewBonusService(discardLogger(), h.users, h.ledgerRepo, h.notify, 10, zone)
	ctx := context.Background()
	u := h.user(t, "zone@example.com", 0)

	lateUTC := time.Date(2026, 5, 10, 22, 30, 0, 0, time.UTC) // already May 11 at UTC+3
	g, err := bonus.ClaimDailyBonus(ctx, u.ID, lateUTC)
	if err != nil || g == nil || g.Day != "2026-05-11" {
		t.Fatalf("claim: %+v %v", g, err)
	}
	if g, _ := bonus.ClaimDailyBonus(ctx, u.ID, lateUTC.Add(time.Hour)); g != nil {
		t.Errorf("same local day granted twice")
	}
	if g, _ := bonus.ClaimDailyBonus(ctx, u.ID, time.Date(2026, 5, 11, 21, 0, 0, 0, time.UTC)); g == nil {
		t.Errorf("next local day should grant")
	}

	next := bonus.NextClaimAt(lateUTC)
	if want := time.Date(2026, 5, 11, 21, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("next claim at %v, want %v", next, want)
	}
}

func TestClaimDailyBonusUnknownUser(t *testing.T) {
	h := newHarness(t)
	bonus := NewBonusService(discardLogger(), h.users, h.ledgerRepo, h.notify, 10, time.UTC)
	if _, err := bonus.ClaimDailyBonus(context.Background(), 404, time.Now()); !errors.Is(err, repository.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
