package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/database/dbtest"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/models"
)

func createUser(t *testing.T, users *UserRepository, email string, grant int) *models.User {
	t.Helper()
	u, err := users.Create(context.Background(), &models.User{
		Email:        email,
		PasswordHash: "hash",
		Name:         "Test",
		Settings:     models.DefaultNotificationSettings(),
	}, grant)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestUserCreateWritesSignupGrant(t *testing.T) {
	db := dbtest.New(t)
	users := NewUserRepository(db)
	ledger := NewLedgerRepository(db)
	ctx := context.Background()

	u := createUser(t, users, "Seer@Example.com", 50)
	if u.Email != "seer@example.com" {
		t.Errorf("expected lowercased email, got %q", u.Email)
	}

	got, err := users.FindByEmail(ctx, "SEER@example.com")
	if err != nil || got == nil {
		t.Fatalf("find by email: %v %v", got, err)
	}
	if got.Coins != 50 || got.TotalCoinsEarned != 50 || got.TotalCoinsSpent != 0 {
		t.Errorf("unexpected balance %+v", got)
	}
	if !got.Settings.FortuneReady || !got.Settings.DailyBonus || !got.Settings.AdminMessages {
		t.Errorf("expected default settings, got %+v", got.Settings)
	}

	entry, err := ledger.FindByReference(ctx, fmt.Sprintf("signup:%d", u.ID))
	if err != nil || entry == nil {
		t.Fatalf("signup entry missing: %v", err)
	}
	if entry.Amount != 50 || entry.Type != models.TxSignupGrant {
		t.Errorf("unexpected signup entry %+v", entry)
	}

	if _, err := users.Create(ctx, &models.User{Email: "seer@example.com", PasswordHash: "x", Name: "Dup"}, 50); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestFindByIDMissingReturnsNil(t *testing.T) {
	users := NewUserRepository(dbtest.New(t))
	u, err := users.FindByID(context.Background(), 42)
	if err != nil || u != nil {
		t.Fatalf("expected nil, nil; got %v, %v", u, err)
	}
}

func TestDebitRequiresSufficientBalance(t *testing.T) {
	db := dbtest.New(t)
	users := NewUserRepository(db)
	ledger := NewLedgerRepository(db)
	ctx := context.Background()
	u := createUser(t, users, "a@example.com", 5)

	ok, err := ledger.Debit(ctx, u.ID, 10, models.TxFortuneCharge, "res-1")
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if ok {
		t.Fatal("debit beyond balance must not succeed")
	}
	bal, _ := users.Balance(ctx, u.ID)
	if bal.Coins != 5 || bal.TotalCoinsSpent != 0 {
		t.Errorf("balance changed on failed debit: %+v", bal)
	}

	ok, err = ledger.Debit(ctx, u.ID, 5, models.TxFortuneCharge, "res-2")
	if err != nil || !ok {
		t.Fatalf("exact debit: %v %v", ok, err)
	}
	bal, _ = users.Balance(ctx, u.ID)
	if bal.Coins != 0 || bal.TotalCoinsSpent != 5 {
		t.Errorf("unexpected balance after debit: %+v", bal)
	}
}

func TestRefundIsIdempotent(t *testing.T) {
	db := dbtest.New(t)
	users := NewUserRepository(db)
	ledger := NewLedgerRepository(db)
	ctx := context.Background()
	u := createUser(t, users, "b@example.com", 30)

	if ok, err := ledger.Debit(ctx, u.ID, 20, models.TxFortuneCharge, "charge:r1"); err != nil || !ok {
		t.Fatalf("debit: %v %v", ok, err)
	}
	for i := 0; i < 3; i++ {
		applied, err := ledger.Refund(ctx, u.ID, 20, "refund:r1")
		if err != nil {
			t.Fatalf("refund %d: %v", i, err)
		}
		if applied != (i == 0) {
			t.Errorf("refund %d applied=%v", i, applied)
		}
	}
	bal, _ := users.Balance(ctx, u.ID)
	if bal.Coins != 30 || bal.TotalCoinsSpent != 0 {
		t.Errorf("unexpected balance after refund: %+v", bal)
	}
}

func TestRefundUnknownUser(t *testing.T) {
	ledger := NewLedgerRepository(dbtest.New(t))
	if _, err := ledger.Refund(context.Background(), 99, 10, "refund:x"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCreditTracksEarned(t *testing.T) {
	db := dbtest.New(t)
	users := NewUserRepository(db)
	ledger := NewLedgerRepository(db)
	ctx := context.Background()
	u := createUser(t, users, "c@example.com", 0)

	if ok, err := ledger.Credit(ctx, u.ID, 15, models.TxAdminGrant, "admin:1"); err != nil || !ok {
		t.Fatalf("credit: %v %v", ok, err)
	}
	if ok, _ := ledger.Credit(ctx, u.ID, 15, models.TxAdminGrant, "admin:1"); ok {
		t.Error("duplicate credit reference applied twice")
	}
	bal, _ := users.Balance(ctx, u.ID)
	if bal.Coins != 15 || bal.TotalCoinsEarned != 15 {
		t.Errorf("unexpected balance %+v", bal)
	}
}

func TestClaimDailyOncePerDay(t *testing.T) {
	db := dbtest.New(t)
	users := NewUserRepository(db)
	ledger := NewLedgerRepository(db)
	ctx := context.Background()
	u := createUser(t, users, "d@example.com", 0)
	now := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)

	if ok, err := ledger.ClaimDaily(ctx, u.ID, 10, "2026-03-01", now); err != nil || !ok {
		t.Fatalf("first claim: %v %v", ok, err)
	}
	if ok, err := ledger.ClaimDaily(ctx, u.ID, 10, "2026-03-01", now.Add(time.Minute)); err != nil || ok {
		t.Fatalf("second claim same day: %v %v", ok, err)
	}
	if ok, err := ledger.ClaimDaily(ctx, u.ID, 10, "2026-03-02", now.Add(time.Hour)); err != nil || !ok {
		t.Fatalf("next day claim: %v %v", ok, err)
	}

	got, _ := users.FindByID(ctx, u.ID)
	if got.Coins != 20 || got.LastBonusDay != "2026-03-02" {
		t.Errorf("unexpected user after claims: coins=%d day=%q", got.Coins, got.LastBonusDay)
	}
	if got.LastDailyBonus == nil || !got.LastDailyBonus.Equal(now.Add(time.Hour)) {
		t.Errorf("unexpected last_daily_bonus %v", got.LastDailyBonus)
	}

	history, err := ledger.History(ctx, u.ID, 10, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[0].Reference != fmt.Sprintf("daily:%d:2026-03-02", u.ID) {
		t.Errorf("unexpected history %+v", history)
	}
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	db := dbtest.New(t)
	users := NewUserRepository(db)
	ledger := NewLedgerRepository(db)
	ctx := context.Background()
	u := createUser(t, users, "e@example.com", 25)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := ledger.Debit(ctx, u.ID, 10, models.TxFortuneCharge, fmt.Sprintf("charge:%d", i))
			if err != nil {
				t.Errorf("debit %d: %v", i, err)
				return
			}
			if ok {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 2 {
		t.Errorf("expected 2 successful debits, got %d", succeeded)
	}
	bal, _ := users.Balance(ctx, u.ID)
	if bal.Coins != 5 {
		t.Errorf("expected 5 coins left, got %d", bal.Coins)
	}
}

func TestFortuneRoundTripAndOwnership(t *testing.T) {
	db := dbtest.New(t)
	users := NewUserRepository(db)
	fortunes := NewFortuneRepository(db)
	ctx := context.Background()
	owner := createUser(t, users, "f@example.com", 0)
	other := createUser(t, users, "g@example.com", 0)

	f := &models.Fortune{
		UserID:        owner.ID,
		Type:          models.FortuneCoffee,
		TellerID:      "madame-zara",
		TellerName:    "Madame Zara",
		Cost:          10,
		Text:          "A bird in the cup means news.",
		ImageURLs:     []string{"https://cdn.example.com/cups/1.jpg"},
		Metadata:      map[string]any{"symbols": "bird"},
		ReservationID: "res-f1",
	}
	if err := fortunes.Create(ctx, f); err != nil {
		t.Fatalf("create fortune: %v", err)
	}

	got, err := fortunes.GetByID(ctx, f.ID)
	if err != nil || got == nil {
		t.Fatalf("get fortune: %v %v", got, err)
	}
	if len(got.ImageURLs) != 1 || got.Metadata["symbols"] != "bird" || got.TellerName != "Madame Zara" {
		t.Errorf("unexpected fortune %+v", got)
	}

	if err := fortunes.DeleteForUser(ctx, f.ID, other.ID); !errors.Is(err, ErrFortuneNotFound) {
		t.Errorf("expected ErrFortuneNotFound for foreign delete, got %v", err)
	}
	if err := fortunes.DeleteForUser(ctx, f.ID, owner.ID); err != nil {
		t.Errorf("owner delete: %v", err)
	}
	if n, _ := fortunes.CountForUser(ctx, owner.ID); n != 0 {
		t.Errorf("expected no fortunes left, got %d", n)
	}
}

func TestFortuneStats(t *testing.T) {
	db := dbtest.New(t)
	users := NewUserRepository(db)
	fortunes := NewFortuneRepository(db)
	ctx := context.Background()
	u := createUser(t, users, "h@example.com", 0)
	yesterday := time.Now().UTC().Add(-36 * time.Hour)

	for i, ft := range []models.FortuneType{models.FortuneTarot, models.FortuneTarot, models.FortuneDream} {
		f := &models.Fortune{UserID: u.ID, Type: ft, TellerID: "t", TellerName: "T", Cost: 1, Text: "x", ReservationID: fmt.Sprintf("r%d", i)}
		if i == 0 {
			f.CreatedAt = yesterday
		}
		if err := fortunes.Create(ctx, f); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	perType, err := fortunes.CountPerType(ctx)
	if err != nil {
		t.Fatalf("count per type: %v", err)
	}
	if perType[models.FortuneTarot] != 2 || perType[models.FortuneDream] != 1 {
		t.Errorf("unexpected per-type counts %v", perType)
	}
	since := time.Now().UTC().Add(-time.Hour)
	if n, _ := fortunes.CountSince(ctx, since); n != 2 {
		t.Errorf("expected 2 recent fortunes, got %d", n)
	}
	list, total, err := fortunes.List(ctx, models.FortuneTarot, 10, 0)
	if err != nil || total != 2 || len(list) != 2 {
		t.Errorf("list tarot: total=%d len=%d err=%v", total, len(list), err)
	}
}

func TestNotificationInboxIsCapped(t *testing.T) {
	db := dbtest.New(t)
	users := NewUserRepository(db)
	notifications := NewNotificationRepository(db)
	ctx := context.Background()
	u := createUser(t, users, "i@example.com", 0)

	for i := 0; i < 7; i++ {
		n := &models.Notification{UserID: u.ID, Type: models.NotificationSystem, Title: fmt.Sprintf("n%d", i), Message: "m"}
		if err := notifications.Create(ctx, n, 5); err != nil {
			t.Fatalf("create notification %d: %v", i, err)
		}
	}

	list, err := notifications.ListByUser(ctx, u.ID, 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 5 {
		t.Fatalf("expected 5 kept notifications, got %d", len(list))
	}
	if list[0].Title != "n6" || list[4].Title != "n2" {
		t.Errorf("expected newest five, got first=%s last=%s", list[0].Title, list[4].Title)
	}
}

func TestNotificationReadState(t *testing.T) {
	db := dbtest.New(t)
	users := NewUserRepository(db)
	notifications := NewNotificationRepository(db)
	ctx := context.Background()
	u := createUser(t, users, "j@example.com", 0)
	other := createUser(t, users, "k@example.com", 0)

	var first models.Notification
	for i := 0; i < 3; i++ {
		n := models.Notification{UserID: u.ID, Type: models.NotificationDailyBonus, Title: "bonus", Message: "m"}
		if err := notifications.Create(ctx, &n, 50); err != nil {
			t.Fatalf("create: %v", err)
		}
		if i == 0 {
			first = n
		}
	}

	if err := notifications.MarkRead(ctx, other.ID, first.ID); !errors.Is(err, ErrNotificationNotFound) {
		t.Errorf("expected ErrNotificationNotFound for foreign id, got %v", err)
	}
	if err := notifications.MarkRead(ctx, u.ID, first.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := notifications.MarkRead(ctx, u.ID, first.ID); err != nil {
		t.Errorf("repeat mark read: %v", err)
	}
	if n, _ := notifications.UnreadCount(ctx, u.ID); n != 2 {
		t.Errorf("expected 2 unread, got %d", n)
	}
	if changed, _ := notifications.MarkAllRead(ctx, u.ID); changed != 2 {
		t.Errorf("expected 2 changed, got %d", changed)
	}
	if n, _ := notifications.UnreadCount(ctx, u.ID); n != 0 {
		t.Errorf("expected 0 unread, got %d", n)
	}
}

func TestUserListSearchAndDelete(t *testing.T) {
	db := dbtest.New(t)
	users := NewUserRepository(db)
	ctx := context.Background()
	a := createUser(t, users, "alice@example.com", 0)
	createUser(t, users, "bob@example.com", 0)

	list, total, err := users.List(ctx, "ALI", 10, 0)
	if err != nil || total != 1 || len(list) != 1 || list[0].ID != a.ID {
		t.Fatalf("search: total=%d list=%v err=%v", total, list, err)
	}
	if err := users.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := users.Delete(ctx, a.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	ids, _ := users.ListIDs(ctx)
	if len(ids) != 1 {
		t.Errorf("expected one user left, got %v", ids)
	}
}

func TestAdminRepository(t *testing.T) {
	admins := NewAdminRepository(dbtest.New(t))
	ctx := context.Background()
	if a, err := admins.FindByUsername(ctx, "root"); err != nil || a != nil {
		t.Fatalf("expected nil admin, got %v %v", a, err)
	}
	if _, err := admins.Create(ctx, "root", "hash"); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	a, err := admins.FindByUsername(ctx, "root")
	if err != nil || a == nil || a.PasswordHash != "hash" {
		t.Fatalf("find admin: %v %v", a, err)
	}
}
