package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/database/dbtest"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/guard"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/models"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAlert struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeAlert) Critical(_ context.Context, msg string, _ ...any) {
	f.mu.Lock()
	f.calls = append(f.calls, msg)
	f.mu.Unlock()
}

func (f *fakeAlert) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type harness struct {
	db            *sql.DB
	users         *repository.UserRepository
	ledgerRepo    *repository.LedgerRepository
	fortunes      *repository.FortuneRepository
	notifications *repository.NotificationRepository
	notify        *NotificationService
	alerts        *fakeAlert
	ledger        *LedgerService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := dbtest.New(t)
	h := &harness{
		db:            db,
		users:         repository.NewUserRepository(db),
		ledgerRepo:    repository.NewLedgerRepository(db),
		fortunes:      repository.NewFortuneRepository(db),
		notifications: repository.NewNotificationRepository(db),
		alerts:        &fakeAlert{},
	}
	h.notify = NewNotificationService(discardLogger(), h.users, h.notifications)
	h.ledger = NewLedgerService(discardLogger(), h.ledgerRepo, h.users, h.fortunes, h.notify, guard.NewMemory(time.Minute), h.alerts, time.Second)
	h.ledger.refundInterval = time.Millisecond
	return h
}

func (h *harness) user(t *testing.T, email string, coins int) *models.User {
	t.Helper()
	u, err := h.users.Create(context.Background(), &models.User{
		Email:        email,
		PasswordHash: "x",
		Name:         "Tester",
		Settings:     models.DefaultNotificationSettings(),
	}, coins)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (h *harness) balance(t *testing.T, userID int64) *models.Balance {
	t.Helper()
	b, err := h.users.Balance(context.Background(), userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b
}

func (h *harness) fortuneCount(t *testing.T, userID int64) int {
	t.Helper()
	n, err := h.fortunes.CountForUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("count fortunes: %v", err)
	}
	return n
}

func (h *harness) notificationsOfType(t *testing.T, userID int64, nt models.NotificationType) int {
	t.Helper()
	list, err := h.notifications.ListByUser(context.Background(), userID, InboxLimit)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	n := 0
	for _, item := range list {
		if item.Type == nt {
			n++
		}
	}
	return n
}

// openGuard never refuses; it lets tests race the ledger itself.
type openGuard struct{}

func (openGuard) Acquire(context.Context, string) (func(), error) { return func() {}, nil }
