package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/models"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/repository"
)

func TestInboxKeepsNewestFifty(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.user(t, "inbox@example.com", 0)

	for i := 0; i < InboxLimit+5; i++ {
		if _, err := h.notify.Notify(ctx, u.ID, models.Notification{Type: models.NotificationSystem, Title: fmt.Sprintf("n%d", i), Message: "m"}); err != nil {
			t.Fatalf("notify %d: %v", i, err)
		}
	}
	list, err := h.notify.List(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != InboxLimit {
		t.Fatalf("inbox holds %d, want %d", len(list), InboxLimit)
	}
	if list[0].Title != fmt.Sprintf("n%d", InboxLimit+4) {
		t.Errorf("newest first violated, got %s", list[0].Title)
	}
	if n, _ := h.notify.UnreadCount(ctx, u.ID); n != InboxLimit {
		t.Errorf("unread %d, want %d", n, InboxLimit)
	}
}

func TestNotifySettingsFilter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.user(t, "filter@example.com", 0)
	settings := models.NotificationSettings{FortuneReady: true, DailyBonus: false, AdminMessages: false}
	if err := h.notify.UpdateSettings(ctx, u.ID, settings); err != nil {
		t.Fatal(err)
	}
	got, err := h.notify.Settings(ctx, u.ID)
	if err != nil || got != settings {
		t.Fatalf("settings round trip: %+v %v", got, err)
	}

	for _, tc := range []struct {
		typ       models.NotificationType
		delivered bool
	}{
		{models.NotificationDailyBonus, false},
		{models.NotificationAdminMessage, false},
		{models.NotificationFortuneReady, true},
		{models.NotificationSystem, true},
	} {
		n, err := h.notify.Notify(ctx, u.ID, models.Notification{Type: tc.typ, Title: "t", Message: "m"})
		if err != nil {
			t.Fatalf("%s: %v", tc.typ, err)
		}
		if (n != nil) != tc.delivered {
			t.Errorf("%s delivered=%v, want %v", tc.typ, n != nil, tc.delivered)
		}
	}
}

func TestNotifyUnknownUser(t *testing.T) {
	h := newHarness(t)
	if _, err := h.notify.Notify(context.Background(), 999, models.Notification{Type: models.NotificationSystem}); !errors.Is(err, repository.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
