package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/models"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/repository"
)

type BonusGrant struct {
	Amount    int       `json:"amount"`
	Day       string    `json:"day"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// BonusService hands out one daily bonus per calendar day. Days are counted
// in a single configured zone so every instance agrees on when a day ends.
type BonusService struct {
	log    *slog.Logger
	users  *repository.UserRepository
	ledger *repository.LedgerRepository
	notify notifier
	amount int
	loc    *time.Location
}

func NewBonusService(log *slog.Logger, users *repository.UserRepository, ledger *repository.LedgerRepository, notify notifier, amount int, loc *time.Location) *BonusService {
	if loc == nil {
		loc = time.UTC
	}
	return &BonusService{log: log, users: users, ledger: ledger, notify: notify, amount: amount, loc: loc}
}

// Day returns the bonus calendar day containing now.
func (s *BonusService) Day(now time.Time) string {
	return now.In(s.loc).Format("2006-01-02")
}

// NextClaimAt is the first instant of the bonus day after now.
func (s *BonusService) NextClaimAt(now time.Time) time.Time {
	local := now.In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, s.loc)
}

// ClaimDailyBonus credits the bonus once per day. A nil grant with a nil
// error means the user already claimed today.
func (s *BonusService) ClaimDailyBonus(ctx context.Context, userID int64, now time.Time) (*BonusGrant, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, repository.ErrUserNotFound
	}

	day := s.Day(now)
	granted, err := s.ledger.ClaimDaily(ctx, userID, s.amount, day, now)
	if err != nil {
		return nil, fmt.Errorf("claim daily bonus: %w", err)
	}
	if !granted {
		return nil, nil
	}

	if _, err := s.notify.Notify(ctx, userID, models.Notification{
		Type:    models.NotificationDailyBonus,
		Title:   "Daily bonus",
		Message: fmt.Sprintf("You received %d coins. Come back tomorrow for more.", s.amount),
	}); err != nil {
		s.log.Warn("daily bonus notification", "user_id", userID, "err", err)
	}
	s.log.Info("daily bonus granted", "user_id", userID, "day", day, "amount", s.amount)
	return &BonusGrant{Amount: s.amount, Day: day, ClaimedAt: now.UTC()}, nil
}
