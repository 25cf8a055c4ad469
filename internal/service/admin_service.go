package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/auth"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/models"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/repository"
)

var ErrInvalidAmount = errors.New("amount must be positive")

const broadcastConcurrency = 8

type AdminService struct {
	log       *slog.Logger
	admins    *repository.AdminRepository
	users     *repository.UserRepository
	fortunes  *repository.FortuneRepository
	ledger    *repository.LedgerRepository
	notify    notifier
	tokens    *auth.Issuer
	now       func() time.Time
	bonusZone *time.Location
}

func NewAdminService(log *slog.Logger, admins *repository.AdminRepository, users *repository.UserRepository, fortunes *repository.FortuneRepository, ledger *repository.LedgerRepository, notify notifier, tokens *auth.Issuer, zone *time.Location) *AdminService {
	if zone == nil {
		zone = time.UTC
	}
	return &AdminService{
		log:       log,
		admins:    admins,
		users:     users,
		fortunes:  fortunes,
		ledger:    ledger,
		notify:    notify,
		tokens:    tokens,
		now:       time.Now,
		bonusZone: zone,
	}
}

// EnsureDefaultAdmin creates the configured admin account on first start.
// An existing account keeps its password.
func (s *AdminService) EnsureDefaultAdmin(ctx context.Context, username, password string) error {
	existing, err := s.admins.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if _, err := s.admins.Create(ctx, username, string(hash)); err != nil {
		return fmt.Errorf("create default admin: %w", err)
	}
	s.log.Info("default admin created", "username", username)
	return nil
}

func (s *AdminService) Login(ctx context.Context, username, password string) (string, error) {
	admin, err := s.admins.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return "", err
	}
	if admin == nil || bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}
	return s.tokens.Issue(admin.ID, auth.RoleAdmin)
}

func (s *AdminService) ListUsers(ctx context.Context, search string, limit, offset int) ([]models.User, int, error) {
	return s.users.List(ctx, search, limit, offset)
}

func (s *AdminService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

// DeleteUser removes the account; fortunes, notifications and ledger rows cascade.
func (s *AdminService) DeleteUser(ctx context.Context, id int64) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("user deleted by admin", "user_id", id)
	return nil
}

// GrantCoins credits amount to the user as a relative update and returns the new balance.
func (s *AdminService) GrantCoins(ctx context.Context, userID int64, amount int, reason string) (*models.Balance, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if _, err := s.ledger.Credit(ctx, userID, amount, models.TxAdminGrant, "admin:"+uuid.NewString()); err != nil {
		return nil, err
	}

	message := fmt.Sprintf("You received %d coins.", amount)
	if reason = strings.TrimSpace(reason); reason != "" {
		message = fmt.Sprintf("You received %d coins: %s", amount, reason)
	}
	if _, err := s.notify.Notify(ctx, userID, models.Notification{
		Type:    models.NotificationSystem,
		Title:   "Coins added",
		Message: message,
	}); err != nil {
		s.log.Warn("grant notification", "user_id", userID, "err", err)
	}
	s.log.Info("admin granted coins", "user_id", userID, "amount", amount)
	return s.users.Balance(ctx, userID)
}

func (s *AdminService) ListFortunes(ctx context.Context, fortuneType models.FortuneType, limit, offset int) ([]models.Fortune, int, error) {
	return s.fortunes.List(ctx, fortuneType, limit, offset)
}

func (s *AdminService) DeleteFortune(ctx context.Context, id int64) error {
	return s.fortunes.Delete(ctx, id)
}

type BroadcastInput struct {
	Title   string
	Message string
	Link    string
	UserIDs []int64
}

type BroadcastResult struct {
	Sent   int `json:"sent"`
	Muted  int `json:"muted"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// Broadcast sends one admin_message to every listed user, or to everyone when
// UserIDs is empty. Failures for single recipients are counted, not returned.
func (s *AdminService) Broadcast(ctx context.Context, in BroadcastInput) (*BroadcastResult, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}
	ids := in.UserIDs
	if len(ids) == 0 {
		var err error
		ids, err = s.users.ListIDs(ctx)
		if err != nil {
			return nil, err
		}
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "Message from the team"
	}

	var sent, muted, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(broadcastConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			n, err := s.notify.Notify(gctx, id, models.Notification{
				Type:    models.NotificationAdminMessage,
				Title:   title,
				Message: in.Message,
				Link:    in.Link,
			})
			switch {
			case err != nil:
				s.log.Error("send broadcast", "user_id", id, "err", err)
				failed.Add(1)
			case n == nil:
				muted.Add(1)
			default:
				sent.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return &BroadcastResult{
		Sent:   int(sent.Load()),
		Muted:  int(muted.Load()),
		Failed: int(failed.Load()),
		Total:  len(ids),
	}, nil
}

// Stats summarises the service for the dashboard. "Today" uses the bonus day zone.
func (s *AdminService) Stats(ctx context.Context) (*models.Stats, error) {
	users, earned, spent, err := s.users.Totals(ctx)
	if err != nil {
		return nil, err
	}
	perType, err := s.fortunes.CountPerType(ctx)
	if err != nil {
		return nil, err
	}
	local := s.now().In(s.bonusZone)
	startOfDay := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.bonusZone)
	today, err := s.fortunes.CountSince(ctx, startOfDay)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, n := range perType {
		total += n
	}
	return &models.Stats{
		Users:           users,
		Fortunes:        total,
		FortunesToday:   today,
		FortunesPerType: perType,
		CoinsEarned:     earned,
		CoinsSpent:      spent,
	}, nil
}
