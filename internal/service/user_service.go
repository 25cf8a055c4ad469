package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/auth"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/models"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
)

const minPasswordLength = 6

type UserService struct {
	log         *slog.Logger
	users       *repository.UserRepository
	ledger      *repository.LedgerRepository
	notify      notifier
	tokens      *auth.Issuer
	signupCoins int
}

type RegisterInput struct {
	Email     string
	Password  string
	Name      string
	BirthDate string
	BirthTime string
	City      string
	Gender    string
}

type ProfileInput struct {
	Name      string
	BirthDate string
	BirthTime string
	City      string
	Gender    string
}

func NewUserService(log *slog.Logger, users *repository.UserRepository, ledger *repository.LedgerRepository, notify notifier, tokens *auth.Issuer, signupCoins int) *UserService {
	return &UserService{log: log, users: users, ledger: ledger, notify: notify, tokens: tokens, signupCoins: signupCoins}
}

// Register creates the account with its starting grant and returns a session token.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	if len(in.Password) < minPasswordLength {
		return nil, "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, &models.User{
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(in.Name),
		BirthDate:    in.BirthDate,
		BirthTime:    in.BirthTime,
		City:         strings.TrimSpace(in.City),
		Gender:       in.Gender,
		Settings:     models.DefaultNotificationSettings(),
	}, s.signupCoins)
	if err != nil {
		return nil, "", err
	}

	if _, err := s.notify.Notify(ctx, user.ID, models.Notification{
		Type:    models.NotificationSystem,
		Title:   "Welcome",
		Message: fmt.Sprintf("Your account is ready and %d coins are waiting for your first reading.", s.signupCoins),
	}); err != nil {
		s.log.Warn("welcome notification", "user_id", user.ID, "err", err)
	}

	token, err := s.tokens.Issue(user.ID, auth.RoleUser)
	if err != nil {
		return nil, "", err
	}
	s.log.Info("user registered", "user_id", user.ID)
	return user, token, nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, "", err
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(user.ID, auth.RoleUser)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *UserService) Get(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (*models.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		user.Name = name
	}
	user.BirthDate = in.BirthDate
	user.BirthTime = in.BirthTime
	user.City = strings.TrimSpace(in.City)
	user.Gender = in.Gender
	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *UserService) Balance(ctx context.Context, userID int64) (*models.Balance, error) {
	return s.users.Balance(ctx, userID)
}

func (s *UserService) Transactions(ctx context.Context, userID int64, limit, offset int) ([]models.CoinTransaction, error) {
	return s.ledger.History(ctx, userID, limit, offset)
}
