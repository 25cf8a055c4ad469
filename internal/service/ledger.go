package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/guard"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/models"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/repository"
)

// Paid action outcomes. A *PaidActionError matches exactly one of these with errors.Is.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrLedger            = errors.New("ledger error")
	ErrGenerationTimeout = errors.New("generation timed out")
	ErrGenerationFailed  = errors.New("generation failed")
	ErrPersistFailed     = errors.New("fortune could not be saved")
	ErrRefundFailed      = errors.New("refund failed")
	ErrRequestInFlight   = errors.New("request already in flight")
)

var errEmptyFortune = errors.New("empty fortune text")

// PaidActionError reports why a paid action stopped and what the balance is
// now. Balance is nil when it could not be read back.
type PaidActionError struct {
	Kind    error
	Cost    int
	Balance *int
	Err     error
}

func (e *PaidActionError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *PaidActionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

type coinLedger interface {
	Debit(ctx context.Context, userID int64, amount int, txType models.TransactionType, reference string) (bool, error)
	Refund(ctx context.Context, userID int64, amount int, reference string) (bool, error)
}

type balanceReader interface {
	Balance(ctx context.Context, userID int64) (*models.Balance, error)
}

type fortuneWriter interface {
	Create(ctx context.Context, f *models.Fortune) error
}

type notifier interface {
	Notify(ctx context.Context, userID int64, n models.Notification) (*models.Notification, error)
}

type criticalAlerter interface {
	Critical(ctx context.Context, msg string, attrs ...any)
}

// PaidAction describes one charged fortune request.
type PaidAction struct {
	UserID    int64
	Type      models.FortuneType
	Teller    models.FortuneTeller
	ImageURLs []string
	Metadata  map[string]any
	// Generate performs the external call and returns the fortune text.
	Generate func(ctx context.Context) (string, error)
}

type PaidActionResult struct {
	Fortune *models.Fortune
	Saved   bool
	Balance *int
}

type LedgerService struct {
	log      *slog.Logger
	ledger   coinLedger
	balances balanceReader
	fortunes fortuneWriter
	notify   notifier
	guard    guard.Guard
	alert    criticalAlerter
	timeout  time.Duration

	refundTries    uint
	refundInterval time.Duration
}

func NewLedgerService(log *slog.Logger, ledger coinLedger, balances balanceReader, fortunes fortuneWriter, notify notifier, g guard.Guard, alert criticalAlerter, timeout time.Duration) *LedgerService {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &LedgerService{
		log:            log,
		ledger:         ledger,
		balances:       balances,
		fortunes:       fortunes,
		notify:         notify,
		guard:          g,
		alert:          alert,
		timeout:        timeout,
		refundTries:    4,
		refundInterval: 250 * time.Millisecond,
	}
}

// PerformPaidAction charges the teller's cost, runs the generation and either
// stores the fortune or gives the coins back. Generation is never retried here.
func (s *LedgerService) PerformPaidAction(ctx context.Context, action PaidAction) (*PaidActionResult, error) {
	userID := action.UserID
	cost := action.Teller.Cost
	if cost < 0 {
		return nil, s.fail(ctx, userID, ErrLedger, cost, fmt.Errorf("negative cost %d", cost))
	}

	release, err := s.guard.Acquire(ctx, fmt.Sprintf("user:%d", userID))
	if err != nil {
		if errors.Is(err, guard.ErrInFlight) {
			return nil, s.fail(ctx, userID, ErrRequestInFlight, cost, nil)
		}
		return nil, s.fail(ctx, userID, ErrLedger, cost, err)
	}
	defer release()

	balance, err := s.balances.Balance(ctx, userID)
	if err != nil {
		return nil, &PaidActionError{Kind: ErrLedger, Cost: cost, Err: err}
	}
	if balance.Coins < cost {
		coins := balance.Coins
		return nil, &PaidActionError{Kind: ErrInsufficientFunds, Cost: cost, Balance: &coins}
	}

	reservation := uuid.NewString()
	if cost > 0 {
		ok, err := s.ledger.Debit(ctx, userID, cost, models.TxFortuneCharge, "charge:"+reservation)
		if err != nil {
			s.log.Error("reserve coins", "user_id", userID, "cost", cost, "err", err)
			return nil, s.fail(ctx, userID, ErrLedger, cost, err)
		}
		if !ok {
			return nil, s.fail(ctx, userID, ErrInsufficientFunds, cost, nil)
		}
	}

	text, genErr := s.generate(ctx, action.Generate)
	if genErr != nil {
		kind := ErrGenerationFailed
		if errors.Is(genErr, context.DeadlineExceeded) {
			kind = ErrGenerationTimeout
		}
		s.log.Warn("fortune generation failed", "user_id", userID, "type", action.Type, "timeout", kind == ErrGenerationTimeout, "err", genErr)
		if cost > 0 {
			if err := s.refund(ctx, userID, cost, reservation); err != nil {
				s.alert.Critical(ctx, "refund failed after generation error",
					"user_id", userID, "amount", cost, "reservation", reservation, "err", err.Error())
				return nil, s.fail(ctx, userID, ErrRefundFailed, cost, errors.Join(genErr, err))
			}
		}
		return nil, s.fail(ctx, userID, kind, cost, genErr)
	}

	// The coins are spent and the text exists; a client that went away
	// must not stop us from recording it.
	persistCtx := context.WithoutCancel(ctx)
	fortune := &models.Fortune{
		UserID:        userID,
		Type:          action.Type,
		TellerID:      action.Teller.ID,
		TellerName:    action.Teller.Name,
		Cost:          cost,
		Text:          text,
		ImageURLs:     action.ImageURLs,
		Metadata:      action.Metadata,
		ReservationID: reservation,
	}
	if err := s.fortunes.Create(persistCtx, fortune); err != nil {
		s.log.Error("persist fortune", "user_id", userID, "reservation", reservation, "err", err)
		fortune.ID = 0
		result := &PaidActionResult{Fortune: fortune, Saved: false, Balance: s.readBalance(persistCtx, userID)}
		return result, &PaidActionError{Kind: ErrPersistFailed, Cost: cost, Balance: result.Balance, Err: err}
	}

	if _, err := s.notify.Notify(persistCtx, userID, models.Notification{
		Type:    models.NotificationFortuneReady,
		Title:   "Your fortune is ready",
		Message: fmt.Sprintf("%s %s has finished your %s reading.", action.Teller.Emoji, action.Teller.Name, action.Type),
		Link:    fmt.Sprintf("/fortunes/%d", fortune.ID),
	}); err != nil {
		s.log.Warn("fortune ready notification", "user_id", userID, "fortune_id", fortune.ID, "err", err)
	}

	return &PaidActionResult{Fortune: fortune, Saved: true, Balance: s.readBalance(persistCtx, userID)}, nil
}

func (s *LedgerService) generate(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := fn(genCtx)
	if err != nil {
		if errors.Is(genCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errEmptyFortune
	}
	return text, nil
}

// refund credits the reservation back on a context detached from the caller,
// so a timed out or abandoned request still settles.
func (s *LedgerService) refund(ctx context.Context, userID int64, amount int, reservation string) error {
	ctx = context.WithoutCancel(ctx)
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.refundInterval
	b.MaxInterval = 8 * s.refundInterval

	_, err := backoff.Retry(ctx, func() (bool, error) {
		applied, err := s.ledger.Refund(ctx, userID, amount, "refund:"+reservation)
		if errors.Is(err, repository.ErrUserNotFound) {
			return false, backoff.Permanent(err)
		}
		return applied, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.refundTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.log.Warn("refund attempt failed", "user_id", userID, "reservation", reservation, "retry_in", next, "err", err)
		}),
	)
	return err
}

func (s *LedgerService) fail(ctx context.Context, userID int64, kind error, cost int, err error) *PaidActionError {
	return &PaidActionError{Kind: kind, Cost: cost, Balance: s.readBalance(context.WithoutCancel(ctx), userID), Err: err}
}

func (s *LedgerService) readBalance(ctx context.Context, userID int64) *int {
	b, err := s.balances.Balance(ctx, userID)
	if err != nil {
		s.log.Warn("read balance", "user_id", userID, "err", err)
		return nil
	}
	coins := b.Coins
	return &coins
}
