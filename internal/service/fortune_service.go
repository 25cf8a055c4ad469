package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/generator"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/models"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/repository"
)

var ErrInvalidInput = errors.New("invalid input")

const (
	maxCupPhotos  = 3
	maxTarotCards = 10
	minDreamChars = 10
)

var allowedPhotoTypes = []string{"image/jpeg", "image/png", "image/webp"}

type fortuneGenerator interface {
	Generate(ctx context.Context, req generator.Request) (*generator.Result, error)
}

// PhotoStore keeps the raw cup photos. A nil store skips archiving.
type PhotoStore interface {
	Upload(ctx context.Context, userID int64, data []byte, contentType string) (string, error)
}

type paidActionRunner interface {
	PerformPaidAction(ctx context.Context, action PaidAction) (*PaidActionResult, error)
}

type FortuneService struct {
	log        *slog.Logger
	users      *repository.UserRepository
	fortunes   *repository.FortuneRepository
	tellers    *TellerService
	ledger     paidActionRunner
	generator  fortuneGenerator
	photos     PhotoStore
	maxPhotoSz int64
}

// NewFortuneService wires the reading flows. photos may be nil, in which case
// cup photos are only sent inline to the webhook.
func NewFortuneService(log *slog.Logger, users *repository.UserRepository, fortunes *repository.FortuneRepository, tellers *TellerService, ledger paidActionRunner, gen fortuneGenerator, photos PhotoStore, maxPhotoBytes int64) *FortuneService {
	if maxPhotoBytes <= 0 {
		maxPhotoBytes = 8 << 20
	}
	return &FortuneService{
		log:        log,
		users:      users,
		fortunes:   fortunes,
		tellers:    tellers,
		ledger:     ledger,
		generator:  gen,
		photos:     photos,
		maxPhotoSz: maxPhotoBytes,
	}
}

type CoffeeInput struct {
	TellerID string
	Photos   [][]byte
	Note     string
}

type TarotInput struct {
	TellerID string
	Question string
	Cards    []string
}

type CoupleInput struct {
	TellerID         string
	PartnerName      string
	PartnerBirthDate string
	Question         string
}

type DreamInput struct {
	TellerID    string
	Description string
}

type StarInput struct {
	TellerID  string
	BirthDate string
	BirthTime string
	City      string
	Topic     string
}

func (s *FortuneService) Coffee(ctx context.Context, userID int64, in CoffeeInput) (*PaidActionResult, error) {
	if len(in.Photos) == 0 || len(in.Photos) > maxCupPhotos {
		return nil, fmt.Errorf("%w: between 1 and %d cup photos are required", ErrInvalidInput, maxCupPhotos)
	}
	contentTypes := make([]string, len(in.Photos))
	for i, data := range in.Photos {
		if int64(len(data)) > s.maxPhotoSz {
			return nil, fmt.Errorf("%w: photo %d exceeds %d bytes", ErrInvalidInput, i+1, s.maxPhotoSz)
		}
		mt := mimetype.Detect(data)
		if !mimetype.EqualsAny(mt.String(), allowedPhotoTypes...) {
			return nil, fmt.Errorf("%w: photo %d is %s, want jpeg, png or webp", ErrInvalidInput, i+1, mt.String())
		}
		contentTypes[i] = mt.String()
	}

	user, teller, err := s.prepare(ctx, userID, in.TellerID)
	if err != nil {
		return nil, err
	}
	// no point storing photos for a reading the user cannot pay for
	if user.Coins < teller.Cost {
		coins := user.Coins
		return nil, &PaidActionError{Kind: ErrInsufficientFunds, Cost: teller.Cost, Balance: &coins}
	}

	var urls []string
	if s.photos != nil {
		for i, data := range in.Photos {
			url, err := s.photos.Upload(ctx, userID, data, contentTypes[i])
			if err != nil {
				return nil, fmt.Errorf("store cup photo: %w", err)
			}
			urls = append(urls, url)
		}
	}

	images := make([]string, len(in.Photos))
	for i, data := range in.Photos {
		images[i] = base64.StdEncoding.EncodeToString(data)
	}
	answers := map[string]any{}
	if note := strings.TrimSpace(in.Note); note != "" {
		answers["note"] = note
	}
	return s.run(ctx, user, teller, models.FortuneCoffee, urls, images, answers)
}

func (s *FortuneService) Tarot(ctx context.Context, userID int64, in TarotInput) (*PaidActionResult, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: a question is required", ErrInvalidInput)
	}
	if len(in.Cards) == 0 || len(in.Cards) > maxTarotCards {
		return nil, fmt.Errorf("%w: select between 1 and %d cards", ErrInvalidInput, maxTarotCards)
	}
	user, teller, err := s.prepare(ctx, userID, in.TellerID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, user, teller, models.FortuneTarot, nil, nil, map[string]any{
		"question": question,
		"cards":    in.Cards,
	})
}

func (s *FortuneService) Couple(ctx context.Context, userID int64, in CoupleInput) (*PaidActionResult, error) {
	partner := strings.TrimSpace(in.PartnerName)
	if partner == "" {
		return nil, fmt.Errorf("%w: partner name is required", ErrInvalidInput)
	}
	if err := checkDate(in.PartnerBirthDate, "partner birth date"); err != nil {
		return nil, err
	}
	user, teller, err := s.prepare(ctx, userID, in.TellerID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, user, teller, models.FortuneCouple, nil, nil, map[string]any{
		"partner_name":       partner,
		"partner_birth_date": in.PartnerBirthDate,
		"question":           strings.TrimSpace(in.Question),
	})
}

func (s *FortuneService) Dream(ctx context.Context, userID int64, in DreamInput) (*PaidActionResult, error) {
	description := strings.TrimSpace(in.Description)
	if len([]rune(description)) < minDreamChars {
		return nil, fmt.Errorf("%w: describe the dream in at least %d characters", ErrInvalidInput, minDreamChars)
	}
	user, teller, err := s.prepare(ctx, userID, in.TellerID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, user, teller, models.FortuneDream, nil, nil, map[string]any{
		"description": description,
	})
}

func (s *FortuneService) Star(ctx context.Context, userID int64, in StarInput) (*PaidActionResult, error) {
	if in.BirthDate == "" {
		return nil, fmt.Errorf("%w: birth date is required", ErrInvalidInput)
	}
	if err := checkDate(in.BirthDate, "birth date"); err != nil {
		return nil, err
	}
	if in.BirthTime != "" {
		if _, err := time.Parse("15:04", in.BirthTime); err != nil {
			return nil, fmt.Errorf("%w: birth time must be HH:MM", ErrInvalidInput)
		}
	}
	user, teller, err := s.prepare(ctx, userID, in.TellerID)
	if err != nil {
		return nil, err
	}
	answers := map[string]any{
		"birth_date": in.BirthDate,
		"topic":      strings.TrimSpace(in.Topic),
	}
	if in.BirthTime != "" {
		answers["birth_time"] = in.BirthTime
	}
	if city := strings.TrimSpace(in.City); city != "" {
		answers["city"] = city
	}
	return s.run(ctx, user, teller, models.FortuneStar, nil, nil, answers)
}

func (s *FortuneService) List(ctx context.Context, userID int64, limit, offset int) ([]models.Fortune, error) {
	return s.fortunes.ListByUser(ctx, userID, limit, offset)
}

// Get returns a fortune owned by userID; other users' fortunes look missing.
func (s *FortuneService) Get(ctx context.Context, userID, id int64) (*models.Fortune, error) {
	f, err := s.fortunes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil || f.UserID != userID {
		return nil, repository.ErrFortuneNotFound
	}
	return f, nil
}

func (s *FortuneService) Delete(ctx context.Context, userID, id int64) error {
	return s.fortunes.DeleteForUser(ctx, id, userID)
}

func (s *FortuneService) prepare(ctx context.Context, userID int64, tellerID string) (*models.User, models.FortuneTeller, error) {
	teller, err := s.tellers.Get(tellerID)
	if err != nil {
		return nil, models.FortuneTeller{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, models.FortuneTeller{}, err
	}
	if user == nil {
		return nil, models.FortuneTeller{}, repository.ErrUserNotFound
	}
	return user, teller, nil
}

func (s *FortuneService) run(ctx context.Context, user *models.User, teller models.FortuneTeller, ft models.FortuneType, urls, images []string, answers map[string]any) (*PaidActionResult, error) {
	req := generator.Request{
		FortuneType: ft,
		Teller:      teller,
		User: generator.UserInfo{
			ID:        user.ID,
			Name:      user.Name,
			BirthDate: user.BirthDate,
			BirthTime: user.BirthTime,
			City:      user.City,
			Gender:    user.Gender,
		},
		Images:  images,
		Answers: answers,
	}
	metadata := make(map[string]any, len(answers))
	for k, v := range answers {
		metadata[k] = v
	}

	return s.ledger.PerformPaidAction(ctx, PaidAction{
		UserID:    user.ID,
		Type:      ft,
		Teller:    teller,
		ImageURLs: urls,
		Metadata:  metadata,
		Generate: func(ctx context.Context) (string, error) {
			res, err := s.generator.Generate(ctx, req)
			if err != nil {
				return "", err
			}
			return res.Fortune, nil
		},
	})
}

func checkDate(value, field string) error {
	if _, err := time.Parse("2006-01-02", value); err != nil {
		return fmt.Errorf("%w: %s must be YYYY-MM-DD", ErrInvalidInput, field)
	}
	return nil
}
