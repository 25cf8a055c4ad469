package models

import "time"

type FortuneType string

const (
	FortuneCoffee FortuneType = "coffee"
	FortuneTarot  FortuneType = "tarot"
	FortuneCouple FortuneType = "couple"
	FortuneDream  FortuneType = "dream"
	FortuneStar   FortuneType = "star"
)

// FortuneTypes lists every supported reading in display order.
var FortuneTypes = []FortuneType{FortuneCoffee, FortuneTarot, FortuneCouple, FortuneDream, FortuneStar}

func (t FortuneType) Valid() bool {
	for _, ft := range FortuneTypes {
		if ft == t {
			return true
		}
	}
	return false
}

type TransactionType string

const (
	TxSignupGrant   TransactionType = "signup_grant"
	TxFortuneCharge TransactionType = "fortune_charge"
	TxFortuneRefund TransactionType = "fortune_refund"
	TxDailyBonus    TransactionType = "daily_bonus"
	TxAdminGrant    TransactionType = "admin_grant"
)

type NotificationType string

const (
	NotificationFortuneReady NotificationType = "fortune_ready"
	NotificationDailyBonus   NotificationType = "daily_bonus"
	NotificationAdminMessage NotificationType = "admin_message"
	NotificationSystem       NotificationType = "system"
)

type User struct {
	ID               int64                `json:"id"`
	Email            string               `json:"email"`
	PasswordHash     string               `json:"-"`
	Name             string               `json:"name"`
	BirthDate        string               `json:"birth_date,omitempty"`
	BirthTime        string               `json:"birth_time,omitempty"`
	City             string               `json:"city,omitempty"`
	Gender           string               `json:"gender,omitempty"`
	Coins            int                  `json:"coins"`
	TotalCoinsEarned int                  `json:"total_coins_earned"`
	TotalCoinsSpent  int                  `json:"total_coins_spent"`
	LastDailyBonus   *time.Time           `json:"last_daily_bonus,omitempty"`
	LastBonusDay     string               `json:"-"`
	Settings         NotificationSettings `json:"notification_settings"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

type NotificationSettings struct {
	FortuneReady  bool `json:"fortune_ready"`
	DailyBonus    bool `json:"daily_bonus"`
	AdminMessages bool `json:"admin_messages"`
}

// DefaultNotificationSettings has every category enabled.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{FortuneReady: true, DailyBonus: true, AdminMessages: true}
}

// Allows reports whether a notification of type t should be delivered.
// System notifications are never filtered.
func (s NotificationSettings) Allows(t NotificationType) bool {
	switch t {
	case NotificationFortuneReady:
		return s.FortuneReady
	case NotificationDailyBonus:
		return s.DailyBonus
	case NotificationAdminMessage:
		return s.AdminMessages
	default:
		return true
	}
}

type Balance struct {
	Coins            int        `json:"coins"`
	TotalCoinsEarned int        `json:"total_coins_earned"`
	TotalCoinsSpent  int        `json:"total_coins_spent"`
	LastDailyBonus   *time.Time `json:"last_daily_bonus,omitempty"`
}

// FortuneTeller is a price tier from the static catalog.
type FortuneTeller struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Emoji string `json:"emoji" yaml:"emoji"`
	Cost  int    `json:"cost" yaml:"cost"`
}

type Fortune struct {
	ID            int64          `json:"id"`
	UserID        int64          `json:"user_id"`
	Type          FortuneType    `json:"type"`
	TellerID      string         `json:"teller_id"`
	TellerName    string         `json:"teller_name"`
	Cost          int            `json:"cost"`
	Text          string         `json:"text"`
	ImageURLs     []string       `json:"image_urls,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	ReservationID string         `json:"-"`
	CreatedAt     time.Time      `json:"created_at"`
}

type CoinTransaction struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Type      TransactionType `json:"type"`
	Amount    int             `json:"amount"`
	Reference string          `json:"reference"`
	CreatedAt time.Time       `json:"created_at"`
}

type Notification struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Link      string           `json:"link,omitempty"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

type Admin struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Stats struct {
	Users           int                 `json:"users"`
	Fortunes        int                 `json:"fortunes"`
	FortunesToday   int                 `json:"fortunes_today"`
	FortunesPerType map[FortuneType]int `json:"fortunes_per_type"`
	CoinsEarned     int                 `json:"coins_earned"`
	CoinsSpent      int                 `json:"coins_spent"`
}
