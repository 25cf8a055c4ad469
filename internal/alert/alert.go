// Package alert reaches the operators when money may have gone astray.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the slice of *tgbotapi.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Notifier struct {
	log    *slog.Logger
	sender Sender
	chatID int64
}

// New returns a notifier that always logs and, when sender is non-nil, also
// posts to the given Telegram chat.
func New(log *slog.Logger, sender Sender, chatID int64) *Notifier {
	return &Notifier{log: log, sender: sender, chatID: chatID}
}

// NewTelegram connects the bot used for operator alerts. An empty token gives
// a log-only notifier.
func NewTelegram(log *slog.Logger, token string, chatID int64) (*Notifier, error) {
	if token == "" {
		return New(log, nil, 0), nil
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram alert bot: %w", err)
	}
	return New(log, api, chatID), nil
}

// Critical records msg with severity=critical. attrs are slog-style key/value pairs.
func (n *Notifier) Critical(ctx context.Context, msg string, attrs ...any) {
	n.log.ErrorContext(ctx, msg, append([]any{"severity", "critical"}, attrs...)...)
	if n.sender == nil {
		return
	}
	if _, err := n.sender.Send(tgbotapi.NewMessage(n.chatID, format(msg, attrs))); err != nil {
		n.log.Error("send telegram alert", "err", err)
	}
}

func format(msg string, attrs []any) string {
	var b strings.Builder
	b.WriteString("CRITICAL: ")
	b.WriteString(msg)
	for i := 0; i+1 < len(attrs); i += 2 {
		fmt.Fprintf(&b, "\n%v: %v", attrs[i], attrs[i+1])
	}
	return b.String()
}
