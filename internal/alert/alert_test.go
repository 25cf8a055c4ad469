package alert

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func TestCriticalLogsAndSends(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	sender := &fakeSender{}
	n := New(log, sender, 777)

	n.Critical(context.Background(), "refund failed", "user_id", int64(5), "amount", 25)

	if !strings.Contains(buf.String(), `"severity":"critical"`) {
		t.Errorf("log line missing severity: %s", buf.String())
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one telegram message, got %d", len(sender.sent))
	}
	got := sender.sent[0]
	if got.ChatID != 777 || !strings.Contains(got.Text, "refund failed") || !strings.Contains(got.Text, "user_id: 5") {
		t.Errorf("unexpected message %+v", got)
	}
}

func TestCriticalWithoutSenderOnlyLogs(t *testing.T) {
	var buf bytes.Buffer
	n := New(slog.New(slog.NewJSONHandler(&buf, nil)), nil, 0)
	n.Critical(context.Background(), "drift")
	if !strings.Contains(buf.String(), "drift") {
		t.Errorf("expected log output, got %q", buf.String())
	}
}

func TestCriticalSendErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	n := New(slog.New(slog.NewJSONHandler(&buf, nil)), &fakeSender{err: errors.New("boom")}, 1)
	n.Critical(context.Background(), "drift")
	if !strings.Contains(buf.String(), "send telegram alert") {
		t.Errorf("send failure not logged: %s", buf.String())
	}
}
