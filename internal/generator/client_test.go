package generator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/config"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/models"
)

func newTestClient(url string) *Client {
	cfg := config.Config{
		GenerationTimeout: 2 * time.Second,
		WebhookSecret:     "s3cret",
		WebhookURLs:       map[string]string{"tarot": url},
	}
	return NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGenerateSendsPayloadAndParsesFortune(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer s3cret" {
			t.Errorf("missing bearer secret, got %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"fortune":"The Tower speaks of change."}`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Generate(context.Background(), Request{
		FortuneType: models.FortuneTarot,
		Teller:      models.FortuneTeller{ID: "luna", Name: "Luna", Cost: 25},
		User:        UserInfo{ID: 7, Name: "Ada"},
		Answers:     map[string]any{"question": "Will it work?"},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Fortune != "The Tower speaks of change." {
		t.Errorf("unexpected fortune %q", res.Fortune)
	}
	if got.FortuneType != models.FortuneTarot || got.Teller.ID != "luna" || got.User.ID != 7 || got.Answers["question"] != "Will it work?" {
		t.Errorf("unexpected payload %+v", got)
	}
}

func TestGenerateFailures(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantErr error
		substr  string
	}{
		{name: "server error", status: 500, body: "upstream exploded", substr: "status=500"},
		{name: "not json", status: 200, body: "<html>", substr: "decode webhook response"},
		{name: "success false", status: 200, body: `{"success":false,"message":"quota"}`, wantErr: ErrRejected},
		{name: "blank fortune", status: 200, body: `{"success":true,"fortune":"   "}`, wantErr: ErrEmptyFortune},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Generate(context.Background(), Request{FortuneType: models.FortuneTarot})
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
			if tc.substr != "" && !strings.Contains(err.Error(), tc.substr) {
				t.Errorf("error %q missing %q", err, tc.substr)
			}
		})
	}
}

func TestGenerateUnconfiguredType(t *testing.T) {
	_, err := newTestClient("http://unused").Generate(context.Background(), Request{FortuneType: models.FortuneDream})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestGenerateHonoursContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTestClient(srv.URL).Generate(ctx, Request{FortuneType: models.FortuneTarot})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestTruncateBody(t *testing.T) {
	long := strings.Repeat("x", 600)
	if got := truncateBody([]byte(long)); len(got) != 512+len("…") {
		t.Errorf("unexpected truncated length %d", len(got))
	}
}
