// Package generator talks to the per-type webhooks that write fortune texts.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/config"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/models"
)

var (
	ErrNotConfigured = errors.New("no webhook configured for fortune type")
	ErrRejected      = errors.New("webhook reported failure")
	ErrEmptyFortune  = errors.New("webhook returned an empty fortune")
)

type Client struct {
	urls       map[string]string
	secret     string
	httpClient *http.Client
	log        *slog.Logger
}

type UserInfo struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	BirthDate string `json:"birth_date,omitempty"`
	BirthTime string `json:"birth_time,omitempty"`
	City      string `json:"city,omitempty"`
	Gender    string `json:"gender,omitempty"`
}

type Request struct {
	FortuneType models.FortuneType   `json:"fortune_type"`
	Teller      models.FortuneTeller `json:"teller"`
	User        UserInfo             `json:"user"`
	Images      []string             `json:"images,omitempty"`
	Answers     map[string]any       `json:"answers,omitempty"`
}

type Result struct {
	Fortune string
	Message string
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	timeout := cfg.GenerationTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Client{
		urls:   cfg.WebhookURLs,
		secret: cfg.WebhookSecret,
		httpClient: &http.Client{
			// the caller's deadline normally fires first
			Timeout: timeout + 5*time.Second,
		},
		log: log,
	}
}

// Generate posts req to the webhook for its fortune type and returns the text.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	endpoint := strings.TrimSpace(c.urls[string(req.FortuneType)])
	if endpoint == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, req.FortuneType)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.secret != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.secret)
	}

	c.log.Info("calling fortune webhook", "type", req.FortuneType, "user_id", req.User.ID, "images", len(req.Images))
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 300 {
		c.log.Error("fortune webhook failed", "type", req.FortuneType, "status", resp.StatusCode, "body", truncateBody(rawBody))
		return nil, fmt.Errorf("webhook error: status=%d body=%s", resp.StatusCode, truncateBody(rawBody))
	}

	var out struct {
		Success bool   `json:"success"`
		Fortune string `json:"fortune"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rawBody, &out); err != nil {
		return nil, fmt.Errorf("decode webhook response: %w (body=%s)", err, truncateBody(rawBody))
	}
	if !out.Success {
		return nil, fmt.Errorf("%w: %s", ErrRejected, out.Message)
	}
	if strings.TrimSpace(out.Fortune) == "" {
		return nil, ErrEmptyFortune
	}
	return &Result{Fortune: out.Fortune, Message: out.Message}, nil
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
