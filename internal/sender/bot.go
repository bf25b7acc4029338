package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jwalitptl/herald/internal/config"
	"github.com/jwalitptl/herald/internal/model"
)

// BotSender delivers through a messaging-bot HTTP API. Server-side
// errors and timeouts are transient; client errors mean the chat is
// unreachable for good and retrying cannot help.
type BotSender struct {
	cfg    *config.SenderConfig
	client *http.Client
}

func NewBotSender(cfg *config.SenderConfig) *BotSender {
	return &BotSender{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type botMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

func (s *BotSender) Deliver(ctx context.Context, notification *model.Notification) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", s.cfg.BotAPIURL, s.cfg.BotToken)

	body, err := json.Marshal(botMessageRequest{
		ChatID: notification.UserID.String(),
		Text:   notification.Message,
	})
	if err != nil {
		return Permanent("marshal bot request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return Permanent("build bot request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Transient("bot API unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &TransientError{
			Reason:     "bot API rate limited",
			RetryAfter: retryAfterHeader(resp),
		}
	case resp.StatusCode >= 500:
		return Transient(fmt.Sprintf("bot API error: %s", resp.Status), nil)
	default:
		return Permanent(fmt.Sprintf("bot rejected message: %s", resp.Status), nil)
	}
}

func retryAfterHeader(resp *http.Response) time.Duration {
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
