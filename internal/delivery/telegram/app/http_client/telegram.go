// internal/delivery/telegram/app/http_client/telegram.go
package http_client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"competitor-price-monitor/pkg/logger"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL    = "https://api.telegram.org"
	defaultRetryAfter = 5
)

// APIError - ответ Telegram с ok=false
type APIError struct {
	Code        int
	Description string
	RetryAfter  int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API error %d: %s", e.Code, e.Description)
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
	Result struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// TelegramClient клиент Bot API поверх resty
type TelegramClient struct {
	client    *resty.Client
	token     string
	parseMode string
	wait      func(ctx context.Context, d time.Duration) error
}

// NewTelegramClient создает новый клиент Telegram
func NewTelegramClient(baseURL, token, parseMode string, timeout time.Duration) *TelegramClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &TelegramClient{
		client:    client,
		token:     token,
		parseMode: parseMode,
		wait:      sleepContext,
	}
}

// SendMessage отправляет текст в чат. При 429 делает одну повторную попытку
// после паузы retry_after.
func (c *TelegramClient) SendMessage(ctx context.Context, chatID, text string) (int64, error) {
	payload := map[string]interface{}{
		"chat_id":                  chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	}
	if c.parseMode != "" {
		payload["parse_mode"] = c.parseMode
	}

	id, err := c.call(ctx, "sendMessage", payload)
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.Code != http.StatusTooManyRequests {
		return id, err
	}

	logger.Warn("⚠️ Telegram API rate limit, waiting %d seconds", apiErr.RetryAfter)
	if err := c.wait(ctx, time.Duration(apiErr.RetryAfter)*time.Second); err != nil {
		return 0, err
	}
	return c.call(ctx, "sendMessage", payload)
}

// GetMe проверяет токен бота
func (c *TelegramClient) GetMe(ctx context.Context) error {
	_, err := c.call(ctx, "getMe", nil)
	return err
}

func (c *TelegramClient) call(ctx context.Context, method string, payload map[string]interface{}) (int64, error) {
	req := c.client.R().SetContext(ctx)
	if payload != nil {
		req.SetBody(payload)
	}

	resp, err := req.Post(fmt.Sprintf("/bot%s/%s", c.token, method))
	if err != nil {
		return 0, fmt.Errorf("failed to send request to %s: %w", method, err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return 0, fmt.Errorf("failed to parse %s response (http %d): %w", method, resp.StatusCode(), err)
	}

	if !parsed.OK {
		apiErr := &APIError{Code: parsed.ErrorCode, Description: parsed.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode()
		}
		if apiErr.Code == http.StatusTooManyRequests {
			apiErr.RetryAfter = parsed.Parameters.RetryAfter
			if apiErr.RetryAfter <= 0 {
				apiErr.RetryAfter = defaultRetryAfter
			}
		}
		return 0, apiErr
	}

	return parsed.Result.MessageID, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
