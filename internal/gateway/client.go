package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shaiso/Bastion/internal/domain"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseBody = 1 * 1024 * 1024 // 1 MB
)

// ClientConfig — общая конфигурация HTTP-клиента внешнего сервиса.
type ClientConfig struct {
	// BaseURL — базовый URL API, без завершающего слэша.
	BaseURL string

	// APIKey — bearer-токен авторизации. Пустой — без авторизации.
	APIKey string

	// Timeout — таймаут одного запроса.
	Timeout time.Duration
}

// client — общий JSON HTTP транспорт клиентов.
type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newClient(cfg ClientConfig) (*client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// doJSON выполняет запрос с JSON телом и декодирует JSON ответ в out.
// out может быть nil, если тело ответа не нужно.
//
// Статусы вне 2xx превращаются в ошибку: 4xx (кроме 408 и 429) —
// необратимый отказ внешнего сервиса, помечается domain.NonRetryable;
// остальные статусы и сетевые сбои — временные, подлежат повтору.
func (c *client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		cause := fmt.Errorf("%w: %s %s: %d: %s",
			ErrUnexpectedStatus, method, path, resp.StatusCode, truncate(data, 256))
		if permanentStatus(resp.StatusCode) {
			return domain.NonRetryable(cause)
		}
		return cause
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// permanentStatus возвращает true для статусов, повтор которых бессмыслен.
func permanentStatus(code int) bool {
	if code < 400 || code > 499 {
		return false
	}
	// Таймаут запроса и rate limit — временные даже в диапазоне 4xx.
	return code != http.StatusRequestTimeout && code != http.StatusTooManyRequests
}

func truncate(data []byte, limit int) string {
	if len(data) <= limit {
		return string(data)
	}
	return string(data[:limit]) + "..."
}
