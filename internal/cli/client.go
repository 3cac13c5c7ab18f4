package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// DeadLetterResponse — запись DLQ из API.
type DeadLetterResponse struct {
	ID       string          `json:"id"`
	Queue    string          `json:"queue"`
	JobKind  string          `json:"job_kind"`
	JobData  json.RawMessage `json:"job_data"`
	Error    string          `json:"error"`
	Attempts int             `json:"attempts"`
	TenantID string          `json:"tenant_id"`
	MovedAt  string          `json:"moved_at"`
}

// QueueStatResponse — статистика DLQ по очереди и типу job.
type QueueStatResponse struct {
	Queue   string `json:"queue"`
	JobKind string `json:"job_kind"`
	Count   int    `json:"count"`
}

// BulkResultResponse — итог bulk-операции.
type BulkResultResponse struct {
	Succeeded []string          `json:"succeeded"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// LimiterBucketResponse — состояние bucket'а rate limiter'а.
type LimiterBucketResponse struct {
	Service       string  `json:"service"`
	TenantID      string  `json:"tenant_id,omitempty"`
	Tokens        float64 `json:"tokens"`
	BucketSize    float64 `json:"bucket_size"`
	RefillRate    float64 `json:"refill_rate"`
	Concurrent    int     `json:"concurrent"`
	MaxConcurrent int     `json:"max_concurrent"`
	Suspended     bool    `json:"suspended"`
}

// LimiterCheckResponse — проверка bucket'а без списания токена.
type LimiterCheckResponse struct {
	Bucket   LimiterBucketResponse `json:"bucket"`
	Admits   bool                  `json:"admits"`
	WaitTime int64                 `json:"wait_time"`
}

// BreakerResponse — snapshot circuit breaker'а.
type BreakerResponse struct {
	Name          string `json:"name"`
	State         string `json:"state"`
	Failures      int    `json:"consecutive_failures"`
	Successes     int    `json:"consecutive_successes"`
	OpenedAt      string `json:"opened_at,omitempty"`
	LastChangedAt string `json:"last_changed_at,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Bastion API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- DLQ ---

// ListDeadLetters возвращает записи DLQ с фильтрацией по очереди.
func (c *Client) ListDeadLetters(queue string, limit int) ([]DeadLetterResponse, error) {
	params := url.Values{}
	if queue != "" {
		params.Set("queue", queue)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}

	var entries []DeadLetterResponse
	err := c.list("/api/v1/dlq", params, &entries)
	return entries, err
}

// DeadLetterStats возвращает статистику DLQ.
func (c *Client) DeadLetterStats() ([]QueueStatResponse, error) {
	var stats []QueueStatResponse
	err := c.get("/api/v1/dlq/stats", &stats)
	return stats, err
}

// RetryDeadLetter перезапускает одну запись DLQ.
func (c *Client) RetryDeadLetter(id string) error {
	return c.post("/api/v1/dlq/"+id+"/retry", nil, nil)
}

// BulkRetry перезапускает набор записей DLQ.
func (c *Client) BulkRetry(ids []string) (*BulkResultResponse, error) {
	body := map[string][]string{"ids": ids}
	var result BulkResultResponse
	err := c.post("/api/v1/dlq/retry", body, &result)
	return &result, err
}

// BulkDelete удаляет набор записей DLQ.
func (c *Client) BulkDelete(ids []string) (*BulkResultResponse, error) {
	body := map[string][]string{"ids": ids}
	var result BulkResultResponse
	err := c.post("/api/v1/dlq/delete", body, &result)
	return &result, err
}

// --- Limiters ---

// ListLimiters возвращает все buckets.
func (c *Client) ListLimiters() ([]LimiterBucketResponse, error) {
	var buckets []LimiterBucketResponse
	err := c.list("/api/v1/limiters", nil, &buckets)
	return buckets, err
}

// CheckLimiter возвращает состояние bucket'а без списания токена.
func (c *Client) CheckLimiter(service, tenant string) (*LimiterCheckResponse, error) {
	var state LimiterCheckResponse
	err := c.get("/api/v1/limiters/"+service+"/"+tenant, &state)
	return &state, err
}

// ResetLimiter восстанавливает bucket к сконфигурированным параметрам.
func (c *Client) ResetLimiter(service, tenant string) error {
	return c.post("/api/v1/limiters/"+service+"/"+tenant+"/reset", nil, nil)
}

// EmergencyStopLimiter замораживает bucket до явного reset.
func (c *Client) EmergencyStopLimiter(service, tenant string) error {
	body := map[string]bool{"confirm": true}
	return c.post("/api/v1/limiters/"+service+"/"+tenant+"/stop", body, nil)
}

// --- Breakers ---

// ListBreakers возвращает snapshot всех breakers процесса API.
func (c *Client) ListBreakers() ([]BreakerResponse, error) {
	var breakers []BreakerResponse
	err := c.list("/api/v1/breakers", nil, &breakers)
	return breakers, err
}

// ResetBreaker принудительно закрывает breaker.
func (c *Client) ResetBreaker(name string) error {
	return c.post("/api/v1/breakers/"+name+"/reset", nil, nil)
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent || result == nil {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(dr.Data, result)
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
