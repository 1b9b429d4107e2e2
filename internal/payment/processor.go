// Package payment реализует отдельный сервис приёма платежей по картам и PayPal.
// Его журнал платежей никак не сверяется с пожертвованиями основной платформы.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ProcessorClient инкапсулирует HTTP-взаимодействие с внешним платёжным процессором.
type ProcessorClient struct {
	baseURL    string
	httpClient *http.Client
}

// ChargeResult описывает ответ процессора на запрос списания.
type ChargeResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type chargeRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Method   string `json:"method"`
	Email    string `json:"email"`
}

// NewProcessorClient создаёт HTTP-клиент платёжного процессора по указанному адресу.
// Временные сетевые сбои повторяются автоматически.
func NewProcessorClient(baseURL string) *ProcessorClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = nil

	return &ProcessorClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: rc.StandardClient(),
	}
}

// Charge выполняет списание указанной суммы через платёжный процессор.
func (c *ProcessorClient) Charge(ctx context.Context, amount int64, method, email string) (*ChargeResult, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("payment processor not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, err := json.Marshal(chargeRequest{
		Amount:   amount,
		Currency: "usd",
		Method:   method,
		Email:    email,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal charge: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/charges", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result ChargeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &result, nil
}
