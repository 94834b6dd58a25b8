// Package payments fronts the billing provider. The concrete provider SDK
// lives server-side behind our payments API; this client only creates and
// confirms one-off intents.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/domain"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/ports"
)

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{baseURL: cfg.BaseURL, apiKey: cfg.APIKey, client: &http.Client{Timeout: timeout}}
}

func (c *Client) CreatePaymentIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (ports.PaymentIntent, error) {
	body := map[string]any{
		"amount_cents": amountCents,
		"currency":     currency,
		"metadata":     metadata,
	}
	var out struct {
		ClientSecret string `json:"client_secret"`
		AccountID    string `json:"account_id"`
	}
	if err := c.post(ctx, "/v1/payment-intents", body, &out); err != nil {
		return ports.PaymentIntent{}, err
	}
	return ports.PaymentIntent{ClientSecret: out.ClientSecret, AccountID: out.AccountID}, nil
}

func (c *Client) ConfirmPayment(ctx context.Context, clientSecret string) error {
	return c.post(ctx, "/v1/payment-intents/confirm", map[string]string{"client_secret": clientSecret}, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDependencyUnavailable, err)
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("payments service status %d: %s", resp.StatusCode, bytes.TrimSpace(payload))
	}
	if out != nil && len(payload) > 0 {
		return json.Unmarshal(payload, out)
	}
	return nil
}
