package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sunvolt/solarshop/internal/config"
)

type httpClient struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	client        *http.Client
}

func NewClient(cfg config.PaymentConfig) Client {
	return &httpClient{
		baseURL:       cfg.APIBaseURL,
		apiKey:        cfg.APIKey,
		webhookSecret: cfg.WebhookSecret,
		client:        &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *httpClient) CreateHostedSession(ctx context.Context, req SessionRequest) (*Session, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("payment: failed to encode session request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("payment: failed to build session request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("payment: session request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("payment: provider returned %d creating session: %s", resp.StatusCode, msg)
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("payment: failed to decode session response: %w", err)
	}

	return &session, nil
}

func (c *httpClient) VerifyWebhook(payload []byte, signatureHeader string) (*Event, error) {
	if err := verifySignature(payload, signatureHeader, c.webhookSecret, time.Now()); err != nil {
		return nil, err
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("payment: failed to decode webhook event: %w", err)
	}

	return &event, nil
}

func (c *httpClient) RetrieveSessionLineItems(ctx context.Context, sessionID string) ([]LineItem, error) {
	url := fmt.Sprintf("%s/v1/checkout/sessions/%s/line_items", c.baseURL, sessionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("payment: failed to build line items request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("payment: line items request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("payment: provider returned %d retrieving line items for session %s: %s", resp.StatusCode, sessionID, msg)
	}

	var result struct {
		Data []LineItem `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("payment: failed to decode line items response: %w", err)
	}

	return result.Data, nil
}
