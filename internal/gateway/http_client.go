package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
)

// HTTPClientConfig configures the processor HTTP client.
type HTTPClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// Circuit breaker settings. The breaker opens after consecutive
	// transport failures so a degraded processor does not stall every sweep.
	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration
}

// DefaultHTTPClientConfig returns sensible defaults.
func DefaultHTTPClientConfig(baseURL, apiKey string) HTTPClientConfig {
	return HTTPClientConfig{
		BaseURL:            baseURL,
		APIKey:             apiKey,
		Timeout:            15 * time.Second,
		BreakerMaxRequests: 3,
		BreakerInterval:    time.Minute,
		BreakerTimeout:     30 * time.Second,
	}
}

// HTTPClient talks to the payment processor's REST API.
type HTTPClient struct {
	config  HTTPClientConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	logger  *slog.Logger
}

// NewHTTPClient creates a processor client with a circuit breaker.
func NewHTTPClient(config HTTPClientConfig, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: config.BreakerMaxRequests,
		Interval:    config.BreakerInterval,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("gateway circuit breaker state change",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &HTTPClient{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
		logger:  logger,
	}
}

type chargeRequest struct {
	AmountCents     int64  `json:"amount_cents"`
	CustomerRef     string `json:"customer_ref"`
	PaymentMethodID string `json:"payment_method_id"`
}

type chargeResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// Charge attempts a one-off charge.
func (c *HTTPClient) Charge(ctx context.Context, amountCents int64, customerRef, paymentMethodRef string) (*ChargeResult, error) {
	if paymentMethodRef == "" {
		return nil, ErrMissingPaymentMethod
	}

	body, err := c.post(ctx, "/v1/charges", chargeRequest{
		AmountCents:     amountCents,
		CustomerRef:     customerRef,
		PaymentMethodID: paymentMethodRef,
	})
	if err != nil {
		return nil, err
	}

	var resp chargeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode charge response: %w", err)
	}

	return &ChargeResult{
		ID:            resp.ID,
		Status:        ChargeStatus(resp.Status),
		FailureReason: resp.FailureReason,
	}, nil
}

type subscriptionRequest struct {
	CustomerRef string `json:"customer_ref"`
	AmountCents int64  `json:"amount_cents"`
	Interval    string `json:"interval"`
}

type subscriptionResponse struct {
	ID string `json:"id"`
}

// CreateSubscription opens a recurring charge.
func (c *HTTPClient) CreateSubscription(ctx context.Context, customerRef string, amountCents int64, interval BillingInterval) (string, error) {
	body, err := c.post(ctx, "/v1/subscriptions", subscriptionRequest{
		CustomerRef: customerRef,
		AmountCents: amountCents,
		Interval:    string(interval),
	})
	if err != nil {
		return "", err
	}

	var resp subscriptionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode subscription response: %w", err)
	}
	return resp.ID, nil
}

// CancelSubscription tears down a recurring charge.
func (c *HTTPClient) CancelSubscription(ctx context.Context, subscriptionID string) error {
	endpoint, err := url.JoinPath(c.config.BaseURL, "/v1/subscriptions", subscriptionID)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("cancel subscription failed: status %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	endpoint, err := url.JoinPath(c.config.BaseURL, path)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway request %s failed: status %d", path, resp.StatusCode)
	}
	return body, nil
}

func (c *HTTPClient) do(req *http.Request) (*http.Response, error) {
	return c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		// 5xx counts against the breaker; 4xx is a caller problem.
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, fmt.Errorf("gateway unavailable: status %d", resp.StatusCode)
		}
		return resp, nil
	})
}
