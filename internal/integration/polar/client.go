package polar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/forgia-ai/bank-convert-billing/internal/config"
	ierr "github.com/forgia-ai/bank-convert-billing/internal/errors"
	"github.com/forgia-ai/bank-convert-billing/internal/logger"
)

const defaultRequestTimeout = 15 * time.Second

// Client is a minimal Polar REST API client covering checkout creation.
// Transient failures retry with backoff; 4xx responses do not.
type Client struct {
	cfg        *config.Configuration
	httpClient *retryablehttp.Client
	logger     *logger.Logger
}

func NewClient(cfg *config.Configuration, logger *logger.Logger) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 3
	httpClient.HTTPClient.Timeout = defaultRequestTimeout
	httpClient.Logger = nil

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
	}
}

// CheckoutRequest is the Polar checkout creation payload
type CheckoutRequest struct {
	Products           []string          `json:"products"`
	SuccessURL         string            `json:"success_url,omitempty"`
	ExternalCustomerID string            `json:"external_customer_id,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// Checkout is the subset of the Polar checkout object we consume
type Checkout struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCheckout creates a hosted checkout session on Polar
func (c *Client) CreateCheckout(ctx context.Context, req *CheckoutRequest) (*Checkout, error) {
	if c.cfg.Polar.AccessToken == "" {
		return nil, ierr.NewError("polar access token not configured").
			WithHint("Polar is not configured for this deployment").
			Mark(ierr.ErrConfiguration)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to encode checkout request").
			Mark(ierr.ErrSystem)
	}

	url := fmt.Sprintf("%s/v1/checkouts/", c.cfg.Polar.APIBaseURL)
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to build checkout request").
			Mark(ierr.ErrSystem)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.Polar.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Polar checkout request failed").
			Mark(ierr.ErrHTTPClient)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to read Polar response").
			Mark(ierr.ErrHTTPClient)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Errorw("polar checkout creation failed",
			"status", resp.StatusCode,
			"body", string(respBody),
		)
		return nil, ierr.NewError("polar checkout creation failed").
			WithHint("Unable to create Polar checkout").
			WithReportableDetails(map[string]any{
				"status": resp.StatusCode,
			}).
			Mark(ierr.ErrHTTPClient)
	}

	var checkout Checkout
	if err := json.Unmarshal(respBody, &checkout); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid Polar checkout response").
			Mark(ierr.ErrHTTPClient)
	}

	return &checkout, nil
}
