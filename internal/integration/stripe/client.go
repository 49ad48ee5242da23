package stripe

import (
	"github.com/stripe/stripe-go/v82"

	"github.com/forgia-ai/bank-convert-billing/internal/config"
	ierr "github.com/forgia-ai/bank-convert-billing/internal/errors"
	"github.com/forgia-ai/bank-convert-billing/internal/logger"
)

// Client handles Stripe API client setup and configuration
type Client struct {
	cfg    *config.Configuration
	logger *logger.Logger
}

// NewClient creates a new Stripe client
func NewClient(cfg *config.Configuration, logger *logger.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger,
	}
}

// API returns a configured Stripe API client
func (c *Client) API() (*stripe.Client, error) {
	if c.cfg.Stripe.SecretKey == "" {
		return nil, ierr.NewError("stripe secret key not configured").
			WithHint("Stripe is not configured for this deployment").
			Mark(ierr.ErrConfiguration)
	}
	return stripe.NewClient(c.cfg.Stripe.SecretKey, nil), nil
}

// WebhookSecret returns the endpoint signing secret
func (c *Client) WebhookSecret() string {
	return c.cfg.Stripe.WebhookSecret
}
