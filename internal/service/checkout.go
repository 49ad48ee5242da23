package service

import (
	"context"

	stripeapi "github.com/stripe/stripe-go/v82"

	"github.com/forgia-ai/bank-convert-billing/internal/api/dto"
	ierr "github.com/forgia-ai/bank-convert-billing/internal/errors"
	"github.com/forgia-ai/bank-convert-billing/internal/integration/polar"
	"github.com/forgia-ai/bank-convert-billing/internal/integration/stripe"
	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

// metadata keys round-tripped through the provider back to the webhook
const (
	metadataUserID    = "user_id"
	metadataProductID = "product_id"
)

// CheckoutService creates provider-hosted checkout sessions for paid plan
// tiers. The free tier is never purchasable.
type CheckoutService interface {
	CreateCheckout(ctx context.Context, userID string, req *dto.CreateCheckoutRequest) (*dto.CheckoutResponse, error)
}

type checkoutService struct {
	ServiceParams
	stripeClient *stripe.Client
	polarClient  *polar.Client
}

func NewCheckoutService(params ServiceParams, stripeClient *stripe.Client, polarClient *polar.Client) CheckoutService {
	return &checkoutService{
		ServiceParams: params,
		stripeClient:  stripeClient,
		polarClient:   polarClient,
	}
}

func (s *checkoutService) CreateCheckout(ctx context.Context, userID string, req *dto.CreateCheckoutRequest) (*dto.CheckoutResponse, error) {
	if userID == "" {
		return nil, ierr.NewError("user id is required").
			WithHint("User ID is required").
			Mark(ierr.ErrValidation)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !req.PlanTier.IsPaid() {
		return nil, ierr.NewError("plan tier is not purchasable").
			WithHint("Only paid plan tiers can be checked out").
			WithReportableDetails(map[string]any{
				"plan_tier": req.PlanTier,
			}).
			Mark(ierr.ErrValidation)
	}

	productID, err := s.Registry.ProductFor(req.Provider, req.PlanTier)
	if err != nil {
		return nil, err
	}

	switch req.Provider {
	case types.PaymentProviderStripe:
		return s.createStripeCheckout(ctx, userID, productID)
	case types.PaymentProviderPolar:
		return s.createPolarCheckout(ctx, userID, productID)
	default:
		return nil, ierr.NewError("unsupported payment provider").
			WithHint("Unsupported payment provider").
			WithReportableDetails(map[string]any{
				"provider": req.Provider,
			}).
			Mark(ierr.ErrValidation)
	}
}

func (s *checkoutService) createStripeCheckout(ctx context.Context, userID string, priceID string) (*dto.CheckoutResponse, error) {
	api, err := s.stripeClient.API()
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		metadataUserID:    userID,
		metadataProductID: priceID,
	}
	params := &stripeapi.CheckoutSessionCreateParams{
		Mode: stripeapi.String(string(stripeapi.CheckoutSessionModeSubscription)),
		LineItems: []*stripeapi.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripeapi.String(priceID),
				Quantity: stripeapi.Int64(1),
			},
		},
		ClientReferenceID: stripeapi.String(userID),
		Metadata:          metadata,
		SubscriptionData: &stripeapi.CheckoutSessionCreateSubscriptionDataParams{
			Metadata: metadata,
		},
		SuccessURL: stripeapi.String(s.Config.Stripe.SuccessURL),
		CancelURL:  stripeapi.String(s.Config.Stripe.CancelURL),
	}

	session, err := api.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		s.Logger.Errorw("failed to create stripe checkout session",
			"user_id", userID,
			"price_id", priceID,
			"error", err,
		)
		return nil, ierr.WithError(err).
			WithHint("Failed to create checkout session").
			Mark(ierr.ErrHTTPClient)
	}

	return &dto.CheckoutResponse{
		Provider:    types.PaymentProviderStripe,
		SessionID:   session.ID,
		CheckoutURL: session.URL,
	}, nil
}

func (s *checkoutService) createPolarCheckout(ctx context.Context, userID string, productID string) (*dto.CheckoutResponse, error) {
	checkout, err := s.polarClient.CreateCheckout(ctx, &polar.CheckoutRequest{
		Products:           []string{productID},
		SuccessURL:         s.Config.Polar.SuccessURL,
		ExternalCustomerID: userID,
		Metadata: map[string]string{
			metadataUserID:    userID,
			metadataProductID: productID,
		},
	})
	if err != nil {
		s.Logger.Errorw("failed to create polar checkout",
			"user_id", userID,
			"product_id", productID,
			"error", err,
		)
		return nil, err
	}

	return &dto.CheckoutResponse{
		Provider:    types.PaymentProviderPolar,
		SessionID:   checkout.ID,
		CheckoutURL: checkout.URL,
	}, nil
}
