package plan

import (
	"github.com/shopspring/decimal"

	"github.com/forgia-ai/bank-convert-billing/internal/config"
	ierr "github.com/forgia-ai/bank-convert-billing/internal/errors"
	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

// Plan is one entry of the static plan catalog.
type Plan struct {
	Tier      types.PlanTier  `json:"tier"`
	PageLimit int             `json:"page_limit"`
	PriceUSD  decimal.Decimal `json:"price_usd"`
	// Monthly is false only for the free tier, whose quota is a lifetime
	// allowance rather than a rolling window
	Monthly bool `json:"monthly"`
}

type productKey struct {
	provider  types.PaymentProvider
	productID string
}

// Registry is the static mapping from plan tier to quota, price and billing
// cadence, plus the provider product catalog. It is total over the tier enum;
// anything outside it is a configuration error, never a silent default.
type Registry struct {
	plans     map[types.PlanTier]Plan
	byProduct map[productKey]types.PlanTier
	byTier    map[productKey]string
}

// NewRegistry builds the registry from configuration. Limits and prices fall
// back to built-in defaults via config defaults; the provider product IDs
// come from the Stripe and Polar sections.
func NewRegistry(cfg *config.Configuration) (*Registry, error) {
	litePrice, err := decimal.NewFromString(cfg.Plans.LitePriceUSD)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid lite plan price").
			Mark(ierr.ErrConfiguration)
	}
	proPrice, err := decimal.NewFromString(cfg.Plans.ProPriceUSD)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid pro plan price").
			Mark(ierr.ErrConfiguration)
	}

	r := &Registry{
		plans: map[types.PlanTier]Plan{
			types.PlanTierFree: {
				Tier:      types.PlanTierFree,
				PageLimit: cfg.Plans.FreePageLimit,
				PriceUSD:  decimal.Zero,
				Monthly:   false,
			},
			types.PlanTierLite: {
				Tier:      types.PlanTierLite,
				PageLimit: cfg.Plans.LitePageLimit,
				PriceUSD:  litePrice,
				Monthly:   true,
			},
			types.PlanTierPro: {
				Tier:      types.PlanTierPro,
				PageLimit: cfg.Plans.ProPageLimit,
				PriceUSD:  proPrice,
				Monthly:   true,
			},
		},
		byProduct: make(map[productKey]types.PlanTier),
		byTier:    make(map[productKey]string),
	}

	r.registerProduct(types.PaymentProviderStripe, cfg.Stripe.LitePriceID, types.PlanTierLite)
	r.registerProduct(types.PaymentProviderStripe, cfg.Stripe.ProPriceID, types.PlanTierPro)
	r.registerProduct(types.PaymentProviderPolar, cfg.Polar.LiteProductID, types.PlanTierLite)
	r.registerProduct(types.PaymentProviderPolar, cfg.Polar.ProProductID, types.PlanTierPro)

	return r, nil
}

func (r *Registry) registerProduct(provider types.PaymentProvider, productID string, tier types.PlanTier) {
	if productID == "" {
		return
	}
	r.byProduct[productKey{provider: provider, productID: productID}] = tier
	r.byTier[productKey{provider: provider, productID: string(tier)}] = productID
}

// Get returns the full plan entry for a tier.
func (r *Registry) Get(tier types.PlanTier) (Plan, error) {
	p, ok := r.plans[tier]
	if !ok {
		return Plan{}, ierr.NewError("unknown plan tier").
			WithHint("Plan tier is not present in the catalog").
			WithReportableDetails(map[string]any{
				"tier": tier,
			}).
			Mark(ierr.ErrConfiguration)
	}
	return p, nil
}

// LimitFor returns the page quota for a tier.
func (r *Registry) LimitFor(tier types.PlanTier) (int, error) {
	p, err := r.Get(tier)
	if err != nil {
		return 0, err
	}
	return p.PageLimit, nil
}

// IsRolling reports whether the tier's quota resets on a rolling monthly
// window. False only for the free tier's lifetime allowance.
func (r *Registry) IsRolling(tier types.PlanTier) (bool, error) {
	p, err := r.Get(tier)
	if err != nil {
		return false, err
	}
	return p.Monthly, nil
}

// PriceFor returns the monthly price for a tier in USD.
func (r *Registry) PriceFor(tier types.PlanTier) (decimal.Decimal, error) {
	p, err := r.Get(tier)
	if err != nil {
		return decimal.Zero, err
	}
	return p.PriceUSD, nil
}

// TierForProduct resolves a provider product/price identifier to a plan tier.
// An unknown product is a catalog gap the operator has to fix.
func (r *Registry) TierForProduct(provider types.PaymentProvider, productID string) (types.PlanTier, error) {
	tier, ok := r.byProduct[productKey{provider: provider, productID: productID}]
	if !ok {
		return "", ierr.NewError("unknown provider product").
			WithHint("Product is not mapped to any plan tier").
			WithReportableDetails(map[string]any{
				"provider":   provider,
				"product_id": productID,
			}).
			Mark(ierr.ErrConfiguration)
	}
	return tier, nil
}

// ProductFor resolves a plan tier to the provider product/price identifier
// used when creating a checkout.
func (r *Registry) ProductFor(provider types.PaymentProvider, tier types.PlanTier) (string, error) {
	productID, ok := r.byTier[productKey{provider: provider, productID: string(tier)}]
	if !ok {
		return "", ierr.NewError("plan tier has no product for provider").
			WithHint("Plan tier is not purchasable through this provider").
			WithReportableDetails(map[string]any{
				"provider": provider,
				"tier":     tier,
			}).
			Mark(ierr.ErrConfiguration)
	}
	return productID, nil
}
