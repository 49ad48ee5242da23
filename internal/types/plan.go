package types

import (
	ierr "github.com/forgia-ai/bank-convert-billing/internal/errors"
	"github.com/samber/lo"
)

// PlanTier identifies one of the three fixed plan tiers.
// Free is a lifetime quota; the paid tiers reset every billing period.
type PlanTier string

const (
	PlanTierFree PlanTier = "free"
	PlanTierLite PlanTier = "lite"
	PlanTierPro  PlanTier = "pro"
)

func (t PlanTier) String() string {
	return string(t)
}

func (t PlanTier) Validate() error {
	allowed := []PlanTier{
		PlanTierFree,
		PlanTierLite,
		PlanTierPro,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid plan tier").
			WithHint("Invalid plan tier").
			WithReportableDetails(map[string]any{
				"tier":          t,
				"allowed_tiers": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsPaid reports whether the tier is a paid subscription tier
func (t PlanTier) IsPaid() bool {
	return t == PlanTierLite || t == PlanTierPro
}
