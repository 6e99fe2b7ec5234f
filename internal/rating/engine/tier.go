package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ChargeForQuantity prices a billable quantity against a volume-discount tier
// ladder using marginal (progressive) tiering: each band charges its own rate
// only for the units that fall inside it, so the charge is continuous across
// band boundaries.
//
// The ladder must partition [0, ∞): sorted by MinQuantity, gap-free and
// overlap-free, with every band bounded except optionally the last. The
// returned charge is unrounded; callers round once at the end of the full
// computation.
func ChargeForQuantity(service ServiceType, quantity decimal.Decimal, tiers []PricingTier) (decimal.Decimal, error) {
	if quantity.IsNegative() {
		return decimal.Zero, invalidQuantity(service, "negative quantity")
	}
	ladder, err := validateLadder(service, tiers)
	if err != nil {
		return decimal.Zero, err
	}

	charge := decimal.Zero
	for _, tier := range ladder {
		if quantity.LessThanOrEqual(tier.MinQuantity) {
			break
		}
		bandEnd := quantity
		if tier.MaxQuantity != nil && tier.MaxQuantity.LessThan(bandEnd) {
			bandEnd = *tier.MaxQuantity
		}
		bandQty := bandEnd.Sub(tier.MinQuantity)
		charge = charge.Add(bandQty.Mul(tier.RatePerUnit))
	}

	last := ladder[len(ladder)-1]
	if last.MaxQuantity != nil && quantity.GreaterThan(*last.MaxQuantity) {
		return decimal.Zero, unboundedQuantity(service)
	}
	return charge, nil
}

// validateLadder checks the partition invariant defensively rather than
// trusting admin-entered rows. It returns a sorted copy and never mutates
// the input.
func validateLadder(service ServiceType, tiers []PricingTier) ([]PricingTier, error) {
	if len(tiers) == 0 {
		return nil, invalidTierLadder(service, "empty ladder")
	}

	ladder := make([]PricingTier, len(tiers))
	copy(ladder, tiers)
	sort.SliceStable(ladder, func(i, j int) bool {
		return ladder[i].MinQuantity.LessThan(ladder[j].MinQuantity)
	})

	if !ladder[0].MinQuantity.IsZero() {
		return nil, invalidTierLadder(service, "first tier must start at zero")
	}
	for i, tier := range ladder {
		if tier.RatePerUnit.IsNegative() {
			return nil, invalidTierLadder(service, "negative rate per unit")
		}
		if tier.MaxQuantity == nil {
			if i != len(ladder)-1 {
				return nil, invalidTierLadder(service, "unbounded tier before the last")
			}
			continue
		}
		if tier.MaxQuantity.LessThanOrEqual(tier.MinQuantity) {
			return nil, invalidTierLadder(service, "tier upper bound not above lower bound")
		}
		if i < len(ladder)-1 && !ladder[i+1].MinQuantity.Equal(*tier.MaxQuantity) {
			if ladder[i+1].MinQuantity.GreaterThan(*tier.MaxQuantity) {
				return nil, invalidTierLadder(service, "gap between tiers")
			}
			return nil, invalidTierLadder(service, "overlapping tiers")
		}
	}
	return ladder, nil
}
