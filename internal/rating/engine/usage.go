package engine

import "github.com/shopspring/decimal"

// ServiceCharge is the rated outcome for one metered service.
type ServiceCharge struct {
	Service  ServiceType
	Consumed decimal.Decimal
	// Billable is consumption after the free-tier allowance.
	Billable decimal.Decimal
	// UnitRate is set for flat and override pricing; zero for tiered charges,
	// where no single per-unit rate applies.
	UnitRate decimal.Decimal
	Amount   decimal.Decimal
}

// RateService prices one service's consumption for a period. The free-tier
// allowance is consumed first; an organization override then substitutes the
// whole rate (tiers bypassed); otherwise the configured model applies. An
// inactive UsagePricing row is an administrative kill-switch: the service is
// not billed at all.
//
// The returned amount is rounded to the currency minor unit (2 places,
// half-up), applied once here at the end of the computation.
func RateService(
	service ServiceType,
	consumed decimal.Decimal,
	pricing *UsagePricing,
	tiers []PricingTier,
	settings BillingSettings,
	override *Override,
) (ServiceCharge, error) {
	if consumed.IsNegative() {
		return ServiceCharge{}, invalidQuantity(service, "negative consumption")
	}

	charge := ServiceCharge{Service: service, Consumed: consumed}
	if pricing != nil && !pricing.Active {
		charge.Amount = decimal.Zero.Round(2)
		return charge, nil
	}

	billable := consumed
	if pricing != nil {
		billable = consumed.Sub(pricing.FreeTierAmount)
		if billable.IsNegative() {
			billable = decimal.Zero
		}
	}
	charge.Billable = billable

	resolved, err := ResolveUsageRate(service, pricing, settings, override)
	if err != nil {
		return ServiceCharge{}, err
	}

	if resolved.FromOverride || pricing == nil || pricing.Model != PricingModelTiered {
		charge.UnitRate = resolved.Rate
		charge.Amount = billable.Mul(resolved.Rate).Round(2)
		return charge, nil
	}

	amount, err := ChargeForQuantity(service, billable, tiers)
	if err != nil {
		return ServiceCharge{}, err
	}
	charge.Amount = amount.Round(2)
	return charge, nil
}
