package engine

import "github.com/shopspring/decimal"

// RateCategory names a resolvable rate: one of the subscription base rates or
// a metered service.
type RateCategory string

const (
	CategoryMonthlyBase RateCategory = "monthly_base"
	CategoryAnnualBase  RateCategory = "annual_base"
)

// CategoryForService maps a service type to its rate category.
func CategoryForService(service ServiceType) RateCategory {
	return RateCategory(service)
}

// ResolvedRate is the outcome of rate resolution. FromOverride records whether
// the rate came from an organization override, which suppresses both tier
// ladders and the global annual discount downstream.
type ResolvedRate struct {
	Rate         decimal.Decimal
	FromOverride bool
}

// ResolveSubscriptionRate resolves the per-seat base rate for a billing cycle.
// Precedence: organization override, then the plan's configured base price.
// A plan with no configured price for the cycle is a MissingRate error, never
// an implicit zero.
func ResolveSubscriptionRate(cycle BillingCycle, plan Plan, override *Override) (ResolvedRate, error) {
	category := CategoryMonthlyBase
	var overrideRate, planRate *decimal.Decimal
	if cycle == BillingCycleAnnual {
		category = CategoryAnnualBase
		planRate = plan.BasePriceAnnual
		if override != nil {
			overrideRate = override.AnnualRate
		}
	} else {
		planRate = plan.BasePriceMonthly
		if override != nil {
			overrideRate = override.MonthlyRate
		}
	}

	if overrideRate != nil {
		return ResolvedRate{Rate: *overrideRate, FromOverride: true}, nil
	}
	if planRate != nil {
		return ResolvedRate{Rate: *planRate}, nil
	}
	return ResolvedRate{}, missingRate(category)
}

// ResolveUsageRate resolves the flat per-unit rate for a metered service.
// Precedence: organization override, then the service's configured base rate,
// then the global default-rate setting as a last resort.
func ResolveUsageRate(service ServiceType, pricing *UsagePricing, settings BillingSettings, override *Override) (ResolvedRate, error) {
	if rate, ok := override.ServiceRate(service); ok {
		return ResolvedRate{Rate: rate, FromOverride: true}, nil
	}
	if pricing != nil {
		return ResolvedRate{Rate: pricing.BaseRate}, nil
	}
	if rate, ok := settings.DefaultRates[service]; ok {
		return ResolvedRate{Rate: rate}, nil
	}
	return ResolvedRate{}, missingRate(CategoryForService(service))
}
