package engine

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// ComputeInvoice produces the itemized invoice for one organization and
// billing period. It is the engine's single entry point.
//
// The lifecycle phase is evaluated at the period end. Trial and cancelled
// periods produce a zero-charge invoice. Grace and suspended periods still
// compute charges (billing continues through grace; suspended amounts are kept
// for back-billing) and set the corresponding flags for the caller to enforce.
//
// Configuration errors abort the whole invoice: the engine never returns a
// partially computed result.
func ComputeInvoice(cfg PricingConfig, usage UsageFact) (Invoice, error) {
	if !usage.PeriodEnd.After(usage.PeriodStart) {
		return Invoice{}, invalidPeriod("period end must be after period start")
	}

	inv := Invoice{
		OrganizationID: usage.OrganizationID,
		PeriodStart:    usage.PeriodStart,
		PeriodEnd:      usage.PeriodEnd,
		UsageCharges:   map[ServiceType]decimal.Decimal{},
		TotalCharge:    decimal.Zero.Round(2),
	}

	inv.Phase = EvaluateLifecycle(cfg.Account, cfg.Settings, usage.PeriodEnd)
	switch inv.Phase {
	case PhaseTrial:
		inv.SubscriptionCharge = decimal.Zero.Round(2)
		inv.LineItems = []LineItem{{Kind: LineItemTrial, Description: "trial period, no charges"}}
		return inv, nil
	case PhaseCancelled:
		inv.SubscriptionCharge = decimal.Zero.Round(2)
		inv.LineItems = []LineItem{{Kind: LineItemCancelled, Description: "cancelled, no charges"}}
		return inv, nil
	case PhaseGrace:
		inv.InGracePeriod = true
	case PhaseSuspended:
		inv.Suspended = true
	}

	subscription, err := subscriptionCharge(cfg, usage)
	if err != nil {
		return Invoice{}, err
	}
	inv.SubscriptionCharge = subscription.Amount
	inv.TotalCharge = subscription.Amount
	inv.LineItems = append(inv.LineItems, subscription)

	for _, service := range sortedServices(usage.Consumed) {
		consumed := usage.Consumed[service]
		if consumed.IsZero() {
			continue
		}
		pricing := cfg.pricingFor(service)
		charge, err := RateService(service, consumed, pricing, cfg.Tiers[service], cfg.Settings, cfg.Override)
		if err != nil {
			return Invoice{}, err
		}
		inv.UsageCharges[service] = charge.Amount
		inv.TotalCharge = inv.TotalCharge.Add(charge.Amount)
		inv.LineItems = append(inv.LineItems, LineItem{
			Kind:        LineItemUsage,
			Service:     service,
			Description: fmt.Sprintf("%s usage", service),
			Quantity:    charge.Billable,
			UnitRate:    charge.UnitRate,
			Amount:      charge.Amount,
		})
	}

	return inv, nil
}

// subscriptionCharge computes the seat-based line item. The global annual
// discount multiplies the resolved annual rate unless an override supplied
// the rate: a negotiated override is already final and is not discounted on
// top.
func subscriptionCharge(cfg PricingConfig, usage UsageFact) (LineItem, error) {
	if usage.SeatCount < cfg.Plan.MinSeats {
		return LineItem{}, seatCountOutOfRange(usage.SeatCount, cfg.Plan.MinSeats, cfg.Plan.MaxSeats)
	}
	if cfg.Plan.MaxSeats != nil && usage.SeatCount > *cfg.Plan.MaxSeats {
		return LineItem{}, seatCountOutOfRange(usage.SeatCount, cfg.Plan.MinSeats, cfg.Plan.MaxSeats)
	}

	resolved, err := ResolveSubscriptionRate(usage.Cycle, cfg.Plan, cfg.Override)
	if err != nil {
		return LineItem{}, err
	}

	rate := resolved.Rate
	if usage.Cycle == BillingCycleAnnual && !resolved.FromOverride {
		discount := cfg.Settings.AnnualDiscountPercent.Div(oneHundred)
		rate = rate.Mul(decimal.NewFromInt(1).Sub(discount))
	}

	seats := decimal.NewFromInt(int64(usage.SeatCount))
	return LineItem{
		Kind:        LineItemSubscription,
		Description: fmt.Sprintf("%s seats, %s cycle", cfg.Plan.Name, usage.Cycle),
		Quantity:    seats,
		UnitRate:    rate,
		Amount:      rate.Mul(seats).Round(2),
	}, nil
}

func (c PricingConfig) pricingFor(service ServiceType) *UsagePricing {
	if pricing, ok := c.Pricing[service]; ok {
		return &pricing
	}
	return nil
}

// sortedServices fixes the iteration order so repeated runs emit line items
// in an identical order.
func sortedServices(consumed map[ServiceType]decimal.Decimal) []ServiceType {
	services := make([]ServiceType, 0, len(consumed))
	for service := range consumed {
		services = append(services, service)
	}
	sort.Slice(services, func(i, j int) bool { return services[i] < services[j] })
	return services
}
