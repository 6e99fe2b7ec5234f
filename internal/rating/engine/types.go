// Package engine computes invoices from immutable pricing snapshots and
// aggregated usage. Every function is pure: no I/O, no clocks, no hidden
// state, so identical inputs always produce an identical invoice.
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// ServiceType identifies a metered service.
type ServiceType string

const (
	ServiceSMS     ServiceType = "sms"
	ServiceAI      ServiceType = "ai"
	ServiceStorage ServiceType = "storage"
)

// PricingModel selects how billable usage is priced.
type PricingModel string

const (
	PricingModelFlat   PricingModel = "flat"
	PricingModelTiered PricingModel = "tiered"
)

// BillingCycle is the subscription period length.
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleAnnual  BillingCycle = "annual"
)

// Plan is the subscription plan snapshot. Base prices are nil when the plan
// has no configured rate for that cycle; a nil rate is a configuration error
// at resolve time, never an implicit zero.
type Plan struct {
	ID               string
	Name             string
	DisplayName      string
	BasePriceMonthly *decimal.Decimal
	BasePriceAnnual  *decimal.Decimal
	MinSeats         uint32
	MaxSeats         *uint32
	Active           bool
}

// UsagePricing configures rating for one service type.
type UsagePricing struct {
	ServiceType    ServiceType
	Model          PricingModel
	BaseRate       decimal.Decimal
	Unit           string
	FreeTierAmount decimal.Decimal
	Active         bool
}

// PricingTier is one band of a volume-discount ladder. MaxQuantity nil marks
// the open-ended final band.
type PricingTier struct {
	Name        string
	MinQuantity decimal.Decimal
	MaxQuantity *decimal.Decimal
	RatePerUnit decimal.Decimal
}

// BillingSettings are the global billing knobs, loaded once per invocation
// into typed fields so no call site reads the key-value store by string.
type BillingSettings struct {
	TrialPeriodDays       int
	GracePeriodDays       int
	AnnualDiscountPercent decimal.Decimal
	AutoSuspendOnFailure  bool

	// DefaultRates is the last-resort flat rate per service, used only when
	// no UsagePricing row exists for that service.
	DefaultRates map[ServiceType]decimal.Decimal
}

// Override carries an organization's negotiated rates. A key absent from
// ServiceRates (or a nil subscription rate) means "use the default"; a
// present zero is an explicit zero rate.
type Override struct {
	MonthlyRate  *decimal.Decimal
	AnnualRate   *decimal.Decimal
	ServiceRates map[ServiceType]decimal.Decimal
}

// ServiceRate reports the override rate for a service and whether one is set.
func (o *Override) ServiceRate(service ServiceType) (decimal.Decimal, bool) {
	if o == nil || o.ServiceRates == nil {
		return decimal.Decimal{}, false
	}
	rate, ok := o.ServiceRates[service]
	return rate, ok
}

// AccountState holds the lifecycle timestamps for the billing subject.
type AccountState struct {
	CreatedAt           time.Time
	LastPaymentFailedAt *time.Time
	Cancelled           bool
}

// PricingConfig is the immutable configuration snapshot for one billing run.
type PricingConfig struct {
	Plan     Plan
	Pricing  map[ServiceType]UsagePricing
	Tiers    map[ServiceType][]PricingTier
	Settings BillingSettings
	Override *Override
	Account  AccountState
}

// UsageFact is the aggregated consumption input for one organization and
// billing period, supplied by the caller.
type UsageFact struct {
	OrganizationID string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	SeatCount      uint32
	Cycle          BillingCycle
	Consumed       map[ServiceType]decimal.Decimal
}

// Phase is the lifecycle state an account is in for a billing period.
type Phase string

const (
	PhaseTrial     Phase = "trial"
	PhaseActive    Phase = "active"
	PhaseGrace     Phase = "grace"
	PhaseSuspended Phase = "suspended"
	PhaseCancelled Phase = "cancelled"
)

// LineItemKind distinguishes invoice line item sources.
type LineItemKind string

const (
	LineItemSubscription LineItemKind = "subscription"
	LineItemUsage        LineItemKind = "usage"
	LineItemTrial        LineItemKind = "trial"
	LineItemCancelled    LineItemKind = "cancelled"
)

// LineItem is one itemized charge on an invoice.
type LineItem struct {
	Kind        LineItemKind
	Service     ServiceType
	Description string
	Quantity    decimal.Decimal
	UnitRate    decimal.Decimal
	Amount      decimal.Decimal
}

// Invoice is the fully derived output of a billing run. It is never mutated
// after construction.
type Invoice struct {
	OrganizationID     string
	PeriodStart        time.Time
	PeriodEnd          time.Time
	Phase              Phase
	InGracePeriod      bool
	Suspended          bool
	SubscriptionCharge decimal.Decimal
	UsageCharges       map[ServiceType]decimal.Decimal
	TotalCharge        decimal.Decimal
	LineItems          []LineItem
}
