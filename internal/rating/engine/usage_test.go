package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smsPricing() *UsagePricing {
	return &UsagePricing{
		ServiceType:    ServiceSMS,
		Model:          PricingModelTiered,
		BaseRate:       dec("0.01"),
		Unit:           "message",
		FreeTierAmount: dec("100"),
		Active:         true,
	}
}

func TestRateService_FreeTierExact(t *testing.T) {
	// Consumption at or below the allowance bills exactly zero.
	for _, consumed := range []string{"0", "50", "100"} {
		charge, err := RateService(ServiceSMS, dec(consumed), smsPricing(), smsLadder(), BillingSettings{}, nil)
		require.NoError(t, err, "consumed %s", consumed)
		assert.True(t, charge.Amount.IsZero(), "consumed %s billed %s", consumed, charge.Amount)
	}
}

func TestRateService_TieredAfterFreeTier(t *testing.T) {
	// 1500 consumed, 100 free: 1000 at $0.01 + 400 at $0.005 = $12.00
	charge, err := RateService(ServiceSMS, dec("1500"), smsPricing(), smsLadder(), BillingSettings{}, nil)
	require.NoError(t, err)
	assert.True(t, charge.Billable.Equal(dec("1400")))
	assert.Equal(t, "12.00", charge.Amount.StringFixed(2))
}

func TestRateService_OverrideBypassesTiers(t *testing.T) {
	override := &Override{ServiceRates: map[ServiceType]decimal.Decimal{ServiceSMS: dec("0.02")}}

	charge, err := RateService(ServiceSMS, dec("1500"), smsPricing(), smsLadder(), BillingSettings{}, override)
	require.NoError(t, err)
	assert.Equal(t, "28.00", charge.Amount.StringFixed(2))

	// An override is a complete rate substitution: reshaping the ladder
	// must not move the charge.
	steeper := []PricingTier{{MinQuantity: dec("0"), RatePerUnit: dec("5")}}
	again, err := RateService(ServiceSMS, dec("1500"), smsPricing(), steeper, BillingSettings{}, override)
	require.NoError(t, err)
	assert.True(t, again.Amount.Equal(charge.Amount))
}

func TestRateService_OverrideOfZeroIsNotMissing(t *testing.T) {
	override := &Override{ServiceRates: map[ServiceType]decimal.Decimal{ServiceSMS: decimal.Zero}}
	charge, err := RateService(ServiceSMS, dec("1500"), smsPricing(), smsLadder(), BillingSettings{}, override)
	require.NoError(t, err)
	assert.True(t, charge.Amount.IsZero())
}

func TestRateService_FlatModel(t *testing.T) {
	pricing := smsPricing()
	pricing.Model = PricingModelFlat
	charge, err := RateService(ServiceSMS, dec("1500"), pricing, nil, BillingSettings{}, nil)
	require.NoError(t, err)
	// 1400 billable at the $0.01 base rate
	assert.Equal(t, "14.00", charge.Amount.StringFixed(2))
}

func TestRateService_InactiveKillSwitch(t *testing.T) {
	pricing := smsPricing()
	pricing.Active = false
	charge, err := RateService(ServiceSMS, dec("1500"), pricing, smsLadder(), BillingSettings{}, nil)
	require.NoError(t, err)
	assert.True(t, charge.Amount.IsZero())
}

func TestRateService_SettingsDefaultRateFallback(t *testing.T) {
	settings := BillingSettings{DefaultRates: map[ServiceType]decimal.Decimal{ServiceSMS: dec("0.03")}}
	charge, err := RateService(ServiceSMS, dec("200"), nil, nil, settings, nil)
	require.NoError(t, err)
	// No pricing row means no free tier either.
	assert.Equal(t, "6.00", charge.Amount.StringFixed(2))
}

func TestRateService_MissingRate(t *testing.T) {
	_, err := RateService(ServiceAI, dec("200"), nil, nil, BillingSettings{}, nil)
	require.Error(t, err)
	assert.True(t, IsConfigError(err, ErrKindMissingRate))

	cfgErr := err.(*ConfigError)
	assert.Equal(t, CategoryForService(ServiceAI), cfgErr.Category)
}

func TestRateService_NegativeConsumption(t *testing.T) {
	_, err := RateService(ServiceSMS, dec("-5"), smsPricing(), smsLadder(), BillingSettings{}, nil)
	require.Error(t, err)
	assert.True(t, IsConfigError(err, ErrKindInvalidQuantity))
}
