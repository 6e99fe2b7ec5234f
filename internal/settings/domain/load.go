package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/omniboxhq/omnibox/internal/rating/engine"
)

// Load folds billing_settings rows over the given defaults and returns the
// typed settings the rating engine consumes. Unknown keys are ignored so the
// admin surface can grow without breaking billing runs; known keys with
// unparseable values are configuration errors.
func Load(rows []BillingSetting, defaults engine.BillingSettings) (engine.BillingSettings, error) {
	settings := defaults
	settings.DefaultRates = map[engine.ServiceType]decimal.Decimal{}
	for service, rate := range defaults.DefaultRates {
		settings.DefaultRates[service] = rate
	}

	for _, row := range rows {
		value := strings.TrimSpace(row.Value)
		var err error
		switch row.Key {
		case KeyTrialPeriodDays:
			settings.TrialPeriodDays, err = parseInt(value)
		case KeyGracePeriodDays:
			settings.GracePeriodDays, err = parseInt(value)
		case KeyAnnualDiscountPercent:
			settings.AnnualDiscountPercent, err = decimal.NewFromString(value)
		case KeyAutoSuspendOnFailure:
			settings.AutoSuspendOnFailure, err = strconv.ParseBool(value)
		case KeyDefaultSmsRate:
			err = setDefaultRate(settings.DefaultRates, engine.ServiceSMS, value)
		case KeyDefaultAiRate:
			err = setDefaultRate(settings.DefaultRates, engine.ServiceAI, value)
		case KeyDefaultStorageRate:
			err = setDefaultRate(settings.DefaultRates, engine.ServiceStorage, value)
		default:
			continue
		}
		if err != nil {
			return engine.BillingSettings{}, fmt.Errorf("billing setting %s: %w", row.Key, err)
		}
	}

	if settings.TrialPeriodDays < 0 || settings.GracePeriodDays < 0 {
		return engine.BillingSettings{}, fmt.Errorf("billing settings: negative period length")
	}
	if settings.AnnualDiscountPercent.IsNegative() || settings.AnnualDiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return engine.BillingSettings{}, fmt.Errorf("billing settings: annual discount outside [0, 100]")
	}
	return settings, nil
}

func parseInt(value string) (int, error) {
	return strconv.Atoi(value)
}

func setDefaultRate(rates map[engine.ServiceType]decimal.Decimal, service engine.ServiceType, value string) error {
	rate, err := decimal.NewFromString(value)
	if err != nil {
		return err
	}
	rates[service] = rate
	return nil
}
