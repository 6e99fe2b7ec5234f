package migration

import (
	"strconv"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/omniboxhq/omnibox/internal/config"
	"github.com/omniboxhq/omnibox/internal/seed"
	settingsdomain "github.com/omniboxhq/omnibox/internal/settings/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, defaults *config.BillingDefaultsHolder) error {
		if err := RunMigrations(conn); err != nil {
			return err
		}
		return seed.EnsureDefaultPricing(conn, settingValues(defaults.Get()))
	}),
)

// settingValues renders the configured billing defaults as the string values
// the settings table stores.
func settingValues(d config.BillingDefaults) map[string]string {
	return map[string]string{
		settingsdomain.KeyTrialPeriodDays:       strconv.Itoa(d.TrialPeriodDays),
		settingsdomain.KeyGracePeriodDays:       strconv.Itoa(d.GracePeriodDays),
		settingsdomain.KeyAnnualDiscountPercent: d.AnnualDiscountPercent,
		settingsdomain.KeyAutoSuspendOnFailure:  strconv.FormatBool(d.AutoSuspendOnFailure),
	}
}
