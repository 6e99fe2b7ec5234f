// Package migration creates the billing schema on startup so the service is
// usable out of the box for local and self-hosted environments.
package migration

import (
	"errors"

	"gorm.io/gorm"

	invoicedomain "github.com/omniboxhq/omnibox/internal/invoice/domain"
	organizationdomain "github.com/omniboxhq/omnibox/internal/organization/domain"
	overridedomain "github.com/omniboxhq/omnibox/internal/override/domain"
	plandomain "github.com/omniboxhq/omnibox/internal/plan/domain"
	pricingdomain "github.com/omniboxhq/omnibox/internal/pricing/domain"
	settingsdomain "github.com/omniboxhq/omnibox/internal/settings/domain"
	usagedomain "github.com/omniboxhq/omnibox/internal/usage/domain"
)

// RunMigrations applies the schema for every billing model.
func RunMigrations(db *gorm.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	return db.AutoMigrate(
		&plandomain.Plan{},
		&organizationdomain.Organization{},
		&pricingdomain.UsagePricing{},
		&pricingdomain.PricingTier{},
		&overridedomain.OrganizationOverride{},
		&settingsdomain.BillingSetting{},
		&usagedomain.UsageEvent{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
	)
}
