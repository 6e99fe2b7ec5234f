package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/omniboxhq/omnibox/internal/clock"
	"github.com/omniboxhq/omnibox/internal/config"
	invoicedomain "github.com/omniboxhq/omnibox/internal/invoice/domain"
	"github.com/omniboxhq/omnibox/internal/migration"
	orgdomain "github.com/omniboxhq/omnibox/internal/organization/domain"
	overridedomain "github.com/omniboxhq/omnibox/internal/override/domain"
	plandomain "github.com/omniboxhq/omnibox/internal/plan/domain"
	pricingdomain "github.com/omniboxhq/omnibox/internal/pricing/domain"
	ratingdomain "github.com/omniboxhq/omnibox/internal/rating/domain"
	"github.com/omniboxhq/omnibox/internal/rating/engine"
	settingsdomain "github.com/omniboxhq/omnibox/internal/settings/domain"
	usagedomain "github.com/omniboxhq/omnibox/internal/usage/domain"
)

var (
	testPeriodStart = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	testPeriodEnd   = time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	svc   ratingdomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.RunMigrations(db))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2025, 8, 2, 9, 0, 0, 0, time.UTC))
	svc := NewService(ServiceParam{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fake,
		Defaults: config.NewStaticBillingDefaultsHolder(config.DefaultBillingDefaults()),
	})

	return &fixture{db: db, node: node, clock: fake, svc: svc}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func (f *fixture) seedPlan(t *testing.T) snowflake.ID {
	t.Helper()
	plan := plandomain.Plan{
		ID:               f.node.Generate(),
		Name:             "team",
		DisplayName:      "Team",
		BasePriceMonthly: decPtr("10"),
		BasePriceAnnual:  decPtr("100"),
		MinSeats:         1,
		Active:           true,
	}
	require.NoError(t, f.db.Create(&plan).Error)
	return plan.ID
}

func (f *fixture) seedOrg(t *testing.T, planID snowflake.ID, seats uint32, cycle orgdomain.BillingCycle) snowflake.ID {
	t.Helper()
	org := orgdomain.Organization{
		ID:           f.node.Generate(),
		Name:         "Acme",
		Slug:         "acme-" + f.node.Generate().String(),
		PlanID:       planID,
		SeatCount:    seats,
		BillingCycle: cycle,
		CreatedAt:    testPeriodStart.AddDate(-1, 0, 0),
	}
	require.NoError(t, f.db.Create(&org).Error)
	return org.ID
}

func (f *fixture) seedSMSPricing(t *testing.T) snowflake.ID {
	t.Helper()
	pricing := pricingdomain.UsagePricing{
		ID:             f.node.Generate(),
		ServiceType:    string(engine.ServiceSMS),
		PricingModel:   string(engine.PricingModelTiered),
		BaseRate:       dec("0.01"),
		Unit:           "message",
		FreeTierAmount: dec("100"),
		Active:         true,
	}
	require.NoError(t, f.db.Create(&pricing).Error)

	tiers := []pricingdomain.PricingTier{
		{
			ID:             f.node.Generate(),
			UsagePricingID: pricing.ID,
			TierName:       "first_1k",
			MinQuantity:    dec("0"),
			MaxQuantity:    decPtr("1000"),
			RatePerUnit:    dec("0.01"),
		},
		{
			ID:             f.node.Generate(),
			UsagePricingID: pricing.ID,
			TierName:       "beyond_1k",
			MinQuantity:    dec("1000"),
			RatePerUnit:    dec("0.005"),
		},
	}
	require.NoError(t, f.db.Create(&tiers).Error)
	return pricing.ID
}

func (f *fixture) seedSettings(t *testing.T) {
	t.Helper()
	rows := []settingsdomain.BillingSetting{
		{ID: f.node.Generate(), Key: settingsdomain.KeyTrialPeriodDays, Value: "14", DataType: settingsdomain.DataTypeInt},
		{ID: f.node.Generate(), Key: settingsdomain.KeyGracePeriodDays, Value: "7", DataType: settingsdomain.DataTypeInt},
		{ID: f.node.Generate(), Key: settingsdomain.KeyAnnualDiscountPercent, Value: "10", DataType: settingsdomain.DataTypeDecimal},
		{ID: f.node.Generate(), Key: settingsdomain.KeyAutoSuspendOnFailure, Value: "true", DataType: settingsdomain.DataTypeBool},
	}
	require.NoError(t, f.db.Create(&rows).Error)
}

func (f *fixture) seedUsage(t *testing.T, orgID snowflake.ID, service engine.ServiceType, quantity string, recordedAt time.Time, status usagedomain.UsageStatus) {
	t.Helper()
	event := usagedomain.UsageEvent{
		ID:          f.node.Generate(),
		OrgID:       orgID,
		ServiceType: string(service),
		Quantity:    dec(quantity),
		RecordedAt:  recordedAt,
		Status:      status,
	}
	require.NoError(t, f.db.Create(&event).Error)
}

func (f *fixture) loadInvoices(t *testing.T, orgID snowflake.ID) []invoicedomain.Invoice {
	t.Helper()
	var rows []invoicedomain.Invoice
	require.NoError(t, f.db.Where("org_id = ?", orgID).Find(&rows).Error)
	return rows
}

func TestRunBilling_SeatsAndTieredUsage(t *testing.T) {
	f := newFixture(t)
	planID := f.seedPlan(t)
	orgID := f.seedOrg(t, planID, 5, orgdomain.BillingCycleMonthly)
	f.seedSMSPricing(t)
	f.seedSettings(t)

	// 1500 enriched messages across two events, 100 free:
	// 1000 at $0.01 + 400 at $0.005 = $12.00 usage, plus 5 seats at $10.
	f.seedUsage(t, orgID, engine.ServiceSMS, "900", testPeriodStart.Add(24*time.Hour), usagedomain.UsageStatusEnriched)
	f.seedUsage(t, orgID, engine.ServiceSMS, "600", testPeriodStart.Add(48*time.Hour), usagedomain.UsageStatusEnriched)
	// Pending events never bill.
	f.seedUsage(t, orgID, engine.ServiceSMS, "5000", testPeriodStart.Add(72*time.Hour), usagedomain.UsageStatusPending)
	// Outside the window.
	f.seedUsage(t, orgID, engine.ServiceSMS, "5000", testPeriodEnd.Add(time.Hour), usagedomain.UsageStatusEnriched)

	err := f.svc.RunBilling(context.Background(), orgID.String(), testPeriodStart, testPeriodEnd)
	require.NoError(t, err)

	invoices := f.loadInvoices(t, orgID)
	require.Len(t, invoices, 1)
	inv := invoices[0]
	assert.Equal(t, string(engine.PhaseActive), inv.Phase)
	assert.Equal(t, "50.00", inv.SubscriptionCharge.StringFixed(2))
	assert.Equal(t, "62.00", inv.TotalCharge.StringFixed(2))
	assert.Equal(t, "USD", inv.Currency)

	var items []invoicedomain.InvoiceItem
	require.NoError(t, f.db.Where("invoice_id = ?", inv.ID).Order("kind").Find(&items).Error)
	require.Len(t, items, 2)
	assert.Equal(t, string(engine.LineItemSubscription), items[0].Kind)
	assert.Equal(t, string(engine.LineItemUsage), items[1].Kind)
	require.NotNil(t, items[1].ServiceType)
	assert.Equal(t, string(engine.ServiceSMS), *items[1].ServiceType)
	assert.Equal(t, "12.00", items[1].Amount.StringFixed(2))
}

func TestRunBilling_RerunReplacesInvoice(t *testing.T) {
	f := newFixture(t)
	planID := f.seedPlan(t)
	orgID := f.seedOrg(t, planID, 3, orgdomain.BillingCycleMonthly)
	f.seedSMSPricing(t)
	f.seedSettings(t)
	f.seedUsage(t, orgID, engine.ServiceSMS, "500", testPeriodStart.Add(time.Hour), usagedomain.UsageStatusEnriched)

	ctx := context.Background()
	for range 3 {
		require.NoError(t, f.svc.RunBilling(ctx, orgID.String(), testPeriodStart, testPeriodEnd))
	}

	invoices := f.loadInvoices(t, orgID)
	require.Len(t, invoices, 1)

	var itemCount int64
	require.NoError(t, f.db.Model(&invoicedomain.InvoiceItem{}).Where("org_id = ?", orgID).Count(&itemCount).Error)
	assert.Equal(t, int64(2), itemCount)
}

func TestRunBilling_AnnualOverrideNotRediscounted(t *testing.T) {
	f := newFixture(t)
	planID := f.seedPlan(t)
	orgID := f.seedOrg(t, planID, 5, orgdomain.BillingCycleAnnual)
	f.seedSettings(t)

	override := overridedomain.OrganizationOverride{
		ID:               f.node.Generate(),
		OrgID:            orgID,
		CustomAnnualRate: decPtr("80"),
	}
	require.NoError(t, f.db.Create(&override).Error)

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.svc.RunBilling(context.Background(), orgID.String(), start, end))

	invoices := f.loadInvoices(t, orgID)
	require.Len(t, invoices, 1)
	// Negotiated $80/seat applies as-is; the 10% annual discount only
	// applies to the plan's own base rate.
	assert.Equal(t, "400.00", invoices[0].TotalCharge.StringFixed(2))
}

func TestRunBilling_TrialOrganization(t *testing.T) {
	f := newFixture(t)
	planID := f.seedPlan(t)
	f.seedSettings(t)

	org := orgdomain.Organization{
		ID:           f.node.Generate(),
		Name:         "Fresh",
		Slug:         "fresh",
		PlanID:       planID,
		SeatCount:    2,
		BillingCycle: orgdomain.BillingCycleMonthly,
		CreatedAt:    testPeriodEnd.AddDate(0, 0, -5),
	}
	require.NoError(t, f.db.Create(&org).Error)

	require.NoError(t, f.svc.RunBilling(context.Background(), org.ID.String(), testPeriodStart, testPeriodEnd))

	invoices := f.loadInvoices(t, org.ID)
	require.Len(t, invoices, 1)
	assert.Equal(t, string(engine.PhaseTrial), invoices[0].Phase)
	assert.Equal(t, "0.00", invoices[0].TotalCharge.StringFixed(2))
}

func TestRunBilling_ConfigErrorRollsBack(t *testing.T) {
	f := newFixture(t)
	planID := f.seedPlan(t)
	orgID := f.seedOrg(t, planID, 5, orgdomain.BillingCycleMonthly)
	f.seedSettings(t)
	pricingID := f.seedSMSPricing(t)

	// Overlapping band makes the ladder invalid.
	bad := pricingdomain.PricingTier{
		ID:             f.node.Generate(),
		UsagePricingID: pricingID,
		TierName:       "overlap",
		MinQuantity:    dec("500"),
		MaxQuantity:    decPtr("1500"),
		RatePerUnit:    dec("0.02"),
	}
	require.NoError(t, f.db.Create(&bad).Error)

	f.seedUsage(t, orgID, engine.ServiceSMS, "1500", testPeriodStart.Add(time.Hour), usagedomain.UsageStatusEnriched)

	err := f.svc.RunBilling(context.Background(), orgID.String(), testPeriodStart, testPeriodEnd)
	require.Error(t, err)
	assert.True(t, engine.IsConfigError(err, engine.ErrKindInvalidTierLadder))

	// All-or-nothing: the failed run must not leave a partial invoice.
	assert.Empty(t, f.loadInvoices(t, orgID))
}

func TestRunBilling_UnknownOrganization(t *testing.T) {
	f := newFixture(t)

	err := f.svc.RunBilling(context.Background(), "12345", testPeriodStart, testPeriodEnd)
	assert.ErrorIs(t, err, ratingdomain.ErrOrganizationNotFound)

	err = f.svc.RunBilling(context.Background(), "not-a-snowflake", testPeriodStart, testPeriodEnd)
	assert.ErrorIs(t, err, ratingdomain.ErrInvalidOrganization)

	err = f.svc.RunBilling(context.Background(), "12345", testPeriodEnd, testPeriodStart)
	assert.ErrorIs(t, err, ratingdomain.ErrInvalidPeriod)
}
