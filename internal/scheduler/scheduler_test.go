package scheduler

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
	plandomain "github.com/omniboxhq/omnibox/internal/plan/domain"
	ratingservice "github.com/omniboxhq/omnibox/internal/rating/service"
)

func decPtr(t *testing.T, s string) *decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return &d
}

func newTestScheduler(t *testing.T, now time.Time) (*Scheduler, *gorm.DB, *snowflake.Node, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.RunMigrations(db))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(now)
	svc := ratingservice.NewService(ratingservice.ServiceParam{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fake,
		Defaults: config.NewStaticBillingDefaultsHolder(config.DefaultBillingDefaults()),
	})

	sched, err := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		RatingSvc: svc,
		Clock:     fake,
		Config:    Config{MaxBillingBatchSize: 2},
	})
	require.NoError(t, err)
	return sched, db, node, fake
}

func seedBillablePlan(t *testing.T, db *gorm.DB, node *snowflake.Node) snowflake.ID {
	t.Helper()
	plan := plandomain.Plan{
		ID:               node.Generate(),
		Name:             "team",
		DisplayName:      "Team",
		BasePriceMonthly: decPtr(t, "10"),
		BasePriceAnnual:  decPtr(t, "100"),
		MinSeats:         1,
		Active:           true,
	}
	require.NoError(t, db.Create(&plan).Error)
	return plan.ID
}

func seedOrg(t *testing.T, db *gorm.DB, node *snowflake.Node, planID snowflake.ID, slug string, seats uint32) snowflake.ID {
	t.Helper()
	org := orgdomain.Organization{
		ID:           node.Generate(),
		Name:         slug,
		Slug:         slug,
		PlanID:       planID,
		SeatCount:    seats,
		BillingCycle: orgdomain.BillingCycleMonthly,
		CreatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.Create(&org).Error)
	return org.ID
}

func TestPeriodForCycle(t *testing.T) {
	now := time.Date(2025, 8, 2, 9, 30, 0, 0, time.UTC)

	monthly := periodForCycle(orgdomain.BillingCycleMonthly, now)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), monthly.Start)
	assert.Equal(t, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), monthly.End)

	annual := periodForCycle(orgdomain.BillingCycleAnnual, now)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), annual.Start)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), annual.End)

	// January rolls back into the previous year.
	january := periodForCycle(orgdomain.BillingCycleMonthly, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), january.Start)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), january.End)
}

func TestRunOnce_BillsDueOrganizations(t *testing.T) {
	now := time.Date(2025, 8, 2, 9, 0, 0, 0, time.UTC)
	sched, db, node, _ := newTestScheduler(t, now)
	planID := seedBillablePlan(t, db, node)

	// Three orgs with batch size 2 forces a second page.
	orgA := seedOrg(t, db, node, planID, "alpha", 5)
	orgB := seedOrg(t, db, node, planID, "beta", 2)
	orgC := seedOrg(t, db, node, planID, "gamma", 1)

	require.NoError(t, sched.RunOnce(context.Background()))

	var count int64
	require.NoError(t, db.Model(&invoicedomain.Invoice{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)

	for _, orgID := range []snowflake.ID{orgA, orgB, orgC} {
		var inv invoicedomain.Invoice
		require.NoError(t, db.Where("org_id = ?", orgID).First(&inv).Error)
		assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), inv.PeriodStart.UTC())
		assert.Equal(t, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), inv.PeriodEnd.UTC())
	}
}

func TestRunOnce_SkipsAlreadyBilled(t *testing.T) {
	now := time.Date(2025, 8, 2, 9, 0, 0, 0, time.UTC)
	sched, db, node, _ := newTestScheduler(t, now)
	planID := seedBillablePlan(t, db, node)
	seedOrg(t, db, node, planID, "alpha", 5)

	require.NoError(t, sched.RunOnce(context.Background()))
	require.NoError(t, sched.RunOnce(context.Background()))

	var count int64
	require.NoError(t, db.Model(&invoicedomain.Invoice{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRunOnce_ConfigErrorDoesNotBlockOthers(t *testing.T) {
	now := time.Date(2025, 8, 2, 9, 0, 0, 0, time.UTC)
	sched, db, node, _ := newTestScheduler(t, now)
	planID := seedBillablePlan(t, db, node)

	// An unbillable plan: no base price configured for any cycle.
	brokenPlan := plandomain.Plan{
		ID:          node.Generate(),
		Name:        "broken",
		DisplayName: "Broken",
		MinSeats:    1,
		Active:      true,
	}
	require.NoError(t, db.Create(&brokenPlan).Error)

	seedOrg(t, db, node, brokenPlan.ID, "alpha", 5)
	healthy := seedOrg(t, db, node, planID, "beta", 3)

	// Configuration errors are isolated per organization: the run succeeds
	// and the healthy org still gets its invoice.
	require.NoError(t, sched.RunOnce(context.Background()))

	var count int64
	require.NoError(t, db.Model(&invoicedomain.Invoice{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var inv invoicedomain.Invoice
	require.NoError(t, db.Where("org_id = ?", healthy).First(&inv).Error)
	assert.Equal(t, "30.00", inv.TotalCharge.StringFixed(2))
}

func TestRunOnce_AdvancingClockBillsNextPeriod(t *testing.T) {
	now := time.Date(2025, 8, 2, 9, 0, 0, 0, time.UTC)
	sched, db, node, fake := newTestScheduler(t, now)
	planID := seedBillablePlan(t, db, node)
	orgID := seedOrg(t, db, node, planID, "alpha", 5)

	require.NoError(t, sched.RunOnce(context.Background()))
	fake.Set(time.Date(2025, 9, 2, 9, 0, 0, 0, time.UTC))
	require.NoError(t, sched.RunOnce(context.Background()))

	var count int64
	require.NoError(t, db.Model(&invoicedomain.Invoice{}).Where("org_id = ?", orgID).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultConfig(), cfg)

	custom := Config{RunInterval: time.Minute}.withDefaults()
	assert.Equal(t, time.Minute, custom.RunInterval)
	assert.Equal(t, DefaultConfig().MaxBillingBatchSize, custom.MaxBillingBatchSize)
}
