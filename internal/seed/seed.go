// Package seed provisions the default pricing catalog so a fresh deployment
// bills sensibly before any operator configuration.
package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	plandomain "github.com/omniboxhq/omnibox/internal/plan/domain"
	pricingdomain "github.com/omniboxhq/omnibox/internal/pricing/domain"
	"github.com/omniboxhq/omnibox/internal/rating/engine"
	settingsdomain "github.com/omniboxhq/omnibox/internal/settings/domain"
	"github.com/omniboxhq/omnibox/pkg/db"
	"github.com/omniboxhq/omnibox/pkg/repository"
)

const (
	defaultPlanName    = "starter"
	defaultPlanDisplay = "Starter"
)

type servicePricing struct {
	service  engine.ServiceType
	model    engine.PricingModel
	baseRate string
	unit     string
	freeTier string
	tiers    []tierSpec
}

type tierSpec struct {
	name string
	min  string
	max  string // empty marks the open-ended final band
	rate string
}

var defaultPricing = []servicePricing{
	{
		service:  engine.ServiceSMS,
		model:    engine.PricingModelTiered,
		baseRate: "0.01",
		unit:     "message",
		freeTier: "100",
		tiers: []tierSpec{
			{name: "first_1k", min: "0", max: "1000", rate: "0.01"},
			{name: "beyond_1k", min: "1000", max: "", rate: "0.005"},
		},
	},
	{
		service:  engine.ServiceAI,
		model:    engine.PricingModelTiered,
		baseRate: "0.002",
		unit:     "request",
		freeTier: "500",
		tiers: []tierSpec{
			{name: "first_10k", min: "0", max: "10000", rate: "0.002"},
			{name: "beyond_10k", min: "10000", max: "", rate: "0.001"},
		},
	},
	{
		service:  engine.ServiceStorage,
		model:    engine.PricingModelFlat,
		baseRate: "0.05",
		unit:     "gb_month",
		freeTier: "10",
	},
}

type settingSpec struct {
	key      string
	dataType string
}

var defaultSettingSpecs = []settingSpec{
	{settingsdomain.KeyTrialPeriodDays, settingsdomain.DataTypeInt},
	{settingsdomain.KeyGracePeriodDays, settingsdomain.DataTypeInt},
	{settingsdomain.KeyAnnualDiscountPercent, settingsdomain.DataTypeDecimal},
	{settingsdomain.KeyAutoSuspendOnFailure, settingsdomain.DataTypeBool},
}

// EnsureDefaultPricing seeds the default plan, per-service usage pricing and
// global billing settings. Existing rows always win; the seed only fills
// gaps, so operator changes survive restarts.
func EnsureDefaultPricing(db *gorm.DB, defaults map[string]string) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureDefaultPlan(ctx, tx, node); err != nil {
			return err
		}
		if err := ensurePricingCatalog(ctx, tx, node); err != nil {
			return err
		}
		return ensureSettings(ctx, tx, node, defaults)
	})
}

func ensureDefaultPlan(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	plans := repository.ProvideStore[plandomain.Plan](tx)
	existing, err := plans.FindOne(ctx, &plandomain.Plan{Name: defaultPlanName})
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	monthly := decimal.RequireFromString("10")
	annual := decimal.RequireFromString("100")
	err = plans.Create(ctx, &plandomain.Plan{
		ID:               node.Generate(),
		Name:             defaultPlanName,
		DisplayName:      defaultPlanDisplay,
		BasePriceMonthly: &monthly,
		BasePriceAnnual:  &annual,
		MinSeats:         1,
		Active:           true,
	})
	if db.IsDuplicateKeyErr(err) {
		// Another instance seeded first.
		return nil
	}
	return err
}

func ensurePricingCatalog(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	pricing := repository.ProvideStore[pricingdomain.UsagePricing](tx)
	tiers := repository.ProvideStore[pricingdomain.PricingTier](tx)

	for _, spec := range defaultPricing {
		existing, err := pricing.FindOne(ctx, &pricingdomain.UsagePricing{ServiceType: string(spec.service)})
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}

		row := &pricingdomain.UsagePricing{
			ID:             node.Generate(),
			ServiceType:    string(spec.service),
			PricingModel:   string(spec.model),
			BaseRate:       decimal.RequireFromString(spec.baseRate),
			Unit:           spec.unit,
			FreeTierAmount: decimal.RequireFromString(spec.freeTier),
			Active:         true,
		}
		if err := pricing.Create(ctx, row); err != nil {
			if db.IsDuplicateKeyErr(err) {
				continue
			}
			return err
		}

		if len(spec.tiers) == 0 {
			continue
		}
		rows := make([]*pricingdomain.PricingTier, 0, len(spec.tiers))
		for _, tier := range spec.tiers {
			var max *decimal.Decimal
			if tier.max != "" {
				v := decimal.RequireFromString(tier.max)
				max = &v
			}
			rows = append(rows, &pricingdomain.PricingTier{
				ID:             node.Generate(),
				UsagePricingID: row.ID,
				TierName:       tier.name,
				MinQuantity:    decimal.RequireFromString(tier.min),
				MaxQuantity:    max,
				RatePerUnit:    decimal.RequireFromString(tier.rate),
			})
		}
		if err := tiers.BatchCreate(ctx, rows); err != nil {
			return err
		}
	}
	return nil
}

func ensureSettings(ctx context.Context, tx *gorm.DB, node *snowflake.Node, defaults map[string]string) error {
	settings := repository.ProvideStore[settingsdomain.BillingSetting](tx)

	for _, spec := range defaultSettingSpecs {
		value, ok := defaults[spec.key]
		if !ok {
			continue
		}
		existing, err := settings.FindOne(ctx, &settingsdomain.BillingSetting{Key: spec.key})
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		err = settings.Create(ctx, &settingsdomain.BillingSetting{
			ID:       node.Generate(),
			Key:      spec.key,
			Value:    value,
			DataType: spec.dataType,
		})
		if err != nil && !db.IsDuplicateKeyErr(err) {
			return err
		}
	}
	return nil
}
