package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	orgdomain "github.com/omniboxhq/omnibox/internal/organization/domain"
	overridedomain "github.com/omniboxhq/omnibox/internal/override/domain"
	plandomain "github.com/omniboxhq/omnibox/internal/plan/domain"
	pricingdomain "github.com/omniboxhq/omnibox/internal/pricing/domain"
	ratingdomain "github.com/omniboxhq/omnibox/internal/rating/domain"
	"github.com/omniboxhq/omnibox/internal/rating/engine"
	settingsdomain "github.com/omniboxhq/omnibox/internal/settings/domain"
	usagedomain "github.com/omniboxhq/omnibox/internal/usage/domain"
)

// loadPricingConfig reads the full configuration snapshot for one
// organization inside the supplied transaction. Everything the engine sees
// comes from this single read so a concurrent configuration change cannot
// produce a half-old, half-new invoice.
func (s *Service) loadPricingConfig(
	ctx context.Context,
	tx *gorm.DB,
	org *orgdomain.Organization,
) (engine.PricingConfig, error) {
	var cfg engine.PricingConfig

	plan, err := s.loadPlan(ctx, tx, org.PlanID)
	if err != nil {
		return cfg, err
	}
	if plan == nil {
		return cfg, ratingdomain.ErrPlanNotFound
	}
	cfg.Plan = toEnginePlan(plan)

	pricing, tiers, err := s.loadUsagePricing(ctx, tx)
	if err != nil {
		return cfg, err
	}
	cfg.Pricing = pricing
	cfg.Tiers = tiers

	settings, err := s.loadSettings(ctx, tx)
	if err != nil {
		return cfg, err
	}
	cfg.Settings = settings

	override, err := s.loadOverride(ctx, tx, org.ID)
	if err != nil {
		return cfg, err
	}
	cfg.Override = override

	cfg.Account = engine.AccountState{
		CreatedAt:           org.CreatedAt,
		LastPaymentFailedAt: copyTime(org.LastPaymentFailedAt),
		Cancelled:           org.CancelledAt != nil,
	}

	return cfg, nil
}

func (s *Service) loadPlan(ctx context.Context, tx *gorm.DB, planID snowflake.ID) (*plandomain.Plan, error) {
	var plan plandomain.Plan
	err := tx.WithContext(ctx).
		Where("id = ?", planID).
		First(&plan).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (s *Service) loadUsagePricing(
	ctx context.Context,
	tx *gorm.DB,
) (map[engine.ServiceType]engine.UsagePricing, map[engine.ServiceType][]engine.PricingTier, error) {
	var rows []pricingdomain.UsagePricing
	if err := tx.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	pricing := make(map[engine.ServiceType]engine.UsagePricing, len(rows))
	byID := make(map[snowflake.ID]engine.ServiceType, len(rows))
	for _, row := range rows {
		service := engine.ServiceType(row.ServiceType)
		pricing[service] = engine.UsagePricing{
			ServiceType:    service,
			Model:          engine.PricingModel(row.PricingModel),
			BaseRate:       row.BaseRate,
			Unit:           row.Unit,
			FreeTierAmount: row.FreeTierAmount,
			Active:         row.Active,
		}
		byID[row.ID] = service
	}

	var tierRows []pricingdomain.PricingTier
	err := tx.WithContext(ctx).
		Order("usage_pricing_id, min_quantity").
		Find(&tierRows).Error
	if err != nil {
		return nil, nil, err
	}

	tiers := make(map[engine.ServiceType][]engine.PricingTier)
	for _, row := range tierRows {
		service, ok := byID[row.UsagePricingID]
		if !ok {
			continue
		}
		tiers[service] = append(tiers[service], engine.PricingTier{
			Name:        row.TierName,
			MinQuantity: row.MinQuantity,
			MaxQuantity: copyDecimal(row.MaxQuantity),
			RatePerUnit: row.RatePerUnit,
		})
	}

	return pricing, tiers, nil
}

func (s *Service) loadSettings(ctx context.Context, tx *gorm.DB) (engine.BillingSettings, error) {
	var rows []settingsdomain.BillingSetting
	if err := tx.WithContext(ctx).Find(&rows).Error; err != nil {
		return engine.BillingSettings{}, err
	}
	return settingsdomain.Load(rows, s.defaults.Get().Engine())
}

func (s *Service) loadOverride(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (*engine.Override, error) {
	var row overridedomain.OrganizationOverride
	err := tx.WithContext(ctx).
		Where("org_id = ?", orgID).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	override := &engine.Override{
		MonthlyRate:  copyDecimal(row.CustomMonthlyRate),
		AnnualRate:   copyDecimal(row.CustomAnnualRate),
		ServiceRates: map[engine.ServiceType]decimal.Decimal{},
	}
	if row.CustomSmsRate != nil {
		override.ServiceRates[engine.ServiceSMS] = *row.CustomSmsRate
	}
	if row.CustomAiRate != nil {
		override.ServiceRates[engine.ServiceAI] = *row.CustomAiRate
	}
	if row.CustomStorageRate != nil {
		override.ServiceRates[engine.ServiceStorage] = *row.CustomStorageRate
	}
	return override, nil
}

// aggregateUsage sums enriched events per service for the half-open window
// [periodStart, periodEnd). Pending and rejected events never bill.
func (s *Service) aggregateUsage(
	tx *gorm.DB,
	orgID snowflake.ID,
	periodStart, periodEnd time.Time,
) (map[engine.ServiceType]decimal.Decimal, error) {
	var rows []struct {
		ServiceType string
		Total       decimal.Decimal
	}
	err := tx.Raw(
		`SELECT service_type, COALESCE(SUM(quantity), 0) AS total
		 FROM usage_events
		 WHERE org_id = ? AND recorded_at >= ? AND recorded_at < ? AND status = ?
		 GROUP BY service_type`,
		orgID,
		periodStart,
		periodEnd,
		usagedomain.UsageStatusEnriched,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	consumed := make(map[engine.ServiceType]decimal.Decimal, len(rows))
	for _, row := range rows {
		consumed[engine.ServiceType(row.ServiceType)] = row.Total
	}
	return consumed, nil
}

func toEnginePlan(plan *plandomain.Plan) engine.Plan {
	return engine.Plan{
		ID:               plan.ID.String(),
		Name:             plan.Name,
		DisplayName:      plan.DisplayName,
		BasePriceMonthly: copyDecimal(plan.BasePriceMonthly),
		BasePriceAnnual:  copyDecimal(plan.BasePriceAnnual),
		MinSeats:         plan.MinSeats,
		MaxSeats:         copyUint32(plan.MaxSeats),
		Active:           plan.Active,
	}
}

func copyDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func copyUint32(v *uint32) *uint32 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
