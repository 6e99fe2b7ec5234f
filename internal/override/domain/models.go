// Package domain contains persistence models for per-organization pricing
// overrides.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// OrganizationOverride holds negotiated custom rates for one organization.
// At most one row per organization. Every custom rate is nullable: null means
// "use the default", a stored zero is an explicit zero rate. Non-null rates
// take absolute precedence and bypass tier ladders entirely.
type OrganizationOverride struct {
	ID                snowflake.ID     `gorm:"primaryKey"`
	OrgID             snowflake.ID     `gorm:"not null;uniqueIndex:ux_org_overrides_org"`
	PlanID            *snowflake.ID    `gorm:"index"`
	CustomMonthlyRate *decimal.Decimal `gorm:"type:numeric(20,6)"`
	CustomAnnualRate  *decimal.Decimal `gorm:"type:numeric(20,6)"`
	CustomSmsRate     *decimal.Decimal `gorm:"type:numeric(20,8)"`
	CustomAiRate      *decimal.Decimal `gorm:"type:numeric(20,8)"`
	CustomStorageRate *decimal.Decimal `gorm:"type:numeric(20,8)"`
	Notes             string           `gorm:"type:text"`
	CreatedAt         time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (OrganizationOverride) TableName() string { return "organization_overrides" }
