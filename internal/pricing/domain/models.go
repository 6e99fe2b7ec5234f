// Package domain contains persistence models for metered usage pricing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// UsagePricing configures rating for one metered service. One row per
// service type. BaseRate is the flat rate, and the fallback when a tiered
// ladder is misconfigured out from under a service.
type UsagePricing struct {
	ID             snowflake.ID    `gorm:"primaryKey"`
	ServiceType    string          `gorm:"type:text;not null;uniqueIndex:ux_usage_pricing_service"`
	PricingModel   string          `gorm:"type:text;not null"`
	BaseRate       decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Unit           string          `gorm:"type:text;not null"`
	FreeTierAmount decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0"`
	Active         bool            `gorm:"not null;default:true"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UsagePricing) TableName() string { return "usage_pricing" }

// PricingTier is one band of a service's volume-discount ladder. Bands for a
// service must partition [0, ∞); the rating engine validates that before
// pricing anything against them.
type PricingTier struct {
	ID             snowflake.ID     `gorm:"primaryKey"`
	UsagePricingID snowflake.ID     `gorm:"not null;index"`
	TierName       string           `gorm:"type:text;not null"`
	MinQuantity    decimal.Decimal  `gorm:"type:numeric(20,6);not null"`
	MaxQuantity    *decimal.Decimal `gorm:"type:numeric(20,6)"`
	RatePerUnit    decimal.Decimal  `gorm:"type:numeric(20,8);not null"`
	CreatedAt      time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PricingTier) TableName() string { return "pricing_tiers" }
