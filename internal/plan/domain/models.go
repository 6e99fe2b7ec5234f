// Package domain contains persistence models for subscription plans.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Plan is an assignable subscription plan with seat-based pricing. Monthly
// and annual base prices are configured independently; a nil price means the
// cycle is not configured for this plan, while a stored zero is an explicit
// zero rate. The annual discount from billing settings applies at invoice
// time, not here.
type Plan struct {
	ID               snowflake.ID     `gorm:"primaryKey"`
	Name             string           `gorm:"type:text;not null;uniqueIndex:ux_plans_name"`
	DisplayName      string           `gorm:"type:text;not null"`
	BasePriceMonthly *decimal.Decimal `gorm:"type:numeric(20,6)"`
	BasePriceAnnual  *decimal.Decimal `gorm:"type:numeric(20,6)"`
	MinSeats         uint32           `gorm:"not null;default:1"`
	MaxSeats         *uint32          `gorm:""`
	Active           bool             `gorm:"not null;default:true"`
	CreatedAt        time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Plan) TableName() string { return "plans" }
