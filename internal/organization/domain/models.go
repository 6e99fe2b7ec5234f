// Package domain contains persistence models for organizations (tenants).
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// BillingCycle is the subscription period length for an organization.
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleAnnual  BillingCycle = "annual"
)

// Organization represents a tenant account and the timestamps the billing
// lifecycle is derived from. SuspendedAt is informational for the admin
// surface; the rating engine always re-derives the phase from the raw
// timestamps and settings.
type Organization struct {
	ID                  snowflake.ID      `gorm:"primaryKey"`
	Name                string            `gorm:"type:text;not null"`
	Slug                string            `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug"`
	PlanID              snowflake.ID      `gorm:"not null;index"`
	SeatCount           uint32            `gorm:"not null;default:1"`
	BillingCycle        BillingCycle      `gorm:"type:text;not null;default:monthly"`
	LastPaymentFailedAt *time.Time        `gorm:""`
	CancelledAt         *time.Time        `gorm:""`
	SuspendedAt         *time.Time        `gorm:""`
	Metadata            datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt           time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }
