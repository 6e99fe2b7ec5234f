// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Invoice is the persisted output of a billing run for one organization and
// period. Checksum identifies the (org, period) pair; re-running a period
// replaces the row, never appends a second one.
type Invoice struct {
	ID                 snowflake.ID      `gorm:"primaryKey"`
	OrgID              snowflake.ID      `gorm:"not null;index"`
	PeriodStart        time.Time         `gorm:"not null"`
	PeriodEnd          time.Time         `gorm:"not null"`
	Phase              string            `gorm:"type:text;not null"`
	InGracePeriod      bool              `gorm:"not null;default:false"`
	Suspended          bool              `gorm:"not null;default:false"`
	SubscriptionCharge decimal.Decimal   `gorm:"type:numeric(20,2);not null"`
	TotalCharge        decimal.Decimal   `gorm:"type:numeric(20,2);not null"`
	Currency           string            `gorm:"type:text;not null"`
	Checksum           string            `gorm:"type:text;not null;uniqueIndex:ux_invoices_checksum"`
	Metadata           datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt          time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceItem is one line on an invoice: the seat subscription charge, one
// metered service's usage, or a zero-charge trial/cancelled marker.
type InvoiceItem struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	OrgID       snowflake.ID    `gorm:"not null;index"`
	InvoiceID   snowflake.ID    `gorm:"not null;index"`
	Kind        string          `gorm:"type:text;not null"`
	ServiceType *string         `gorm:"type:text"`
	Description string          `gorm:"type:text"`
	Quantity    decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	UnitRate    decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Amount      decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }
