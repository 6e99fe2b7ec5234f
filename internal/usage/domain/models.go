// Package domain contains persistence models for raw usage ingestion.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// UsageStatus tracks an event through the metering pipeline. Only enriched
// events are aggregated into billing runs.
type UsageStatus string

const (
	UsageStatusPending  UsageStatus = "PENDING"
	UsageStatusEnriched UsageStatus = "ENRICHED"
	UsageStatusRejected UsageStatus = "REJECTED"
)

// UsageEvent stores a single unit of metered activity: an SMS send, an AI
// request, a storage sample.
type UsageEvent struct {
	ID             snowflake.ID      `gorm:"primaryKey"`
	OrgID          snowflake.ID      `gorm:"not null;index"`
	ServiceType    string            `gorm:"type:text;not null;index"`
	Quantity       decimal.Decimal   `gorm:"type:numeric(20,6);not null"`
	RecordedAt     time.Time         `gorm:"not null;index"`
	Status         UsageStatus       `gorm:"type:text;not null"`
	IdempotencyKey *string           `gorm:"type:text;uniqueIndex:ux_usage_events_idem"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UsageEvent) TableName() string { return "usage_events" }
