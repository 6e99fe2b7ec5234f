// Package domain contains the global billing settings store and its typed
// loader.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Well-known setting keys. Rating code never reads the store by string;
// rows are loaded once per run into engine.BillingSettings.
const (
	KeyTrialPeriodDays       = "trial_period_days"
	KeyGracePeriodDays       = "grace_period_days"
	KeyAnnualDiscountPercent = "annual_discount_percent"
	KeyAutoSuspendOnFailure  = "auto_suspend_on_failure"
	KeyDefaultSmsRate        = "default_sms_rate"
	KeyDefaultAiRate         = "default_ai_rate"
	KeyDefaultStorageRate    = "default_storage_rate"
)

// Data types for setting values.
const (
	DataTypeInt     = "int"
	DataTypeDecimal = "decimal"
	DataTypeBool    = "bool"
	DataTypeString  = "string"
)

// BillingSetting is one global billing knob, stored as a typed string value.
type BillingSetting struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Key       string       `gorm:"type:text;not null;uniqueIndex:ux_billing_settings_key"`
	Value     string       `gorm:"type:text;not null"`
	DataType  string       `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (BillingSetting) TableName() string { return "billing_settings" }
