package models

import (
	"time"

	"github.com/google/uuid"
)

// BillingProfile carries per-tenant billing defaults.
type BillingProfile struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID        uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex"`
	GracePeriodDays int       `gorm:"column:grace_period_days;not null;default:7"`
	BillingDay      int       `gorm:"column:billing_day;not null;default:1"`
	BillingTime     string    `gorm:"column:billing_time;not null;default:'00:00'"`
	Timezone        string    `gorm:"column:timezone;not null;default:'UTC'"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
