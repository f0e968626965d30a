package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/netbillhq/netbill-backend/pkg/enums"
)

// ServicePackage is the plan a customer subscribes to. Price is the full
// monthly price; daily packages prorate it over the billing basis.
type ServicePackage struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID     uuid.UUID         `gorm:"column:tenant_id;type:uuid;not null;index"`
	Name         string            `gorm:"column:name;not null"`
	Price        decimal.Decimal   `gorm:"column:price;type:numeric(12,2);not null"`
	BillingType  enums.BillingType `gorm:"column:billing_type;type:billing_type;not null;default:'monthly'"`
	ValidityDays int               `gorm:"column:validity_days;not null;default:30"`
	Features     pq.StringArray    `gorm:"column:features;type:text[];default:ARRAY[]::text[]"`
	IsActive     bool              `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
