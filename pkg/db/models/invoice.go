package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/netbillhq/netbill-backend/pkg/enums"
)

// Invoice bills a customer for one service period. TotalAmount is fixed at
// generation time; payments only move Status and PaidAt.
type Invoice struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID           uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;index"`
	InvoiceNumber      string              `gorm:"column:invoice_number;not null;uniqueIndex"`
	CustomerID         uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	PackageID          uuid.UUID           `gorm:"column:package_id;type:uuid;not null"`
	Amount             decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	TaxAmount          decimal.Decimal     `gorm:"column:tax_amount;type:numeric(12,2);not null;default:0"`
	DiscountAmount     decimal.Decimal     `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	TotalAmount        decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Status             enums.InvoiceStatus `gorm:"column:status;type:invoice_status;not null;default:'pending';index"`
	BillingPeriodStart time.Time           `gorm:"column:billing_period_start;not null"`
	BillingPeriodEnd   time.Time           `gorm:"column:billing_period_end;not null"`
	DueDate            time.Time           `gorm:"column:due_date;not null;index"`
	PaidAt             *time.Time          `gorm:"column:paid_at"`
	Notes              *string             `gorm:"column:notes"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
