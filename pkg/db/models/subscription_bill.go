package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/netbillhq/netbill-backend/pkg/enums"
)

// SubscriptionBill charges a reseller for its platform subscription. It
// mirrors Invoice: totals are fixed at generation, only status moves.
type SubscriptionBill struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID           uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;index"`
	BillNumber         string              `gorm:"column:bill_number;not null;uniqueIndex"`
	ResellerID         uuid.UUID           `gorm:"column:reseller_id;type:uuid;not null;index"`
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
