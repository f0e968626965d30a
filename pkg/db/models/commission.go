package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/netbillhq/netbill-backend/pkg/enums"
)

// Commission is one reseller's cut of a customer payment. One row is created
// per hierarchy level with a non-zero rate, immediately after the payment
// completes.
type Commission struct {
	ID                   uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID             uuid.UUID              `gorm:"column:tenant_id;type:uuid;not null;index"`
	ResellerID           uuid.UUID              `gorm:"column:reseller_id;type:uuid;not null;index"`
	PaymentID            uuid.UUID              `gorm:"column:payment_id;type:uuid;not null;index"`
	InvoiceID            uuid.UUID              `gorm:"column:invoice_id;type:uuid;not null"`
	Level                int                    `gorm:"column:level;not null;default:1"`
	CommissionPercentage decimal.Decimal        `gorm:"column:commission_percentage;type:numeric(5,2);not null"`
	CommissionAmount     decimal.Decimal        `gorm:"column:commission_amount;type:numeric(12,2);not null"`
	Status               enums.CommissionStatus `gorm:"column:status;type:commission_status;not null;default:'pending'"`
	PaidAt               *time.Time             `gorm:"column:paid_at"`
	CreatedAt            time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
