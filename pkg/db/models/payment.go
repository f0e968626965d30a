package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/netbillhq/netbill-backend/pkg/enums"
)

// Payment records one application of money against an invoice. Rows are
// immutable once created; TransactionID dedupes gateway webhook retries.
type Payment struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID      uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;index"`
	InvoiceID     uuid.UUID           `gorm:"column:invoice_id;type:uuid;not null;index;uniqueIndex:idx_payments_invoice_txn,where:transaction_id IS NOT NULL"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Method        enums.PaymentMethod `gorm:"column:method;type:payment_method;not null;default:'cash'"`
	Status        enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	TransactionID *string             `gorm:"column:transaction_id;uniqueIndex:idx_payments_invoice_txn,where:transaction_id IS NOT NULL"`
	Notes         *string             `gorm:"column:notes"`
	PaidAt        *time.Time          `gorm:"column:paid_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}
