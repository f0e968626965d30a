package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/netbillhq/netbill-backend/pkg/enums"
)

// LedgerEntry is one balanced double-entry journal record. A single Amount
// applies to both the debit and the credit account, so an individual row can
// never be out of balance. Entries are append-only; reversals add an inverse
// row and stamp ReversedAt/ReversedByID on the original.
type LedgerEntry struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID        uuid.UUID              `gorm:"column:tenant_id;type:uuid;not null;index"`
	EntryNumber     string                 `gorm:"column:entry_number;not null;uniqueIndex"`
	EntryDate       time.Time              `gorm:"column:entry_date;not null;index"`
	DebitAccountID  uuid.UUID              `gorm:"column:debit_account_id;type:uuid;not null;index"`
	CreditAccountID uuid.UUID              `gorm:"column:credit_account_id;type:uuid;not null;index"`
	Amount          decimal.Decimal        `gorm:"column:amount;type:numeric(14,2);not null"`
	Description     string                 `gorm:"column:description;not null"`
	SourceType      enums.LedgerSourceType `gorm:"column:source_type;type:ledger_source_type;not null"`
	SourceID        uuid.UUID              `gorm:"column:source_id;type:uuid;not null;index"`
	ReversedAt      *time.Time             `gorm:"column:reversed_at"`
	ReversedByID    *uuid.UUID             `gorm:"column:reversed_by_id;type:uuid"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
}
