package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/netbillhq/netbill-backend/pkg/enums"
)

// Account is one row in the chart of accounts. Running balances are updated
// in the same transaction as every ledger entry that touches the account.
type Account struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID      uuid.UUID         `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:idx_accounts_tenant_code"`
	Code          string            `gorm:"column:code;not null;uniqueIndex:idx_accounts_tenant_code"`
	Name          string            `gorm:"column:name;not null"`
	Type          enums.AccountType `gorm:"column:type;type:account_type;not null"`
	DebitBalance  decimal.Decimal   `gorm:"column:debit_balance;type:numeric(14,2);not null;default:0"`
	CreditBalance decimal.Decimal   `gorm:"column:credit_balance;type:numeric(14,2);not null;default:0"`
	Balance       decimal.Decimal   `gorm:"column:balance;type:numeric(14,2);not null;default:0"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
