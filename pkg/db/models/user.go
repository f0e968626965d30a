package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/netbillhq/netbill-backend/pkg/enums"
)

// User is any actor in the reseller hierarchy: operators, sub-operators,
// resellers and end customers. ParentID points at the direct upline.
type User struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID       uuid.UUID        `gorm:"column:tenant_id;type:uuid;not null;index"`
	Name           string           `gorm:"column:name;not null"`
	Username       string           `gorm:"column:username;not null;uniqueIndex:idx_users_tenant_username"`
	Type           enums.UserType   `gorm:"column:type;type:user_type;not null;default:'customer'"`
	ParentID       *uuid.UUID       `gorm:"column:parent_id;type:uuid;index"`
	PackageID      *uuid.UUID       `gorm:"column:package_id;type:uuid;index"`
	OperatorLevel  int              `gorm:"column:operator_level;not null;default:0"`
	CommissionRate *decimal.Decimal `gorm:"column:commission_rate;type:numeric(5,2)"`
	IsActive       bool             `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
