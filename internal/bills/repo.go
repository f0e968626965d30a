package bills

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/netbillhq/netbill-backend/pkg/db/models"
	"github.com/netbillhq/netbill-backend/pkg/enums"
)

// Repository manages persistence for reseller subscription bills.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, bill *models.SubscriptionBill) error
	Find(ctx context.Context, tenantID, billID uuid.UUID) (*models.SubscriptionBill, error)
	FindForUpdate(ctx context.Context, tenantID, billID uuid.UUID) (*models.SubscriptionBill, error)
	Save(ctx context.Context, bill *models.SubscriptionBill) error
	ExistsForPeriod(ctx context.Context, tenantID, resellerID uuid.UUID, periodStart time.Time) (bool, error)
	ListPendingPastDueIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	MarkOverdue(ctx context.Context, billIDs []uuid.UUID) (int64, error)
	ListActiveResellers(ctx context.Context, limit, offset int) ([]models.User, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a subscription bill repository bound to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, bill *models.SubscriptionBill) error {
	return r.db.WithContext(ctx).Create(bill).Error
}

func (r *repository) Find(ctx context.Context, tenantID, billID uuid.UUID) (*models.SubscriptionBill, error) {
	var bill models.SubscriptionBill
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, billID).
		First(&bill).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &bill, nil
}

func (r *repository) FindForUpdate(ctx context.Context, tenantID, billID uuid.UUID) (*models.SubscriptionBill, error) {
	var bill models.SubscriptionBill
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, billID).
		First(&bill).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &bill, nil
}

func (r *repository) Save(ctx context.Context, bill *models.SubscriptionBill) error {
	return r.db.WithContext(ctx).Save(bill).Error
}

func (r *repository) ExistsForPeriod(ctx context.Context, tenantID, resellerID uuid.UUID, periodStart time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SubscriptionBill{}).
		Where("tenant_id = ? AND reseller_id = ? AND billing_period_start = ? AND status <> ?",
			tenantID, resellerID, periodStart, enums.InvoiceStatusCancelled).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) ListPendingPastDueIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 200
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.SubscriptionBill{}).
		Where("status = ? AND due_date < ?", enums.InvoiceStatusPending, cutoff).
		Order("due_date ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) MarkOverdue(ctx context.Context, billIDs []uuid.UUID) (int64, error) {
	if len(billIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.SubscriptionBill{}).
		Where("id IN (?) AND status = ?", billIDs, enums.InvoiceStatusPending).
		Update("status", enums.InvoiceStatusOverdue)
	return result.RowsAffected, result.Error
}

func (r *repository) ListActiveResellers(ctx context.Context, limit, offset int) ([]models.User, error) {
	if limit <= 0 {
		limit = 200
	}
	var resellers []models.User
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("type = ? AND is_active", enums.UserTypeReseller).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&resellers).Error
	if err != nil {
		return nil, err
	}
	return resellers, nil
}
