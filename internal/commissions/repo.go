package commissions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/netbillhq/netbill-backend/pkg/db/models"
)

// Repository manages persistence for commission records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, commission *models.Commission) error
	Find(ctx context.Context, tenantID, commissionID uuid.UUID) (*models.Commission, error)
	ListByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) ([]models.Commission, error)
	ListByReseller(ctx context.Context, tenantID, resellerID uuid.UUID) ([]models.Commission, error)
	Save(ctx context.Context, commission *models.Commission) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a commission repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, commission *models.Commission) error {
	return r.db.WithContext(ctx).Create(commission).Error
}

func (r *repository) Find(ctx context.Context, tenantID, commissionID uuid.UUID) (*models.Commission, error) {
	var commission models.Commission
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, commissionID).
		First(&commission).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &commission, nil
}

func (r *repository) ListByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) ([]models.Commission, error) {
	var commissions []models.Commission
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND payment_id = ?", tenantID, paymentID).
		Order("level ASC").
		Find(&commissions).Error; err != nil {
		return nil, err
	}
	return commissions, nil
}

func (r *repository) ListByReseller(ctx context.Context, tenantID, resellerID uuid.UUID) ([]models.Commission, error) {
	var commissions []models.Commission
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND reseller_id = ?", tenantID, resellerID).
		Order("created_at DESC").
		Find(&commissions).Error; err != nil {
		return nil, err
	}
	return commissions, nil
}

func (r *repository) Save(ctx context.Context, commission *models.Commission) error {
	return r.db.WithContext(ctx).Save(commission).Error
}
