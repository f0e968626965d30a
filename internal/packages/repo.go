package packages

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/netbillhq/netbill-backend/pkg/db/models"
)

// Repository manages persistence for service packages and billing profiles.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, tenantID, packageID uuid.UUID) (*models.ServicePackage, error)
	FindBillingProfile(ctx context.Context, tenantID uuid.UUID) (*models.BillingProfile, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a package repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Find(ctx context.Context, tenantID, packageID uuid.UUID) (*models.ServicePackage, error) {
	var pkg models.ServicePackage
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, packageID).
		First(&pkg).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &pkg, nil
}

func (r *repository) FindBillingProfile(ctx context.Context, tenantID uuid.UUID) (*models.BillingProfile, error) {
	var profile models.BillingProfile
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&profile).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}
