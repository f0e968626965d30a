package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/netbillhq/netbill-backend/pkg/db/models"
)

// Repository manages persistence for hierarchy users.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, tenantID, userID uuid.UUID) (*models.User, error)
	Ancestors(ctx context.Context, tenantID, userID uuid.UUID, maxDepth int) ([]models.User, error)
	SetActive(ctx context.Context, tenantID uuid.UUID, userIDs []uuid.UUID, active bool) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a user repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Find(ctx context.Context, tenantID, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, userID).
		First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Ancestors walks parent pointers upward starting at the user's direct
// parent. The walk stops at the forest root, at maxDepth, or at the last
// resolvable ancestor if a parent was removed mid-walk.
func (r *repository) Ancestors(ctx context.Context, tenantID, userID uuid.UUID, maxDepth int) ([]models.User, error) {
	start, err := r.Find(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if start == nil {
		return nil, nil
	}

	var chain []models.User
	parentID := start.ParentID
	for depth := 0; parentID != nil && depth < maxDepth; depth++ {
		parent, err := r.Find(ctx, tenantID, *parentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			break
		}
		chain = append(chain, *parent)
		parentID = parent.ParentID
	}
	return chain, nil
}

func (r *repository) SetActive(ctx context.Context, tenantID uuid.UUID, userIDs []uuid.UUID, active bool) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("tenant_id = ? AND id IN (?) AND is_active <> ?", tenantID, userIDs, active).
		Update("is_active", active)
	return result.RowsAffected, result.Error
}
