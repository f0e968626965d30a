package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/netbillhq/netbill-backend/pkg/db/models"
)

// Repository manages persistence for accounts and journal entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateEntry(ctx context.Context, entry *models.LedgerEntry) error
	FindEntry(ctx context.Context, tenantID, entryID uuid.UUID) (*models.LedgerEntry, error)
	MarkEntryReversed(ctx context.Context, entry *models.LedgerEntry) error
	ListEntriesBySource(ctx context.Context, tenantID, sourceID uuid.UUID) ([]models.LedgerEntry, error)
	FindAccountByCode(ctx context.Context, tenantID uuid.UUID, code string) (*models.Account, error)
	FindAccountForUpdate(ctx context.Context, tenantID, accountID uuid.UUID) (*models.Account, error)
	CreateAccount(ctx context.Context, account *models.Account) error
	SaveAccount(ctx context.Context, account *models.Account) error
	SumAccountBalances(ctx context.Context, tenantID uuid.UUID) (debit, credit decimal.Decimal, err error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindEntry(ctx context.Context, tenantID, entryID uuid.UUID) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, entryID).
		First(&entry).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) MarkEntryReversed(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("id = ?", entry.ID).
		Updates(map[string]any{
			"reversed_at":    entry.ReversedAt,
			"reversed_by_id": entry.ReversedByID,
		}).Error
}

func (r *repository) ListEntriesBySource(ctx context.Context, tenantID, sourceID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND source_id = ?", tenantID, sourceID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) FindAccountByCode(ctx context.Context, tenantID uuid.UUID, code string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND code = ?", tenantID, code).
		First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) FindAccountForUpdate(ctx context.Context, tenantID, accountID uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, accountID).
		First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) CreateAccount(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) SaveAccount(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Save(account).Error
}

func (r *repository) SumAccountBalances(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, decimal.Decimal, error) {
	var totals struct {
		Debit  decimal.Decimal
		Credit decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Select("COALESCE(SUM(debit_balance), 0) AS debit, COALESCE(SUM(credit_balance), 0) AS credit").
		Where("tenant_id = ?", tenantID).
		Scan(&totals).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return totals.Debit, totals.Credit, nil
}
