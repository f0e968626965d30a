package invoices

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/netbillhq/netbill-backend/pkg/db/models"
	"github.com/netbillhq/netbill-backend/pkg/enums"
)

// DelinquentAccount identifies a customer with at least one invoice past due.
type DelinquentAccount struct {
	TenantID   uuid.UUID
	CustomerID uuid.UUID
}

// Repository manages persistence for invoices.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, invoice *models.Invoice) error
	Find(ctx context.Context, tenantID, invoiceID uuid.UUID) (*models.Invoice, error)
	FindForUpdate(ctx context.Context, tenantID, invoiceID uuid.UUID) (*models.Invoice, error)
	FindByNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*models.Invoice, error)
	Save(ctx context.Context, invoice *models.Invoice) error
	ExistsForPeriod(ctx context.Context, tenantID, customerID uuid.UUID, periodStart time.Time) (bool, error)
	CountOutstandingByCustomer(ctx context.Context, tenantID, customerID uuid.UUID) (int64, error)
	ListPendingPastDueIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	MarkOverdue(ctx context.Context, invoiceIDs []uuid.UUID) (int64, error)
	ListDelinquentAccounts(ctx context.Context, cutoff time.Time, limit, offset int) ([]DelinquentAccount, error)
	ListBillableCustomers(ctx context.Context, billingType enums.BillingType, limit, offset int) ([]models.User, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an invoice repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) Find(ctx context.Context, tenantID, invoiceID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, invoiceID).
		First(&invoice).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

// FindForUpdate locks the invoice row for the duration of the surrounding
// transaction, serializing concurrent payment applications.
func (r *repository) FindForUpdate(ctx context.Context, tenantID, invoiceID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, invoiceID).
		First(&invoice).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) FindByNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_number = ?", tenantID, invoiceNumber).
		First(&invoice).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) Save(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Save(invoice).Error
}

func (r *repository) ExistsForPeriod(ctx context.Context, tenantID, customerID uuid.UUID, periodStart time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("tenant_id = ? AND customer_id = ? AND billing_period_start = ? AND status <> ?",
			tenantID, customerID, periodStart, enums.InvoiceStatusCancelled).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) CountOutstandingByCustomer(ctx context.Context, tenantID, customerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("tenant_id = ? AND customer_id = ? AND status IN (?)",
			tenantID, customerID,
			[]enums.InvoiceStatus{enums.InvoiceStatusPending, enums.InvoiceStatusOverdue}).
		Count(&count).Error
	return count, err
}

func (r *repository) ListPendingPastDueIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 200
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("status = ? AND due_date < ?", enums.InvoiceStatusPending, cutoff).
		Order("due_date ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) MarkOverdue(ctx context.Context, invoiceIDs []uuid.UUID) (int64, error) {
	if len(invoiceIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id IN (?) AND status = ?", invoiceIDs, enums.InvoiceStatusPending).
		Update("status", enums.InvoiceStatusOverdue)
	return result.RowsAffected, result.Error
}

func (r *repository) ListDelinquentAccounts(ctx context.Context, cutoff time.Time, limit, offset int) ([]DelinquentAccount, error) {
	if limit <= 0 {
		limit = 200
	}
	var accounts []DelinquentAccount
	err := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Select("DISTINCT tenant_id, customer_id").
		Where("status = ? OR (status = ? AND due_date < ?)",
			enums.InvoiceStatusOverdue, enums.InvoiceStatusPending, cutoff).
		Order("tenant_id, customer_id").
		Limit(limit).
		Offset(offset).
		Scan(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repository) ListBillableCustomers(ctx context.Context, billingType enums.BillingType, limit, offset int) ([]models.User, error) {
	if limit <= 0 {
		limit = 200
	}
	var customers []models.User
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Joins("JOIN service_packages ON service_packages.id = users.package_id").
		Where("users.type = ? AND users.package_id IS NOT NULL AND service_packages.billing_type = ? AND service_packages.is_active",
			enums.UserTypeCustomer, billingType).
		Order("users.created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}
