package invoices

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/netbillhq/netbill-backend/pkg/db/models"
	"github.com/netbillhq/netbill-backend/pkg/enums"
)

func setupInvoicesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	users := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  name TEXT NOT NULL,
  username TEXT NOT NULL,
  type TEXT NOT NULL DEFAULT 'customer',
  parent_id TEXT,
  package_id TEXT,
  operator_level INTEGER NOT NULL DEFAULT 0,
  commission_rate TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	servicePackages := `
CREATE TABLE IF NOT EXISTS service_packages (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  name TEXT NOT NULL,
  price TEXT NOT NULL,
  billing_type TEXT NOT NULL DEFAULT 'monthly',
  validity_days INTEGER NOT NULL DEFAULT 30,
  features TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	invoices := `
CREATE TABLE IF NOT EXISTS invoices (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  invoice_number TEXT NOT NULL UNIQUE,
  customer_id TEXT NOT NULL,
  package_id TEXT NOT NULL,
  amount TEXT NOT NULL,
  tax_amount TEXT NOT NULL DEFAULT '0',
  discount_amount TEXT NOT NULL DEFAULT '0',
  total_amount TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  billing_period_start DATETIME NOT NULL,
  billing_period_end DATETIME NOT NULL,
  due_date DATETIME NOT NULL,
  paid_at DATETIME,
  notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(users).Error)
	require.NoError(t, db.Exec(servicePackages).Error)
	require.NoError(t, db.Exec(invoices).Error)
	return db
}

func seedPackage(t *testing.T, db *gorm.DB, tenantID uuid.UUID, billingType enums.BillingType, active bool) *models.ServicePackage {
	t.Helper()
	pkg := &models.ServicePackage{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Name:        "10 Mbps",
		Price:       decimal.RequireFromString("1000.00"),
		BillingType: billingType,
		IsActive:    active,
	}
	require.NoError(t, db.Create(pkg).Error)
	return pkg
}

func seedCustomer(t *testing.T, db *gorm.DB, tenantID uuid.UUID, pkg *models.ServicePackage) *models.User {
	t.Helper()
	user := &models.User{
		ID:       uuid.New(),
		TenantID: tenantID,
		Name:     "customer",
		Username: "customer-" + uuid.NewString()[:8],
		Type:     enums.UserTypeCustomer,
		IsActive: true,
	}
	if pkg != nil {
		user.PackageID = &pkg.ID
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedInvoice(t *testing.T, db *gorm.DB, tenantID, customerID uuid.UUID, status enums.InvoiceStatus, periodStart, dueDate time.Time) *models.Invoice {
	t.Helper()
	invoice := &models.Invoice{
		ID:                 uuid.New(),
		TenantID:           tenantID,
		InvoiceNumber:      "INV-" + uuid.NewString(),
		CustomerID:         customerID,
		PackageID:          uuid.New(),
		Amount:             decimal.RequireFromString("1000.00"),
		TaxAmount:          decimal.Zero,
		DiscountAmount:     decimal.Zero,
		TotalAmount:        decimal.RequireFromString("1000.00"),
		Status:             status,
		BillingPeriodStart: periodStart,
		BillingPeriodEnd:   periodStart.AddDate(0, 1, -1),
		DueDate:            dueDate,
	}
	require.NoError(t, db.Create(invoice).Error)
	return invoice
}

func TestExistsForPeriodIgnoresCancelled(t *testing.T) {
	db := setupInvoicesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	tenantID, customerID := uuid.New(), uuid.New()
	periodStart := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	due := periodStart.AddDate(0, 1, 6)

	cancelled := seedInvoice(t, db, tenantID, customerID, enums.InvoiceStatusCancelled, periodStart, due)
	_ = cancelled

	exists, err := repo.ExistsForPeriod(ctx, tenantID, customerID, periodStart)
	require.NoError(t, err)
	assert.False(t, exists, "cancelled invoices must not block regeneration")

	seedInvoice(t, db, tenantID, customerID, enums.InvoiceStatusPending, periodStart, due)

	exists, err = repo.ExistsForPeriod(ctx, tenantID, customerID, periodStart)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMarkOverdueOnlyFlipsPending(t *testing.T) {
	db := setupInvoicesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	tenantID, customerID := uuid.New(), uuid.New()
	periodStart := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	pastDue := time.Date(2025, 2, 7, 0, 0, 0, 0, time.UTC)

	pending := seedInvoice(t, db, tenantID, customerID, enums.InvoiceStatusPending, periodStart, pastDue)
	paid := seedInvoice(t, db, tenantID, customerID, enums.InvoiceStatusPaid, periodStart.AddDate(0, 1, 0), pastDue)

	rows, err := repo.MarkOverdue(ctx, []uuid.UUID{pending.ID, paid.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	got, err := repo.Find(ctx, tenantID, pending.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, enums.InvoiceStatusOverdue, got.Status)

	got, err = repo.Find(ctx, tenantID, paid.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, enums.InvoiceStatusPaid, got.Status)
}

func TestListPendingPastDueIDsHonorsCutoffAndLimit(t *testing.T) {
	db := setupInvoicesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	tenantID, customerID := uuid.New(), uuid.New()
	cutoff := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)

	oldest := seedInvoice(t, db, tenantID, customerID, enums.InvoiceStatusPending,
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), cutoff.AddDate(0, 0, -5))
	second := seedInvoice(t, db, tenantID, customerID, enums.InvoiceStatusPending,
		time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), cutoff.AddDate(0, 0, -3))
	// not yet due
	seedInvoice(t, db, tenantID, customerID, enums.InvoiceStatusPending,
		time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), cutoff.AddDate(0, 0, 5))

	ids, err := repo.ListPendingPastDueIDs(ctx, cutoff, 1)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, oldest.ID, ids[0])

	ids, err = repo.ListPendingPastDueIDs(ctx, cutoff, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{oldest.ID, second.ID}, ids)
}

func TestCountOutstandingByCustomer(t *testing.T) {
	db := setupInvoicesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	tenantID, customerID := uuid.New(), uuid.New()
	periodStart := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	due := periodStart.AddDate(0, 1, 6)

	seedInvoice(t, db, tenantID, customerID, enums.InvoiceStatusPending, periodStart, due)
	seedInvoice(t, db, tenantID, customerID, enums.InvoiceStatusOverdue, periodStart.AddDate(0, 1, 0), due)
	seedInvoice(t, db, tenantID, customerID, enums.InvoiceStatusPaid, periodStart.AddDate(0, 2, 0), due)

	count, err := repo.CountOutstandingByCustomer(ctx, tenantID, customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestListDelinquentAccountsDeduplicates(t *testing.T) {
	db := setupInvoicesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	tenantID, customerID := uuid.New(), uuid.New()
	cutoff := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	periodStart := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	// two overdue invoices on the same account must report once
	seedInvoice(t, db, tenantID, customerID, enums.InvoiceStatusOverdue, periodStart, cutoff.AddDate(0, 0, -5))
	seedInvoice(t, db, tenantID, customerID, enums.InvoiceStatusOverdue, periodStart.AddDate(0, 1, 0), cutoff.AddDate(0, 0, -3))
	// current account, not delinquent
	seedInvoice(t, db, tenantID, uuid.New(), enums.InvoiceStatusPending, periodStart, cutoff.AddDate(0, 0, 5))

	accounts, err := repo.ListDelinquentAccounts(ctx, cutoff, 10, 0)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, tenantID, accounts[0].TenantID)
	assert.Equal(t, customerID, accounts[0].CustomerID)
}

func TestListBillableCustomersFiltersByPackage(t *testing.T) {
	db := setupInvoicesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	monthlyPkg := seedPackage(t, db, tenantID, enums.BillingTypeMonthly, true)
	dailyPkg := seedPackage(t, db, tenantID, enums.BillingTypeDaily, true)
	retiredPkg := seedPackage(t, db, tenantID, enums.BillingTypeMonthly, false)

	monthlyCustomer := seedCustomer(t, db, tenantID, monthlyPkg)
	seedCustomer(t, db, tenantID, dailyPkg)
	seedCustomer(t, db, tenantID, retiredPkg)
	seedCustomer(t, db, tenantID, nil)

	customers, err := repo.ListBillableCustomers(ctx, enums.BillingTypeMonthly, 10, 0)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, monthlyCustomer.ID, customers[0].ID)
}

func TestFindByNumberMissingReturnsNil(t *testing.T) {
	db := setupInvoicesTestDB(t)
	repo := NewRepository(db)

	invoice, err := repo.FindByNumber(context.Background(), uuid.New(), "INV-NOPE")
	require.NoError(t, err)
	assert.Nil(t, invoice)
}
