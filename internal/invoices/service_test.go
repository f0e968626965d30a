package invoices

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/netbillhq/netbill-backend/pkg/db/models"
	"github.com/netbillhq/netbill-backend/pkg/enums"
	pkgerrors "github.com/netbillhq/netbill-backend/pkg/errors"
)

type fakeTxRunner struct{}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeRepository struct {
	created    []*models.Invoice
	createErrs []error
	existsFn   func(tenantID, customerID uuid.UUID, periodStart time.Time) (bool, error)
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	stored := *invoice
	f.created = append(f.created, &stored)
	return nil
}

func (f *fakeRepository) Find(ctx context.Context, tenantID, invoiceID uuid.UUID) (*models.Invoice, error) {
	return nil, nil
}

func (f *fakeRepository) FindForUpdate(ctx context.Context, tenantID, invoiceID uuid.UUID) (*models.Invoice, error) {
	return nil, nil
}

func (f *fakeRepository) FindByNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*models.Invoice, error) {
	return nil, nil
}

func (f *fakeRepository) Save(ctx context.Context, invoice *models.Invoice) error { return nil }

func (f *fakeRepository) ExistsForPeriod(ctx context.Context, tenantID, customerID uuid.UUID, periodStart time.Time) (bool, error) {
	if f.existsFn != nil {
		return f.existsFn(tenantID, customerID, periodStart)
	}
	return false, nil
}

func (f *fakeRepository) CountOutstandingByCustomer(ctx context.Context, tenantID, customerID uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeRepository) ListPendingPastDueIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeRepository) MarkOverdue(ctx context.Context, invoiceIDs []uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeRepository) ListDelinquentAccounts(ctx context.Context, cutoff time.Time, limit, offset int) ([]DelinquentAccount, error) {
	return nil, nil
}

func (f *fakeRepository) ListBillableCustomers(ctx context.Context, billingType enums.BillingType, limit, offset int) ([]models.User, error) {
	return nil, nil
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:            repo,
		DB:              &fakeTxRunner{},
		GracePeriodDays: 7,
		Now:             func() time.Time { return time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func monthlyPackage(price string) *models.ServicePackage {
	return &models.ServicePackage{
		ID:          uuid.New(),
		Price:       decimal.RequireFromString(price),
		BillingType: enums.BillingTypeMonthly,
		IsActive:    true,
	}
}

func dailyPackage(price string, validityDays int) *models.ServicePackage {
	return &models.ServicePackage{
		ID:           uuid.New(),
		Price:        decimal.RequireFromString(price),
		BillingType:  enums.BillingTypeDaily,
		ValidityDays: validityDays,
		IsActive:     true,
	}
}

func TestGenerateMonthlyBuildsPeriodAndDueDate(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo)

	anchor := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	invoice, err := svc.GenerateMonthly(context.Background(), GenerateInput{
		TenantID:   uuid.New(),
		CustomerID: uuid.New(),
		Package:    monthlyPackage("1000.00"),
		AnchorDate: anchor,
	})
	if err != nil {
		t.Fatalf("unexpected generate error: %v", err)
	}
	if !invoice.BillingPeriodStart.Equal(anchor) {
		t.Fatalf("unexpected period start %s", invoice.BillingPeriodStart)
	}
	wantEnd := time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)
	if !invoice.BillingPeriodEnd.Equal(wantEnd) {
		t.Fatalf("unexpected period end %s", invoice.BillingPeriodEnd)
	}
	wantDue := time.Date(2025, 2, 21, 0, 0, 0, 0, time.UTC)
	if !invoice.DueDate.Equal(wantDue) {
		t.Fatalf("unexpected due date %s", invoice.DueDate)
	}
	if !invoice.Amount.Equal(decimal.RequireFromString("1000.00")) {
		t.Fatalf("unexpected amount %s", invoice.Amount)
	}
	if invoice.Status != enums.InvoiceStatusPending {
		t.Fatalf("unexpected status %s", invoice.Status)
	}
	if invoice.InvoiceNumber == "" {
		t.Fatal("expected invoice number")
	}
}

func TestGenerateDailyProratesPackagePrice(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo)

	anchor := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	invoice, err := svc.GenerateDaily(context.Background(), GenerateInput{
		TenantID:   uuid.New(),
		CustomerID: uuid.New(),
		Package:    dailyPackage("300.00", 7),
		AnchorDate: anchor,
	})
	if err != nil {
		t.Fatalf("unexpected generate error: %v", err)
	}
	// 300 / 30 * 7
	if !invoice.Amount.Equal(decimal.RequireFromString("70.00")) {
		t.Fatalf("unexpected prorated amount %s", invoice.Amount)
	}
	wantEnd := time.Date(2025, 1, 21, 0, 0, 0, 0, time.UTC)
	if !invoice.BillingPeriodEnd.Equal(wantEnd) {
		t.Fatalf("unexpected period end %s", invoice.BillingPeriodEnd)
	}
}

func TestGenerateAppliesTaxAndDiscount(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo)

	invoice, err := svc.GenerateMonthly(context.Background(), GenerateInput{
		TenantID:       uuid.New(),
		CustomerID:     uuid.New(),
		Package:        monthlyPackage("1000.00"),
		TaxAmount:      decimal.RequireFromString("50.00"),
		DiscountAmount: decimal.RequireFromString("100.00"),
	})
	if err != nil {
		t.Fatalf("unexpected generate error: %v", err)
	}
	if !invoice.TotalAmount.Equal(decimal.RequireFromString("950.00")) {
		t.Fatalf("unexpected total %s", invoice.TotalAmount)
	}
}

func TestGenerateMonthlyDuplicatePeriodIsConflict(t *testing.T) {
	repo := newFakeRepository()
	repo.existsFn = func(tenantID, customerID uuid.UUID, periodStart time.Time) (bool, error) {
		return true, nil
	}
	svc := newTestService(t, repo)

	_, err := svc.GenerateMonthly(context.Background(), GenerateInput{
		TenantID:   uuid.New(),
		CustomerID: uuid.New(),
		Package:    monthlyPackage("1000.00"),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatal("expected no invoice written")
	}
}

func TestGenerateRejectsInvalidInput(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo)

	cases := map[string]GenerateInput{
		"missing customer": {
			TenantID: uuid.New(),
			Package:  monthlyPackage("1000.00"),
		},
		"missing package": {
			TenantID:   uuid.New(),
			CustomerID: uuid.New(),
		},
		"zero price": {
			TenantID:   uuid.New(),
			CustomerID: uuid.New(),
			Package:    monthlyPackage("0"),
		},
		"negative discount": {
			TenantID:       uuid.New(),
			CustomerID:     uuid.New(),
			Package:        monthlyPackage("1000.00"),
			DiscountAmount: decimal.RequireFromString("-1"),
		},
	}
	for name, input := range cases {
		_, err := svc.GenerateMonthly(context.Background(), input)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestGenerateRetriesNumberCollision(t *testing.T) {
	repo := newFakeRepository()
	repo.createErrs = []error{gorm.ErrDuplicatedKey}
	svc := newTestService(t, repo)

	invoice, err := svc.GenerateMonthly(context.Background(), GenerateInput{
		TenantID:   uuid.New(),
		CustomerID: uuid.New(),
		Package:    monthlyPackage("1000.00"),
	})
	if err != nil {
		t.Fatalf("unexpected generate error: %v", err)
	}
	if invoice.InvoiceNumber == "" {
		t.Fatal("expected invoice number after retry")
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected 1 stored invoice, got %d", len(repo.created))
	}
}
