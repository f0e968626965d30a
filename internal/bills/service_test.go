package bills

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/netbillhq/netbill-backend/internal/ledger"
	"github.com/netbillhq/netbill-backend/pkg/config"
	"github.com/netbillhq/netbill-backend/pkg/db/models"
	"github.com/netbillhq/netbill-backend/pkg/enums"
	pkgerrors "github.com/netbillhq/netbill-backend/pkg/errors"
)

type fakeTxRunner struct{}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeRepository struct {
	created  []*models.SubscriptionBill
	bills    map[uuid.UUID]*models.SubscriptionBill
	existsFn func(tenantID, resellerID uuid.UUID, periodStart time.Time) (bool, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, bill *models.SubscriptionBill) error {
	if bill.ID == uuid.Nil {
		bill.ID = uuid.New()
	}
	stored := *bill
	f.created = append(f.created, &stored)
	return nil
}

func (f *fakeRepository) Find(ctx context.Context, tenantID, billID uuid.UUID) (*models.SubscriptionBill, error) {
	return f.FindForUpdate(ctx, tenantID, billID)
}

func (f *fakeRepository) FindForUpdate(ctx context.Context, tenantID, billID uuid.UUID) (*models.SubscriptionBill, error) {
	bill, ok := f.bills[billID]
	if !ok || bill.TenantID != tenantID {
		return nil, nil
	}
	copied := *bill
	return &copied, nil
}

func (f *fakeRepository) Save(ctx context.Context, bill *models.SubscriptionBill) error {
	stored := *bill
	f.bills[bill.ID] = &stored
	return nil
}

func (f *fakeRepository) ExistsForPeriod(ctx context.Context, tenantID, resellerID uuid.UUID, periodStart time.Time) (bool, error) {
	if f.existsFn != nil {
		return f.existsFn(tenantID, resellerID, periodStart)
	}
	return false, nil
}

func (f *fakeRepository) ListPendingPastDueIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeRepository) MarkOverdue(ctx context.Context, billIDs []uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeRepository) ListActiveResellers(ctx context.Context, limit, offset int) ([]models.User, error) {
	return nil, nil
}

type fakeLedger struct {
	accounts map[string]*models.Account
	posted   []ledger.PostInput
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{accounts: map[string]*models.Account{}}
}

func (f *fakeLedger) EnsureAccountInTx(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, code string) (*models.Account, error) {
	if account, ok := f.accounts[code]; ok {
		return account, nil
	}
	account := &models.Account{ID: uuid.New(), TenantID: tenantID, Code: code}
	f.accounts[code] = account
	return account, nil
}

func (f *fakeLedger) PostInTx(ctx context.Context, tx *gorm.DB, input ledger.PostInput) (*models.LedgerEntry, error) {
	f.posted = append(f.posted, input)
	return &models.LedgerEntry{
		ID:              uuid.New(),
		TenantID:        input.TenantID,
		DebitAccountID:  input.DebitAccountID,
		CreditAccountID: input.CreditAccountID,
		Amount:          input.Amount,
		SourceType:      input.SourceType,
		SourceID:        input.SourceID,
	}, nil
}

func (f *fakeLedger) codeOf(accountID uuid.UUID) string {
	for code, account := range f.accounts {
		if account.ID == accountID {
			return code
		}
	}
	return ""
}

var testBillingConfig = config.BillingConfig{
	CashAccountCode:         "1000",
	BankAccountCode:         "1010",
	MobileWalletAccountCode: "1020",
	SubscriptionRevenueCode: "4100",
}

var testNow = time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	return newLedgerService(t, repo, nil)
}

func newLedgerService(t *testing.T, repo Repository, led *fakeLedger) *Service {
	t.Helper()
	params := ServiceParams{
		Repo:            repo,
		DB:              &fakeTxRunner{},
		Billing:         testBillingConfig,
		GracePeriodDays: 7,
		Now:             func() time.Time { return testNow },
	}
	if led != nil {
		params.Ledger = led
	}
	svc, err := NewService(params)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func seedBill(repo *fakeRepository, tenantID uuid.UUID, status enums.InvoiceStatus) *models.SubscriptionBill {
	bill := &models.SubscriptionBill{
		ID:          uuid.New(),
		TenantID:    tenantID,
		BillNumber:  "BILL-20250301-TEST",
		ResellerID:  uuid.New(),
		Amount:      decimal.RequireFromString("2500.00"),
		TotalAmount: decimal.RequireFromString("2500.00"),
		Status:      status,
	}
	repo.bills[bill.ID] = bill
	return bill
}

func TestGenerateMonthlyBuildsBill(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(t, repo)

	anchor := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	bill, err := svc.GenerateMonthly(context.Background(), GenerateInput{
		TenantID:   uuid.New(),
		ResellerID: uuid.New(),
		Fee:        decimal.RequireFromString("2500.00"),
		AnchorDate: anchor,
	})
	if err != nil {
		t.Fatalf("unexpected generate error: %v", err)
	}
	if !bill.BillingPeriodStart.Equal(anchor) {
		t.Fatalf("unexpected period start %s", bill.BillingPeriodStart)
	}
	wantEnd := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	if !bill.BillingPeriodEnd.Equal(wantEnd) {
		t.Fatalf("unexpected period end %s", bill.BillingPeriodEnd)
	}
	wantDue := time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC)
	if !bill.DueDate.Equal(wantDue) {
		t.Fatalf("unexpected due date %s", bill.DueDate)
	}
	if bill.Status != enums.InvoiceStatusPending {
		t.Fatalf("unexpected status %s", bill.Status)
	}
	if bill.BillNumber == "" {
		t.Fatal("expected bill number")
	}
	if !bill.TotalAmount.Equal(decimal.RequireFromString("2500.00")) {
		t.Fatalf("unexpected total %s", bill.TotalAmount)
	}
}

func TestGenerateMonthlyDuplicatePeriodIsConflict(t *testing.T) {
	repo := &fakeRepository{
		existsFn: func(tenantID, resellerID uuid.UUID, periodStart time.Time) (bool, error) {
			return true, nil
		},
	}
	svc := newTestService(t, repo)

	_, err := svc.GenerateMonthly(context.Background(), GenerateInput{
		TenantID:   uuid.New(),
		ResellerID: uuid.New(),
		Fee:        decimal.RequireFromString("2500.00"),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatal("expected no bill written")
	}
}

func TestGenerateMonthlyRejectsNonPositiveFee(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(t, repo)

	_, err := svc.GenerateMonthly(context.Background(), GenerateInput{
		TenantID:   uuid.New(),
		ResellerID: uuid.New(),
		Fee:        decimal.Zero,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSettleMarksPaidAndPostsRevenue(t *testing.T) {
	repo := &fakeRepository{bills: map[uuid.UUID]*models.SubscriptionBill{}}
	led := newFakeLedger()
	svc := newLedgerService(t, repo, led)

	tenantID := uuid.New()
	bill := seedBill(repo, tenantID, enums.InvoiceStatusPending)

	settled, entry, err := svc.Settle(context.Background(), SettleInput{
		TenantID: tenantID,
		BillID:   bill.ID,
		Method:   enums.PaymentMethodBank,
	})
	if err != nil {
		t.Fatalf("unexpected settle error: %v", err)
	}
	if settled.Status != enums.InvoiceStatusPaid {
		t.Fatalf("unexpected status %s", settled.Status)
	}
	if settled.PaidAt == nil || !settled.PaidAt.Equal(testNow) {
		t.Fatalf("unexpected paid at %v", settled.PaidAt)
	}
	if stored := repo.bills[bill.ID]; stored.Status != enums.InvoiceStatusPaid {
		t.Fatal("expected saved bill marked paid")
	}

	if len(led.posted) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(led.posted))
	}
	posted := led.posted[0]
	if got := led.codeOf(posted.DebitAccountID); got != "1010" {
		t.Fatalf("expected bank debit, got account %s", got)
	}
	if got := led.codeOf(posted.CreditAccountID); got != "4100" {
		t.Fatalf("expected subscription revenue credit, got account %s", got)
	}
	if !posted.Amount.Equal(bill.TotalAmount) {
		t.Fatalf("unexpected posted amount %s", posted.Amount)
	}
	if posted.SourceType != enums.LedgerSourceSubscriptionBill || posted.SourceID != bill.ID {
		t.Fatalf("unexpected source %s %s", posted.SourceType, posted.SourceID)
	}
	if entry == nil {
		t.Fatal("expected ledger entry returned")
	}
}

func TestSettleRoutesMobileWalletMethods(t *testing.T) {
	repo := &fakeRepository{bills: map[uuid.UUID]*models.SubscriptionBill{}}
	led := newFakeLedger()
	svc := newLedgerService(t, repo, led)

	tenantID := uuid.New()
	bill := seedBill(repo, tenantID, enums.InvoiceStatusOverdue)

	_, _, err := svc.Settle(context.Background(), SettleInput{
		TenantID: tenantID,
		BillID:   bill.ID,
		Method:   enums.PaymentMethodBkash,
	})
	if err != nil {
		t.Fatalf("unexpected settle error: %v", err)
	}
	if got := led.codeOf(led.posted[0].DebitAccountID); got != "1020" {
		t.Fatalf("expected mobile wallet debit, got account %s", got)
	}
}

func TestSettleTwiceIsStateConflict(t *testing.T) {
	repo := &fakeRepository{bills: map[uuid.UUID]*models.SubscriptionBill{}}
	led := newFakeLedger()
	svc := newLedgerService(t, repo, led)

	tenantID := uuid.New()
	bill := seedBill(repo, tenantID, enums.InvoiceStatusPending)
	input := SettleInput{TenantID: tenantID, BillID: bill.ID, Method: enums.PaymentMethodCash}

	if _, _, err := svc.Settle(context.Background(), input); err != nil {
		t.Fatalf("unexpected first settle error: %v", err)
	}
	_, _, err := svc.Settle(context.Background(), input)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if len(led.posted) != 1 {
		t.Fatalf("expected a single ledger entry, got %d", len(led.posted))
	}
}

func TestSettleUnknownBillIsNotFound(t *testing.T) {
	repo := &fakeRepository{bills: map[uuid.UUID]*models.SubscriptionBill{}}
	svc := newLedgerService(t, repo, newFakeLedger())

	_, _, err := svc.Settle(context.Background(), SettleInput{
		TenantID: uuid.New(),
		BillID:   uuid.New(),
		Method:   enums.PaymentMethodCash,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSettleWithoutLedgerFailsCleanly(t *testing.T) {
	repo := &fakeRepository{bills: map[uuid.UUID]*models.SubscriptionBill{}}
	svc := newTestService(t, repo)

	tenantID := uuid.New()
	bill := seedBill(repo, tenantID, enums.InvoiceStatusPending)

	_, _, err := svc.Settle(context.Background(), SettleInput{
		TenantID: tenantID,
		BillID:   bill.ID,
		Method:   enums.PaymentMethodCash,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
	if stored := repo.bills[bill.ID]; stored.Status != enums.InvoiceStatusPending {
		t.Fatal("expected bill untouched")
	}
}

func TestGenerateMonthlyRejectsDiscountSwallowingFee(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(t, repo)

	_, err := svc.GenerateMonthly(context.Background(), GenerateInput{
		TenantID:       uuid.New(),
		ResellerID:     uuid.New(),
		Fee:            decimal.RequireFromString("100.00"),
		DiscountAmount: decimal.RequireFromString("100.00"),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
