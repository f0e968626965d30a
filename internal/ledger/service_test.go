package ledger

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
	accounts map[uuid.UUID]*models.Account
	byCode   map[string]*models.Account
	entries  map[uuid.UUID]*models.LedgerEntry
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		accounts: map[uuid.UUID]*models.Account{},
		byCode:   map[string]*models.Account{},
		entries:  map[uuid.UUID]*models.LedgerEntry{},
	}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) CreateEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	stored := *entry
	f.entries[entry.ID] = &stored
	return nil
}

func (f *fakeRepository) FindEntry(ctx context.Context, tenantID, entryID uuid.UUID) (*models.LedgerEntry, error) {
	entry, ok := f.entries[entryID]
	if !ok {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

func (f *fakeRepository) MarkEntryReversed(ctx context.Context, entry *models.LedgerEntry) error {
	stored, ok := f.entries[entry.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.ReversedAt = entry.ReversedAt
	stored.ReversedByID = entry.ReversedByID
	return nil
}

func (f *fakeRepository) ListEntriesBySource(ctx context.Context, tenantID, sourceID uuid.UUID) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	for _, entry := range f.entries {
		if entry.SourceID == sourceID {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (f *fakeRepository) FindAccountByCode(ctx context.Context, tenantID uuid.UUID, code string) (*models.Account, error) {
	account, ok := f.byCode[code]
	if !ok {
		return nil, nil
	}
	return account, nil
}

func (f *fakeRepository) FindAccountForUpdate(ctx context.Context, tenantID, accountID uuid.UUID) (*models.Account, error) {
	account, ok := f.accounts[accountID]
	if !ok {
		return nil, nil
	}
	return account, nil
}

func (f *fakeRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	f.accounts[account.ID] = account
	f.byCode[account.Code] = account
	return nil
}

func (f *fakeRepository) SaveAccount(ctx context.Context, account *models.Account) error {
	f.accounts[account.ID] = account
	f.byCode[account.Code] = account
	return nil
}

func (f *fakeRepository) SumAccountBalances(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, decimal.Decimal, error) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, account := range f.accounts {
		debit = debit.Add(account.DebitBalance)
		credit = credit.Add(account.CreditBalance)
	}
	return debit, credit, nil
}

func (f *fakeRepository) addAccount(accountType enums.AccountType, code string) *models.Account {
	account := &models.Account{
		ID:            uuid.New(),
		TenantID:      uuid.New(),
		Code:          code,
		Name:          code,
		Type:          accountType,
		DebitBalance:  decimal.Zero,
		CreditBalance: decimal.Zero,
		Balance:       decimal.Zero,
	}
	f.accounts[account.ID] = account
	f.byCode[code] = account
	return account
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo: repo,
		DB:   &fakeTxRunner{},
		Now:  func() time.Time { return time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestPostRejectsNonPositiveAmount(t *testing.T) {
	repo := newFakeRepository()
	cash := repo.addAccount(enums.AccountTypeAsset, "1000")
	revenue := repo.addAccount(enums.AccountTypeRevenue, "4000")
	svc := newTestService(t, repo)

	_, err := svc.Post(context.Background(), PostInput{
		TenantID:        uuid.New(),
		DebitAccountID:  cash.ID,
		CreditAccountID: revenue.ID,
		Amount:          decimal.Zero,
		SourceType:      enums.LedgerSourcePayment,
		SourceID:        uuid.New(),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(repo.entries) != 0 {
		t.Fatal("expected no entry written")
	}
}

func TestPostRejectsSameAccountOnBothSides(t *testing.T) {
	repo := newFakeRepository()
	cash := repo.addAccount(enums.AccountTypeAsset, "1000")
	svc := newTestService(t, repo)

	_, err := svc.Post(context.Background(), PostInput{
		TenantID:        uuid.New(),
		DebitAccountID:  cash.ID,
		CreditAccountID: cash.ID,
		Amount:          decimal.RequireFromString("10.00"),
		SourceType:      enums.LedgerSourcePayment,
		SourceID:        uuid.New(),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPostMovesBothBalances(t *testing.T) {
	repo := newFakeRepository()
	cash := repo.addAccount(enums.AccountTypeAsset, "1000")
	revenue := repo.addAccount(enums.AccountTypeRevenue, "4000")
	svc := newTestService(t, repo)

	amount := decimal.RequireFromString("250.00")
	entry, err := svc.Post(context.Background(), PostInput{
		TenantID:        uuid.New(),
		DebitAccountID:  cash.ID,
		CreditAccountID: revenue.ID,
		Amount:          amount,
		Description:     "payment for invoice",
		SourceType:      enums.LedgerSourcePayment,
		SourceID:        uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected post error: %v", err)
	}
	if entry.EntryNumber == "" {
		t.Fatal("expected entry number")
	}
	if !cash.DebitBalance.Equal(amount) || !cash.Balance.Equal(amount) {
		t.Fatalf("unexpected cash balances: debit=%s balance=%s", cash.DebitBalance, cash.Balance)
	}
	if !revenue.CreditBalance.Equal(amount) || !revenue.Balance.Equal(amount) {
		t.Fatalf("unexpected revenue balances: credit=%s balance=%s", revenue.CreditBalance, revenue.Balance)
	}
}

func TestTrialBalanceStaysBalanced(t *testing.T) {
	repo := newFakeRepository()
	cash := repo.addAccount(enums.AccountTypeAsset, "1000")
	revenue := repo.addAccount(enums.AccountTypeRevenue, "4000")
	payable := repo.addAccount(enums.AccountTypeLiability, "2100")
	svc := newTestService(t, repo)
	tenantID := uuid.New()

	for _, raw := range []string{"100.00", "33.33", "9.99"} {
		_, err := svc.Post(context.Background(), PostInput{
			TenantID:        tenantID,
			DebitAccountID:  cash.ID,
			CreditAccountID: revenue.ID,
			Amount:          decimal.RequireFromString(raw),
			SourceType:      enums.LedgerSourcePayment,
			SourceID:        uuid.New(),
		})
		if err != nil {
			t.Fatalf("unexpected post error: %v", err)
		}
	}
	_, err := svc.Post(context.Background(), PostInput{
		TenantID:        tenantID,
		DebitAccountID:  revenue.ID,
		CreditAccountID: payable.ID,
		Amount:          decimal.RequireFromString("5.00"),
		SourceType:      enums.LedgerSourceCommission,
		SourceID:        uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected post error: %v", err)
	}

	balance, err := svc.TrialBalance(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("unexpected trial balance error: %v", err)
	}
	if !balance.Balanced() {
		t.Fatalf("trial balance out of balance: debit=%s credit=%s", balance.DebitTotal, balance.CreditTotal)
	}
}

func TestReverseStampsOriginalAndPostsInverse(t *testing.T) {
	repo := newFakeRepository()
	cash := repo.addAccount(enums.AccountTypeAsset, "1000")
	revenue := repo.addAccount(enums.AccountTypeRevenue, "4000")
	svc := newTestService(t, repo)
	tenantID := uuid.New()

	amount := decimal.RequireFromString("75.00")
	original, err := svc.Post(context.Background(), PostInput{
		TenantID:        tenantID,
		DebitAccountID:  cash.ID,
		CreditAccountID: revenue.ID,
		Amount:          amount,
		SourceType:      enums.LedgerSourcePayment,
		SourceID:        uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected post error: %v", err)
	}

	inverse, err := svc.Reverse(context.Background(), ReverseInput{TenantID: tenantID, EntryID: original.ID})
	if err != nil {
		t.Fatalf("unexpected reverse error: %v", err)
	}
	if inverse.DebitAccountID != revenue.ID || inverse.CreditAccountID != cash.ID {
		t.Fatal("expected inverse entry to swap accounts")
	}
	if inverse.SourceType != enums.LedgerSourceReversal || inverse.SourceID != original.ID {
		t.Fatalf("unexpected inverse source: %s %s", inverse.SourceType, inverse.SourceID)
	}
	stored := repo.entries[original.ID]
	if stored.ReversedAt == nil || stored.ReversedByID == nil || *stored.ReversedByID != inverse.ID {
		t.Fatal("expected original entry stamped as reversed")
	}
	// net movement back to zero on both accounts
	if !cash.Balance.IsZero() || !revenue.Balance.IsZero() {
		t.Fatalf("expected zero balances after reversal: cash=%s revenue=%s", cash.Balance, revenue.Balance)
	}
}

func TestReverseTwiceIsStateConflict(t *testing.T) {
	repo := newFakeRepository()
	cash := repo.addAccount(enums.AccountTypeAsset, "1000")
	revenue := repo.addAccount(enums.AccountTypeRevenue, "4000")
	svc := newTestService(t, repo)
	tenantID := uuid.New()

	original, err := svc.Post(context.Background(), PostInput{
		TenantID:        tenantID,
		DebitAccountID:  cash.ID,
		CreditAccountID: revenue.ID,
		Amount:          decimal.RequireFromString("20.00"),
		SourceType:      enums.LedgerSourcePayment,
		SourceID:        uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected post error: %v", err)
	}
	if _, err := svc.Reverse(context.Background(), ReverseInput{TenantID: tenantID, EntryID: original.ID}); err != nil {
		t.Fatalf("unexpected first reverse error: %v", err)
	}
	_, err = svc.Reverse(context.Background(), ReverseInput{TenantID: tenantID, EntryID: original.ID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestEnsureAccountSeedsFromChart(t *testing.T) {
	repo := newFakeRepository()
	svc, err := NewService(ServiceParams{
		Repo: repo,
		DB:   &fakeTxRunner{},
		Chart: []AccountDef{
			{Code: "1000", Name: "Cash", Type: enums.AccountTypeAsset},
		},
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	account, err := svc.EnsureAccountInTx(context.Background(), nil, uuid.New(), "1000")
	if err != nil {
		t.Fatalf("unexpected ensure error: %v", err)
	}
	if account.Type != enums.AccountTypeAsset || account.Code != "1000" {
		t.Fatalf("unexpected account %+v", account)
	}

	again, err := svc.EnsureAccountInTx(context.Background(), nil, uuid.New(), "1000")
	if err != nil {
		t.Fatalf("unexpected second ensure error: %v", err)
	}
	if again.ID != account.ID {
		t.Fatal("expected existing account to be reused")
	}

	_, err = svc.EnsureAccountInTx(context.Background(), nil, uuid.New(), "9999")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for unknown code, got %v", err)
	}
}
