package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/netbillhq/netbill-backend/pkg/config"
	"github.com/netbillhq/netbill-backend/pkg/db/models"
	"github.com/netbillhq/netbill-backend/pkg/enums"
	pkgerrors "github.com/netbillhq/netbill-backend/pkg/errors"
	"github.com/netbillhq/netbill-backend/pkg/refnum"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AccountDef seeds one chart-of-accounts row the first time its code is used.
type AccountDef struct {
	Code string
	Name string
	Type enums.AccountType
}

// DefaultChart maps the configured account codes to their bookkeeping roles.
func DefaultChart(cfg config.BillingConfig) []AccountDef {
	return []AccountDef{
		{Code: cfg.CashAccountCode, Name: "Cash", Type: enums.AccountTypeAsset},
		{Code: cfg.BankAccountCode, Name: "Bank", Type: enums.AccountTypeAsset},
		{Code: cfg.MobileWalletAccountCode, Name: "Mobile Wallet", Type: enums.AccountTypeAsset},
		{Code: cfg.ReceivableAccountCode, Name: "Accounts Receivable", Type: enums.AccountTypeAsset},
		{Code: cfg.RevenueAccountCode, Name: "Service Revenue", Type: enums.AccountTypeRevenue},
		{Code: cfg.SubscriptionRevenueCode, Name: "Subscription Revenue", Type: enums.AccountTypeRevenue},
		{Code: cfg.CommissionExpenseCode, Name: "Commission Expense", Type: enums.AccountTypeExpense},
		{Code: cfg.CommissionPayableCode, Name: "Commission Payable", Type: enums.AccountTypeLiability},
	}
}

// ServiceParams groups dependencies for the ledger service.
type ServiceParams struct {
	Repo  Repository
	DB    txRunner
	Chart []AccountDef
	Now   func() time.Time
}

// Service posts balanced journal entries and maintains account balances.
type Service struct {
	repo  Repository
	db    txRunner
	chart map[string]AccountDef
	now   func() time.Time
}

// NewService builds a ledger service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.DB == nil {
		return nil, errors.New("tx runner is required")
	}
	chart := make(map[string]AccountDef, len(params.Chart))
	for _, def := range params.Chart {
		if def.Code == "" || !def.Type.IsValid() {
			return nil, fmt.Errorf("invalid account definition %+v", def)
		}
		chart[def.Code] = def
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{repo: params.Repo, db: params.DB, chart: chart, now: now}, nil
}

// PostInput describes one balanced journal entry.
type PostInput struct {
	TenantID        uuid.UUID
	DebitAccountID  uuid.UUID
	CreditAccountID uuid.UUID
	Amount          decimal.Decimal
	Description     string
	SourceType      enums.LedgerSourceType
	SourceID        uuid.UUID
	EntryDate       time.Time
}

func (in PostInput) validate() error {
	if in.TenantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if in.DebitAccountID == uuid.Nil || in.CreditAccountID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "debit and credit accounts are required")
	}
	if in.DebitAccountID == in.CreditAccountID {
		return pkgerrors.New(pkgerrors.CodeValidation, "debit and credit accounts must differ")
	}
	if !in.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "ledger amount must be positive")
	}
	if !in.SourceType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid ledger source type %q", in.SourceType))
	}
	if in.SourceID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "source id is required")
	}
	return nil
}

// Post appends one journal entry inside its own transaction.
func (s *Service) Post(ctx context.Context, input PostInput) (*models.LedgerEntry, error) {
	var entry *models.LedgerEntry
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		posted, err := s.PostInTx(ctx, tx, input)
		if err != nil {
			return err
		}
		entry = posted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// PostInTx appends one journal entry and moves both account balances inside
// the caller's transaction. Validation happens before any write.
func (s *Service) PostInTx(ctx context.Context, tx *gorm.DB, input PostInput) (*models.LedgerEntry, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)

	// Lock the two accounts in a stable order so two concurrent postings
	// touching the same pair cannot deadlock.
	first, second := input.DebitAccountID, input.CreditAccountID
	if second.String() < first.String() {
		first, second = second, first
	}
	locked := make(map[uuid.UUID]*models.Account, 2)
	for _, id := range []uuid.UUID{first, second} {
		account, err := repo.FindAccountForUpdate(ctx, input.TenantID, id)
		if err != nil {
			return nil, err
		}
		if account == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("ledger account %s not found", id))
		}
		locked[id] = account
	}

	debitAccount := locked[input.DebitAccountID]
	creditAccount := locked[input.CreditAccountID]
	debitAccount.DebitBalance = debitAccount.DebitBalance.Add(input.Amount)
	creditAccount.CreditBalance = creditAccount.CreditBalance.Add(input.Amount)
	recomputeBalance(debitAccount)
	recomputeBalance(creditAccount)

	entryDate := input.EntryDate
	if entryDate.IsZero() {
		entryDate = s.now().UTC()
	}
	entry := &models.LedgerEntry{
		TenantID:        input.TenantID,
		EntryNumber:     refnum.Generate(refnum.PrefixJournal, s.now()),
		EntryDate:       entryDate,
		DebitAccountID:  input.DebitAccountID,
		CreditAccountID: input.CreditAccountID,
		Amount:          input.Amount,
		Description:     input.Description,
		SourceType:      input.SourceType,
		SourceID:        input.SourceID,
	}
	if err := repo.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}
	if err := repo.SaveAccount(ctx, debitAccount); err != nil {
		return nil, err
	}
	if err := repo.SaveAccount(ctx, creditAccount); err != nil {
		return nil, err
	}
	return entry, nil
}

// ReverseInput identifies the entry to reverse.
type ReverseInput struct {
	TenantID    uuid.UUID
	EntryID     uuid.UUID
	Description string
}

// Reverse posts the inverse movement of an entry and stamps the original as
// reversed. The original row is never deleted.
func (s *Service) Reverse(ctx context.Context, input ReverseInput) (*models.LedgerEntry, error) {
	var inverse *models.LedgerEntry
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		inverse, err = s.ReverseInTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inverse, nil
}

// ReverseInTx reverses an entry inside the caller's transaction.
func (s *Service) ReverseInTx(ctx context.Context, tx *gorm.DB, input ReverseInput) (*models.LedgerEntry, error) {
	repo := s.repo.WithTx(tx)
	original, err := repo.FindEntry(ctx, input.TenantID, input.EntryID)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ledger entry not found")
	}
	if original.ReversedAt != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "ledger entry already reversed")
	}

	description := input.Description
	if description == "" {
		description = fmt.Sprintf("reversal of %s", original.EntryNumber)
	}
	inverse, err := s.PostInTx(ctx, tx, PostInput{
		TenantID:        input.TenantID,
		DebitAccountID:  original.CreditAccountID,
		CreditAccountID: original.DebitAccountID,
		Amount:          original.Amount,
		Description:     description,
		SourceType:      enums.LedgerSourceReversal,
		SourceID:        original.ID,
	})
	if err != nil {
		return nil, err
	}

	reversedAt := s.now().UTC()
	original.ReversedAt = &reversedAt
	original.ReversedByID = &inverse.ID
	if err := repo.MarkEntryReversed(ctx, original); err != nil {
		return nil, err
	}
	return inverse, nil
}

// EntriesBySource lists the journal entries generated by one source document,
// oldest first.
func (s *Service) EntriesBySource(ctx context.Context, tenantID, sourceID uuid.UUID) ([]models.LedgerEntry, error) {
	if tenantID == uuid.Nil || sourceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id and source id are required")
	}
	return s.repo.ListEntriesBySource(ctx, tenantID, sourceID)
}

// EnsureAccountInTx returns the tenant's account for the given code, seeding
// it from the chart definition on first use.
func (s *Service) EnsureAccountInTx(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, code string) (*models.Account, error) {
	repo := s.repo.WithTx(tx)
	account, err := repo.FindAccountByCode(ctx, tenantID, code)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}
	def, ok := s.chart[code]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("account code %q is not in the chart of accounts", code))
	}
	account = &models.Account{
		TenantID:      tenantID,
		Code:          def.Code,
		Name:          def.Name,
		Type:          def.Type,
		DebitBalance:  decimal.Zero,
		CreditBalance: decimal.Zero,
		Balance:       decimal.Zero,
	}
	if err := repo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// TrialBalance reports the tenant's aggregate debit and credit movements.
type TrialBalance struct {
	DebitTotal  decimal.Decimal
	CreditTotal decimal.Decimal
}

// Balanced reports whether total debits equal total credits.
func (t TrialBalance) Balanced() bool {
	return t.DebitTotal.Equal(t.CreditTotal)
}

// TrialBalance sums every account's debit and credit balance for the tenant.
func (s *Service) TrialBalance(ctx context.Context, tenantID uuid.UUID) (TrialBalance, error) {
	if tenantID == uuid.Nil {
		return TrialBalance{}, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	debit, credit, err := s.repo.SumAccountBalances(ctx, tenantID)
	if err != nil {
		return TrialBalance{}, err
	}
	return TrialBalance{DebitTotal: debit, CreditTotal: credit}, nil
}

func recomputeBalance(account *models.Account) {
	if account.Type.NormalDebit() {
		account.Balance = account.DebitBalance.Sub(account.CreditBalance)
		return
	}
	account.Balance = account.CreditBalance.Sub(account.DebitBalance)
}
