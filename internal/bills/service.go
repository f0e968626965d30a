package bills

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/netbillhq/netbill-backend/internal/ledger"
	"github.com/netbillhq/netbill-backend/pkg/billmath"
	"github.com/netbillhq/netbill-backend/pkg/config"
	"github.com/netbillhq/netbill-backend/pkg/db/models"
	"github.com/netbillhq/netbill-backend/pkg/enums"
	pkgerrors "github.com/netbillhq/netbill-backend/pkg/errors"
	"github.com/netbillhq/netbill-backend/pkg/refnum"
)

const numberRetries = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ledgerService interface {
	EnsureAccountInTx(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, code string) (*models.Account, error)
	PostInTx(ctx context.Context, tx *gorm.DB, input ledger.PostInput) (*models.LedgerEntry, error)
}

// ServiceParams groups dependencies for the subscription bill service.
// Ledger and Billing are only needed when bills are settled, not generated.
type ServiceParams struct {
	Repo            Repository
	DB              txRunner
	Ledger          ledgerService
	Billing         config.BillingConfig
	GracePeriodDays int
	Now             func() time.Time
}

// Service generates and settles monthly subscription bills charged to
// resellers.
type Service struct {
	repo      Repository
	db        txRunner
	ledger    ledgerService
	billing   config.BillingConfig
	graceDays int
	now       func() time.Time
}

// NewService builds a subscription bill service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.DB == nil {
		return nil, errors.New("tx runner is required")
	}
	graceDays := params.GracePeriodDays
	if graceDays <= 0 {
		graceDays = 7
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      params.Repo,
		db:        params.DB,
		ledger:    params.Ledger,
		billing:   params.Billing,
		graceDays: graceDays,
		now:       now,
	}, nil
}

// GenerateInput describes one subscription bill to generate.
type GenerateInput struct {
	TenantID   uuid.UUID
	ResellerID uuid.UUID
	// Fee is the reseller's monthly platform charge, usually the price of
	// the subscription package assigned to the reseller.
	Fee decimal.Decimal

	AnchorDate     time.Time
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	Notes          *string
}

func (in GenerateInput) validate() error {
	if in.TenantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if in.ResellerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reseller id is required")
	}
	if !in.Fee.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription fee must be positive")
	}
	if in.TaxAmount.IsNegative() || in.DiscountAmount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "tax and discount must not be negative")
	}
	return nil
}

// GenerateMonthly creates a pending bill covering one calendar month from the
// anchor date. A second run for the same reseller and period start returns a
// conflict so scheduled generation is safe to repeat.
func (s *Service) GenerateMonthly(ctx context.Context, input GenerateInput) (*models.SubscriptionBill, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	anchor := input.AnchorDate
	if anchor.IsZero() {
		anchor = s.now()
	}
	start, end := billmath.MonthlyPeriod(anchor)

	total := billmath.Total(input.Fee, input.TaxAmount, input.DiscountAmount)
	if !total.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bill total must be positive")
	}

	bill := &models.SubscriptionBill{
		TenantID:           input.TenantID,
		ResellerID:         input.ResellerID,
		Amount:             input.Fee,
		TaxAmount:          input.TaxAmount,
		DiscountAmount:     input.DiscountAmount,
		TotalAmount:        total,
		Status:             enums.InvoiceStatusPending,
		BillingPeriodStart: start,
		BillingPeriodEnd:   end,
		DueDate:            billmath.DueDate(end, s.graceDays),
		Notes:              input.Notes,
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		exists, err := repo.ExistsForPeriod(ctx, input.TenantID, input.ResellerID, start)
		if err != nil {
			return err
		}
		if exists {
			return pkgerrors.New(pkgerrors.CodeConflict, "subscription bill already exists for billing period")
		}
		return createWithNumberRetry(ctx, repo, bill)
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// SettleInput records payment of a subscription bill.
type SettleInput struct {
	TenantID uuid.UUID
	BillID   uuid.UUID
	Method   enums.PaymentMethod
	Notes    *string
}

func (in SettleInput) validate() error {
	if in.TenantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if in.BillID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "bill id is required")
	}
	if !in.Method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", in.Method))
	}
	return nil
}

// Settle marks a pending or overdue bill paid and books the collection on the
// ledger, debiting the account for the payment method and crediting
// subscription revenue. Bill row update and ledger posting share one
// transaction.
func (s *Service) Settle(ctx context.Context, input SettleInput) (*models.SubscriptionBill, *models.LedgerEntry, error) {
	if err := input.validate(); err != nil {
		return nil, nil, err
	}
	if s.ledger == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger is not configured for bill settlement")
	}

	var (
		bill  *models.SubscriptionBill
		entry *models.LedgerEntry
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := repo.FindForUpdate(ctx, input.TenantID, input.BillID)
		if err != nil {
			return err
		}
		if found == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "subscription bill not found")
		}
		switch found.Status {
		case enums.InvoiceStatusPaid:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription bill is already paid")
		case enums.InvoiceStatusCancelled:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription bill is cancelled")
		}

		paidAt := s.now()
		found.Status = enums.InvoiceStatusPaid
		found.PaidAt = &paidAt
		if input.Notes != nil {
			found.Notes = input.Notes
		}
		if err := repo.Save(ctx, found); err != nil {
			return err
		}

		debitAccount, err := s.ledger.EnsureAccountInTx(ctx, tx, found.TenantID, s.debitAccountCode(input.Method))
		if err != nil {
			return err
		}
		creditAccount, err := s.ledger.EnsureAccountInTx(ctx, tx, found.TenantID, s.billing.SubscriptionRevenueCode)
		if err != nil {
			return err
		}
		entry, err = s.ledger.PostInTx(ctx, tx, ledger.PostInput{
			TenantID:        found.TenantID,
			DebitAccountID:  debitAccount.ID,
			CreditAccountID: creditAccount.ID,
			Amount:          found.TotalAmount,
			Description:     fmt.Sprintf("subscription bill %s", found.BillNumber),
			SourceType:      enums.LedgerSourceSubscriptionBill,
			SourceID:        found.ID,
		})
		if err != nil {
			return err
		}
		bill = found
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return bill, entry, nil
}

func (s *Service) debitAccountCode(method enums.PaymentMethod) string {
	switch method {
	case enums.PaymentMethodBank, enums.PaymentMethodOnline:
		return s.billing.BankAccountCode
	case enums.PaymentMethodBkash, enums.PaymentMethodNagad:
		return s.billing.MobileWalletAccountCode
	default:
		return s.billing.CashAccountCode
	}
}

func createWithNumberRetry(ctx context.Context, repo Repository, bill *models.SubscriptionBill) error {
	var err error
	for attempt := 0; attempt < numberRetries; attempt++ {
		bill.BillNumber = refnum.Generate(refnum.PrefixBill, time.Now())
		err = repo.Create(ctx, bill)
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
	}
	return err
}
