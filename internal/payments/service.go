package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/netbillhq/netbill-backend/internal/commissions"
	"github.com/netbillhq/netbill-backend/internal/invoices"
	"github.com/netbillhq/netbill-backend/internal/ledger"
	"github.com/netbillhq/netbill-backend/internal/users"
	"github.com/netbillhq/netbill-backend/pkg/config"
	"github.com/netbillhq/netbill-backend/pkg/db/models"
	"github.com/netbillhq/netbill-backend/pkg/enums"
	pkgerrors "github.com/netbillhq/netbill-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ledgerService interface {
	EnsureAccountInTx(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, code string) (*models.Account, error)
	PostInTx(ctx context.Context, tx *gorm.DB, input ledger.PostInput) (*models.LedgerEntry, error)
	ReverseInTx(ctx context.Context, tx *gorm.DB, input ledger.ReverseInput) (*models.LedgerEntry, error)
	EntriesBySource(ctx context.Context, tenantID, sourceID uuid.UUID) ([]models.LedgerEntry, error)
}

type commissionService interface {
	CalculateMultiLevelInTx(ctx context.Context, tx *gorm.DB, input commissions.CalculateInput) ([]*models.Commission, error)
	CancelForPaymentInTx(ctx context.Context, tx *gorm.DB, tenantID, paymentID uuid.UUID) (cancelled, settled []*models.Commission, err error)
}

// ServiceParams groups dependencies for the payment processor.
type ServiceParams struct {
	Repo        Repository
	Invoices    invoices.Repository
	Users       users.Repository
	Ledger      ledgerService
	Commissions commissionService
	DB          txRunner
	Billing     config.BillingConfig
	Now         func() time.Time
}

// Service applies payments to invoices and drives everything a completed
// payment triggers: status transitions, ledger postings, commission cascades
// and account reactivation.
type Service struct {
	repo        Repository
	invoices    invoices.Repository
	users       users.Repository
	ledger      ledgerService
	commissions commissionService
	db          txRunner
	billing     config.BillingConfig
	now         func() time.Time
}

// NewService builds a payment service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Invoices == nil {
		return nil, errors.New("invoices repo is required")
	}
	if params.Users == nil {
		return nil, errors.New("users repo is required")
	}
	if params.Ledger == nil {
		return nil, errors.New("ledger service is required")
	}
	if params.Commissions == nil {
		return nil, errors.New("commission service is required")
	}
	if params.DB == nil {
		return nil, errors.New("tx runner is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:        params.Repo,
		invoices:    params.Invoices,
		users:       params.Users,
		ledger:      params.Ledger,
		commissions: params.Commissions,
		db:          params.DB,
		billing:     params.Billing,
		now:         now,
	}, nil
}

// ApplyInput describes one payment against an invoice.
type ApplyInput struct {
	TenantID  uuid.UUID
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
	Method    enums.PaymentMethod
	// Status must be completed or failed. Failed payments are recorded for
	// the audit trail but change nothing on the invoice.
	Status enums.PaymentStatus
	// TransactionID dedupes gateway retries. A replay of an already applied
	// transaction returns the original payment untouched.
	TransactionID *string
	Notes         *string
}

func (in ApplyInput) validate() error {
	if in.TenantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if in.InvoiceID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}
	if !in.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	if !in.Method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", in.Method))
	}
	if in.Status != enums.PaymentStatusCompleted && in.Status != enums.PaymentStatusFailed {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment status must be completed or failed")
	}
	return nil
}

// ApplyResult reports everything one payment application touched.
type ApplyResult struct {
	Payment     *models.Payment
	Invoice     *models.Invoice
	LedgerEntry *models.LedgerEntry
	Commissions []*models.Commission
	// Duplicate is set when the transaction id was already applied; Payment
	// then holds the original row and nothing else was written.
	Duplicate bool
	// Reactivated is set when settling this invoice cleared the customer's
	// last outstanding balance and unlocked the account.
	Reactivated bool
}

// Apply records a payment and, when it completes the invoice, settles it,
// posts the ledger movement, cascades commissions and reactivates the
// customer. Everything happens in one database transaction.
func (s *Service) Apply(ctx context.Context, input ApplyInput) (*ApplyResult, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	result := &ApplyResult{}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		invoiceRepo := s.invoices.WithTx(tx)
		paymentRepo := s.repo.WithTx(tx)

		invoice, err := invoiceRepo.FindForUpdate(ctx, input.TenantID, input.InvoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		result.Invoice = invoice

		if txnID := transactionID(input.TransactionID); txnID != "" {
			existing, err := paymentRepo.FindByTransactionID(ctx, input.TenantID, input.InvoiceID, txnID)
			if err != nil {
				return err
			}
			if existing != nil {
				result.Payment = existing
				result.Duplicate = true
				return nil
			}
		}

		if invoice.Status == enums.InvoiceStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invoice is cancelled")
		}
		if invoice.Status == enums.InvoiceStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invoice is already paid")
		}

		now := s.now().UTC()
		payment := &models.Payment{
			TenantID:      input.TenantID,
			InvoiceID:     invoice.ID,
			Amount:        input.Amount,
			Method:        input.Method,
			Status:        input.Status,
			TransactionID: input.TransactionID,
			Notes:         input.Notes,
		}
		if input.Status == enums.PaymentStatusCompleted {
			payment.PaidAt = &now
		}
		if err := paymentRepo.Create(ctx, payment); err != nil {
			// The partial unique index backstops the lookup above; losing
			// that race still resolves to the original payment.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				if txnID := transactionID(input.TransactionID); txnID != "" {
					existing, findErr := paymentRepo.FindByTransactionID(ctx, input.TenantID, input.InvoiceID, txnID)
					if findErr == nil && existing != nil {
						result.Payment = existing
						result.Duplicate = true
						return nil
					}
				}
			}
			return err
		}
		result.Payment = payment

		if input.Status != enums.PaymentStatusCompleted {
			return nil
		}

		paidTotal, err := paymentRepo.SumCompletedByInvoice(ctx, input.TenantID, invoice.ID)
		if err != nil {
			return err
		}
		settled := paidTotal.GreaterThanOrEqual(invoice.TotalAmount)
		if settled {
			invoice.Status = enums.InvoiceStatusPaid
			invoice.PaidAt = &now
			if err := invoiceRepo.Save(ctx, invoice); err != nil {
				return err
			}
		}

		entry, err := s.postPayment(ctx, tx, invoice, payment)
		if err != nil {
			return err
		}
		result.LedgerEntry = entry

		earned, err := s.commissions.CalculateMultiLevelInTx(ctx, tx, commissions.CalculateInput{
			TenantID:   input.TenantID,
			Payment:    payment,
			CustomerID: invoice.CustomerID,
		})
		if err != nil {
			return err
		}
		result.Commissions = earned

		if settled {
			reactivated, err := s.reactivateIfClear(ctx, tx, invoice)
			if err != nil {
				return err
			}
			result.Reactivated = reactivated
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// postPayment debits the collection account for the payment method and
// credits service revenue.
func (s *Service) postPayment(ctx context.Context, tx *gorm.DB, invoice *models.Invoice, payment *models.Payment) (*models.LedgerEntry, error) {
	debitAccount, err := s.ledger.EnsureAccountInTx(ctx, tx, invoice.TenantID, s.debitAccountCode(payment.Method))
	if err != nil {
		return nil, err
	}
	creditAccount, err := s.ledger.EnsureAccountInTx(ctx, tx, invoice.TenantID, s.billing.RevenueAccountCode)
	if err != nil {
		return nil, err
	}
	return s.ledger.PostInTx(ctx, tx, ledger.PostInput{
		TenantID:        invoice.TenantID,
		DebitAccountID:  debitAccount.ID,
		CreditAccountID: creditAccount.ID,
		Amount:          payment.Amount,
		Description:     fmt.Sprintf("payment for invoice %s", invoice.InvoiceNumber),
		SourceType:      enums.LedgerSourcePayment,
		SourceID:        payment.ID,
	})
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

// reactivateIfClear unlocks the customer once no pending or overdue invoice
// remains on the account.
func (s *Service) reactivateIfClear(ctx context.Context, tx *gorm.DB, invoice *models.Invoice) (bool, error) {
	outstanding, err := s.invoices.WithTx(tx).CountOutstandingByCustomer(ctx, invoice.TenantID, invoice.CustomerID)
	if err != nil {
		return false, err
	}
	if outstanding > 0 {
		return false, nil
	}
	rows, err := s.users.WithTx(tx).SetActive(ctx, invoice.TenantID, []uuid.UUID{invoice.CustomerID}, true)
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// RefundInput identifies the payment to unwind.
type RefundInput struct {
	TenantID  uuid.UUID
	PaymentID uuid.UUID
	Notes     *string
}

// RefundResult reports everything a refund unwound.
type RefundResult struct {
	Payment   *models.Payment
	Invoice   *models.Invoice
	Reversals []*models.LedgerEntry
	// CancelledCommissions were still pending and have been voided.
	// SettledCommissions were already paid out and need manual clawback.
	CancelledCommissions []*models.Commission
	SettledCommissions   []*models.Commission
}

// Refund unwinds a completed payment: the payment flips to refunded, its
// ledger entries reverse, pending commissions cancel and the invoice reopens
// if the refund broke full settlement.
func (s *Service) Refund(ctx context.Context, input RefundInput) (*RefundResult, error) {
	if input.TenantID == uuid.Nil || input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id and payment id are required")
	}

	entries, err := s.ledger.EntriesBySource(ctx, input.TenantID, input.PaymentID)
	if err != nil {
		return nil, err
	}

	result := &RefundResult{}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		paymentRepo := s.repo.WithTx(tx)
		invoiceRepo := s.invoices.WithTx(tx)

		payment, err := paymentRepo.Find(ctx, input.TenantID, input.PaymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		if payment.Status != enums.PaymentStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only completed payments can be refunded")
		}

		invoice, err := invoiceRepo.FindForUpdate(ctx, input.TenantID, payment.InvoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}

		payment.Status = enums.PaymentStatusRefunded
		if input.Notes != nil {
			payment.Notes = input.Notes
		}
		if err := paymentRepo.Save(ctx, payment); err != nil {
			return err
		}
		result.Payment = payment

		for _, entry := range entries {
			inverse, err := s.ledger.ReverseInTx(ctx, tx, ledger.ReverseInput{
				TenantID: input.TenantID,
				EntryID:  entry.ID,
			})
			if err != nil {
				if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
					continue
				}
				return err
			}
			result.Reversals = append(result.Reversals, inverse)
		}

		cancelled, settled, err := s.commissions.CancelForPaymentInTx(ctx, tx, input.TenantID, payment.ID)
		if err != nil {
			return err
		}
		result.CancelledCommissions = cancelled
		result.SettledCommissions = settled

		if invoice.Status == enums.InvoiceStatusPaid {
			paidTotal, err := paymentRepo.SumCompletedByInvoice(ctx, input.TenantID, invoice.ID)
			if err != nil {
				return err
			}
			if paidTotal.LessThan(invoice.TotalAmount) {
				invoice.PaidAt = nil
				invoice.Status = enums.InvoiceStatusPending
				if s.now().UTC().After(invoice.DueDate) {
					invoice.Status = enums.InvoiceStatusOverdue
				}
				if err := invoiceRepo.Save(ctx, invoice); err != nil {
					return err
				}
			}
		}
		result.Invoice = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func transactionID(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}
