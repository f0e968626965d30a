package invoices

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/netbillhq/netbill-backend/pkg/billmath"
	"github.com/netbillhq/netbill-backend/pkg/db/models"
	"github.com/netbillhq/netbill-backend/pkg/enums"
	pkgerrors "github.com/netbillhq/netbill-backend/pkg/errors"
	"github.com/netbillhq/netbill-backend/pkg/refnum"
)

const numberRetries = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the invoice generator.
type ServiceParams struct {
	Repo               Repository
	DB                 txRunner
	GracePeriodDays    int
	ProrationBasisDays int
	Now                func() time.Time
}

// Service generates monthly and prorated daily invoices.
type Service struct {
	repo      Repository
	db        txRunner
	graceDays int
	basisDays int
	now       func() time.Time
}

// NewService builds an invoice generator.
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
	basisDays := params.ProrationBasisDays
	if basisDays <= 0 {
		basisDays = billmath.DefaultProrationBasisDays
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      params.Repo,
		db:        params.DB,
		graceDays: graceDays,
		basisDays: basisDays,
		now:       now,
	}, nil
}

// GenerateInput describes one invoice to generate.
type GenerateInput struct {
	TenantID   uuid.UUID
	CustomerID uuid.UUID
	Package    *models.ServicePackage

	// AnchorDate starts the billing period; zero means now.
	AnchorDate time.Time
	// ValidityDays overrides the package validity for daily billing.
	ValidityDays int
	// GraceDays overrides the service default when a billing profile
	// carries its own grace period.
	GraceDays int

	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	Notes          *string
}

func (in GenerateInput) validate() error {
	if in.TenantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if in.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if in.Package == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "package is required")
	}
	if !in.Package.Price.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "package price must be positive")
	}
	if in.TaxAmount.IsNegative() || in.DiscountAmount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "tax and discount must not be negative")
	}
	return nil
}

// GenerateMonthly creates a pending invoice covering one calendar month from
// the anchor date. Generating twice for the same customer and period start
// returns a conflict, which scheduled runs treat as already billed.
func (s *Service) GenerateMonthly(ctx context.Context, input GenerateInput) (*models.Invoice, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	anchor := input.AnchorDate
	if anchor.IsZero() {
		anchor = s.now()
	}
	start, end := billmath.MonthlyPeriod(anchor)
	return s.generate(ctx, input, input.Package.Price, start, end)
}

// GenerateDaily creates a pending invoice for validityDays of service,
// prorated from the package's monthly price.
func (s *Service) GenerateDaily(ctx context.Context, input GenerateInput) (*models.Invoice, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	days := input.ValidityDays
	if days == 0 {
		days = input.Package.ValidityDays
	}
	if days <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validity days must be positive")
	}
	anchor := input.AnchorDate
	if anchor.IsZero() {
		anchor = s.now()
	}
	start, end := billmath.DailyPeriod(anchor, days)
	amount := billmath.Prorate(input.Package.Price, s.basisDays, days)
	return s.generate(ctx, input, amount, start, end)
}

func (s *Service) generate(ctx context.Context, input GenerateInput, amount decimal.Decimal, periodStart, periodEnd time.Time) (*models.Invoice, error) {
	total := billmath.Total(amount, input.TaxAmount, input.DiscountAmount)
	if !total.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice total must be positive")
	}
	graceDays := input.GraceDays
	if graceDays <= 0 {
		graceDays = s.graceDays
	}

	invoice := &models.Invoice{
		TenantID:           input.TenantID,
		CustomerID:         input.CustomerID,
		PackageID:          input.Package.ID,
		Amount:             amount,
		TaxAmount:          input.TaxAmount,
		DiscountAmount:     input.DiscountAmount,
		TotalAmount:        total,
		Status:             enums.InvoiceStatusPending,
		BillingPeriodStart: periodStart,
		BillingPeriodEnd:   periodEnd,
		DueDate:            billmath.DueDate(periodEnd, graceDays),
		Notes:              input.Notes,
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		exists, err := repo.ExistsForPeriod(ctx, input.TenantID, input.CustomerID, periodStart)
		if err != nil {
			return err
		}
		if exists {
			return pkgerrors.New(pkgerrors.CodeConflict, "invoice already exists for billing period")
		}
		return createWithNumberRetry(ctx, repo, invoice)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// createWithNumberRetry regenerates the invoice number on a unique-index
// collision. The timestamp+random scheme makes collisions vanishingly rare,
// so a handful of attempts is plenty.
func createWithNumberRetry(ctx context.Context, repo Repository, invoice *models.Invoice) error {
	var err error
	for attempt := 0; attempt < numberRetries; attempt++ {
		invoice.InvoiceNumber = refnum.Generate(refnum.PrefixInvoice, time.Now())
		err = repo.Create(ctx, invoice)
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
	}
	return err
}
