package cron

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/netbillhq/netbill-backend/internal/invoices"
	"github.com/netbillhq/netbill-backend/internal/packages"
	"github.com/netbillhq/netbill-backend/pkg/db/models"
	"github.com/netbillhq/netbill-backend/pkg/enums"
	pkgerrors "github.com/netbillhq/netbill-backend/pkg/errors"
	"github.com/netbillhq/netbill-backend/pkg/logger"
)

const defaultChunkSize = 200

// InvoiceJobParams configure the recurring invoice jobs.
type InvoiceJobParams struct {
	Logger    *logger.Logger
	Generator *invoices.Service
	Invoices  invoices.Repository
	Packages  packages.Repository
	ChunkSize int
}

func (p InvoiceJobParams) validate() error {
	if p.Logger == nil {
		return errors.New("logger is required")
	}
	if p.Generator == nil {
		return errors.New("invoice generator is required")
	}
	if p.Invoices == nil {
		return errors.New("invoices repo is required")
	}
	if p.Packages == nil {
		return errors.New("packages repo is required")
	}
	return nil
}

// MonthlyInvoiceJob bills every active customer on a monthly package.
type MonthlyInvoiceJob struct {
	logg      *logger.Logger
	generator *invoices.Service
	invoices  invoices.Repository
	packages  packages.Repository
	chunk     int
}

// NewMonthlyInvoiceJob builds the monthly invoice job.
func NewMonthlyInvoiceJob(params InvoiceJobParams) (*MonthlyInvoiceJob, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	chunk := params.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}
	return &MonthlyInvoiceJob{
		logg:      params.Logger,
		generator: params.Generator,
		invoices:  params.Invoices,
		packages:  params.Packages,
		chunk:     chunk,
	}, nil
}

// Name implements Job.
func (j *MonthlyInvoiceJob) Name() string { return "monthly_invoice_generation" }

// Run implements Job.
func (j *MonthlyInvoiceJob) Run(ctx context.Context) error {
	return generateForBillingType(ctx, j.logg, j.invoices, j.packages, j.chunk,
		enums.BillingTypeMonthly, j.generator.GenerateMonthly)
}

// DailyInvoiceJob bills every active customer on a daily package, prorating
// the monthly price over the package validity.
type DailyInvoiceJob struct {
	logg      *logger.Logger
	generator *invoices.Service
	invoices  invoices.Repository
	packages  packages.Repository
	chunk     int
}

// NewDailyInvoiceJob builds the daily invoice job.
func NewDailyInvoiceJob(params InvoiceJobParams) (*DailyInvoiceJob, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	chunk := params.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}
	return &DailyInvoiceJob{
		logg:      params.Logger,
		generator: params.Generator,
		invoices:  params.Invoices,
		packages:  params.Packages,
		chunk:     chunk,
	}, nil
}

// Name implements Job.
func (j *DailyInvoiceJob) Name() string { return "daily_invoice_generation" }

// Run implements Job.
func (j *DailyInvoiceJob) Run(ctx context.Context) error {
	return generateForBillingType(ctx, j.logg, j.invoices, j.packages, j.chunk,
		enums.BillingTypeDaily, j.generator.GenerateDaily)
}

type generateFunc func(ctx context.Context, input invoices.GenerateInput) (*models.Invoice, error)

// generateForBillingType walks billable customers in chunks. One customer
// failing must not starve the rest of the run, so failures are collected and
// reported at the end.
func generateForBillingType(ctx context.Context, logg *logger.Logger, repo invoices.Repository, pkgRepo packages.Repository, chunk int, billingType enums.BillingType, generate generateFunc) error {
	var errs error
	generated, skipped := 0, 0

	// A tenant's billing profile may override the default grace period.
	// Tenants repeat across customers, so profile lookups are cached for
	// the whole run, misses included.
	graceByTenant := map[uuid.UUID]int{}
	graceDaysFor := func(tenantID uuid.UUID) (int, error) {
		if grace, ok := graceByTenant[tenantID]; ok {
			return grace, nil
		}
		profile, err := pkgRepo.FindBillingProfile(ctx, tenantID)
		if err != nil {
			return 0, err
		}
		grace := 0
		if profile != nil {
			grace = profile.GracePeriodDays
		}
		graceByTenant[tenantID] = grace
		return grace, nil
	}

	for offset := 0; ; offset += chunk {
		customers, err := repo.ListBillableCustomers(ctx, billingType, chunk, offset)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list billable customers: %w", err))
		}
		if len(customers) == 0 {
			break
		}

		for i := range customers {
			customer := &customers[i]
			if customer.PackageID == nil {
				continue
			}
			pkg, err := pkgRepo.Find(ctx, customer.TenantID, *customer.PackageID)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("customer %s: load package: %w", customer.ID, err))
				continue
			}
			if pkg == nil || !pkg.IsActive {
				continue
			}
			graceDays, err := graceDaysFor(customer.TenantID)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("customer %s: load billing profile: %w", customer.ID, err))
				continue
			}

			_, err = generate(ctx, invoices.GenerateInput{
				TenantID:   customer.TenantID,
				CustomerID: customer.ID,
				Package:    pkg,
				GraceDays:  graceDays,
			})
			if err != nil {
				if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
					skipped++
					continue
				}
				errs = multierr.Append(errs, fmt.Errorf("customer %s: %w", customer.ID, err))
				continue
			}
			generated++
		}

		if len(customers) < chunk {
			break
		}
	}

	runCtx := logg.WithFields(ctx, map[string]any{
		"billing_type": billingType.String(),
		"generated":    generated,
		"skipped":      skipped,
	})
	logg.Info(runCtx, "invoice generation pass complete")
	return errs
}
