package cron

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/netbillhq/netbill-backend/internal/bills"
	"github.com/netbillhq/netbill-backend/internal/packages"
	pkgerrors "github.com/netbillhq/netbill-backend/pkg/errors"
	"github.com/netbillhq/netbill-backend/pkg/logger"
)

// SubscriptionBillJobParams configure the reseller subscription bill job.
type SubscriptionBillJobParams struct {
	Logger    *logger.Logger
	Generator *bills.Service
	Bills     bills.Repository
	Packages  packages.Repository
	ChunkSize int
}

// SubscriptionBillJob charges every active reseller its monthly platform
// subscription. Resellers without an assigned subscription package are
// skipped.
type SubscriptionBillJob struct {
	logg      *logger.Logger
	generator *bills.Service
	bills     bills.Repository
	packages  packages.Repository
	chunk     int
}

// NewSubscriptionBillJob builds the subscription bill job.
func NewSubscriptionBillJob(params SubscriptionBillJobParams) (*SubscriptionBillJob, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Generator == nil {
		return nil, errors.New("bill generator is required")
	}
	if params.Bills == nil {
		return nil, errors.New("bills repo is required")
	}
	if params.Packages == nil {
		return nil, errors.New("packages repo is required")
	}
	chunk := params.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}
	return &SubscriptionBillJob{
		logg:      params.Logger,
		generator: params.Generator,
		bills:     params.Bills,
		packages:  params.Packages,
		chunk:     chunk,
	}, nil
}

// Name implements Job.
func (j *SubscriptionBillJob) Name() string { return "subscription_bill_generation" }

// Run implements Job.
func (j *SubscriptionBillJob) Run(ctx context.Context) error {
	var errs error
	generated, skipped := 0, 0

	for offset := 0; ; offset += j.chunk {
		resellers, err := j.bills.ListActiveResellers(ctx, j.chunk, offset)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list active resellers: %w", err))
		}
		if len(resellers) == 0 {
			break
		}

		for i := range resellers {
			reseller := &resellers[i]
			if reseller.PackageID == nil {
				continue
			}
			pkg, err := j.packages.Find(ctx, reseller.TenantID, *reseller.PackageID)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("reseller %s: load package: %w", reseller.ID, err))
				continue
			}
			if pkg == nil || !pkg.IsActive {
				continue
			}

			_, err = j.generator.GenerateMonthly(ctx, bills.GenerateInput{
				TenantID:   reseller.TenantID,
				ResellerID: reseller.ID,
				Fee:        pkg.Price,
			})
			if err != nil {
				if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
					skipped++
					continue
				}
				errs = multierr.Append(errs, fmt.Errorf("reseller %s: %w", reseller.ID, err))
				continue
			}
			generated++
		}

		if len(resellers) < j.chunk {
			break
		}
	}

	runCtx := j.logg.WithFields(ctx, map[string]any{
		"generated": generated,
		"skipped":   skipped,
	})
	j.logg.Info(runCtx, "subscription bill pass complete")
	return errs
}
