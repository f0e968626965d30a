package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/netbillhq/netbill-backend/internal/invoices"
	"github.com/netbillhq/netbill-backend/internal/users"
	"github.com/netbillhq/netbill-backend/pkg/logger"
)

// AccountLockJobParams configure the delinquent account lock job.
type AccountLockJobParams struct {
	Logger    *logger.Logger
	Invoices  invoices.Repository
	Users     users.Repository
	ChunkSize int
	Now       func() time.Time
}

// AccountLockJob suspends customers that carry an overdue balance. Payment
// application reactivates them the moment the last outstanding invoice
// settles.
type AccountLockJob struct {
	logg     *logger.Logger
	invoices invoices.Repository
	users    users.Repository
	chunk    int
	now      func() time.Time
}

// NewAccountLockJob builds the account lock job.
func NewAccountLockJob(params AccountLockJobParams) (*AccountLockJob, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Invoices == nil {
		return nil, errors.New("invoices repo is required")
	}
	if params.Users == nil {
		return nil, errors.New("users repo is required")
	}
	chunk := params.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &AccountLockJob{
		logg:     params.Logger,
		invoices: params.Invoices,
		users:    params.Users,
		chunk:    chunk,
		now:      now,
	}, nil
}

// Name implements Job.
func (j *AccountLockJob) Name() string { return "delinquent_account_lock" }

// Run implements Job.
func (j *AccountLockJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	var errs error
	var locked int64

	for offset := 0; ; offset += j.chunk {
		accounts, err := j.invoices.ListDelinquentAccounts(ctx, cutoff, j.chunk, offset)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list delinquent accounts: %w", err))
		}
		if len(accounts) == 0 {
			break
		}

		for tenantID, customerIDs := range groupByTenant(accounts) {
			rows, err := j.users.SetActive(ctx, tenantID, customerIDs, false)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("tenant %s: lock accounts: %w", tenantID, err))
				continue
			}
			locked += rows
		}

		if len(accounts) < j.chunk {
			break
		}
	}

	runCtx := j.logg.WithField(ctx, "accounts_locked", locked)
	j.logg.Info(runCtx, "account lock pass complete")
	return errs
}

func groupByTenant(accounts []invoices.DelinquentAccount) map[uuid.UUID][]uuid.UUID {
	grouped := make(map[uuid.UUID][]uuid.UUID)
	for _, account := range accounts {
		grouped[account.TenantID] = append(grouped[account.TenantID], account.CustomerID)
	}
	return grouped
}
