package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/netbillhq/netbill-backend/internal/bills"
	"github.com/netbillhq/netbill-backend/internal/invoices"
	"github.com/netbillhq/netbill-backend/pkg/logger"
)

// OverdueJobParams configure the overdue monitor.
type OverdueJobParams struct {
	Logger    *logger.Logger
	Invoices  invoices.Repository
	Bills     bills.Repository
	ChunkSize int
	Now       func() time.Time
}

// OverdueJob flips pending invoices and subscription bills past their due
// date to overdue, in chunks so a big backlog cannot hold one transaction
// open for the whole run.
type OverdueJob struct {
	logg     *logger.Logger
	invoices invoices.Repository
	bills    bills.Repository
	chunk    int
	now      func() time.Time
}

// NewOverdueJob builds the overdue monitor job.
func NewOverdueJob(params OverdueJobParams) (*OverdueJob, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Invoices == nil {
		return nil, errors.New("invoices repo is required")
	}
	if params.Bills == nil {
		return nil, errors.New("bills repo is required")
	}
	chunk := params.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &OverdueJob{
		logg:     params.Logger,
		invoices: params.Invoices,
		bills:    params.Bills,
		chunk:    chunk,
		now:      now,
	}, nil
}

// Name implements Job.
func (j *OverdueJob) Name() string { return "overdue_monitor" }

// Run implements Job.
func (j *OverdueJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()

	invoicesMarked, invErr := drain(j.chunk,
		func(limit int) ([]uuid.UUID, error) { return j.invoices.ListPendingPastDueIDs(ctx, cutoff, limit) },
		func(ids []uuid.UUID) (int64, error) { return j.invoices.MarkOverdue(ctx, ids) })

	billsMarked, billErr := drain(j.chunk,
		func(limit int) ([]uuid.UUID, error) { return j.bills.ListPendingPastDueIDs(ctx, cutoff, limit) },
		func(ids []uuid.UUID) (int64, error) { return j.bills.MarkOverdue(ctx, ids) })

	runCtx := j.logg.WithFields(ctx, map[string]any{
		"invoices_marked": invoicesMarked,
		"bills_marked":    billsMarked,
	})
	j.logg.Info(runCtx, "overdue pass complete")
	return multierr.Combine(invErr, billErr)
}

// drain repeatedly lists past-due ids and marks them until the backlog is
// empty. A full page with zero rows updated means another worker got there
// first; stop rather than spin on the same ids.
func drain(chunk int, list func(limit int) ([]uuid.UUID, error), mark func(ids []uuid.UUID) (int64, error)) (int64, error) {
	var marked int64
	for {
		ids, err := list(chunk)
		if err != nil {
			return marked, fmt.Errorf("list past due: %w", err)
		}
		if len(ids) == 0 {
			return marked, nil
		}
		rows, err := mark(ids)
		if err != nil {
			return marked, fmt.Errorf("mark overdue: %w", err)
		}
		marked += rows
		if len(ids) < chunk || rows == 0 {
			return marked, nil
		}
	}
}
