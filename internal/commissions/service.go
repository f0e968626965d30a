package commissions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/netbillhq/netbill-backend/internal/users"
	"github.com/netbillhq/netbill-backend/pkg/db/models"
	"github.com/netbillhq/netbill-backend/pkg/enums"
	pkgerrors "github.com/netbillhq/netbill-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the commission service.
type ServiceParams struct {
	Repo       Repository
	Users      users.Repository
	DB         txRunner
	LevelRates []decimal.Decimal
	MaxDepth   int
	Now        func() time.Time
}

// Service computes and settles reseller commissions for completed payments.
type Service struct {
	repo       Repository
	users      users.Repository
	db         txRunner
	levelRates []decimal.Decimal
	maxDepth   int
	now        func() time.Time
}

// NewService builds a commission service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Users == nil {
		return nil, errors.New("users repo is required")
	}
	if params.DB == nil {
		return nil, errors.New("tx runner is required")
	}
	maxDepth := params.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 5
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:       params.Repo,
		users:      params.Users,
		db:         params.DB,
		levelRates: params.LevelRates,
		maxDepth:   maxDepth,
		now:        now,
	}, nil
}

// CalculateInput ties a completed payment to the customer whose upline earns.
type CalculateInput struct {
	TenantID   uuid.UUID
	Payment    *models.Payment
	CustomerID uuid.UUID
}

func (in CalculateInput) validate() error {
	if in.TenantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if in.Payment == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment is required")
	}
	if in.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if in.Payment.Status != enums.PaymentStatusCompleted {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only completed payments earn commission")
	}
	return nil
}

// Calculate produces the direct upline's commission only. A customer with no
// parent produces no commission and no error.
func (s *Service) Calculate(ctx context.Context, input CalculateInput) (*models.Commission, error) {
	var created *models.Commission
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.cascadeInTx(ctx, tx, input, 1)
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			created = rows[0]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CalculateMultiLevel cascades commission up the reseller hierarchy inside
// its own transaction.
func (s *Service) CalculateMultiLevel(ctx context.Context, input CalculateInput) ([]*models.Commission, error) {
	var created []*models.Commission
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.CalculateMultiLevelInTx(ctx, tx, input)
		if err != nil {
			return err
		}
		created = rows
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CalculateMultiLevelInTx cascades commission inside the caller's
// transaction, one row per ancestor level with a non-zero rate. A broken
// parent chain stops the walk at the last resolvable ancestor.
func (s *Service) CalculateMultiLevelInTx(ctx context.Context, tx *gorm.DB, input CalculateInput) ([]*models.Commission, error) {
	return s.cascadeInTx(ctx, tx, input, s.maxDepth)
}

func (s *Service) cascadeInTx(ctx context.Context, tx *gorm.DB, input CalculateInput, depth int) ([]*models.Commission, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	userRepo := s.users.WithTx(tx)
	commissionRepo := s.repo.WithTx(tx)

	ancestors, err := userRepo.Ancestors(ctx, input.TenantID, input.CustomerID, depth)
	if err != nil {
		return nil, err
	}

	var created []*models.Commission
	for i, ancestor := range ancestors {
		level := i + 1
		rate := s.rateForLevel(ancestor, level)
		if !rate.IsPositive() {
			continue
		}
		commission := &models.Commission{
			TenantID:             input.TenantID,
			ResellerID:           ancestor.ID,
			PaymentID:            input.Payment.ID,
			InvoiceID:            input.Payment.InvoiceID,
			Level:                level,
			CommissionPercentage: rate,
			CommissionAmount:     commissionAmount(input.Payment.Amount, rate),
			Status:               enums.CommissionStatusPending,
		}
		if err := commissionRepo.Create(ctx, commission); err != nil {
			return nil, err
		}
		created = append(created, commission)
	}
	return created, nil
}

// rateForLevel prefers the reseller's own configured rate and falls back to
// the per-level table. Levels beyond the table earn nothing.
func (s *Service) rateForLevel(reseller models.User, level int) decimal.Decimal {
	if reseller.CommissionRate != nil && reseller.CommissionRate.IsPositive() {
		return *reseller.CommissionRate
	}
	if level-1 < len(s.levelRates) {
		return s.levelRates[level-1]
	}
	return decimal.Zero
}

func commissionAmount(paymentAmount, rate decimal.Decimal) decimal.Decimal {
	return paymentAmount.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
}

// Pay settles a pending commission. The originating payment is not
// re-validated.
func (s *Service) Pay(ctx context.Context, tenantID, commissionID uuid.UUID) (*models.Commission, error) {
	var paid *models.Commission
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		commission, err := repo.Find(ctx, tenantID, commissionID)
		if err != nil {
			return err
		}
		if commission == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "commission not found")
		}
		if commission.Status != enums.CommissionStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "commission is not pending")
		}
		paidAt := s.now().UTC()
		commission.Status = enums.CommissionStatusPaid
		commission.PaidAt = &paidAt
		paid = commission
		return repo.Save(ctx, commission)
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

// CancelForPaymentInTx voids every pending commission earned from the given
// payment inside the caller's transaction. Already settled commissions are
// left alone and reported back for manual clawback.
func (s *Service) CancelForPaymentInTx(ctx context.Context, tx *gorm.DB, tenantID, paymentID uuid.UUID) (cancelled, settled []*models.Commission, err error) {
	repo := s.repo.WithTx(tx)
	rows, err := repo.ListByPayment(ctx, tenantID, paymentID)
	if err != nil {
		return nil, nil, err
	}
	for i := range rows {
		commission := &rows[i]
		switch commission.Status {
		case enums.CommissionStatusPending:
			commission.Status = enums.CommissionStatusCancelled
			if err := repo.Save(ctx, commission); err != nil {
				return nil, nil, err
			}
			cancelled = append(cancelled, commission)
		case enums.CommissionStatusPaid:
			settled = append(settled, commission)
		}
	}
	return cancelled, settled, nil
}

// Cancel voids a pending commission, e.g. when the source payment refunds.
func (s *Service) Cancel(ctx context.Context, tenantID, commissionID uuid.UUID) (*models.Commission, error) {
	var cancelled *models.Commission
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		commission, err := repo.Find(ctx, tenantID, commissionID)
		if err != nil {
			return err
		}
		if commission == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "commission not found")
		}
		if commission.Status != enums.CommissionStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "commission is not pending")
		}
		commission.Status = enums.CommissionStatusCancelled
		cancelled = commission
		return repo.Save(ctx, commission)
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}
