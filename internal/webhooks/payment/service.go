package paymentwebhook

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/netbillhq/netbill-backend/internal/invoices"
	"github.com/netbillhq/netbill-backend/internal/payments"
	"github.com/netbillhq/netbill-backend/pkg/enums"
	pkgerrors "github.com/netbillhq/netbill-backend/pkg/errors"
	"github.com/netbillhq/netbill-backend/pkg/logger"
)

// Event is the normalized payment notification shared by every gateway
// integration. Gateway-specific adapters translate their payloads into this
// shape before handing off.
type Event struct {
	EventID       string `json:"event_id" validate:"required"`
	TenantID      string `json:"tenant_id" validate:"required,uuid"`
	InvoiceNumber string `json:"invoice_number" validate:"required"`
	Amount        string `json:"amount" validate:"required"`
	Method        string `json:"method" validate:"required"`
	Status        string `json:"status" validate:"required,oneof=completed failed"`
	TransactionID string `json:"transaction_id" validate:"required"`
	Notes         string `json:"notes"`
}

type paymentApplier interface {
	Apply(ctx context.Context, input payments.ApplyInput) (*payments.ApplyResult, error)
}

// Result is what one processed event reports back to the controller.
type Result = payments.ApplyResult

// ServiceParams groups dependencies for the payment webhook service.
type ServiceParams struct {
	Logger   *logger.Logger
	Payments paymentApplier
	Invoices invoices.Repository
	Guard    *IdempotencyGuard
}

// Service turns normalized gateway events into payment applications.
type Service struct {
	logg     *logger.Logger
	payments paymentApplier
	invoices invoices.Repository
	guard    *IdempotencyGuard
	validate *validator.Validate
}

// NewService builds a payment webhook service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment service required")
	}
	if params.Invoices == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "invoices repo required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	return &Service{
		logg:     params.Logger,
		payments: params.Payments,
		invoices: params.Invoices,
		guard:    params.Guard,
		validate: validator.New(),
	}, nil
}

// HandleEvent applies one gateway event. Redeliveries of an already processed
// event are acknowledged without touching anything; a downstream failure
// releases the idempotency key so the gateway's retry gets another attempt.
func (s *Service) HandleEvent(ctx context.Context, event Event) (*Result, error) {
	if err := s.validate.Struct(event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment event")
	}
	input, err := s.toApplyInput(event)
	if err != nil {
		return nil, err
	}

	seen, err := s.guard.CheckAndMark(ctx, event.EventID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency check")
	}
	if seen {
		eventCtx := s.logg.WithField(ctx, "event_id", event.EventID)
		s.logg.Info(eventCtx, "duplicate payment event acknowledged")
		return nil, nil
	}

	result, err := s.apply(ctx, event, input)
	if err != nil {
		if releaseErr := s.guard.Delete(ctx, event.EventID); releaseErr != nil {
			s.logg.Error(ctx, "failed to release idempotency key", releaseErr)
		}
		return nil, err
	}
	return result, nil
}

func (s *Service) apply(ctx context.Context, event Event, input payments.ApplyInput) (*Result, error) {
	invoice, err := s.invoices.FindByNumber(ctx, input.TenantID, event.InvoiceNumber)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}
	input.InvoiceID = invoice.ID

	result, err := s.payments.Apply(ctx, input)
	if err != nil {
		return nil, err
	}

	eventCtx := s.logg.WithFields(ctx, map[string]any{
		"event_id":       event.EventID,
		"invoice_number": event.InvoiceNumber,
		"duplicate":      result.Duplicate,
	})
	s.logg.Info(eventCtx, "payment event applied")
	return result, nil
}

func (s *Service) toApplyInput(event Event) (payments.ApplyInput, error) {
	tenantID, err := uuid.Parse(event.TenantID)
	if err != nil {
		return payments.ApplyInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tenant id")
	}
	amount, err := decimal.NewFromString(event.Amount)
	if err != nil {
		return payments.ApplyInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount")
	}
	method, err := enums.ParsePaymentMethod(event.Method)
	if err != nil {
		return payments.ApplyInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}
	status, err := enums.ParsePaymentStatus(event.Status)
	if err != nil {
		return payments.ApplyInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status")
	}

	input := payments.ApplyInput{
		TenantID:      tenantID,
		Amount:        amount,
		Method:        method,
		Status:        status,
		TransactionID: &event.TransactionID,
	}
	if event.Notes != "" {
		notes := event.Notes
		input.Notes = &notes
	}
	return input, nil
}
