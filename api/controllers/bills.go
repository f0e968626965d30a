package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/netbillhq/netbill-backend/api/responses"
	"github.com/netbillhq/netbill-backend/internal/bills"
	"github.com/netbillhq/netbill-backend/pkg/db/models"
	"github.com/netbillhq/netbill-backend/pkg/enums"
	"github.com/netbillhq/netbill-backend/pkg/errors"
	"github.com/netbillhq/netbill-backend/pkg/logger"
)

type billSettler interface {
	Settle(ctx context.Context, input bills.SettleInput) (*models.SubscriptionBill, *models.LedgerEntry, error)
}

type settleBillRequest struct {
	TenantID string  `json:"tenant_id"`
	Method   string  `json:"method"`
	Notes    *string `json:"notes,omitempty"`
}

// SettleBill marks a reseller subscription bill paid and books the collection
// on the ledger.
func SettleBill(svc billSettler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, errors.New(errors.CodeInternal, "bill service unavailable"))
			return
		}

		billID, err := uuid.Parse(chi.URLParam(r, "billID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, errors.Wrap(errors.CodeValidation, err, "parse bill id"))
			return
		}

		var req settleBillRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responses.WriteError(ctx, logg, w, errors.Wrap(errors.CodeValidation, err, "decode settle request"))
			return
		}
		tenantID, err := uuid.Parse(req.TenantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, errors.Wrap(errors.CodeValidation, err, "parse tenant id"))
			return
		}

		bill, entry, err := svc.Settle(ctx, bills.SettleInput{
			TenantID: tenantID,
			BillID:   billID,
			Method:   enums.PaymentMethod(req.Method),
			Notes:    req.Notes,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"bill_id":         bill.ID,
			"bill_number":     bill.BillNumber,
			"status":          bill.Status,
			"paid_at":         bill.PaidAt,
			"ledger_entry_id": entry.ID,
		})
	}
}
