package webhooks

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/netbillhq/netbill-backend/api/responses"
	paymentwebhook "github.com/netbillhq/netbill-backend/internal/webhooks/payment"
	"github.com/netbillhq/netbill-backend/pkg/errors"
	"github.com/netbillhq/netbill-backend/pkg/logger"
)

type paymentWebhookService interface {
	HandleEvent(ctx context.Context, event paymentwebhook.Event) (*paymentwebhook.Result, error)
}

// PaymentWebhook ingests normalized gateway payment events.
func PaymentWebhook(svc paymentWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, errors.New(errors.CodeInternal, "webhook service unavailable"))
			return
		}

		var event paymentwebhook.Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			responses.WriteError(ctx, logg, w, errors.Wrap(errors.CodeValidation, err, "decode payment event"))
			return
		}

		result, err := svc.HandleEvent(ctx, event)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if result == nil {
			// duplicate delivery, already processed
			responses.WriteSuccess(w, map[string]any{"duplicate": true})
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"payment_id": result.Payment.ID,
			"duplicate":  result.Duplicate,
		})
	}
}
