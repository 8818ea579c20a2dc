package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/marcelsud/plop-reliability/webhook"
)

// AttemptHeader carries the scheduler's 1-based attempt number
const AttemptHeader = "X-Attempt-Number"

type deliveryTaskRequest struct {
	WebhookEndpointID string `json:"webhookEndpointId"`
	MessageID         string `json:"messageId"`
}

type skippedResponse struct {
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason,omitempty"`
}

type deliveredResponse struct {
	Success    bool  `json:"success"`
	HTTPStatus int   `json:"httpStatus"`
	LatencyMs  int64 `json:"latencyMs"`
}

// postDeliveryTask handles POST /v1/tasks/webhook-delivery
// Any non-2xx answer tells the scheduler to retry.
func postDeliveryTask(deliveries webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req deliveryTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.WebhookEndpointID == "" || req.MessageID == "" {
			writeError(w, http.StatusBadRequest, "webhookEndpointId and messageId are required")
			return
		}

		attempt, err := attemptNumber(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		task := webhook.Task{WebhookEndpointID: req.WebhookEndpointID, MessageID: req.MessageID}
		result, err := deliveries.Deliver(r.Context(), task, attempt)
		if err != nil {
			var deliveryErr *webhook.DeliveryError
			if errors.As(err, &deliveryErr) {
				writeJSON(w, http.StatusBadGateway, errorResponse{
					Error:      deliveryErr.Err.Error(),
					DeliveryID: deliveryErr.DeliveryID,
					HTTPStatus: deliveryErr.HTTPStatus,
				})
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		if result.Skipped {
			writeJSON(w, http.StatusOK, skippedResponse{Skipped: true, Reason: result.SkipReason})
			return
		}
		writeJSON(w, http.StatusOK, deliveredResponse{
			Success:    true,
			HTTPStatus: result.HTTPStatus,
			LatencyMs:  result.LatencyMs,
		})
	})
}

// attemptNumber reads AttemptHeader; a missing header means the first attempt
func attemptNumber(r *http.Request) (int, error) {
	raw := r.Header.Get(AttemptHeader)
	if raw == "" {
		return 1, nil
	}
	attempt, err := strconv.Atoi(raw)
	if err != nil || attempt < 1 {
		return 0, errors.New(AttemptHeader + " must be a positive integer")
	}
	return attempt, nil
}
