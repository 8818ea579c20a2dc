package chi

import (
	"encoding/json"
	"net/http"
)

/* HTTP layer DTOs
 * Separate from domain entities to avoid leaking internal structure
 */

type errorResponse struct {
	Error      string `json:"error"`
	DeliveryID string `json:"deliveryId,omitempty"`
	HTTPStatus int    `json:"httpStatus,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
