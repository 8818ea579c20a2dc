package chi

import (
	"net/http"

	"github.com/marcelsud/plop-reliability/store"
)

type storeHealth struct {
	Enabled bool `json:"enabled"`
	Healthy bool `json:"healthy"`
}

type healthResponse struct {
	Status string      `json:"status"`
	Store  storeHealth `json:"store"`
}

// getHealth handles GET /health
// A demoted store is reported as degraded but the process keeps serving.
func getHealth(handle *store.Handle) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := healthResponse{
			Status: "healthy",
			Store: storeHealth{
				Enabled: handle.Enabled(),
				Healthy: handle.Healthy(),
			},
		}
		if response.Store.Enabled && !response.Store.Healthy {
			response.Status = "degraded"
		}
		writeJSON(w, http.StatusOK, response)
	})
}
