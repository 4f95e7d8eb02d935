package handlers

import "net/http"

type RootResponse struct {
	Message     string            `json:"message"`
	Description string            `json:"description"`
	Version     string            `json:"version"`
	Persistence string            `json:"persistence"`
	Endpoints   map[string]string `json:"endpoints"`
	Note        string            `json:"note,omitempty"`
}

// Root serves service metadata on GET /.
func Root(version string, persistent bool) http.HandlerFunc {
	resp := RootResponse{
		Message:     "Calculator API",
		Description: "Arithmetic and statistics calculator with calculation history",
		Version:     version,
		Persistence: PersistenceEnabled,
		Endpoints: map[string]string{
			"calculator": "/calculator/*",
			"history":    "/calculator/history",
			"health":     "/health",
			"metrics":    "/metrics",
		},
	}
	if !persistent {
		resp.Persistence = PersistenceDisabled
		resp.Note = "Running without database - calculations are not stored"
	}

	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, resp)
	}
}
