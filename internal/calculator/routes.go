package calculator

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts all calculator endpoints onto the given router
// under the /calculator prefix.
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/calculator", func(r chi.Router) {
		for _, op := range operations {
			r.Post("/"+op.name, h.operationHandler(op))
		}
		r.Get("/history", h.ListHistory)
		r.Get("/history/{id}", h.GetHistory)
	})
}
