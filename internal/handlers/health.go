package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

const (
	PersistenceEnabled     = "enabled"
	PersistenceDisabled    = "disabled"
	PersistenceUnavailable = "unavailable"
)

const pingTimeout = 2 * time.Second

type HealthResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Persistence string `json:"persistence"`
}

// Health answers 200 while the process is serving, because calculations work
// without storage. The persistence field tells a persistent deployment apart
// from a database-free or degraded one. store may be nil.
func Health(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:      "healthy",
			Message:     "Calculator API is running",
			Persistence: persistenceStatus(r.Context(), store),
		}
		if resp.Persistence != PersistenceEnabled {
			resp.Message = "Calculator API is running (calculations are not stored)"
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func persistenceStatus(ctx context.Context, store Pinger) string {
	if store == nil {
		return PersistenceDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := store.Ping(ctx); err != nil {
		return PersistenceUnavailable
	}
	return PersistenceEnabled
}
