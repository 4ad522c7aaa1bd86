package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"
)

type HealthHandler struct {
	db *sql.DB
}

func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Healthz обрабатывает GET /healthz; 503 когда база недоступна.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, dbState := http.StatusOK, "ok"
	if err := h.db.PingContext(ctx); err != nil {
		status, dbState = http.StatusServiceUnavailable, "unavailable"
	}
	if err := writeJSON(w, status, jsonResponse{"status": http.StatusText(status), "database": dbState}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
