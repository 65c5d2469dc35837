package handler

import (
	"net/http"

	"github.com/parley-ai/parley/internal/container"
)

// HealthHandler handles health, readiness and store maintenance endpoints.
type HealthHandler struct {
	container  *container.Container
	backupPath string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(c *container.Container, backupPath string) *HealthHandler {
	return &HealthHandler{
		container:  c,
		backupPath: backupPath,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.container.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "services not initialized",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Stats handles GET /api/v1/stats
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	store := h.container.Store()

	collections := map[string]any{}
	for _, name := range store.Collections() {
		collections[name] = store.Stats(name)
	}

	stats := map[string]any{
		"collections": collections,
		"providers":   h.container.Providers().List(),
	}
	if events := h.container.Events(); events != nil {
		stats["events_connected"] = events.IsConnected()
	}

	writeJSON(w, http.StatusOK, stats)
}

// Backup handles POST /api/v1/admin/backup
func (h *HealthHandler) Backup(w http.ResponseWriter, r *http.Request) {
	if err := h.container.Store().Backup(r.Context(), h.backupPath); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "backup completed",
		"dir":    h.backupPath,
	})
}

// Restore handles POST /api/v1/admin/restore
func (h *HealthHandler) Restore(w http.ResponseWriter, r *http.Request) {
	if err := h.container.Store().Restore(r.Context(), h.backupPath); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "restore completed",
		"dir":    h.backupPath,
	})
}
