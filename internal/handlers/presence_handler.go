package handlers

import (
	"errors"
	"net/http"

	"consult-system/internal/services"
	"consult-system/internal/status"
	"consult-system/monitoring"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type PresenceHandler struct {
	presenceService *services.PresenceService
}

func NewPresenceHandler(presenceService *services.PresenceService) *PresenceHandler {
	return &PresenceHandler{presenceService: presenceService}
}

// Heartbeat - Record a consultant liveness pulse
func (h *PresenceHandler) Heartbeat(e *core.RequestEvent) error {
	var req struct {
		ConsultantID string `json:"consultant_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	if req.ConsultantID == "" {
		return apis.NewBadRequestError("Consultant ID required", nil)
	}

	if err := h.presenceService.Heartbeat(e.Request.Context(), req.ConsultantID); err != nil {
		return apis.NewBadRequestError("Failed to record heartbeat", err)
	}

	monitoring.TrackHeartbeat()
	return e.JSON(http.StatusOK, map[string]any{"ok": true})
}

// SetOffline - Flip a consultant offline immediately
func (h *PresenceHandler) SetOffline(e *core.RequestEvent) error {
	var req struct {
		ConsultantID string `json:"consultant_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	if req.ConsultantID == "" {
		return apis.NewBadRequestError("Consultant ID required", nil)
	}

	err := h.presenceService.SetOffline(e.Request.Context(), req.ConsultantID)
	if err != nil && !errors.Is(err, status.ErrConsultantNotFound) {
		return apis.NewBadRequestError("Failed to set offline", err)
	}

	// an unknown consultant is already as offline as it gets
	return e.JSON(http.StatusOK, map[string]any{"ok": true})
}

// GetStatus - Resolve the effective status for a consultant
func (h *PresenceHandler) GetStatus(e *core.RequestEvent) error {
	consultantID := e.Request.URL.Query().Get("consultant_id")
	if consultantID == "" {
		return apis.NewBadRequestError("Consultant ID required", nil)
	}

	st, err := h.presenceService.ResolveStatusByID(e.Request.Context(), consultantID)
	if err != nil {
		if errors.Is(err, status.ErrConsultantNotFound) {
			// absent consultants read as offline
			monitoring.TrackStatusLookup(string(st))
			return e.JSON(http.StatusOK, map[string]any{
				"consultant_id": consultantID,
				"status":        st,
			})
		}
		return apis.NewBadRequestError("Failed to resolve status", err)
	}

	monitoring.TrackStatusLookup(string(st))
	return e.JSON(http.StatusOK, map[string]any{
		"consultant_id": consultantID,
		"status":        st,
	})
}
