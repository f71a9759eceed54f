package handlers

import (
	"errors"
	"net/http"

	"consult-system/internal/services"
	"consult-system/internal/status"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type NotifyHandler struct {
	notifyService *services.NotifyService
}

func NewNotifyHandler(notifyService *services.NotifyService) *NotifyHandler {
	return &NotifyHandler{notifyService: notifyService}
}

// NotifyOnline - Announce a consultant coming online to their followers.
// The response carries the eligible count; delivery runs in the background.
func (h *NotifyHandler) NotifyOnline(e *core.RequestEvent) error {
	var req struct {
		ConsultantID string `json:"consultant_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	if req.ConsultantID == "" {
		return apis.NewBadRequestError("Consultant ID required", nil)
	}

	count, err := h.notifyService.NotifyFollowers(e.Request.Context(), req.ConsultantID)
	if err != nil {
		if errors.Is(err, status.ErrConsultantNotFound) {
			return apis.NewNotFoundError("Consultant not found", err)
		}
		return apis.NewBadRequestError("Failed to notify followers", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"success":        true,
		"notified_count": count,
	})
}
