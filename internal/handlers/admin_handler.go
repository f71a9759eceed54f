package handlers

import (
	"net/http"
	"time"

	"consult-system/internal/services"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type AdminHandler struct {
	app          *pocketbase.PocketBase
	queueService *services.QueueService
}

func NewAdminHandler(app *pocketbase.PocketBase, queueService *services.QueueService) *AdminHandler {
	return &AdminHandler{
		app:          app,
		queueService: queueService,
	}
}

// GetQueueDashboard - Summaries for every queue with waiting clients
func (h *AdminHandler) GetQueueDashboard(e *core.RequestEvent) error {
	if e.Auth == nil || !e.Auth.IsSuperuser() {
		return apis.NewUnauthorizedError("Admin access required", nil)
	}
	ctx := e.Request.Context()

	consultantIDs, err := h.queueService.ActiveQueues(ctx)
	if err != nil {
		return apis.NewBadRequestError("Failed to get active queues", err)
	}

	dashboardData := []map[string]any{}
	for _, consultantID := range consultantIDs {
		consultant, err := h.app.FindRecordById("consultants", consultantID)
		if err != nil {
			continue
		}
		stats, err := h.queueService.Stats(ctx, consultantID)
		if err != nil {
			continue
		}

		dashboardData = append(dashboardData, map[string]any{
			"consultant_id":   consultantID,
			"consultant_name": consultant.GetString("name"),
			"waiting":         stats.Waiting,
			"is_online":       consultant.GetBool("is_online"),
		})
	}
	return e.JSON(http.StatusOK, dashboardData)
}

// GetQueueDetails - The full waiting list for one consultant
func (h *AdminHandler) GetQueueDetails(e *core.RequestEvent) error {
	if e.Auth == nil || !e.Auth.IsSuperuser() {
		return apis.NewUnauthorizedError("Admin access required", nil)
	}

	consultantID := e.Request.URL.Query().Get("consultant_id")
	if consultantID == "" {
		return apis.NewBadRequestError("Consultant ID required", nil)
	}

	entries, err := h.queueService.WaitingClients(e.Request.Context(), consultantID)
	if err != nil {
		return apis.NewBadRequestError("Failed to get queue details", err)
	}

	details := []map[string]any{}
	for _, entry := range entries {
		details = append(details, map[string]any{
			"position":  entry.Position,
			"client_id": entry.ClientID,
			"joined_at": entry.JoinedAt,
			"wait_time": time.Since(entry.JoinedAt).Seconds(),
		})
	}
	return e.JSON(http.StatusOK, details)
}
