package handlers

import (
	"errors"
	"net/http"

	"consult-system/internal/services"
	"consult-system/internal/status"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type QueueHandler struct {
	queueService *services.QueueService
}

func NewQueueHandler(queueService *services.QueueService) *QueueHandler {
	return &QueueHandler{queueService: queueService}
}

// JoinQueue - Append a client to a consultant's admission queue
func (h *QueueHandler) JoinQueue(e *core.RequestEvent) error {
	var req struct {
		ConsultantID string `json:"consultant_id"`
		ClientID     string `json:"client_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	if req.ConsultantID == "" || req.ClientID == "" {
		return apis.NewBadRequestError("Consultant ID and client ID required", nil)
	}

	ticket, err := h.queueService.Enqueue(e.Request.Context(), req.ConsultantID, req.ClientID)
	if err != nil {
		if errors.Is(err, status.ErrAlreadyQueued) {
			return apis.NewBadRequestError("Already in queue", err)
		}
		return apis.NewBadRequestError("Failed to join queue", err)
	}

	return e.JSON(http.StatusOK, ticket)
}

// LeaveQueue - Remove a waiting client from the queue
func (h *QueueHandler) LeaveQueue(e *core.RequestEvent) error {
	var req struct {
		ConsultantID string `json:"consultant_id"`
		ClientID     string `json:"client_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	if req.ConsultantID == "" || req.ClientID == "" {
		return apis.NewBadRequestError("Consultant ID and client ID required", nil)
	}

	if err := h.queueService.Cancel(e.Request.Context(), req.ConsultantID, req.ClientID); err != nil {
		if errors.Is(err, status.ErrNotQueued) {
			return apis.NewBadRequestError("Not in queue", err)
		}
		return apis.NewBadRequestError("Failed to leave queue", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"ok": true})
}

// NextInQueue - Admit the client at the head of the queue
func (h *QueueHandler) NextInQueue(e *core.RequestEvent) error {
	var req struct {
		ConsultantID string `json:"consultant_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	if req.ConsultantID == "" {
		return apis.NewBadRequestError("Consultant ID required", nil)
	}

	entry, err := h.queueService.DequeueNext(e.Request.Context(), req.ConsultantID)
	if err != nil {
		if errors.Is(err, status.ErrEmptyQueue) {
			return apis.NewNotFoundError("Queue is empty", err)
		}
		return apis.NewBadRequestError("Failed to admit next client", err)
	}

	return e.JSON(http.StatusOK, entry)
}

// GetPosition - Report a waiting client's current position
func (h *QueueHandler) GetPosition(e *core.RequestEvent) error {
	consultantID := e.Request.URL.Query().Get("consultant_id")
	clientID := e.Request.URL.Query().Get("client_id")
	if consultantID == "" || clientID == "" {
		return apis.NewBadRequestError("Consultant ID and client ID required", nil)
	}

	ticket, err := h.queueService.Position(e.Request.Context(), consultantID, clientID)
	if err != nil {
		if errors.Is(err, status.ErrNotQueued) {
			return apis.NewNotFoundError("Not in queue", err)
		}
		return apis.NewBadRequestError("Failed to get position", err)
	}

	return e.JSON(http.StatusOK, ticket)
}
