package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/rehive/adapter-framework/internal/api_gateway/middleware"
	"github.com/rehive/adapter-framework/internal/api_gateway/service"
)

// WebhookHandler accepts provider notifications
type WebhookHandler struct {
	webhookService service.WebhookService
	logger         *slog.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(logger *slog.Logger, webhookService service.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
		logger:         logger,
	}
}

// Receive queues the notification for the reconciler workers. The provider
// gets 200 as soon as the job is on the topic.
func (h *WebhookHandler) Receive(c *gin.Context) {
	var req WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.ReceiveID == "" {
		RespondBadRequest(c, "receive_id is required")
		return
	}

	webhookType := c.Param("webhook_type")
	j, err := h.webhookService.EnqueueWebhook(c.Request.Context(), webhookType, req.ReceiveID, req.Data)
	if err != nil {
		h.logger.Error("Failed to enqueue webhook",
			"webhook_type", webhookType,
			"receive_id", req.ReceiveID,
			"correlation_id", middleware.GetCorrelationID(c),
			"error", err,
		)
		RespondServiceUnavailable(c, "Webhook could not be queued")
		return
	}

	RespondOK(c, gin.H{"job_id": j.ID.String(), "status": "queued"})
}
