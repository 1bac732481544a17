package webhook

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler exposes the transport-facing endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates the webhook handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// HandleInbound processes one message delivery. The response is always a
// 200 with the transport markup; an empty <Response/> acknowledges
// suppressed deliveries.
func (h *Handler) HandleInbound(c *gin.Context) {
	msg := Inbound{
		From:              c.PostForm("From"),
		Body:              c.PostForm("Body"),
		ProviderMessageID: c.PostForm("MessageSid"),
		ProfileName:       c.PostForm("ProfileName"),
	}
	if msg.From == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing sender"})
		return
	}

	reply := h.svc.Process(c.Request.Context(), msg)
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, RenderAck(reply))
}

// HandleDeliveryStatus records a provider delivery-status callback. It is
// logged and never blocks or fails the provider.
func (h *Handler) HandleDeliveryStatus(c *gin.Context) {
	h.svc.DeliveryStatus(
		c.Request.Context(),
		c.PostForm("MessageSid"),
		c.PostForm("MessageStatus"),
	)
	c.Status(http.StatusNoContent)
}
