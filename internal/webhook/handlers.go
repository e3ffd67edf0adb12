package webhook

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studyhall-platform/internal/subscription"
)

// Handlers exposes the webhook endpoints
type Handlers struct {
	processor *Processor
}

// NewHandlers creates webhook handlers
func NewHandlers(processor *Processor) *Handlers {
	return &Handlers{processor: processor}
}

// HandleProvider receives the provider callback
// POST /api/webhooks/payment
func (h *Handlers) HandleProvider(c *gin.Context) {
	var payload Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "VALIDATION_ERROR",
			"message": err.Error(),
		})
		return
	}

	result, err := h.processor.Process(c.Request.Context(), &payload)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "processed",
		"result":  result,
	})
}

// HandleInternalConfirm receives the first-party confirmation
// POST /api/webhooks/internal/confirm
func (h *Handlers) HandleInternalConfirm(c *gin.Context) {
	var req struct {
		OrderID   string `json:"order_id" binding:"required"`
		PaymentID string `json:"payment_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "VALIDATION_ERROR",
			"message": err.Error(),
		})
		return
	}

	signature := c.GetHeader("X-Internal-Signature")

	result, err := h.processor.ConfirmInternal(c.Request.Context(), req.OrderID, req.PaymentID, signature)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "processed",
		"result":  result,
	})
}

// writeError maps processing errors to HTTP statuses. Signature failures are
// 401 so the provider's retry loop surfaces a misconfiguration instead of
// hammering forever; an unknown order is 404 per the provider contract.
func (h *Handlers) writeError(c *gin.Context, err error) {
	if sigErr, ok := err.(SignatureError); ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   sigErr.Code,
			"message": sigErr.Message,
		})
		return
	}

	if lcErr, ok := err.(subscription.LifecycleError); ok {
		status := http.StatusConflict
		switch lcErr.Code {
		case subscription.ErrOrderNotFound.Code:
			status = http.StatusNotFound
		case subscription.ErrStaleEvent.Code:
			// Stale events are acknowledged, not retried
			c.JSON(http.StatusOK, gin.H{
				"message": "ignored",
				"reason":  lcErr.Code,
			})
			return
		case "UNKNOWN_STATUS":
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"error":   lcErr.Code,
			"message": lcErr.Message,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "INTERNAL_ERROR",
		"message": "failed to process webhook",
	})
}

// RegisterRoutes registers the webhook routes. These endpoints authenticate
// by signature, never by session, so they sit outside the auth middleware.
func (h *Handlers) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/payment", h.HandleProvider)
	router.POST("/internal/confirm", h.HandleInternalConfirm)
}
