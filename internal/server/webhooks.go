package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/velocibid/velocibid/internal/billing/domain"
	"github.com/velocibid/velocibid/pkg/log/ctxlogger"
	"go.uber.org/zap"
)

const maxWebhookBytes = 1 << 20

// StripeWebhook ingests provider billing events. The raw body is required
// for signature verification, so no JSON binding happens here.
func (s *Server) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	err = s.billingSvc.HandleWebhook(c.Request.Context(), payload, c.Request.Header)
	switch {
	case err == nil, errors.Is(err, billingdomain.ErrEventIgnored):
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, billingdomain.ErrInvalidSignature),
		errors.Is(err, billingdomain.ErrWebhookSecretUnset):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
	case errors.Is(err, billingdomain.ErrInvalidPayload),
		errors.Is(err, billingdomain.ErrInvalidEvent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
	default:
		// Transient failure: a non-2xx tells the provider to retry.
		ctxlogger.FromContext(c.Request.Context()).Error("webhook processing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
	}
}
