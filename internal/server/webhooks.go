package server

import (
	"errors"
	"io"
	"net/http"

	paymentdomain "github.com/cardlens/creditd/internal/payment/domain"
	"github.com/gin-gonic/gin"
)

const headerWebhookSignature = "X-Webhook-Signature"

func (s *Server) ingestPaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil || len(payload) == 0 {
		AbortWithError(c, paymentdomain.ErrInvalidPayload)
		return
	}

	result, err := s.paymentSvc.IngestWebhook(
		c.Request.Context(),
		c.Param("provider"),
		payload,
		c.GetHeader(headerWebhookSignature),
	)
	if err != nil {
		// redelivery gets an ack so the provider stops retrying
		if errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
			c.JSON(http.StatusOK, gin.H{"status": "already_processed"})
			return
		}
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "processed",
		"event_id":   result.EventID,
		"event_type": result.EventType,
	})
}
