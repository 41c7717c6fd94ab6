package server

import (
	"net/http"
	"strings"

	transferdomain "github.com/cardlens/creditd/internal/transfer/domain"
	"github.com/gin-gonic/gin"
)

type migrateRequest struct {
	UserID      string `json:"user_id"`
	SessionID   string `json:"session_id,omitempty"`
	IPAddress   string `json:"ip_address,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

func (s *Server) migrateIdentity(c *gin.Context) {
	var req migrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	userID := s.resolveUserID(c, req.UserID)
	if userID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if strings.TrimSpace(req.IPAddress) == "" {
		req.IPAddress = c.ClientIP()
	}
	if strings.TrimSpace(req.Fingerprint) == "" {
		req.Fingerprint = c.GetHeader(headerFingerprint)
	}

	result, err := s.transferSvc.MigrateAnonymousToUser(c.Request.Context(), transferdomain.MigrateRequest{
		UserID:      userID,
		SessionID:   req.SessionID,
		IPAddress:   req.IPAddress,
		Fingerprint: req.Fingerprint,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
