package server

import (
	"net/http"
	"strings"

	entitlementdomain "github.com/cardlens/creditd/internal/entitlement/domain"
	"github.com/gin-gonic/gin"
)

type validateChangeRequest struct {
	UserID       string `json:"user_id"`
	TargetPlanID string `json:"target_plan_id" binding:"required"`
}

func (s *Server) validatePackageChange(c *gin.Context) {
	var req validateChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	userID := s.resolveUserID(c, req.UserID)
	if userID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	validation, err := s.eligibilitySvc.ValidatePackageChange(c.Request.Context(), userID, req.TargetPlanID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, validation)
}

type purchaseRequest struct {
	UserID  string `json:"user_id"`
	PlanID  string `json:"plan_id" binding:"required"`
	Credits int    `json:"credits" binding:"required"`
}

// purchasePackage applies a purchase directly, for manual grants and
// backoffice flows. Provider-driven purchases arrive via webhooks.
func (s *Server) purchasePackage(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	userID := s.resolveUserID(c, req.UserID)
	if userID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	entitlement, err := s.entitlementSvc.ApplyPurchase(c.Request.Context(), entitlementdomain.ApplyPurchaseRequest{
		UserID:           userID,
		PlanID:           req.PlanID,
		CreditsPurchased: req.Credits,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entitlement)
}

type bonusRequest struct {
	UserID  string `json:"user_id"`
	Credits int    `json:"credits" binding:"required"`
}

func (s *Server) grantBonusCredits(c *gin.Context) {
	var req bonusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	userID := s.resolveUserID(c, req.UserID)
	if userID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.entitlementSvc.AddBonusCredits(c.Request.Context(), userID, req.Credits); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) resolveUserID(c *gin.Context, bodyUserID string) string {
	if id := strings.TrimSpace(bodyUserID); id != "" {
		return id
	}
	return strings.TrimSpace(c.GetHeader(headerUserID))
}
