package server

import (
	"net/http"
	"strconv"

	creditdomain "github.com/cardlens/creditd/internal/credit/domain"
	ledgerdomain "github.com/cardlens/creditd/internal/ledger/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) getEntitlements(c *gin.Context) {
	id, err := identityFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	snapshot, err := s.creditSvc.Snapshot(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

type checkRequest struct {
	Credits int `json:"credits"`
}

func (s *Server) checkCredits(c *gin.Context) {
	id, err := identityFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	req := checkRequest{Credits: 1}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		if req.Credits == 0 {
			req.Credits = 1
		}
	}

	allowed, snapshot, err := s.creditSvc.CanSpend(c.Request.Context(), id, req.Credits)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"allowed":  allowed,
		"credits":  req.Credits,
		"snapshot": snapshot,
	})
}

type deductRequest struct {
	Credits        int            `json:"credits" binding:"required"`
	OperationType  string         `json:"operation_type,omitempty"`
	IdempotencyKey *string        `json:"idempotency_key,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
}

func (s *Server) deductCredits(c *gin.Context) {
	id, err := identityFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req deductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if res, allowed := s.deductLimiter.Allow(c.Request.Context(), id.Key()); !allowed {
		if res != nil {
			c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
		}
		c.JSON(http.StatusTooManyRequests, errorResponse{Error: errorPayload{
			Type:    "rate_limited",
			Message: "too many deduction attempts, slow down",
		}})
		return
	}

	result, err := s.creditSvc.Deduct(c.Request.Context(), creditdomain.DeductRequest{
		Identity:       id,
		Credits:        req.Credits,
		OperationType:  ledgerdomain.OperationType(req.OperationType),
		IdempotencyKey: req.IdempotencyKey,
		Details:        req.Details,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type refundRequest struct {
	Credits        int            `json:"credits" binding:"required"`
	OperationType  string         `json:"operation_type,omitempty"`
	IdempotencyKey string         `json:"idempotency_key" binding:"required"`
	Details        map[string]any `json:"details,omitempty"`
}

func (s *Server) refundCredits(c *gin.Context) {
	id, err := identityFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.creditSvc.Refund(c.Request.Context(), creditdomain.RefundRequest{
		Identity:       id,
		Credits:        req.Credits,
		OperationType:  ledgerdomain.OperationType(req.OperationType),
		IdempotencyKey: req.IdempotencyKey,
		Details:        req.Details,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
