package server

import (
	"net/http"
	"strings"

	ledgerdomain "github.com/cardlens/creditd/internal/ledger/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) listLedgerEntries(c *gin.Context) {
	var req ledgerdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if strings.TrimSpace(req.IdentityKey) == "" {
		id, err := identityFromRequest(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		req.IdentityKey = id.Key()
	}

	entries, pageInfo, err := s.ledgerSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      entries,
		"page_info": pageInfo,
	})
}

func (s *Server) ledgerStats(c *gin.Context) {
	var req ledgerdomain.StatsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if strings.TrimSpace(req.IdentityKey) == "" {
		id, err := identityFromRequest(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		req.IdentityKey = id.Key()
	}

	stats, err := s.ledgerSvc.Stats(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
