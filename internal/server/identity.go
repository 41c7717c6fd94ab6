package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/cardlens/creditd/internal/identity"
	"github.com/gin-gonic/gin"
)

const (
	headerUserID      = "X-User-Id"
	headerFingerprint = "X-Client-Fingerprint"
)

// identityFromRequest resolves the accounting identity for the request.
// An upstream gateway supplies the authenticated user id; anonymous
// callers are keyed by client IP plus the browser fingerprint header.
func identityFromRequest(c *gin.Context) (identity.AccountingIdentity, error) {
	var userID *snowflake.ID
	if raw := strings.TrimSpace(c.GetHeader(headerUserID)); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			return identity.AccountingIdentity{}, ErrInvalidRequest
		}
		userID = &parsed
	}

	resolved, err := identity.Resolve(userID, c.ClientIP(), c.GetHeader(headerFingerprint))
	if err != nil {
		return identity.AccountingIdentity{}, err
	}

	c.Set("identity_key", resolved.Key())
	return resolved, nil
}
