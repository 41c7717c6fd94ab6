// Package identity resolves the accounting identity a request is billed
// against: the authenticated user when one is present, otherwise the
// (ip address, browser fingerprint) pair supplied by the client.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
)

var ErrUnresolvable = errors.New("identity_unresolvable")

// AccountingIdentity is the key the quota store and ledger are scoped by.
// Exactly one of UserID or the (IPAddress, Fingerprint) pair is used; the
// user always wins when both are present.
type AccountingIdentity struct {
	UserID      *snowflake.ID
	IPAddress   string
	Fingerprint string
}

// Resolve picks the accounting identity for a request.
//
// An anonymous caller without a fingerprint is kept as a distinct
// low-trust identity keyed by IP alone. IP sharing (NAT, proxies) makes
// that key coarse, but it must never fail open into an unlimited grant.
func Resolve(userID *snowflake.ID, ipAddress, fingerprint string) (AccountingIdentity, error) {
	if userID != nil && *userID != 0 {
		return AccountingIdentity{UserID: userID}, nil
	}

	ip := strings.TrimSpace(ipAddress)
	if ip == "" {
		return AccountingIdentity{}, ErrUnresolvable
	}

	return AccountingIdentity{
		IPAddress:   ip,
		Fingerprint: strings.TrimSpace(fingerprint),
	}, nil
}

func (a AccountingIdentity) Anonymous() bool {
	return a.UserID == nil || *a.UserID == 0
}

// LowTrust reports whether the identity is anonymous without a fingerprint.
func (a AccountingIdentity) LowTrust() bool {
	return a.Anonymous() && a.Fingerprint == ""
}

// Key returns a stable string form used for rate-limit buckets and logs.
func (a AccountingIdentity) Key() string {
	if !a.Anonymous() {
		return fmt.Sprintf("user:%s", a.UserID.String())
	}
	return fmt.Sprintf("anon:%s:%s", a.IPAddress, a.Fingerprint)
}
