package server

import (
	"errors"
	"net/http"
	"time"

	creditdomain "github.com/cardlens/creditd/internal/credit/domain"
	eligibilitydomain "github.com/cardlens/creditd/internal/eligibility/domain"
	entitlementdomain "github.com/cardlens/creditd/internal/entitlement/domain"
	"github.com/cardlens/creditd/internal/identity"
	ledgerdomain "github.com/cardlens/creditd/internal/ledger/domain"
	paymentdomain "github.com/cardlens/creditd/internal/payment/domain"
	plandomain "github.com/cardlens/creditd/internal/plan/domain"
	transferdomain "github.com/cardlens/creditd/internal/transfer/domain"
	"github.com/gin-gonic/gin"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`

	// Shortfall detail on rejected deductions.
	Needed           *int `json:"needed,omitempty"`
	FreeAvailable    *int `json:"free_available,omitempty"`
	PackageAvailable *int `json:"package_available,omitempty"`

	// Cooldown detail on locked downgrades.
	EligibleAt *time.Time `json:"eligible_at,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var ErrInvalidRequest = errors.New("invalid_request")

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	var insufficient *creditdomain.InsufficientCreditsError
	if errors.As(err, &insufficient) {
		return http.StatusPaymentRequired, errorPayload{
			Type:             "insufficient_credits",
			Message:          "not enough credits to cover the request",
			Needed:           &insufficient.Needed,
			FreeAvailable:    &insufficient.FreeAvailable,
			PackageAvailable: &insufficient.PackageAvailable,
		}
	}

	var locked *eligibilitydomain.DowngradeLockedError
	if errors.As(err, &locked) {
		return http.StatusConflict, errorPayload{
			Type:       "downgrade_locked",
			Message:    "downgrade not yet permitted for this account",
			EligibleAt: &locked.EligibleAt,
		}
	}

	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "webhook signature verification failed",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: err.Error(),
		}
	case errors.Is(err, creditdomain.ErrConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "concurrent update, retry the request",
		}
	case errors.Is(err, eligibilitydomain.ErrSamePlan):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "target plan is already active",
		}
	case errors.Is(err, eligibilitydomain.ErrSameCreditLimit):
		return http.StatusConflict, errorPayload{
			Type:    "same_credit_limit",
			Message: "target plan has the same credit limit as the current plan",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, identity.ErrUnresolvable),
		errors.Is(err, creditdomain.ErrInvalidAmount),
		errors.Is(err, creditdomain.ErrMissingIdempotencyKey),
		errors.Is(err, creditdomain.ErrInvalidOperationType),
		errors.Is(err, entitlementdomain.ErrInvalidUser),
		errors.Is(err, entitlementdomain.ErrInvalidPlan),
		errors.Is(err, entitlementdomain.ErrInvalidCredits),
		errors.Is(err, entitlementdomain.ErrInvalidSubscriptionData),
		errors.Is(err, plandomain.ErrInvalidID),
		errors.Is(err, plandomain.ErrInvalidCode),
		errors.Is(err, ledgerdomain.ErrInvalidPageToken),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrUnsupportedEventType),
		errors.Is(err, transferdomain.ErrInvalidUser),
		errors.Is(err, transferdomain.ErrInvalidIdentity):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, plandomain.ErrPlanNotFound),
		errors.Is(err, entitlementdomain.ErrPackageNotFound),
		errors.Is(err, entitlementdomain.ErrSubscriptionNotFound),
		errors.Is(err, eligibilitydomain.ErrNoActivePackage):
		return true
	default:
		return false
	}
}

func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error", payload.Type
	case status >= http.StatusBadRequest:
		return "client_error", payload.Type
	default:
		return "", ""
	}
}
