package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	creditdomain "github.com/cardlens/creditd/internal/credit/domain"
	eligibilitydomain "github.com/cardlens/creditd/internal/eligibility/domain"
	"github.com/cardlens/creditd/internal/identity"
	ledgerdomain "github.com/cardlens/creditd/internal/ledger/domain"
	"github.com/gin-gonic/gin"
)

type fakeCreditService struct {
	lastIdentity  identity.AccountingIdentity
	lastCredits   int
	lastOperation ledgerdomain.OperationType
	deductErr     error
}

func (f *fakeCreditService) GetFreeQuota(ctx context.Context, id identity.AccountingIdentity) (*creditdomain.FreeQuotaView, error) {
	_ = ctx
	f.lastIdentity = id
	return &creditdomain.FreeQuotaView{DailyLimit: 5, CreditsRemaining: 5}, nil
}

func (f *fakeCreditService) GetPackageQuota(ctx context.Context, id identity.AccountingIdentity) (*creditdomain.PackageQuotaView, error) {
	_ = ctx
	_ = id
	return nil, nil
}

func (f *fakeCreditService) Snapshot(ctx context.Context, id identity.AccountingIdentity) (*creditdomain.Snapshot, error) {
	_ = ctx
	f.lastIdentity = id
	return &creditdomain.Snapshot{
		IdentityKey:    id.Key(),
		Free:           creditdomain.FreeQuotaView{DailyLimit: 5, CreditsRemaining: 5},
		TotalRemaining: 5,
	}, nil
}

func (f *fakeCreditService) CanSpend(ctx context.Context, id identity.AccountingIdentity, credits int) (bool, *creditdomain.Snapshot, error) {
	_ = ctx
	f.lastIdentity = id
	f.lastCredits = credits
	return credits <= 5, &creditdomain.Snapshot{IdentityKey: id.Key(), TotalRemaining: 5}, nil
}

func (f *fakeCreditService) Deduct(ctx context.Context, req creditdomain.DeductRequest) (*creditdomain.DeductResult, error) {
	_ = ctx
	f.lastIdentity = req.Identity
	f.lastCredits = req.Credits
	f.lastOperation = req.OperationType
	if f.deductErr != nil {
		return nil, f.deductErr
	}
	return &creditdomain.DeductResult{FreeConsumed: req.Credits}, nil
}

func (f *fakeCreditService) Refund(ctx context.Context, req creditdomain.RefundRequest) (*creditdomain.RefundResult, error) {
	_ = ctx
	f.lastIdentity = req.Identity
	f.lastCredits = req.Credits
	return &creditdomain.RefundResult{PackageReturned: req.Credits}, nil
}

type fakeEligibilityService struct {
	validation *eligibilitydomain.ChangeValidation
	err        error
}

func (f *fakeEligibilityService) ValidatePackageChange(ctx context.Context, userID, targetPlanID string) (*eligibilitydomain.ChangeValidation, error) {
	_ = ctx
	_ = userID
	_ = targetPlanID
	if f.err != nil {
		return nil, f.err
	}
	return f.validation, nil
}

func newTestRouter(srv *Server) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	srv.engine = router
	srv.registerRoutes()
	return router
}

func TestDeductHandlerSpendsForAuthenticatedUser(t *testing.T) {
	creditSvc := &fakeCreditService{}
	srv := &Server{creditSvc: creditSvc}
	router := newTestRouter(srv)

	body := bytes.NewBufferString(`{"credits":4,"operation_type":"card_scan"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/credits/deduct", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "123")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if creditSvc.lastCredits != 4 {
		t.Fatalf("expected 4 credits requested, got %d", creditSvc.lastCredits)
	}
	if creditSvc.lastOperation != ledgerdomain.OperationCardScan {
		t.Fatalf("expected card_scan operation, got %s", creditSvc.lastOperation)
	}
	if got := creditSvc.lastIdentity.Key(); got != "user:123" {
		t.Fatalf("expected identity user:123, got %s", got)
	}
}

func TestDeductHandlerMapsInsufficientCreditsTo402(t *testing.T) {
	creditSvc := &fakeCreditService{
		deductErr: &creditdomain.InsufficientCreditsError{
			Needed:           5,
			FreeAvailable:    2,
			PackageAvailable: 1,
		},
	}
	srv := &Server{creditSvc: creditSvc}
	router := newTestRouter(srv)

	body := bytes.NewBufferString(`{"credits":5}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/credits/deduct", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "123")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusPaymentRequired {
		t.Fatalf("expected status 402, got %d: %s", resp.Code, resp.Body.String())
	}

	var payload errorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decoding error payload: %v", err)
	}
	if payload.Error.Type != "insufficient_credits" {
		t.Fatalf("expected type insufficient_credits, got %s", payload.Error.Type)
	}
	if payload.Error.Needed == nil || *payload.Error.Needed != 5 {
		t.Fatalf("expected needed=5 in payload, got %+v", payload.Error.Needed)
	}
	if payload.Error.FreeAvailable == nil || *payload.Error.FreeAvailable != 2 {
		t.Fatalf("expected free_available=2 in payload")
	}
}

func TestDeductHandlerRejectsMalformedUserHeader(t *testing.T) {
	creditSvc := &fakeCreditService{}
	srv := &Server{creditSvc: creditSvc}
	router := newTestRouter(srv)

	body := bytes.NewBufferString(`{"credits":1}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/credits/deduct", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "not-a-snowflake")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestCheckCreditsKeysAnonymousCallersByIPAndFingerprint(t *testing.T) {
	creditSvc := &fakeCreditService{}
	srv := &Server{creditSvc: creditSvc}
	router := newTestRouter(srv)

	req := httptest.NewRequest(http.MethodPost, "/v1/credits/check", bytes.NewBufferString(`{"credits":2}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-Fingerprint", "fp-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if creditSvc.lastCredits != 2 {
		t.Fatalf("expected 2 credits checked, got %d", creditSvc.lastCredits)
	}
	// httptest requests carry the 192.0.2.1 test address.
	if got := creditSvc.lastIdentity.Key(); got != "anon:192.0.2.1:fp-1" {
		t.Fatalf("unexpected anonymous identity key: %s", got)
	}
}

func TestValidateChangeMapsDowngradeLockTo409(t *testing.T) {
	eligibleAt := time.Date(2026, time.November, 1, 0, 0, 0, 0, time.UTC)
	eligibilitySvc := &fakeEligibilityService{
		err: &eligibilitydomain.DowngradeLockedError{
			MonthsActive:      2,
			CompletedPayments: 1,
			EligibleAt:        eligibleAt,
		},
	}
	srv := &Server{eligibilitySvc: eligibilitySvc}
	router := newTestRouter(srv)

	body := bytes.NewBufferString(`{"user_id":"123","target_plan_id":"456"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/packages/validate-change", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", resp.Code, resp.Body.String())
	}

	var payload errorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decoding error payload: %v", err)
	}
	if payload.Error.Type != "downgrade_locked" {
		t.Fatalf("expected type downgrade_locked, got %s", payload.Error.Type)
	}
	if payload.Error.EligibleAt == nil || !payload.Error.EligibleAt.Equal(eligibleAt) {
		t.Fatalf("expected eligible_at %s in payload, got %+v", eligibleAt, payload.Error.EligibleAt)
	}
}
