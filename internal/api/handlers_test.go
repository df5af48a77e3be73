package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Miriol236/GESTION-QP-sub001/internal/app"
	"github.com/Miriol236/GESTION-QP-sub001/internal/domain"
	"github.com/Miriol236/GESTION-QP-sub001/internal/store"
)

const testSecret = "test-secret"

// stubRepo overrides only what the routed handler under test reaches.
type stubRepo struct {
	store.Repository

	resolveActorFn       func(ctx context.Context, userID string) (*domain.ActorContext, error)
	approveBeneficiaryFn func(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error)
	recordTransferFn     func(ctx context.Context, code string) (*domain.Payment, error)
}

func (s *stubRepo) ResolveActor(ctx context.Context, userID string) (*domain.ActorContext, error) {
	return s.resolveActorFn(ctx, userID)
}

func (s *stubRepo) ApproveBeneficiary(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error) {
	return s.approveBeneficiaryFn(ctx, code, actor)
}

func (s *stubRepo) RecordTransfer(ctx context.Context, code string) (*domain.Payment, error) {
	return s.recordTransferFn(ctx, code)
}

func signedToken(t *testing.T, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func newTestRouter(repo store.Repository) http.Handler {
	svc := app.NewService(repo, nil, "", false, 1)
	return NewRouter(NewValidationHandlers(svc), testSecret)
}

func resolveTestActor(ctx context.Context, userID string) (*domain.ActorContext, error) {
	return &domain.ActorContext{UserID: userID, OrgUnitCode: "RG1", Level: 1}, nil
}

func doRequest(t *testing.T, router http.Handler, method, path string, body []byte, authenticated bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if authenticated {
		req.Header.Set("Authorization", "Bearer "+signedToken(t, "u-17"))
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAuthRequired(t *testing.T) {
	router := newTestRouter(&stubRepo{})

	rec := doRequest(t, router, http.MethodPost, "/validation/beneficiaries/B1/approve", nil, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/validation/beneficiaries/B1/approve", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad token, got %d", rec.Code)
	}
}

func TestApproveBeneficiarySingle(t *testing.T) {
	subject := "2026KIN00042"
	repo := &stubRepo{
		resolveActorFn: resolveTestActor,
		approveBeneficiaryFn: func(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error) {
			if code != subject {
				t.Fatalf("unexpected code %q", code)
			}
			if actor.UserID != "u-17" {
				t.Fatalf("unexpected actor %+v", actor)
			}
			return &domain.Movement{Code: "202601RG100001", BeneficiaryCode: &subject, Type: domain.MovementBeneficiaryApproval}, nil
		},
	}
	router := newTestRouter(repo)

	rec := doRequest(t, router, http.MethodPost, "/validation/beneficiaries/"+subject+"/approve", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp messageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Message != "Beneficiary approved" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestApproveBeneficiaryConflictAndNotFound(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"already approved", store.ErrAlreadyApproved, http.StatusConflict},
		{"unknown code", store.ErrBeneficiaryNotFound, http.StatusNotFound},
		{"no active period", store.ErrNoActivePeriod, http.StatusConflict},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			repo := &stubRepo{
				resolveActorFn: resolveTestActor,
				approveBeneficiaryFn: func(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error) {
					return nil, c.err
				},
			}
			router := newTestRouter(repo)
			rec := doRequest(t, router, http.MethodPost, "/validation/beneficiaries/B1/approve", nil, true)
			if rec.Code != c.wantStatus {
				t.Fatalf("expected %d, got %d: %s", c.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestApproveBeneficiaryBatchPartialFailure(t *testing.T) {
	repo := &stubRepo{
		resolveActorFn: resolveTestActor,
		approveBeneficiaryFn: func(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error) {
			if code == "BAD" {
				return nil, store.ErrAlreadyApproved
			}
			subject := code
			return &domain.Movement{Code: "202601RG100001", BeneficiaryCode: &subject, Type: domain.MovementBeneficiaryApproval}, nil
		},
	}
	router := newTestRouter(repo)

	body, _ := json.Marshal(batchRequest{IDs: []string{"A1", "BAD", "A2"}})
	rec := doRequest(t, router, http.MethodPost, "/validation/beneficiaries/approve", body, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("batch with failures must still answer 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp batchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Updated != 2 {
		t.Fatalf("expected 2 updated, got %d", resp.Updated)
	}
	if len(resp.Success) != 2 || resp.Success[0].Code != "A1" || resp.Success[1].Code != "A2" {
		t.Fatalf("unexpected success list %v", resp.Success)
	}
	if len(resp.Failed) != 1 || resp.Failed[0].Code != "BAD" || resp.Failed[0].Reason == "" {
		t.Fatalf("unexpected failed list %v", resp.Failed)
	}
	if resp.BatchID == "" {
		t.Fatal("expected a batch id in the response")
	}
}

func TestBatchRejectsEmptyBody(t *testing.T) {
	repo := &stubRepo{resolveActorFn: resolveTestActor}
	router := newTestRouter(repo)

	body, _ := json.Marshal(batchRequest{})
	rec := doRequest(t, router, http.MethodPost, "/validation/beneficiaries/approve", body, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty ids, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/validation/beneficiaries/approve", []byte("{not json"), true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestUnresolvableActorIsRejected(t *testing.T) {
	repo := &stubRepo{
		resolveActorFn: func(ctx context.Context, userID string) (*domain.ActorContext, error) {
			return nil, store.ErrActorNotFound
		},
	}
	router := newTestRouter(repo)

	rec := doRequest(t, router, http.MethodPost, "/validation/beneficiaries/B1/approve", nil, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown approver, got %d", rec.Code)
	}
}

func TestRecordTransfer(t *testing.T) {
	repo := &stubRepo{
		resolveActorFn: resolveTestActor,
		recordTransferFn: func(ctx context.Context, code string) (*domain.Payment, error) {
			return &domain.Payment{Code: code, Status: domain.PaymentValidated, TransferCount: 1}, nil
		},
	}
	router := newTestRouter(repo)

	rec := doRequest(t, router, http.MethodPost, "/payments/202601001/transfer", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var payment domain.Payment
	if err := json.Unmarshal(rec.Body.Bytes(), &payment); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payment.TransferCount != 1 {
		t.Fatalf("expected transfer count 1, got %d", payment.TransferCount)
	}
}

func TestRecordTransferNotReady(t *testing.T) {
	repo := &stubRepo{
		resolveActorFn: resolveTestActor,
		recordTransferFn: func(ctx context.Context, code string) (*domain.Payment, error) {
			return nil, store.ErrTransferNotReady
		},
	}
	router := newTestRouter(repo)

	rec := doRequest(t, router, http.MethodPost, "/payments/202601001/transfer", nil, true)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{store.ErrPaymentNotFound, http.StatusNotFound},
		{store.ErrConcurrentSubmission, http.StatusConflict},
		{store.ErrNoApprovedAccount, http.StatusConflict},
		{store.ErrPaymentNotEditable, http.StatusConflict},
		{app.ErrInvalidRIBKey, http.StatusConflict},
		{app.ErrNothingToSubmit, http.StatusConflict},
		{app.ErrEmptyBatch, http.StatusBadRequest},
		{app.ErrBatchRateLimited, http.StatusTooManyRequests},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusForError(c.err); got != c.want {
			t.Errorf("statusForError(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestHealthEndpointIsUnauthenticated(t *testing.T) {
	router := newTestRouter(&stubRepo{})
	rec := doRequest(t, router, http.MethodGet, "/health", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from health check, got %d", rec.Code)
	}
}
