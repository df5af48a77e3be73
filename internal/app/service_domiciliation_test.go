package app

import (
	"context"
	"errors"
	"testing"

	"github.com/Miriol236/GESTION-QP-sub001/internal/domain"
	"github.com/Miriol236/GESTION-QP-sub001/internal/store"
)

// validDomiciliation has a RIB key that matches its components.
func validDomiciliation(code, beneficiaryCode string) *domain.Domiciliation {
	key, err := domain.ComputeRIBKey("30002", "00550", "00000012345")
	if err != nil {
		panic(err)
	}
	return &domain.Domiciliation{
		Code:            code,
		BeneficiaryCode: beneficiaryCode,
		BankCode:        "30002",
		BranchCode:      "00550",
		AccountNumber:   "00000012345",
		RIBKey:          key,
		Status:          domain.StatusDraft,
	}
}

func domiciliationMovement(code string) *domain.Movement {
	subject := code
	m := beneficiaryMovement(code)
	m.BeneficiaryCode = nil
	m.DomiciliationCode = &subject
	m.Type = domain.MovementDomiciliationSubmission
	return m
}

func TestSubmitDomiciliationRejectsBrokenKey(t *testing.T) {
	d := validDomiciliation("20260001", "2026KIN00042")
	d.RIBKey = "00"
	repo := &stubRepository{
		getDomiciliationFn: func(ctx context.Context, code string) (*domain.Domiciliation, error) {
			return d, nil
		},
		submitDomiciliationFn: func(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error) {
			t.Fatal("submission must not proceed with a broken key")
			return nil, nil
		},
	}
	svc := NewService(repo, &recordingPublisher{}, "x", false, 1)

	err := svc.SubmitDomiciliation(context.Background(), testActor(), "20260001")
	if !errors.Is(err, ErrInvalidRIBKey) {
		t.Fatalf("expected ErrInvalidRIBKey, got %v", err)
	}
}

func TestSubmitDomiciliationWithValidKey(t *testing.T) {
	repo := &stubRepository{
		getDomiciliationFn: func(ctx context.Context, code string) (*domain.Domiciliation, error) {
			return validDomiciliation(code, "2026KIN00042"), nil
		},
		submitDomiciliationFn: func(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error) {
			return domiciliationMovement(code), nil
		},
	}
	publisher := &recordingPublisher{}
	svc := NewService(repo, publisher, "x", false, 1)

	if err := svc.SubmitDomiciliation(context.Background(), testActor(), "20260001"); err != nil {
		t.Fatalf("SubmitDomiciliation returned error: %v", err)
	}
	if len(publisher.routingKeys) != 1 || publisher.routingKeys[0] != "movement.recorded.domiciliation" {
		t.Fatalf("unexpected routing keys %v", publisher.routingKeys)
	}
}

func TestCombinedSubmitRequiresConfirmationWhenBothPending(t *testing.T) {
	repo := &stubRepository{
		getBeneficiaryFn: func(ctx context.Context, code string) (*domain.Beneficiary, error) {
			return &domain.Beneficiary{Code: code, Status: domain.StatusDraft}, nil
		},
		getLatestDomiciliationFn: func(ctx context.Context, beneficiaryCode string) (*domain.Domiciliation, error) {
			return validDomiciliation("20260001", beneficiaryCode), nil
		},
		submitBeneficiaryFn: func(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error) {
			t.Fatal("nothing may be written before confirmation")
			return nil, nil
		},
		submitDomiciliationFn: func(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error) {
			t.Fatal("nothing may be written before confirmation")
			return nil, nil
		},
	}
	svc := NewService(repo, &recordingPublisher{}, "x", false, 1)

	outcome, err := svc.CombinedSubmit(context.Background(), testActor(), "2026KIN00042", false)
	if err != nil {
		t.Fatalf("CombinedSubmit returned error: %v", err)
	}
	if !outcome.ConfirmationRequired {
		t.Fatal("expected confirmation to be required")
	}
	if !outcome.PendingBeneficiary || !outcome.PendingDomiciliation {
		t.Fatalf("expected both pending, got %+v", outcome)
	}
	if outcome.DomiciliationCode == nil || *outcome.DomiciliationCode != "20260001" {
		t.Fatal("expected the pending domiciliation code in the outcome")
	}
}

func TestCombinedSubmitConfirmedSubmitsBoth(t *testing.T) {
	var submittedBeneficiary, submittedDomiciliation bool
	repo := &stubRepository{
		getBeneficiaryFn: func(ctx context.Context, code string) (*domain.Beneficiary, error) {
			return &domain.Beneficiary{Code: code, Status: domain.StatusDraft}, nil
		},
		getLatestDomiciliationFn: func(ctx context.Context, beneficiaryCode string) (*domain.Domiciliation, error) {
			return validDomiciliation("20260001", beneficiaryCode), nil
		},
		getDomiciliationFn: func(ctx context.Context, code string) (*domain.Domiciliation, error) {
			return validDomiciliation(code, "2026KIN00042"), nil
		},
		submitBeneficiaryFn: func(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error) {
			submittedBeneficiary = true
			return beneficiaryMovement(code), nil
		},
		submitDomiciliationFn: func(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error) {
			submittedDomiciliation = true
			return domiciliationMovement(code), nil
		},
	}
	publisher := &recordingPublisher{}
	svc := NewService(repo, publisher, "x", false, 1)

	outcome, err := svc.CombinedSubmit(context.Background(), testActor(), "2026KIN00042", true)
	if err != nil {
		t.Fatalf("CombinedSubmit returned error: %v", err)
	}
	if outcome.ConfirmationRequired {
		t.Fatal("confirmed request must not ask again")
	}
	if !submittedBeneficiary || !submittedDomiciliation {
		t.Fatalf("expected both submissions, got beneficiary=%v domiciliation=%v", submittedBeneficiary, submittedDomiciliation)
	}
	if !outcome.BeneficiarySubmitted || !outcome.DomiciliationSubmitted {
		t.Fatalf("expected both reported submitted, got %+v", outcome)
	}
	if len(publisher.routingKeys) != 2 {
		t.Fatalf("expected two events, got %d", len(publisher.routingKeys))
	}
}

func TestCombinedSubmitOnlyBeneficiaryPending(t *testing.T) {
	repo := &stubRepository{
		getBeneficiaryFn: func(ctx context.Context, code string) (*domain.Beneficiary, error) {
			return &domain.Beneficiary{Code: code, Status: domain.StatusDraft}, nil
		},
		getLatestDomiciliationFn: func(ctx context.Context, beneficiaryCode string) (*domain.Domiciliation, error) {
			d := validDomiciliation("20260001", beneficiaryCode)
			d.Status = domain.StatusApproved
			return d, nil
		},
		submitBeneficiaryFn: func(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error) {
			return beneficiaryMovement(code), nil
		},
	}
	svc := NewService(repo, &recordingPublisher{}, "x", false, 1)

	outcome, err := svc.CombinedSubmit(context.Background(), testActor(), "2026KIN00042", false)
	if err != nil {
		t.Fatalf("CombinedSubmit returned error: %v", err)
	}
	if outcome.ConfirmationRequired {
		t.Fatal("single pending item needs no confirmation")
	}
	if !outcome.BeneficiarySubmitted || outcome.DomiciliationSubmitted {
		t.Fatalf("expected only the beneficiary submitted, got %+v", outcome)
	}
}

func TestCombinedSubmitWithoutAnyDomiciliation(t *testing.T) {
	repo := &stubRepository{
		getBeneficiaryFn: func(ctx context.Context, code string) (*domain.Beneficiary, error) {
			return &domain.Beneficiary{Code: code, Status: domain.StatusDraft}, nil
		},
		getLatestDomiciliationFn: func(ctx context.Context, beneficiaryCode string) (*domain.Domiciliation, error) {
			return nil, store.ErrDomiciliationNotFound
		},
		submitBeneficiaryFn: func(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error) {
			return beneficiaryMovement(code), nil
		},
	}
	svc := NewService(repo, &recordingPublisher{}, "x", false, 1)

	outcome, err := svc.CombinedSubmit(context.Background(), testActor(), "2026KIN00042", false)
	if err != nil {
		t.Fatalf("CombinedSubmit returned error: %v", err)
	}
	if !outcome.BeneficiarySubmitted || outcome.PendingDomiciliation {
		t.Fatalf("expected beneficiary-only submission, got %+v", outcome)
	}
}

func TestCombinedSubmitNothingPending(t *testing.T) {
	repo := &stubRepository{
		getBeneficiaryFn: func(ctx context.Context, code string) (*domain.Beneficiary, error) {
			return &domain.Beneficiary{Code: code, Status: domain.StatusApproved}, nil
		},
		getLatestDomiciliationFn: func(ctx context.Context, beneficiaryCode string) (*domain.Domiciliation, error) {
			d := validDomiciliation("20260001", beneficiaryCode)
			d.Status = domain.StatusSubmitted
			return d, nil
		},
	}
	svc := NewService(repo, &recordingPublisher{}, "x", false, 1)

	_, err := svc.CombinedSubmit(context.Background(), testActor(), "2026KIN00042", true)
	if !errors.Is(err, ErrNothingToSubmit) {
		t.Fatalf("expected ErrNothingToSubmit, got %v", err)
	}
}

func TestCombinedSubmitReportsDomiciliationFailureAfterBeneficiarySuccess(t *testing.T) {
	repo := &stubRepository{
		getBeneficiaryFn: func(ctx context.Context, code string) (*domain.Beneficiary, error) {
			return &domain.Beneficiary{Code: code, Status: domain.StatusDraft}, nil
		},
		getLatestDomiciliationFn: func(ctx context.Context, beneficiaryCode string) (*domain.Domiciliation, error) {
			return validDomiciliation("20260001", beneficiaryCode), nil
		},
		getDomiciliationFn: func(ctx context.Context, code string) (*domain.Domiciliation, error) {
			return validDomiciliation(code, "2026KIN00042"), nil
		},
		submitBeneficiaryFn: func(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error) {
			return beneficiaryMovement(code), nil
		},
		submitDomiciliationFn: func(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error) {
			return nil, store.ErrConcurrentSubmission
		},
	}
	svc := NewService(repo, &recordingPublisher{}, "x", false, 1)

	outcome, err := svc.CombinedSubmit(context.Background(), testActor(), "2026KIN00042", true)
	if err != nil {
		t.Fatalf("expected partial outcome, not error: %v", err)
	}
	if !outcome.BeneficiarySubmitted {
		t.Fatal("beneficiary submission already committed and must be reported")
	}
	if outcome.DomiciliationSubmitted {
		t.Fatal("domiciliation submission failed and must not be reported as done")
	}
	if outcome.DomiciliationError == nil {
		t.Fatal("expected the domiciliation failure reason in the outcome")
	}
}
