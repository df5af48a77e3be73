package app

import (
	"context"
	"errors"

	"github.com/Miriol236/GESTION-QP-sub001/internal/domain"
	"github.com/Miriol236/GESTION-QP-sub001/internal/store"
)

// verifyDomiciliationKey re-checks the stored RIB key before submission. A
// record with a broken checksum must never reach an approver's worklist.
func (s *Service) verifyDomiciliationKey(ctx context.Context, code string) error {
	d, err := s.repo.GetDomiciliation(ctx, code)
	if err != nil {
		return err
	}
	if !domain.VerifyRIBKey(d.BankCode, d.BranchCode, d.AccountNumber, d.RIBKey) {
		return ErrInvalidRIBKey
	}
	return nil
}

// SubmitDomiciliation submits a single domiciliation for approval.
func (s *Service) SubmitDomiciliation(ctx context.Context, actor domain.ActorContext, code string) error {
	if err := s.verifyDomiciliationKey(ctx, code); err != nil {
		return err
	}
	movement, err := s.transitionWithRetry(func() (*domain.Movement, error) {
		return s.repo.SubmitDomiciliation(ctx, code, actor)
	})
	if err != nil {
		return err
	}
	s.publishMovement(ctx, movement)
	return nil
}

// ApproveDomiciliation approves a domiciliation, atomically superseding any
// previously approved account of the same beneficiary.
func (s *Service) ApproveDomiciliation(ctx context.Context, actor domain.ActorContext, code string) error {
	movement, err := s.transitionWithRetry(func() (*domain.Movement, error) {
		return s.repo.ApproveDomiciliation(ctx, code, actor)
	})
	if err != nil {
		return err
	}
	s.publishMovement(ctx, movement)
	return nil
}

// RejectDomiciliation rejects a domiciliation.
func (s *Service) RejectDomiciliation(ctx context.Context, actor domain.ActorContext, code string) error {
	movement, err := s.transitionWithRetry(func() (*domain.Movement, error) {
		return s.repo.RejectDomiciliation(ctx, code, actor, s.recordRejections)
	})
	if err != nil {
		return err
	}
	s.publishMovement(ctx, movement)
	return nil
}

// SubmitDomiciliationBatch submits several domiciliations, tolerating per-item failures.
func (s *Service) SubmitDomiciliationBatch(ctx context.Context, actor domain.ActorContext, codes []string) (*domain.BatchResult, error) {
	return s.runBatch(ctx, actor, codes, func(code string) (*domain.Movement, error) {
		if err := s.verifyDomiciliationKey(ctx, code); err != nil {
			return nil, err
		}
		return s.repo.SubmitDomiciliation(ctx, code, actor)
	})
}

// ApproveDomiciliationBatch approves several domiciliations.
func (s *Service) ApproveDomiciliationBatch(ctx context.Context, actor domain.ActorContext, codes []string) (*domain.BatchResult, error) {
	return s.runBatch(ctx, actor, codes, func(code string) (*domain.Movement, error) {
		return s.repo.ApproveDomiciliation(ctx, code, actor)
	})
}

// RejectDomiciliationBatch rejects several domiciliations.
func (s *Service) RejectDomiciliationBatch(ctx context.Context, actor domain.ActorContext, codes []string) (*domain.BatchResult, error) {
	return s.runBatch(ctx, actor, codes, func(code string) (*domain.Movement, error) {
		return s.repo.RejectDomiciliation(ctx, code, actor, s.recordRejections)
	})
}

// CombinedSubmit submits a beneficiary and/or its most recent domiciliation in
// one call. When both need submission and the caller has not confirmed, it
// returns a confirmation-required outcome without writing anything, so a
// surprising double submission needs an explicit second request.
func (s *Service) CombinedSubmit(ctx context.Context, actor domain.ActorContext, beneficiaryCode string, confirmed bool) (*domain.CombinedSubmitOutcome, error) {
	beneficiary, err := s.repo.GetBeneficiary(ctx, beneficiaryCode)
	if err != nil {
		return nil, err
	}

	outcome := &domain.CombinedSubmitOutcome{
		PendingBeneficiary: beneficiary.Status.CanSubmit(),
	}

	latest, err := s.repo.GetLatestDomiciliation(ctx, beneficiaryCode)
	switch {
	case err == nil:
		if latest.Status.CanSubmit() {
			outcome.PendingDomiciliation = true
			outcome.DomiciliationCode = &latest.Code
		}
	case errors.Is(err, store.ErrDomiciliationNotFound):
		// Beneficiary without any account yet; only the beneficiary can be submitted.
	default:
		return nil, err
	}

	if !outcome.PendingBeneficiary && !outcome.PendingDomiciliation {
		return outcome, ErrNothingToSubmit
	}
	if outcome.PendingBeneficiary && outcome.PendingDomiciliation && !confirmed {
		outcome.ConfirmationRequired = true
		return outcome, nil
	}

	if outcome.PendingBeneficiary {
		movement, err := s.transitionWithRetry(func() (*domain.Movement, error) {
			return s.repo.SubmitBeneficiary(ctx, beneficiaryCode, actor)
		})
		if err != nil {
			return nil, err
		}
		outcome.BeneficiarySubmitted = true
		s.publishMovement(ctx, movement)
	}

	if outcome.PendingDomiciliation {
		movement, err := s.transitionWithRetry(func() (*domain.Movement, error) {
			if err := s.verifyDomiciliationKey(ctx, *outcome.DomiciliationCode); err != nil {
				return nil, err
			}
			return s.repo.SubmitDomiciliation(ctx, *outcome.DomiciliationCode, actor)
		})
		if err != nil {
			// The beneficiary submission already committed in its own
			// transaction; report the partial outcome instead of failing.
			if outcome.BeneficiarySubmitted {
				reason := err.Error()
				outcome.DomiciliationError = &reason
				return outcome, nil
			}
			return nil, err
		}
		outcome.DomiciliationSubmitted = true
		s.publishMovement(ctx, movement)
	}

	return outcome, nil
}
