package app

import (
	"context"

	"github.com/Miriol236/GESTION-QP-sub001/internal/domain"
)

// secondTierLevel is the approval level whose worklist is restricted to peer
// submissions. Level 1 is the intake reviewer and sees everything pending;
// level 2 cross-checks only what level 1 in its own org unit already cleared.
const secondTierLevel = 2

// WorklistFilterFor derives the pending-query scope from the caller's level.
func WorklistFilterFor(actor domain.ActorContext) domain.WorklistFilter {
	if actor.Level == secondTierLevel {
		return domain.WorklistFilter{RestrictToLevel: 1, OrgUnitCode: actor.OrgUnitCode}
	}
	return domain.WorklistFilter{}
}

// PendingWorklists assembles everything awaiting the caller, with per-category
// counts and the grand total.
func (s *Service) PendingWorklists(ctx context.Context, actor domain.ActorContext) (*domain.PendingWorklists, error) {
	filter := WorklistFilterFor(actor)

	beneficiaries, err := s.repo.PendingBeneficiaryMovements(ctx, filter)
	if err != nil {
		return nil, err
	}
	domiciliations, err := s.repo.PendingDomiciliationMovements(ctx, filter)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.PendingPaymentMovements(ctx, filter)
	if err != nil {
		return nil, err
	}

	counts := domain.WorklistCounts{
		Beneficiaries:  len(beneficiaries),
		Domiciliations: len(domiciliations),
		Payments:       len(payments),
	}
	counts.Total = counts.Beneficiaries + counts.Domiciliations + counts.Payments

	return &domain.PendingWorklists{
		Beneficiaries:  beneficiaries,
		Domiciliations: domiciliations,
		Payments:       payments,
		Counts:         counts,
	}, nil
}
