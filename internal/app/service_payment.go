package app

import (
	"context"

	"github.com/Miriol236/GESTION-QP-sub001/internal/domain"
)

// SubmitPayment validates a single payment (first approval stage).
func (s *Service) SubmitPayment(ctx context.Context, actor domain.ActorContext, code string) error {
	movement, err := s.transitionWithRetry(func() (*domain.Movement, error) {
		return s.repo.SubmitPayment(ctx, code, actor)
	})
	if err != nil {
		return err
	}
	s.publishMovement(ctx, movement)
	return nil
}

// ApprovePayment approves a single payment. The repository rejects payments
// whose beneficiary has no approved domiciliation.
func (s *Service) ApprovePayment(ctx context.Context, actor domain.ActorContext, code string) error {
	movement, err := s.transitionWithRetry(func() (*domain.Movement, error) {
		return s.repo.ApprovePayment(ctx, code, actor)
	})
	if err != nil {
		return err
	}
	s.publishMovement(ctx, movement)
	return nil
}

// RejectPayment rejects a payment.
func (s *Service) RejectPayment(ctx context.Context, actor domain.ActorContext, code string) error {
	movement, err := s.transitionWithRetry(func() (*domain.Movement, error) {
		return s.repo.RejectPayment(ctx, code, actor, s.recordRejections)
	})
	if err != nil {
		return err
	}
	s.publishMovement(ctx, movement)
	return nil
}

// SubmitPaymentBatch validates several payments, tolerating per-item failures.
func (s *Service) SubmitPaymentBatch(ctx context.Context, actor domain.ActorContext, codes []string) (*domain.BatchResult, error) {
	return s.runBatch(ctx, actor, codes, func(code string) (*domain.Movement, error) {
		return s.repo.SubmitPayment(ctx, code, actor)
	})
}

// ApprovePaymentBatch approves several payments. An item whose beneficiary has
// no approved account fails alone; the rest of the batch proceeds.
func (s *Service) ApprovePaymentBatch(ctx context.Context, actor domain.ActorContext, codes []string) (*domain.BatchResult, error) {
	return s.runBatch(ctx, actor, codes, func(code string) (*domain.Movement, error) {
		return s.repo.ApprovePayment(ctx, code, actor)
	})
}

// RejectPaymentBatch rejects several payments.
func (s *Service) RejectPaymentBatch(ctx context.Context, actor domain.ActorContext, codes []string) (*domain.BatchResult, error) {
	return s.runBatch(ctx, actor, codes, func(code string) (*domain.Movement, error) {
		return s.repo.RejectPayment(ctx, code, actor, s.recordRejections)
	})
}

// RecordTransfer counts one executed bank transfer against a payment that has
// at least been validated.
func (s *Service) RecordTransfer(ctx context.Context, code string) (*domain.Payment, error) {
	return s.repo.RecordTransfer(ctx, code)
}

// GetPaymentWithDetails returns a payment with its line items and computed net.
func (s *Service) GetPaymentWithDetails(ctx context.Context, code string) (*domain.PaymentWithDetails, error) {
	return s.repo.GetPaymentWithDetails(ctx, code)
}

// AddPaymentDetail appends a line item to a draft payment, generating its code.
func (s *Service) AddPaymentDetail(ctx context.Context, paymentCode, elementCode string, amount int64) (*domain.PaymentDetail, error) {
	return s.repo.AddPaymentDetail(ctx, paymentCode, elementCode, amount)
}
