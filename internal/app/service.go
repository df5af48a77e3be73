/**
 * @description
 * This file contains the validation engine for the quotes-parts approval
 * workflow. The `Service` struct is the sole entry point for status
 * transitions: it resolves nothing from ambient state (the actor context comes
 * in explicitly), delegates the atomic row-locked transition to the repository,
 * retries on generated-code collisions, and publishes a movement event after
 * each committed transition.
 *
 * Key features:
 * - Single-item and batch forms for every transition; batch items are isolated
 *   per transaction and failures are partitioned, never propagated to siblings.
 * - Bounded retry on duplicate generated codes (the unique constraint is the
 *   correctness backstop for the MAX+1 sequence read).
 * - Rejection auditing is configurable: historically rejections changed status
 *   without writing movements, and that stays the default.
 *
 * @dependencies
 * - context, errors, fmt, log, strings: Standard Go libraries.
 * - github.com/google/uuid: For batch correlation ids.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For movement event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Miriol236/GESTION-QP-sub001/internal/domain"
	"github.com/Miriol236/GESTION-QP-sub001/internal/store"
	"github.com/Miriol236/GESTION-QP-sub001/pkg/rabbitmq"
)

const DefaultCodeRetryAttempts = 3

var (
	ErrNothingToSubmit  = errors.New("nothing to submit")
	ErrInvalidRIBKey    = errors.New("rib key does not match account")
	ErrBatchRateLimited = errors.New("too many batch validation requests")
	ErrEmptyBatch       = errors.New("batch contains no codes")
)

// BatchRateLimiter throttles batch validation requests per approver.
type BatchRateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic for the approval workflow.
type Service struct {
	repo              store.Repository
	eventProducer     rabbitmq.Publisher
	eventExchange     string
	recordRejections  bool
	codeRetryAttempts int

	rateLimiter         BatchRateLimiter
	batchLimitPerMinute int
}

// NewService creates a new validation engine instance.
func NewService(repo store.Repository, producer rabbitmq.Publisher, eventExchange string, recordRejections bool, codeRetryAttempts int) *Service {
	if codeRetryAttempts <= 0 {
		codeRetryAttempts = DefaultCodeRetryAttempts
	}
	return &Service{
		repo:              repo,
		eventProducer:     producer,
		eventExchange:     eventExchange,
		recordRejections:  recordRejections,
		codeRetryAttempts: codeRetryAttempts,
	}
}

// SetBatchRateLimiter enables distributed throttling of batch endpoints.
func (s *Service) SetBatchRateLimiter(limiter BatchRateLimiter, limitPerMinute int) {
	s.rateLimiter = limiter
	s.batchLimitPerMinute = limitPerMinute
}

// ResolveActor builds the explicit approver context for a user id.
func (s *Service) ResolveActor(ctx context.Context, userID string) (*domain.ActorContext, error) {
	return s.repo.ResolveActor(ctx, userID)
}

// transitionWithRetry runs one repository transition, retrying when the
// generated movement code collided with a concurrent writer. Anything else
// propagates unchanged.
func (s *Service) transitionWithRetry(op func() (*domain.Movement, error)) (*domain.Movement, error) {
	var lastErr error
	for attempt := 0; attempt < s.codeRetryAttempts; attempt++ {
		movement, err := op()
		if err == nil {
			return movement, nil
		}
		if !errors.Is(err, store.ErrDuplicateCode) {
			return nil, err
		}
		lastErr = err
		log.Printf("level=warn component=validation_engine msg=\"movement code collision; retrying\" attempt=%d err=%v", attempt+1, err)
	}
	return nil, fmt.Errorf("movement code generation exhausted retries: %w", lastErr)
}

// publishMovement emits the post-commit event. Failures are logged and
// swallowed: the transition is already durable.
func (s *Service) publishMovement(ctx context.Context, m *domain.Movement) {
	if s.eventProducer == nil || m == nil {
		return
	}
	subjectCode := ""
	switch m.Type.Kind() {
	case domain.KindBeneficiary:
		if m.BeneficiaryCode != nil {
			subjectCode = *m.BeneficiaryCode
		}
	case domain.KindDomiciliation:
		if m.DomiciliationCode != nil {
			subjectCode = *m.DomiciliationCode
		}
	case domain.KindPayment:
		if m.PaymentCode != nil {
			subjectCode = *m.PaymentCode
		}
	}
	event := rabbitmq.MovementEvent{
		Code:        m.Code,
		Kind:        string(m.Type.Kind()),
		Type:        string(m.Type),
		LegacyType:  m.Type.Wire(),
		SubjectCode: subjectCode,
		Level:       m.Level,
		UserID:      m.UserID,
		Date:        m.Date,
	}
	routingKey := "movement.recorded." + event.Kind
	if err := s.eventProducer.Publish(ctx, s.eventExchange, routingKey, event); err != nil {
		log.Printf("level=warn component=validation_engine msg=\"movement event publish failed\" movement=%s err=%v", m.Code, err)
	}
}

// consumeBatchRateLimit applies the per-approver fixed window. A limiter
// error disables throttling for the request rather than failing it.
func (s *Service) consumeBatchRateLimit(ctx context.Context, actor domain.ActorContext) error {
	if s.rateLimiter == nil || s.batchLimitPerMinute <= 0 {
		return nil
	}
	count, retryAfter, err := s.rateLimiter.ConsumeRateLimit(ctx, "batch_validation", actor.UserID, s.batchLimitPerMinute, time.Minute)
	if err != nil {
		log.Printf("level=warn component=validation_engine msg=\"rate limiter unavailable; allowing request\" user_id=%s err=%v", actor.UserID, err)
		return nil
	}
	if count > s.batchLimitPerMinute {
		return fmt.Errorf("%w: retry in %ds", ErrBatchRateLimited, retryAfter)
	}
	return nil
}

// runBatch processes codes in input order, one repository transaction each.
// A failed item lands in Failed with its reason; siblings are unaffected.
func (s *Service) runBatch(ctx context.Context, actor domain.ActorContext, codes []string, op func(string) (*domain.Movement, error)) (*domain.BatchResult, error) {
	if err := s.consumeBatchRateLimit(ctx, actor); err != nil {
		return nil, err
	}

	result := &domain.BatchResult{BatchID: uuid.New()}
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		movement, err := s.transitionWithRetry(func() (*domain.Movement, error) { return op(code) })
		if err != nil {
			result.Failed = append(result.Failed, domain.BatchItemFailure{Code: code, Reason: err.Error()})
			continue
		}
		result.Updated++
		result.Success = append(result.Success, code)
		s.publishMovement(ctx, movement)
	}
	if result.Updated == 0 && len(result.Failed) == 0 {
		return nil, ErrEmptyBatch
	}
	return result, nil
}

// SubmitBeneficiary submits a single beneficiary for approval.
func (s *Service) SubmitBeneficiary(ctx context.Context, actor domain.ActorContext, code string) error {
	movement, err := s.transitionWithRetry(func() (*domain.Movement, error) {
		return s.repo.SubmitBeneficiary(ctx, code, actor)
	})
	if err != nil {
		return err
	}
	s.publishMovement(ctx, movement)
	return nil
}

// ApproveBeneficiary approves a single beneficiary.
func (s *Service) ApproveBeneficiary(ctx context.Context, actor domain.ActorContext, code string) error {
	movement, err := s.transitionWithRetry(func() (*domain.Movement, error) {
		return s.repo.ApproveBeneficiary(ctx, code, actor)
	})
	if err != nil {
		return err
	}
	s.publishMovement(ctx, movement)
	return nil
}

// RejectBeneficiary rejects a beneficiary. Whether the rejection leaves an
// audit movement depends on configuration.
func (s *Service) RejectBeneficiary(ctx context.Context, actor domain.ActorContext, code string) error {
	movement, err := s.transitionWithRetry(func() (*domain.Movement, error) {
		return s.repo.RejectBeneficiary(ctx, code, actor, s.recordRejections)
	})
	if err != nil {
		return err
	}
	s.publishMovement(ctx, movement)
	return nil
}

// SubmitBeneficiaryBatch submits several beneficiaries, tolerating per-item failures.
func (s *Service) SubmitBeneficiaryBatch(ctx context.Context, actor domain.ActorContext, codes []string) (*domain.BatchResult, error) {
	return s.runBatch(ctx, actor, codes, func(code string) (*domain.Movement, error) {
		return s.repo.SubmitBeneficiary(ctx, code, actor)
	})
}

// ApproveBeneficiaryBatch approves several beneficiaries, tolerating per-item failures.
func (s *Service) ApproveBeneficiaryBatch(ctx context.Context, actor domain.ActorContext, codes []string) (*domain.BatchResult, error) {
	return s.runBatch(ctx, actor, codes, func(code string) (*domain.Movement, error) {
		return s.repo.ApproveBeneficiary(ctx, code, actor)
	})
}

// RejectBeneficiaryBatch rejects several beneficiaries.
func (s *Service) RejectBeneficiaryBatch(ctx context.Context, actor domain.ActorContext, codes []string) (*domain.BatchResult, error) {
	return s.runBatch(ctx, actor, codes, func(code string) (*domain.Movement, error) {
		return s.repo.RejectBeneficiary(ctx, code, actor, s.recordRejections)
	})
}

// NextBeneficiaryCode generates the next beneficiary code for the current year
// and the actor's org-unit sigil context.
func (s *Service) NextBeneficiaryCode(ctx context.Context, year int, sigil string) (string, error) {
	sigil = strings.TrimSpace(sigil)
	if sigil == "" {
		return "", fmt.Errorf("org-unit sigil is required")
	}
	if year < 2000 || year > 2100 {
		return "", fmt.Errorf("year %d out of range", year)
	}
	return s.repo.NextBeneficiaryCode(ctx, year, sigil)
}

// NextDomiciliationCode generates the next domiciliation code for a year.
func (s *Service) NextDomiciliationCode(ctx context.Context, year int) (string, error) {
	if year < 2000 || year > 2100 {
		return "", fmt.Errorf("year %d out of range", year)
	}
	return s.repo.NextDomiciliationCode(ctx, year)
}
